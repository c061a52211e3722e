// Package ai runs the object detection network through OpenCV's DNN module.
package ai

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"weaponwatch/internal/logger"
	"weaponwatch/internal/model"
	"weaponwatch/internal/service/ai/yolo"
)

const (
	// InputSize is the square network input resolution.
	InputSize = 640
	// NMSThreshold is the IoU above which overlapping boxes of one class are merged.
	NMSThreshold = 0.45
)

// Detector wraps an ONNX YOLO model. Inference is serialized; gocv.Net is not safe for
// concurrent use.
type Detector struct {
	mu       sync.Mutex
	net      gocv.Net
	classes  []string
	minScore float32
	logger   *logger.Logger
}

// NewDetector loads the model at modelPath. classes maps class ids to labels.
func NewDetector(modelPath string, classes []string, minConfidence float64, logger *logger.Logger) (*Detector, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("no model classes configured")
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	logger.Info("🧠 Detection network loaded from %s (%d classes)", modelPath, len(classes))
	return &Detector{
		net:      net,
		classes:  classes,
		minScore: float32(minConfidence),
		logger:   logger,
	}, nil
}

// Detect runs one inference pass on img. Boxes are in img pixel coordinates.
func (d *Detector) Detect(ctx context.Context, img *image.RGBA) ([]model.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("converted frame is empty")
	}

	blob := gocv.BlobFromImage(
		mat,
		1.0/255.0,
		image.Pt(InputSize, InputSize),
		gocv.NewScalar(0, 0, 0, 0),
		true,
		false,
	)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	sizes := output.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", sizes)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read output tensor: %w", err)
	}

	bounds := img.Bounds()
	candidates, err := yolo.Decode(data, yolo.Layout{
		Classes: sizes[1] - 4,
		Anchors: sizes[2],
		ScaleX:  float64(bounds.Dx()) / InputSize,
		ScaleY:  float64(bounds.Dy()) / InputSize,
		Bounds:  bounds,
	}, d.minScore)
	if err != nil {
		return nil, err
	}

	return yolo.ToDetections(yolo.NMS(candidates, NMSThreshold), d.classes), nil
}

// Close releases the network.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
