// Package capture reads frames from a local camera or stream through OpenCV.
package capture

import (
	"fmt"
	"image"
	"image/draw"
	"sync"

	"gocv.io/x/gocv"
)

// Device is a camera.Capturer backed by gocv.VideoCapture.
type Device struct {
	mu  sync.Mutex
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

// Open opens a device index ("0") or a stream/file URL.
func Open(device string) (*Device, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open video source %q: %w", device, err)
	}
	return &Device{vc: vc, mat: gocv.NewMat()}, nil
}

// Capture reads one frame and converts it to RGBA.
func (d *Device) Capture() (*image.RGBA, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vc == nil {
		return nil, false
	}
	if ok := d.vc.Read(&d.mat); !ok || d.mat.Empty() {
		return nil, false
	}

	img, err := d.mat.ToImage()
	if err != nil {
		return nil, false
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, true
	}

	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba, true
}

// Close releases the capture device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vc == nil {
		return nil
	}
	err := d.vc.Close()
	d.mat.Close()
	d.vc = nil
	return err
}
