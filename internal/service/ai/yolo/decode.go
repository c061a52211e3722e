// Package yolo decodes the raw output tensor of single-stage YOLO detectors
// (v8 and later head layout: [1, 4+classes, anchors]).
package yolo

import (
	"fmt"
	"image"
	"sort"

	"weaponwatch/internal/model"
)

// Candidate is one decoded box before label mapping.
type Candidate struct {
	ClassID int
	Score   float32
	Box     image.Rectangle
}

// Layout describes the tensor shape and how to map boxes back onto the source frame.
type Layout struct {
	Classes int
	Anchors int
	// ScaleX and ScaleY map network input coordinates to frame pixels.
	ScaleX float64
	ScaleY float64
	// Bounds clamps decoded boxes, usually the frame bounds.
	Bounds image.Rectangle
}

// Decode reads candidates scoring at least minScore. out is the row-major tensor data:
// rows 0-3 hold cx, cy, w, h; the following rows hold one score per class.
func Decode(out []float32, layout Layout, minScore float32) ([]Candidate, error) {
	rows := 4 + layout.Classes
	if layout.Classes <= 0 || layout.Anchors <= 0 {
		return nil, fmt.Errorf("invalid layout: %d classes, %d anchors", layout.Classes, layout.Anchors)
	}
	if len(out) < rows*layout.Anchors {
		return nil, fmt.Errorf("output too short: have %d values, need %d", len(out), rows*layout.Anchors)
	}

	at := func(row, anchor int) float32 {
		return out[row*layout.Anchors+anchor]
	}

	var candidates []Candidate
	for i := 0; i < layout.Anchors; i++ {
		best, classID := float32(0), -1
		for c := 0; c < layout.Classes; c++ {
			if s := at(4+c, i); s > best {
				best, classID = s, c
			}
		}
		if classID < 0 || best < minScore {
			continue
		}

		cx := float64(at(0, i)) * layout.ScaleX
		cy := float64(at(1, i)) * layout.ScaleY
		w := float64(at(2, i)) * layout.ScaleX
		h := float64(at(3, i)) * layout.ScaleY

		box := image.Rect(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2))
		if !layout.Bounds.Empty() {
			box = box.Intersect(layout.Bounds)
		}
		if box.Empty() {
			continue
		}

		candidates = append(candidates, Candidate{ClassID: classID, Score: best, Box: box})
	}
	return candidates, nil
}

// NMS keeps the highest scoring box of every overlapping group of the same class.
// Boxes overlap when their IoU exceeds iouThreshold. Survivors are ordered by score.
func NMS(candidates []Candidate, iouThreshold float64) []Candidate {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	var kept []Candidate
	for _, c := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.ClassID == c.ClassID && IoU(k.Box, c.Box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}
	return kept
}

// IoU returns the intersection over union of two rectangles.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := area(inter)
	union := area(a) + area(b) - ia
	if union <= 0 {
		return 0
	}
	return ia / union
}

func area(r image.Rectangle) float64 {
	return float64(r.Dx()) * float64(r.Dy())
}

// ToDetections maps class ids to names. Unknown ids become "class_<id>".
func ToDetections(candidates []Candidate, classes []string) []model.Detection {
	detections := make([]model.Detection, 0, len(candidates))
	for _, c := range candidates {
		label := fmt.Sprintf("class_%d", c.ClassID)
		if c.ClassID < len(classes) {
			label = classes[c.ClassID]
		}
		detections = append(detections, model.Detection{
			Label:      label,
			Confidence: float64(c.Score),
			Box:        c.Box,
		})
	}
	return detections
}
