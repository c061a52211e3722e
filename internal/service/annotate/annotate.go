// Package annotate draws detection boxes and labels onto frames.
package annotate

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"

	"weaponwatch/internal/model"
)

// NeutralLabel marks objects the model recognizes as harmless.
const NeutralLabel = "neutral"

var (
	WeaponColor  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	NeutralColor = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	OtherColor   = color.RGBA{R: 0, G: 0, B: 255, A: 255}
)

const (
	lineWidth  = 2
	textOffset = 10
)

// Annotator renders detections. It holds no per-frame state.
type Annotator struct {
	weapons map[string]bool
}

// New creates an Annotator that colors weaponLabels as weapons.
func New(weaponLabels []string) *Annotator {
	weapons := make(map[string]bool, len(weaponLabels))
	for _, l := range weaponLabels {
		weapons[l] = true
	}
	return &Annotator{weapons: weapons}
}

// ColorFor returns the box color used for label.
func (a *Annotator) ColorFor(label string) color.RGBA {
	switch {
	case a.weapons[label]:
		return WeaponColor
	case label == NeutralLabel:
		return NeutralColor
	default:
		return OtherColor
	}
}

// Annotate returns src with every detection drawn. src itself is never modified;
// with no detections it is returned as is.
func (a *Annotator) Annotate(src *image.RGBA, detections []model.Detection) *image.RGBA {
	if len(detections) == 0 {
		return src
	}

	dst := model.CloneRGBA(src)
	dc := gg.NewContextForRGBA(dst)
	dc.SetLineWidth(lineWidth)

	for _, d := range detections {
		c := a.ColorFor(d.Label)
		r := d.Box

		dc.SetColor(c)
		dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
		dc.Stroke()

		dc.DrawString(Text(d), float64(r.Min.X), float64(r.Min.Y-textOffset))
	}

	return dst
}

// Text is the caption drawn above a box, e.g. "pistol: 0.91".
func Text(d model.Detection) string {
	return fmt.Sprintf("%s: %.2f", d.Label, d.Confidence)
}
