package camera

import (
	"image"
	"sync"

	"github.com/fogleman/gg"
)

const (
	PlaceholderWidth  = 640
	PlaceholderHeight = 480
	placeholderText   = "Camera Feed Loading..."
)

var (
	placeholderOnce sync.Once
	placeholderImg  *image.RGBA
)

// Placeholder returns the frame served before the first capture succeeds.
// The returned image is shared and must be treated as read-only.
func Placeholder() *image.RGBA {
	placeholderOnce.Do(func() {
		placeholderImg = renderPlaceholder(PlaceholderWidth, PlaceholderHeight)
	})
	return placeholderImg
}

func renderPlaceholder(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	dc := gg.NewContextForRGBA(img)

	dc.SetRGB255(50, 50, 50)
	dc.Clear()

	dc.SetRGB255(255, 255, 255)
	dc.DrawStringAnchored(placeholderText, float64(w)/2, float64(h)/2, 0.5, 0.5)

	return img
}
