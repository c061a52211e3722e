package annotate

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weaponwatch/internal/model"
)

func blank(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0
	}
	return img
}

func TestAnnotate_NoDetectionsReturnsSource(t *testing.T) {
	src := blank(32, 32)
	assert.Same(t, src, New([]string{"pistol"}).Annotate(src, nil))
}

func TestAnnotate_DrawsOnCopy(t *testing.T) {
	src := blank(100, 100)
	a := New([]string{"pistol", "knife"})

	out := a.Annotate(src, []model.Detection{
		{Label: "pistol", Confidence: 0.91, Box: image.Rect(20, 30, 60, 80)},
	})

	require.NotSame(t, src, out)
	assert.Equal(t, src.Bounds(), out.Bounds())
	assert.Equal(t, color.RGBA{}, src.RGBAAt(20, 55), "source must stay untouched")

	edge := out.RGBAAt(20, 55)
	assert.Greater(t, edge.G, uint8(100), "left box edge should be green")
	assert.Less(t, edge.R, uint8(100))
}

func TestAnnotator_ColorFor(t *testing.T) {
	a := New([]string{"pistol", "knife"})

	tests := []struct {
		label string
		want  color.RGBA
	}{
		{"pistol", WeaponColor},
		{"knife", WeaponColor},
		{"neutral", NeutralColor},
		{"person", OtherColor},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, a.ColorFor(tt.label))
		})
	}
}

func TestText(t *testing.T) {
	assert.Equal(t, "pistol: 0.91", Text(model.Detection{Label: "pistol", Confidence: 0.9149}))
	assert.Equal(t, "knife: 1.00", Text(model.Detection{Label: "knife", Confidence: 1}))
}
