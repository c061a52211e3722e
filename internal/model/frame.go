package model

import (
	"image"
	"time"
)

// Frame is one captured raster image.
type Frame struct {
	Image      *image.RGBA
	Seq        uint64
	CapturedAt time.Time
}

// Clone returns a deep copy so readers never share pixels with the writer.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	return &Frame{
		Image:      CloneRGBA(f.Image),
		Seq:        f.Seq,
		CapturedAt: f.CapturedAt,
	}
}

// WithImage returns a frame carrying img and the same capture metadata.
func (f *Frame) WithImage(img *image.RGBA) *Frame {
	return &Frame{Image: img, Seq: f.Seq, CapturedAt: f.CapturedAt}
}

// CloneRGBA copies the pixel buffer of img.
func CloneRGBA(img *image.RGBA) *image.RGBA {
	if img == nil {
		return nil
	}
	out := &image.RGBA{
		Pix:    make([]uint8, len(img.Pix)),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	copy(out.Pix, img.Pix)
	return out
}
