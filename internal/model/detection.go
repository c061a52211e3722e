package model

import "image"

// Detection is the result of one detection pass for one object on one frame.
type Detection struct {
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
	Box        image.Rectangle `json:"box"`
}
