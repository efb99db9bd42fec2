package model

import "image"

// RawCandidate is a single unfiltered model output row.
// The box is normalized to [0,1] and expressed as center and size.
type RawCandidate struct {
	Scores  []float32
	CenterX float32
	CenterY float32
	Width   float32
	Height  float32
}

// Box is an absolute pixel box relative to the source frame.
type Box struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Area returns the box area in pixels; degenerate boxes have zero area.
func (b Box) Area() int {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Detection is a post-processed candidate of the configured target class.
type Detection struct {
	ClassID    int
	Confidence float64
	Box        Box
}
