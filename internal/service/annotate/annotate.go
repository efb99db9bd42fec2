package annotate

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"camwatch/internal/model"
	"camwatch/internal/service/detection"
)

// labelOffset is the gap between a box's top edge and its label baseline;
// labelMinY keeps the label inside the image.
const (
	labelOffset = 10
	labelMinY   = 20
)

// Style configures how detections are drawn.
type Style struct {
	BoxColor      color.RGBA
	BoxThickness  int
	TextSize      float64
	TextColor     color.RGBA
	TextThickness int
}

// BGR converts an OpenCV-ordered [b, g, r] triple to a color.
func BGR(c []int) color.RGBA {
	if len(c) != 3 {
		return color.RGBA{A: 255}
	}
	return color.RGBA{B: uint8(c[0]), G: uint8(c[1]), R: uint8(c[2]), A: 255}
}

// Annotator draws detection boxes and labels.
type Annotator struct {
	style  Style
	labels []string
}

func NewAnnotator(style Style, labels []string) *Annotator {
	return &Annotator{style: style, labels: labels}
}

// Annotate returns a copy of frame with every detection drawn on it. The
// input frame is never modified; the caller owns the returned Mat.
func (a *Annotator) Annotate(frame gocv.Mat, dets []model.Detection) (gocv.Mat, error) {
	out := frame.Clone()

	for _, det := range dets {
		if err := gocv.Rectangle(&out, det.Box.Rect(), a.style.BoxColor, a.style.BoxThickness); err != nil {
			out.Close()
			return gocv.NewMat(), fmt.Errorf("failed to draw rectangle: %w", err)
		}

		text := fmt.Sprintf("%s %.2f", detection.Label(a.labels, det.ClassID), det.Confidence)
		if err := gocv.PutText(&out, text, LabelOrigin(det.Box), gocv.FontHersheySimplex, a.style.TextSize, a.style.TextColor, a.style.TextThickness); err != nil {
			out.Close()
			return gocv.NewMat(), fmt.Errorf("failed to draw text: %w", err)
		}
	}

	return out, nil
}

// LabelOrigin places a label above its box, never above the top edge.
func LabelOrigin(box model.Box) image.Point {
	return image.Pt(box.X, max(box.Y-labelOffset, labelMinY))
}
