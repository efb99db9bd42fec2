package ai

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"camwatch/internal/model"
	"camwatch/internal/service/detection"
)

// Preprocess builds the square, [0,1]-scaled RGB blob the network expects.
func Preprocess(frame gocv.Mat, size int) gocv.Mat {
	return gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
}

// Detector chains preprocessing, inference and post-processing for one frame.
type Detector struct {
	model  Model
	size   int
	params detection.Params
}

func NewDetector(m Model, size int, params detection.Params) *Detector {
	return &Detector{model: m, size: size, params: params}
}

// Detect returns the target-class detections in frame; no detections is not an error.
func (d *Detector) Detect(frame gocv.Mat) ([]model.Detection, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}

	blob := Preprocess(frame, d.size)
	defer blob.Close()

	raw, err := d.model.Infer(blob)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return detection.Process(raw, frame.Cols(), frame.Rows(), d.params), nil
}

func (d *Detector) Close() error {
	return d.model.Close()
}
