package repository

import (
	"camwatch/internal/model"
)

// ImageRepository defines the interface for the evidence image index.
type ImageRepository interface {
	// Create operations
	Insert(img *model.Image) (int64, error)

	// Read operations
	GetByFilePath(path string) (*model.Image, error)
	GetAll(filter *model.ImageFilter) ([]model.Image, error)
	GetTotalCount(filter *model.ImageFilter) (int, error)
	GetCameras() ([]string, error)
}

// DetectionRepository defines the interface for detections attached to indexed images.
type DetectionRepository interface {
	// Create operations
	InsertBatch(detections []model.IndexedDetection) error

	// Read operations
	GetByImageID(imageID int64) ([]model.IndexedDetection, error)
}
