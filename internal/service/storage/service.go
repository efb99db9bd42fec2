package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"

	"camwatch/internal/logger"
	"camwatch/internal/model"
	"camwatch/internal/repository"
	"camwatch/internal/service/detection"
)

// Frame is an image that can encode itself to a file.
type Frame interface {
	Encode(path string) error
}

// Toggles selects which variants are written.
type Toggles struct {
	Raw       bool
	Annotated bool
}

// Service persists raw and annotated frames under the Layout and records
// every written file in the optional evidence index.
type Service struct {
	layout        Layout
	labels        []string
	logger        *logger.Logger
	imageRepo     repository.ImageRepository
	detectionRepo repository.DetectionRepository
}

// NewService creates a storage service. The repositories may be nil, which
// disables indexing.
func NewService(layout Layout, labels []string, logger *logger.Logger, imageRepo repository.ImageRepository, detectionRepo repository.DetectionRepository) *Service {
	return &Service{
		layout:        layout,
		labels:        labels,
		logger:        logger,
		imageRepo:     imageRepo,
		detectionRepo: detectionRepo,
	}
}

func (s *Service) Layout() Layout {
	return s.layout
}

// EnsureCameraDirs creates the per-camera root directories.
func (s *Service) EnsureCameraDirs(cameras []string) error {
	for _, camera := range cameras {
		if err := os.MkdirAll(s.layout.CameraDir(camera), 0755); err != nil {
			return fmt.Errorf("failed to create directory for camera %s: %w", camera, err)
		}
	}
	return nil
}

// Save writes the enabled variants for one frame cycle. Both variants share
// the day and timestamp derived from now. Each variant creates its own
// directory and is written independently; all failures are logged and
// returned combined.
func (s *Service) Save(camera string, now time.Time, raw, annotated Frame, dets []model.Detection, toggles Toggles) ([]model.OutputRecord, error) {
	rawRec, annotatedRec := s.layout.Records(camera, now)

	var (
		saved []model.OutputRecord
		errs  error
	)

	save := func(rec model.OutputRecord, frame Frame, enabled bool) {
		if !enabled {
			// The day partition always carries both variant directories.
			if err := os.MkdirAll(filepath.Dir(rec.Path), 0755); err != nil {
				s.logger.Warning("Failed to create directory %s: %v", filepath.Dir(rec.Path), err)
			}
			return
		}
		if err := s.write(rec, frame, dets); err != nil {
			s.logger.Error("Failed to save %s image for camera %s: %v", rec.Variant, camera, err)
			errs = multierr.Append(errs, err)
			return
		}
		saved = append(saved, rec)
	}

	save(rawRec, raw, toggles.Raw)
	save(annotatedRec, annotated, toggles.Annotated)

	return saved, errs
}

func (s *Service) write(rec model.OutputRecord, frame Frame, dets []model.Detection) error {
	if frame == nil {
		return fmt.Errorf("no %s frame to write to %s", rec.Variant, rec.Path)
	}

	dir := filepath.Dir(rec.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if _, err := os.Stat(rec.Path); err == nil {
		s.logger.Warning("Overwriting existing image %s", rec.Path)
	}

	if err := frame.Encode(rec.Path); err != nil {
		return fmt.Errorf("failed to write %s: %w", rec.Path, err)
	}

	s.logger.Info("Saved %s image: %s", rec.Variant, rec.Path)
	s.index(rec, dets)
	return nil
}

// index records a written file. Index failures are logged; the image on disk
// remains the source of truth.
func (s *Service) index(rec model.OutputRecord, dets []model.Detection) {
	if s.imageRepo == nil {
		return
	}

	var size int64
	if info, err := os.Stat(rec.Path); err == nil {
		size = info.Size()
	}

	imageID, err := s.imageRepo.Insert(&model.Image{
		Filename:  filepath.Base(rec.Path),
		Camera:    rec.Camera,
		Day:       rec.Day,
		Timestamp: rec.Time,
		Variant:   rec.Variant,
		FilePath:  rec.Path,
		FileSize:  size,
	})
	if err != nil {
		s.logger.Error("Error saving image to index %s: %v", rec.Path, err)
		return
	}

	if s.detectionRepo == nil || len(dets) == 0 {
		return
	}

	indexed := make([]model.IndexedDetection, 0, len(dets))
	for _, det := range dets {
		indexed = append(indexed, model.IndexedDetection{
			ImageID:    imageID,
			ObjectName: detection.Label(s.labels, det.ClassID),
			X:          det.Box.X,
			Y:          det.Box.Y,
			Width:      det.Box.Width,
			Height:     det.Box.Height,
			Confidence: det.Confidence,
		})
	}
	if err := s.detectionRepo.InsertBatch(indexed); err != nil {
		s.logger.Error("Error saving detections to index: %v", err)
	}
}
