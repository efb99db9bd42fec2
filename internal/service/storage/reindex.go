package storage

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"camwatch/internal/logger"
	"camwatch/internal/model"
	"camwatch/internal/repository"
)

// ReindexStats summarizes a Reindex run.
type ReindexStats struct {
	Added    int
	Existing int
	Skipped  int
}

// Walk calls fn for every image under the layout's base directory whose path
// matches the output layout. Non-matching images are passed to skip.
func (l Layout) Walk(fn func(rec model.OutputRecord, info fs.FileInfo) error, skip func(path string, err error)) error {
	return filepath.WalkDir(l.BaseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != FileExt {
			return nil
		}

		rec, err := l.ParsePath(path)
		if err != nil {
			if skip != nil {
				skip(path, err)
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
		return fn(rec, info)
	})
}

// Reindex records every image on disk that is missing from the index.
// Detections cannot be recovered from files, so only image rows are added.
func Reindex(layout Layout, repo repository.ImageRepository, logger *logger.Logger) (ReindexStats, error) {
	var stats ReindexStats

	err := layout.Walk(func(rec model.OutputRecord, info fs.FileInfo) error {
		existing, err := repo.GetByFilePath(rec.Path)
		if err != nil {
			return fmt.Errorf("failed to look up %s: %w", rec.Path, err)
		}
		if existing != nil {
			stats.Existing++
			return nil
		}

		if _, err := repo.Insert(&model.Image{
			Filename:  info.Name(),
			Camera:    rec.Camera,
			Day:       rec.Day,
			Timestamp: rec.Time,
			Variant:   rec.Variant,
			FilePath:  rec.Path,
			FileSize:  info.Size(),
		}); err != nil {
			return fmt.Errorf("failed to index %s: %w", rec.Path, err)
		}
		stats.Added++
		return nil
	}, func(path string, err error) {
		logger.Warning("Skipping %s: %v", path, err)
		stats.Skipped++
	})

	return stats, err
}
