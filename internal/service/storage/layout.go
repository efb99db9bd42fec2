package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"camwatch/internal/model"
)

const (
	DayFormat       = "2006-01-02"
	TimestampFormat = "20060102_150405"
	FileExt         = ".jpg"
)

// Layout maps saved frames to <base>/<camera>/<day>/<variant dir>/<timestamp>.jpg
// with day and timestamp taken in a fixed reference timezone.
type Layout struct {
	BaseDir  string
	Location *time.Location
}

func NewLayout(baseDir string, loc *time.Location) Layout {
	if loc == nil {
		loc = time.UTC
	}
	return Layout{BaseDir: baseDir, Location: loc}
}

// CameraDir returns the root directory for a camera's evidence.
func (l Layout) CameraDir(camera string) string {
	return filepath.Join(l.BaseDir, camera)
}

// DayDir returns the directory holding one variant for a camera and day.
func (l Layout) DayDir(camera, day string, variant model.Variant) string {
	return filepath.Join(l.BaseDir, camera, day, variant.Dir())
}

// Records derives day and timestamp once from now and returns the raw and
// annotated records that share them.
func (l Layout) Records(camera string, now time.Time) (raw, annotated model.OutputRecord) {
	local := now.In(l.Location).Truncate(time.Second)
	day := local.Format(DayFormat)
	stamp := local.Format(TimestampFormat)

	build := func(v model.Variant) model.OutputRecord {
		return model.OutputRecord{
			Camera:    camera,
			Day:       day,
			Timestamp: stamp,
			Time:      local,
			Variant:   v,
			Path:      filepath.Join(l.DayDir(camera, day, v), stamp+FileExt),
		}
	}
	return build(model.VariantRaw), build(model.VariantAnnotated)
}

// ParsePath recovers the record for a file inside the layout.
func (l Layout) ParsePath(path string) (model.OutputRecord, error) {
	rel, err := filepath.Rel(l.BaseDir, path)
	if err != nil {
		return model.OutputRecord{}, fmt.Errorf("path %s is outside %s: %w", path, l.BaseDir, err)
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 4 || parts[0] == ".." {
		return model.OutputRecord{}, fmt.Errorf("path %s does not match <camera>/<day>/<variant>/<timestamp>%s", rel, FileExt)
	}

	camera, day, dir, file := parts[0], parts[1], parts[2], parts[3]

	variant, ok := model.VariantFromDir(dir)
	if !ok {
		return model.OutputRecord{}, fmt.Errorf("unknown variant directory %q", dir)
	}
	if filepath.Ext(file) != FileExt {
		return model.OutputRecord{}, fmt.Errorf("unexpected file extension in %s", file)
	}
	if _, err := time.ParseInLocation(DayFormat, day, l.Location); err != nil {
		return model.OutputRecord{}, fmt.Errorf("invalid day %q: %w", day, err)
	}

	stamp := strings.TrimSuffix(file, FileExt)
	ts, err := time.ParseInLocation(TimestampFormat, stamp, l.Location)
	if err != nil {
		return model.OutputRecord{}, fmt.Errorf("invalid timestamp %q: %w", stamp, err)
	}

	return model.OutputRecord{
		Camera:    camera,
		Day:       day,
		Timestamp: stamp,
		Time:      ts,
		Variant:   variant,
		Path:      path,
	}, nil
}
