package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"camwatch/internal/logger"
	"camwatch/internal/model"
)

type fakeFrame struct {
	data []byte
	err  error
}

func (f *fakeFrame) Encode(path string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(path, f.data, 0644)
}

type fakeImageRepo struct {
	images []model.Image
}

func (r *fakeImageRepo) Insert(img *model.Image) (int64, error) {
	r.images = append(r.images, *img)
	return int64(len(r.images)), nil
}

func (r *fakeImageRepo) GetByFilePath(string) (*model.Image, error)       { return nil, nil }
func (r *fakeImageRepo) GetAll(*model.ImageFilter) ([]model.Image, error) { return r.images, nil }
func (r *fakeImageRepo) GetTotalCount(*model.ImageFilter) (int, error)    { return len(r.images), nil }
func (r *fakeImageRepo) GetCameras() ([]string, error)                    { return nil, nil }

type fakeDetectionRepo struct {
	detections []model.IndexedDetection
}

func (r *fakeDetectionRepo) InsertBatch(dets []model.IndexedDetection) error {
	r.detections = append(r.detections, dets...)
	return nil
}

func (r *fakeDetectionRepo) GetByImageID(int64) ([]model.IndexedDetection, error) {
	return r.detections, nil
}

var testDetections = []model.Detection{{ClassID: 0, Confidence: 0.91, Box: model.Box{X: 256, Y: 168, Width: 128, Height: 144}}}

func newTestService(t *testing.T, logs *bytes.Buffer) (*Service, string) {
	t.Helper()
	base := t.TempDir()
	svc := NewService(NewLayout(base, time.UTC), []string{"person"}, logger.New(logs), nil, nil)
	return svc, base
}

func TestService_SaveBothVariants(t *testing.T) {
	var logs bytes.Buffer
	svc, base := newTestService(t, &logs)
	now := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)

	raw := &fakeFrame{data: []byte("raw")}
	annotated := &fakeFrame{data: []byte("annotated")}

	saved, err := svc.Save("cam1", now, raw, annotated, testDetections, Toggles{Raw: true, Annotated: true})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(saved))
	}

	rawPath := filepath.Join(base, "cam1", "2026-03-01", "without box", "20260301_101500.jpg")
	annotatedPath := filepath.Join(base, "cam1", "2026-03-01", "with box", "20260301_101500.jpg")

	if data, err := os.ReadFile(rawPath); err != nil || string(data) != "raw" {
		t.Errorf("Raw file %s: %q, %v", rawPath, data, err)
	}
	if data, err := os.ReadFile(annotatedPath); err != nil || string(data) != "annotated" {
		t.Errorf("Annotated file %s: %q, %v", annotatedPath, data, err)
	}
}

func TestService_Toggles(t *testing.T) {
	tests := []struct {
		name     string
		toggles  Toggles
		wantRaw  bool
		wantAnno bool
	}{
		{"raw only", Toggles{Raw: true}, true, false},
		{"annotated only", Toggles{Annotated: true}, false, true},
		{"none", Toggles{}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			svc, base := newTestService(t, &logs)
			now := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)

			if _, err := svc.Save("cam1", now, &fakeFrame{data: []byte("r")}, &fakeFrame{data: []byte("a")}, testDetections, tt.toggles); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			_, rawErr := os.Stat(filepath.Join(base, "cam1", "2026-03-01", "without box", "20260301_101500.jpg"))
			_, annoErr := os.Stat(filepath.Join(base, "cam1", "2026-03-01", "with box", "20260301_101500.jpg"))
			if (rawErr == nil) != tt.wantRaw {
				t.Errorf("raw written = %v, expected %v", rawErr == nil, tt.wantRaw)
			}
			if (annoErr == nil) != tt.wantAnno {
				t.Errorf("annotated written = %v, expected %v", annoErr == nil, tt.wantAnno)
			}

			for _, dir := range []string{"without box", "with box"} {
				if info, err := os.Stat(filepath.Join(base, "cam1", "2026-03-01", dir)); err != nil || !info.IsDir() {
					t.Errorf("Expected directory %q to exist", dir)
				}
			}
		})
	}
}

func TestService_FailureDoesNotBlockOtherVariant(t *testing.T) {
	var logs bytes.Buffer
	svc, base := newTestService(t, &logs)
	now := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)

	encodeErr := errors.New("encoder exploded")
	saved, err := svc.Save("cam1", now, &fakeFrame{err: encodeErr}, &fakeFrame{data: []byte("a")}, testDetections, Toggles{Raw: true, Annotated: true})
	if !errors.Is(err, encodeErr) {
		t.Fatalf("Expected encode error to be surfaced, got %v", err)
	}
	if len(saved) != 1 || saved[0].Variant != model.VariantAnnotated {
		t.Errorf("Expected only the annotated record, got %+v", saved)
	}
	if _, err := os.Stat(filepath.Join(base, "cam1", "2026-03-01", "with box", "20260301_101500.jpg")); err != nil {
		t.Errorf("Annotated variant should still be written: %v", err)
	}
	if !bytes.Contains(logs.Bytes(), []byte("| ERROR | Failed to save raw image for camera cam1")) {
		t.Errorf("Expected failure to be logged, got %q", logs.String())
	}
}

func TestService_DirectoryFailureDoesNotBlockOtherVariant(t *testing.T) {
	var logs bytes.Buffer
	svc, base := newTestService(t, &logs)
	now := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)

	// A regular file where the annotated directory should be.
	dayDir := filepath.Join(base, "cam1", "2026-03-01")
	if err := os.MkdirAll(dayDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dayDir, "with box"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	saved, err := svc.Save("cam1", now, &fakeFrame{data: []byte("r")}, &fakeFrame{data: []byte("a")}, testDetections, Toggles{Raw: true, Annotated: true})
	if err == nil {
		t.Fatal("Expected directory error to be surfaced")
	}
	if len(saved) != 1 || saved[0].Variant != model.VariantRaw {
		t.Errorf("Expected only the raw record, got %+v", saved)
	}
	if data, err := os.ReadFile(filepath.Join(dayDir, "without box", "20260301_101500.jpg")); err != nil || string(data) != "r" {
		t.Errorf("Raw variant should still be written: %q, %v", data, err)
	}
	if !bytes.Contains(logs.Bytes(), []byte("| ERROR | Failed to save annotated image for camera cam1: failed to create directory")) {
		t.Errorf("Expected directory failure to be logged, got %q", logs.String())
	}
}

func TestService_OverwriteIsLogged(t *testing.T) {
	var logs bytes.Buffer
	svc, _ := newTestService(t, &logs)
	now := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		if _, err := svc.Save("cam1", now.Add(time.Duration(i)*300*time.Millisecond), &fakeFrame{data: []byte("r")}, nil, nil, Toggles{Raw: true}); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}
	if !bytes.Contains(logs.Bytes(), []byte("| WARNING | Overwriting existing image")) {
		t.Errorf("Expected overwrite warning, got %q", logs.String())
	}
}

func TestService_IndexesWrittenFiles(t *testing.T) {
	base := t.TempDir()
	images := &fakeImageRepo{}
	dets := &fakeDetectionRepo{}
	svc := NewService(NewLayout(base, time.UTC), []string{"person"}, logger.Discard(), images, dets)
	now := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)

	if _, err := svc.Save("cam1", now, &fakeFrame{data: []byte("raw")}, &fakeFrame{data: []byte("annotated")}, testDetections, Toggles{Raw: true, Annotated: true}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if len(images.images) != 2 {
		t.Fatalf("Expected 2 indexed images, got %d", len(images.images))
	}
	if images.images[0].Variant != model.VariantRaw || images.images[1].Variant != model.VariantAnnotated {
		t.Errorf("Unexpected indexed variants %+v", images.images)
	}
	if images.images[1].FileSize != int64(len("annotated")) {
		t.Errorf("Expected file size %d, got %d", len("annotated"), images.images[1].FileSize)
	}
	if len(dets.detections) != 2 || dets.detections[0].ObjectName != "person" || dets.detections[1].ImageID != 2 {
		t.Errorf("Unexpected indexed detections %+v", dets.detections)
	}
}

func TestService_EnsureCameraDirs(t *testing.T) {
	svc, base := newTestService(t, &bytes.Buffer{})

	if err := svc.EnsureCameraDirs([]string{"cam1", "gate"}); err != nil {
		t.Fatalf("EnsureCameraDirs failed: %v", err)
	}
	if err := svc.EnsureCameraDirs([]string{"cam1"}); err != nil {
		t.Fatalf("EnsureCameraDirs should be idempotent: %v", err)
	}
	for _, cam := range []string{"cam1", "gate"} {
		if info, err := os.Stat(filepath.Join(base, cam)); err != nil || !info.IsDir() {
			t.Errorf("Expected directory for %s", cam)
		}
	}
}
