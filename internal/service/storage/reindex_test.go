package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"camwatch/internal/logger"
	"camwatch/internal/model"
	"camwatch/internal/repository/sqlite"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("jpeg"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestReindex(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Singapore")
	base := t.TempDir()
	layout := NewLayout(base, loc)

	writeFile(t, filepath.Join(base, "cam1", "2026-03-01", "with box", "20260301_101500.jpg"))
	writeFile(t, filepath.Join(base, "cam1", "2026-03-01", "without box", "20260301_101500.jpg"))
	writeFile(t, filepath.Join(base, "gate", "2026-03-02", "with box", "20260302_080000.jpg"))
	writeFile(t, filepath.Join(base, "gate", "2026-03-02", "thumbnails", "20260302_080000.jpg"))
	writeFile(t, filepath.Join(base, "gate", "2026-03-02", "with box", "notes.txt"))
	writeFile(t, filepath.Join(base, "stray.jpg"))

	db, err := sqlite.New(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Failed to open index: %v", err)
	}
	defer db.Close()
	repo := sqlite.NewImageRepository(db)

	stats, err := Reindex(layout, repo, logger.Discard())
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	if stats != (ReindexStats{Added: 3, Skipped: 2}) {
		t.Errorf("Unexpected stats %+v", stats)
	}

	img, err := repo.GetByFilePath(filepath.Join(base, "cam1", "2026-03-01", "without box", "20260301_101500.jpg"))
	if err != nil || img == nil {
		t.Fatalf("Expected indexed image, got %v, %v", img, err)
	}
	if img.Variant != model.VariantRaw || img.Day != "2026-03-01" || img.FileSize != 4 {
		t.Errorf("Unexpected image %+v", img)
	}
	want := time.Date(2026, 3, 1, 10, 15, 0, 0, loc)
	if !img.Timestamp.Equal(want) {
		t.Errorf("Expected timestamp %v, got %v", want, img.Timestamp)
	}

	again, err := Reindex(layout, repo, logger.Discard())
	if err != nil {
		t.Fatalf("Second Reindex failed: %v", err)
	}
	if again.Added != 0 || again.Existing != 3 {
		t.Errorf("Expected second run to add nothing, got %+v", again)
	}
}

func TestReindex_MissingBaseDir(t *testing.T) {
	db, err := sqlite.New(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Failed to open index: %v", err)
	}
	defer db.Close()

	layout := NewLayout(filepath.Join(t.TempDir(), "missing"), time.UTC)
	if _, err := Reindex(layout, sqlite.NewImageRepository(db), logger.Discard()); err == nil {
		t.Fatal("Expected error for missing base directory")
	}
}
