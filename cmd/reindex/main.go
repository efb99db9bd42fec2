package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"camwatch/internal/config"
	"camwatch/internal/logger"
	"camwatch/internal/model"
	"camwatch/internal/repository/sqlite"
	"camwatch/internal/service/storage"
)

type options struct {
	baseDir string
	dbPath  string
	loc     *time.Location
}

// parseOptions reads the command line. With -config, the watcher's config file
// supplies the evidence directory, index path and timezone; explicit flags win.
func parseOptions(args []string) (options, error) {
	fs := flag.NewFlagSet("reindex", flag.ContinueOnError)
	configPath := fs.String("config", "", "Watcher config file to take -dir, -db and -tz from")
	baseDir := fs.String("dir", "detected_objects", "Evidence directory written by the watcher")
	dbPath := fs.String("db", "data/index.db", "Database path")
	timezone := fs.String("tz", config.DefaultTimezone, "Timezone the watcher used for file names")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if *configPath != "" {
		cfg, err := config.LoadFile(*configPath)
		if err != nil {
			return options{}, err
		}
		if !set["dir"] {
			*baseDir = cfg.DetectedObjects
		}
		if !set["db"] && cfg.IndexDBPath != "" {
			*dbPath = cfg.IndexDBPath
		}
		if !set["tz"] {
			*timezone = cfg.Timezone
		}
	}

	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		return options{}, fmt.Errorf("unknown timezone %q: %w", *timezone, err)
	}
	return options{baseDir: *baseDir, dbPath: *dbPath, loc: loc}, nil
}

func run(opts options, out io.Writer, appLogger *logger.Logger) error {
	fmt.Fprintf(out, "Indexing images from %s into database %s\n", opts.baseDir, opts.dbPath)

	if err := os.MkdirAll(filepath.Dir(opts.dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sqlite.New(opts.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	repo := sqlite.NewImageRepository(db)
	stats, err := storage.Reindex(storage.NewLayout(opts.baseDir, opts.loc), repo, appLogger)
	if err != nil {
		return fmt.Errorf("failed to index images: %w", err)
	}

	fmt.Fprintf(out, "Added %d images, %d already indexed\n", stats.Added, stats.Existing)
	if stats.Skipped > 0 {
		fmt.Fprintf(out, "Skipped %d files outside the evidence layout\n", stats.Skipped)
	}

	cameras, err := repo.GetCameras()
	if err != nil {
		return fmt.Errorf("failed to read index statistics: %w", err)
	}
	fmt.Fprintf(out, "\nIndex statistics:\n")
	for _, camera := range cameras {
		count, err := repo.GetTotalCount(&model.ImageFilter{Camera: camera})
		if err != nil {
			return fmt.Errorf("failed to count images for camera %s: %w", camera, err)
		}
		fmt.Fprintf(out, "   - %s: %d images\n", camera, count)
	}
	return nil
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}

	if err := run(opts, os.Stdout, logger.New(os.Stderr)); err != nil {
		log.Fatalf("Reindex failed: %v", err)
	}
}
