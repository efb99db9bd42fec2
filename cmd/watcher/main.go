package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/benbjohnson/clock"

	"camwatch/internal/app"
	"camwatch/internal/config"
	"camwatch/internal/logger"
	"camwatch/internal/repository/sqlite"
	"camwatch/internal/service/ai"
	"camwatch/internal/service/detection"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	clk := clock.New()
	appLogger, err := logger.NewLogger(cfg.LogFilePath, cfg.Location(), clk)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	fatal := func(format string, v ...interface{}) {
		appLogger.Error(format, v...)
		appLogger.Close()
		os.Exit(1)
	}

	appLogger.Info("========== Application Started ==========")
	appLogger.Info("Site Name : %s", cfg.SiteName)

	labels, err := detection.LoadLabels(cfg.Model.ClassesPath)
	if err != nil {
		fatal("Failed to load class labels: %v", err)
	}
	appLogger.Info("Loaded %d classes from %s", len(labels), cfg.Model.ClassesPath)

	model, err := ai.NewDarknetModel(cfg.Model.ConfigPath, cfg.Model.WeightPath, appLogger)
	if err != nil {
		fatal("Failed to load detection model: %v", err)
	}

	var index *sqlite.DB
	if cfg.IndexDBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.IndexDBPath), 0755); err != nil {
			model.Close()
			fatal("Failed to create index directory: %v", err)
		}
		index, err = sqlite.New(cfg.IndexDBPath)
		if err != nil {
			model.Close()
			fatal("Failed to open evidence index: %v", err)
		}
		appLogger.Info("Evidence index: %s", cfg.IndexDBPath)
	}

	application, err := app.New(cfg, app.Dependencies{
		Logger: appLogger,
		Clock:  clk,
		Model:  model,
		Labels: labels,
		Index:  index,
	})
	if err != nil {
		model.Close()
		if index != nil {
			index.Close()
		}
		fatal("Failed to initialize application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		stop()
		fatal("Application stopped with error: %v", err)
	}
	appLogger.Close()
}
