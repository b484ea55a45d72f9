// Package bootstrap provides dependency initialization for urbanmel.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/urbanmel/internal/audio"
	"github.com/maauso/urbanmel/internal/config"
	"github.com/maauso/urbanmel/internal/dataset"
	"github.com/maauso/urbanmel/internal/driver"
	"github.com/maauso/urbanmel/internal/features"
	"github.com/maauso/urbanmel/internal/fold"
	"github.com/maauso/urbanmel/internal/label"
	"github.com/maauso/urbanmel/internal/storage"
)

// Dependencies holds all initialized dependencies for an extraction run.
type Dependencies struct {
	Driver    *driver.Driver
	Tasks     fold.Repository
	Storage   storage.Storage
	Extractor *features.Extractor
}

// NewDependencies creates and initializes all dependencies for the
// application. The output directory is created here, before any fold runs.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger, observer fold.Observer) (*Dependencies, error) {
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	spectro, err := features.NewExtractor(cfg.ExtractorConfig())
	if err != nil {
		return nil, fmt.Errorf("create feature extractor: %w", err)
	}
	logger.Debug("feature extractor configured",
		slog.Int("window", spectro.WindowSize()),
		slog.Int("hop", spectro.Hop()),
		slog.Int("bands", cfg.Bands),
		slog.Int("frames", cfg.Frames),
	)

	foldExtractor := fold.NewExtractor(
		audio.NewFileLoader(),
		spectro,
		label.FoldFilename{NumClasses: cfg.NumClasses},
		fold.Options{Extension: cfg.Extension(), Load: cfg.LoadOpts()},
		logger,
		observer,
	)

	persister, err := dataset.NewPersister(store, dataset.Options{
		NumClasses: cfg.NumClasses,
		DType:      dataset.DType(cfg.DType),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create persister: %w", err)
	}

	repo := fold.NewMemoryRepository()

	drv := driver.New(
		foldExtractor,
		persister,
		repo,
		driver.Options{DatasetDir: cfg.DatasetDir, Workers: cfg.Workers},
		logger,
		observer,
	)

	return &Dependencies{
		Driver:    drv,
		Tasks:     repo,
		Storage:   store,
		Extractor: spectro,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Storage(ctx, cfg.OutputDir, cfg.S3Config())
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 mirror configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("prefix", cfg.S3Prefix),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("output_dir", cfg.OutputDir),
	)
	return localStore, nil
}
