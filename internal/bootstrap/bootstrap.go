// Package bootstrap wires the inspection media pipeline from configuration.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/inspectmedia/internal/config"
	"github.com/maauso/inspectmedia/internal/frames"
	"github.com/maauso/inspectmedia/internal/ingest"
	"github.com/maauso/inspectmedia/internal/job"
	"github.com/maauso/inspectmedia/internal/media"
	"github.com/maauso/inspectmedia/internal/report"
	"github.com/maauso/inspectmedia/internal/server"
	"github.com/maauso/inspectmedia/internal/storage"
	"github.com/maauso/inspectmedia/internal/transcode"
	"github.com/maauso/inspectmedia/internal/validate"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Storage      storage.Storage
	Prober       media.Prober
	Transcoder   *transcode.Transcoder
	Sampler      *frames.Sampler
	VideoService *job.Service
	// Reports is nil when no media manifest is configured.
	Reports *report.Builder
}

// HandlerOptions returns the server options exposing every configured feature.
func (d *Dependencies) HandlerOptions() []server.HandlerOption {
	opts := []server.HandlerOption{
		server.WithProber(d.Prober, d.Storage),
		server.WithFrameSampler(d.Sampler),
	}
	if d.Reports != nil {
		opts = append(opts, server.WithReports(d.Reports))
	}
	return opts
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	prober := media.NewFFprobe(cfg.FFprobePath)

	transcoder := transcode.New(store, prober,
		transcode.WithFFmpegPath(cfg.FFmpegPath),
		transcode.WithLockFile(cfg.LockFile),
		transcode.WithLogger(logger),
	)
	ingestor := ingest.New(transcoder,
		ingest.WithThreshold(cfg.LargeFileThreshold),
		ingest.WithLogger(logger),
	)

	sampler := frames.NewSampler(frames.NewFFmpegOpener(cfg.FFmpegPath, prober),
		frames.WithTimeout(cfg.FrameTimeout),
		frames.WithStorage(store),
		frames.WithLogger(logger),
	)

	svc := job.NewService(job.NewMemoryRepository(), validate.New(), ingestor, store, job.WithLogger(logger))

	deps := &Dependencies{
		Storage:      store,
		Prober:       prober,
		Transcoder:   transcoder,
		Sampler:      sampler,
		VideoService: svc,
	}

	if cfg.MediaManifest != "" {
		manifest, err := report.LoadManifest(cfg.MediaManifest)
		if err != nil {
			return nil, fmt.Errorf("load media manifest: %w", err)
		}
		deps.Reports = report.NewBuilder(manifest, sampler,
			report.WithFrameCount(cfg.FrameCount),
			report.WithLogger(logger),
		)
		logger.Info("media manifest loaded",
			slog.String("path", cfg.MediaManifest),
			slog.Int("items", len(manifest.ItemIDs())),
		)
	}

	return deps, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			KeyPrefix:       cfg.S3KeyPrefix,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, cfg.OutputDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir, cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", localStore.TempDir()),
		slog.String("output_dir", localStore.OutputDir()),
	)
	return localStore, nil
}
