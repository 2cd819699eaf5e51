// Package app wires configuration into the running pipeline: database,
// sources, services and scheduler. Both binaries build on it.
package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/timmy/cryptoetl/internal/config"
	"github.com/timmy/cryptoetl/internal/logger"
	"github.com/timmy/cryptoetl/internal/repository"
	"github.com/timmy/cryptoetl/internal/service"
	"github.com/timmy/cryptoetl/internal/source"
	"github.com/timmy/cryptoetl/internal/source/coingecko"
	"github.com/timmy/cryptoetl/internal/source/coinpaprika"
	"github.com/timmy/cryptoetl/internal/source/legacycsv"
	"github.com/timmy/cryptoetl/internal/storage"
)

// App holds the wired components.
type App struct {
	Config    *config.Config
	DB        *gorm.DB
	ETL       *service.ETLService
	Query     *service.QueryService
	Scheduler *service.Scheduler
	Logger    *logger.Logger
}

// New connects to the database and builds every component from cfg.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := repository.Connect(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	archiver, err := newArchiver(ctx, &cfg.Storage, log)
	if err != nil {
		_ = repository.Close(db)
		return nil, err
	}

	jobRepo := repository.NewJobRepository(db)
	rawRepo := repository.NewRawRepository(db)
	unifiedRepo := repository.NewUnifiedRepository(db)

	sources := BuildSources(cfg)
	names := make([]string, 0, len(sources))
	for _, src := range sources {
		names = append(names, src.GetDisplayName())
	}
	log.WithField("sources", names).Info("Sources configured")

	etl := service.NewETLService(db, jobRepo, rawRepo, unifiedRepo, sources, log, &service.ETLConfig{
		FailurePolicy: cfg.Pipeline.FailurePolicy,
		Archiver:      archiver,
	})

	scheduler := service.NewScheduler(etl, log, &service.SchedulerConfig{
		Interval:   cfg.Scheduler.Interval,
		RunOnStart: cfg.Scheduler.RunOnStart,
		RunTimeout: cfg.Pipeline.RunTimeout,
	})

	return &App{
		Config:    cfg,
		DB:        db,
		ETL:       etl,
		Query:     service.NewQueryService(unifiedRepo, jobRepo),
		Scheduler: scheduler,
		Logger:    log,
	}, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	return repository.Close(a.DB)
}

// BuildSources returns the enabled sources in run order.
func BuildSources(cfg *config.Config) []source.Source {
	client := source.NewHTTPClient(source.HTTPOptions{
		Timeout:          cfg.HTTP.Timeout,
		RetryCount:       cfg.HTTP.RetryCount,
		RetryWaitTime:    cfg.HTTP.RetryWaitTime,
		RetryMaxWaitTime: cfg.HTTP.RetryMaxWaitTime,
		RateLimit:        cfg.HTTP.RateLimit,
		UserAgent:        cfg.HTTP.UserAgent,
	})

	var sources []source.Source
	if c := cfg.Sources.CoinPaprika; c.Enabled {
		sources = append(sources, coinpaprika.NewAdapter(client, c.BaseURL, c.Limit))
	}
	if c := cfg.Sources.CoinGecko; c.Enabled {
		sources = append(sources, coingecko.NewAdapter(client, c.BaseURL, c.Limit))
	}
	if c := cfg.Sources.LegacyCSV; c.Enabled {
		sources = append(sources, legacycsv.NewAdapter(c.Path))
	}
	return sources
}

func newArchiver(ctx context.Context, cfg *config.StorageConfig, log *logger.Logger) (*service.RawArchiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	store, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
	}

	log.WithFields(logger.Fields{
		"bucket": cfg.Bucket,
		"prefix": cfg.Prefix,
	}).Info("Raw archive enabled")
	return service.NewRawArchiver(store, cfg.Prefix), nil
}
