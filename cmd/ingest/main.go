package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/timmy/cryptoetl/internal/app"
	"github.com/timmy/cryptoetl/internal/config"
	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/logger"
)

func main() {
	appLogger := logger.NewFromEnv(loggerConfig())
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	configPath := flag.String("config", "", "Path to config file")
	sourceList := flag.String("source", "", "Comma-separated source ids to run (default: all enabled)")
	policy := flag.String("policy", "", "Failure policy override: isolate or abort")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *policy != "" {
		cfg.Pipeline.FailurePolicy = *policy
		if err := cfg.Validate(); err != nil {
			appLogger.WithError(err).Fatal("Invalid -policy")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}
	defer a.Close()

	etl, err := a.ETL.Only(splitList(*sourceList)...)
	if err != nil {
		appLogger.WithError(err).Fatal("Invalid -source")
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Pipeline.RunTimeout)
	defer cancel()

	job, err := etl.Run(runCtx)
	if err != nil {
		appLogger.WithError(err).Error("Run could not be recorded")
		os.Exit(1)
	}

	appLogger.WithFields(logger.Fields{
		logger.FieldRunID:   job.RunID,
		logger.FieldStatus:  job.Status,
		"records_processed": job.RecordsProcessed,
		"duration":          job.Duration().String(),
		"error_message":     job.ErrorMessage,
	}).Info("Ingestion completed")

	if job.Status == domain.JobStatusFailed {
		os.Exit(1)
	}
}

const serviceName = "cryptoetl-ingest"

// loggerConfig reads the LOG_* environment like cmd/api, naming the service
// after this binary unless SERVICE_NAME says otherwise.
func loggerConfig() *logger.EnvConfig {
	cfg := logger.LoadFromEnv()
	if os.Getenv("SERVICE_NAME") == "" {
		cfg.ServiceName = serviceName
	}
	return cfg
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
