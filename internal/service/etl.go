package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/timmy/cryptoetl/internal/config"
	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/logger"
	"github.com/timmy/cryptoetl/internal/repository"
	"github.com/timmy/cryptoetl/internal/source"
)

// Runner executes one complete ETL run.
type Runner interface {
	Run(ctx context.Context) (*domain.JobRun, error)
}

// ETLService fetches every configured source, stores raw payloads, and
// normalizes items into unified records. Sources run sequentially and each
// commits in its own transaction.
type ETLService struct {
	db          *gorm.DB
	jobRepo     *repository.JobRepository
	rawRepo     *repository.RawRepository
	unifiedRepo *repository.UnifiedRepository
	sources     []source.Source
	normalizer  *Normalizer
	archiver    *RawArchiver
	policy      string
	logger      *logger.Logger
}

// ETLConfig holds configuration for the ETL service.
type ETLConfig struct {
	FailurePolicy string
	// Archiver is optional; nil disables object storage copies.
	Archiver *RawArchiver
}

// NewETLService creates a new ETL service.
func NewETLService(
	db *gorm.DB,
	jobRepo *repository.JobRepository,
	rawRepo *repository.RawRepository,
	unifiedRepo *repository.UnifiedRepository,
	sources []source.Source,
	log *logger.Logger,
	cfg *ETLConfig,
) *ETLService {
	policy := config.FailurePolicyIsolate
	var archiver *RawArchiver
	if cfg != nil {
		if cfg.FailurePolicy != "" {
			policy = cfg.FailurePolicy
		}
		archiver = cfg.Archiver
	}

	return &ETLService{
		db:          db,
		jobRepo:     jobRepo,
		rawRepo:     rawRepo,
		unifiedRepo: unifiedRepo,
		sources:     sources,
		normalizer:  NewNormalizer(),
		archiver:    archiver,
		policy:      policy,
		logger:      log,
	}
}

// Sources returns the configured sources in run order.
func (s *ETLService) Sources() []source.Source {
	return s.sources
}

// Only returns a copy of the service restricted to the given source ids.
func (s *ETLService) Only(ids ...string) (*ETLService, error) {
	if len(ids) == 0 {
		return s, nil
	}

	selected := make([]source.Source, 0, len(ids))
	for _, id := range ids {
		var found source.Source
		for _, src := range s.sources {
			if strings.EqualFold(src.GetSourceID(), id) {
				found = src
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("unknown source %q", id)
		}
		selected = append(selected, found)
	}

	clone := *s
	clone.sources = selected
	return &clone, nil
}

// Run executes one run and returns the finished JobRun. The error is non-nil
// only when the job record itself could not be written.
func (s *ETLService) Run(ctx context.Context) (*domain.JobRun, error) {
	runID := uuid.New().String()
	ctx = logger.Ensure(ctx, s.logger)
	ctx = logger.SetRunID(ctx, runID)
	ctx = logger.SetComponent(ctx, "etl")

	job := &domain.JobRun{
		RunID:     runID,
		Status:    domain.JobStatusRunning,
		StartTime: time.Now().UTC(),
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, &domain.PersistenceError{Op: "create job", Err: err}
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		"sources": len(s.sources),
		"policy":  s.policy,
	}).Info("Starting ETL run")

	var (
		errs    []string
		failed  int
		aborted bool
	)
	for _, src := range s.sources {
		var outcome *domain.JobSourceRun
		if aborted {
			now := time.Now().UTC()
			outcome = &domain.JobSourceRun{
				RunID:     runID,
				Source:    src.GetSourceID(),
				Status:    domain.SourceStatusSkipped,
				StartTime: now,
				EndTime:   now,
			}
		} else {
			outcome = s.runSource(ctx, runID, src)
		}

		job.RecordsProcessed += outcome.RecordsInserted
		if outcome.Status == domain.SourceStatusFailed {
			failed++
			errs = append(errs, fmt.Sprintf("%s: %s", outcome.Source, outcome.ErrorMessage))
			if s.policy == config.FailurePolicyAbort {
				aborted = true
			}
		}

		if err := s.jobRepo.AddSourceRun(context.WithoutCancel(ctx), outcome); err != nil {
			logger.FromContext(ctx).WithError(err).WithField(logger.FieldSource, outcome.Source).
				Warn("Failed to record source outcome")
		}
		job.Sources = append(job.Sources, *outcome)
	}

	end := time.Now().UTC()
	job.Status = s.aggregate(failed)
	job.ErrorMessage = strings.Join(errs, "; ")
	job.EndTime = &end

	// the run deadline must not prevent the terminal transition
	if err := s.jobRepo.Finish(context.WithoutCancel(ctx), job); err != nil {
		return job, &domain.PersistenceError{Op: "finish job", Err: err}
	}

	logger.With(logger.Fields{"error_message": job.ErrorMessage}).
		WithDuration(job.Duration().Milliseconds()).
		WithCount(job.RecordsProcessed).
		WithStatus(string(job.Status)).
		Info(ctx, "ETL run finished")

	return job, nil
}

func (s *ETLService) aggregate(failed int) domain.JobStatus {
	switch {
	case failed == 0:
		return domain.JobStatusSuccess
	case s.policy == config.FailurePolicyAbort, failed == len(s.sources):
		return domain.JobStatusFailed
	default:
		return domain.JobStatusPartial
	}
}

// runSource fetches and stores one source. A panic is reported as a failure
// of that source only.
func (s *ETLService) runSource(ctx context.Context, runID string, src source.Source) (outcome *domain.JobSourceRun) {
	ctx = logger.SetSource(ctx, src.GetSourceID())
	outcome = &domain.JobSourceRun{
		RunID:     runID,
		Source:    src.GetSourceID(),
		StartTime: time.Now().UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			outcome.Status = domain.SourceStatusFailed
			outcome.RecordsInserted = 0
			outcome.ErrorMessage = fmt.Sprintf("panic: %v", r)
			outcome.EndTime = time.Now().UTC()
			logger.FromContext(ctx).WithField("panic", r).Error("Source panicked")
		}
	}()

	fetched, inserted, err := s.ingest(ctx, runID, src)
	outcome.RecordsFetched = fetched
	outcome.RecordsInserted = inserted
	outcome.EndTime = time.Now().UTC()

	entry := logger.With(logger.Fields{
		"kind":               src.Kind(),
		logger.FieldInserted: inserted,
	}).WithCount(fetched).WithDuration(outcome.EndTime.Sub(outcome.StartTime).Milliseconds())

	if err != nil {
		outcome.Status = domain.SourceStatusFailed
		outcome.ErrorMessage = err.Error()
		entry.WithStatus(string(outcome.Status)).With(logger.Fields{"error": err.Error()}).
			Error(ctx, "Source failed")
		return outcome
	}

	outcome.Status = domain.SourceStatusSuccess
	entry.WithStatus(string(outcome.Status)).Info(ctx, "Source ingested")
	return outcome
}

// ingest runs fetch then store for one source and returns (fetched, inserted).
func (s *ETLService) ingest(ctx context.Context, runID string, src source.Source) (int, int, error) {
	batch, err := src.Fetch(ctx)
	if err != nil {
		return 0, 0, err
	}
	if batch.Empty() {
		logger.CtxInfo(ctx, "Source returned no data")
		return 0, 0, nil
	}
	if batch.SourceID == "" {
		batch.SourceID = src.GetSourceID()
	}
	if batch.Kind == "" {
		batch.Kind = src.Kind()
	}

	inserted := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted = 0
		if err := s.storeRaw(ctx, s.rawRepo.WithTx(tx), runID, batch); err != nil {
			return err
		}

		unified := s.unifiedRepo.WithTx(tx)
		for _, item := range batch.Items {
			rec, err := s.normalizer.Normalize(batch.SourceID, item)
			if err != nil {
				return err
			}
			ok, err := s.normalizer.Upsert(ctx, unified, rec)
			if err != nil {
				return err
			}
			if ok {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		var persistErr *domain.PersistenceError
		var validationErr *domain.ValidationError
		if !errors.As(err, &persistErr) && !errors.As(err, &validationErr) {
			err = &domain.PersistenceError{Op: "commit", Err: err}
		}
		return len(batch.Items), 0, err
	}

	s.archiver.Archive(ctx, runID, batch)
	return len(batch.Items), inserted, nil
}

func (s *ETLService) storeRaw(ctx context.Context, repo *repository.RawRepository, runID string, batch *source.Batch) error {
	switch batch.Kind {
	case source.KindFile:
		rows := make([]domain.RawCSVRecord, 0, len(batch.Items))
		for _, item := range batch.Items {
			rows = append(rows, domain.RawCSVRecord{
				RunID:         runID,
				Source:        batch.SourceID,
				RawRowContent: item.Raw,
			})
		}
		if err := repo.CreateCSVRecords(ctx, rows); err != nil {
			return &domain.PersistenceError{Op: "write raw csv rows", Err: err}
		}
	default:
		if err := repo.CreateAPIRecord(ctx, &domain.RawAPIRecord{
			RunID:      runID,
			Source:     batch.SourceID,
			RawPayload: batch.Payload,
		}); err != nil {
			return &domain.PersistenceError{Op: "write raw payload", Err: err}
		}
	}
	return nil
}
