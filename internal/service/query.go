package service

import (
	"context"
	"time"

	"github.com/timmy/cryptoetl/internal/domain"
	"github.com/timmy/cryptoetl/internal/repository"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
	DefaultJobsLimit = 20
	MaxJobsLimit     = 100

	// NeverRun is reported as the last run status before the first run.
	NeverRun = "never_run"
)

// QueryService serves read-only views over unified records and job history.
type QueryService struct {
	unifiedRepo *repository.UnifiedRepository
	jobRepo     *repository.JobRepository
}

// NewQueryService creates a new query service.
func NewQueryService(unifiedRepo *repository.UnifiedRepository, jobRepo *repository.JobRepository) *QueryService {
	return &QueryService{
		unifiedRepo: unifiedRepo,
		jobRepo:     jobRepo,
	}
}

// ListQuery selects one page of unified records. Page is 1-based.
type ListQuery struct {
	Page   int
	Limit  int
	Source string
}

// Page is one page of unified records plus the total number of matches.
type Page struct {
	Page         int
	Limit        int
	TotalRecords int64
	Records      []domain.UnifiedRecord
}

// Stats summarizes the store and the most recent run.
type Stats struct {
	TotalRecordsProcessed int64            `json:"total_records_processed"`
	LastRunStatus         string           `json:"last_run_status"`
	LastRunTime           *time.Time       `json:"last_run_time"`
	LastRunID             string           `json:"last_run_id,omitempty"`
	RecordsBySource       map[string]int64 `json:"records_by_source"`
	RunsByStatus          map[string]int64 `json:"runs_by_status"`
}

// List returns the requested page in insertion order. Arguments are expected
// to be validated by the caller.
func (s *QueryService) List(ctx context.Context, q ListQuery) (*Page, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}

	records, total, err := s.unifiedRepo.List(ctx, repository.ListFilter{
		SourceType: q.Source,
		Limit:      q.Limit,
		Offset:     (q.Page - 1) * q.Limit,
	})
	if err != nil {
		return nil, err
	}

	return &Page{
		Page:         q.Page,
		Limit:        q.Limit,
		TotalRecords: total,
		Records:      records,
	}, nil
}

// Stats reports the unified record count, run totals per status and the latest run.
func (s *QueryService) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.unifiedRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	bySource, err := s.unifiedRepo.CountBySource(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalRecordsProcessed: total,
		LastRunStatus:         NeverRun,
		RecordsBySource:       bySource,
	}

	runs, err := s.jobRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	stats.RunsByStatus = make(map[string]int64, len(runs))
	for status, n := range runs {
		stats.RunsByStatus[string(status)] = n
	}

	last, err := s.jobRepo.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if last != nil {
		start := last.StartTime
		stats.LastRunStatus = string(last.Status)
		stats.LastRunTime = &start
		stats.LastRunID = last.RunID
	}
	return stats, nil
}

// RecentJobs returns up to limit runs, newest first.
func (s *QueryService) RecentJobs(ctx context.Context, limit int) ([]domain.JobRun, error) {
	if limit < 1 {
		limit = DefaultJobsLimit
	}
	if limit > MaxJobsLimit {
		limit = MaxJobsLimit
	}
	return s.jobRepo.ListRecent(ctx, limit)
}

// Job returns a single run with its per-source outcomes.
func (s *QueryService) Job(ctx context.Context, runID string) (*domain.JobRun, error) {
	return s.jobRepo.GetByRunID(ctx, runID)
}
