package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/cryptoetl/internal/domain"
	"gorm.io/gorm"
)

// JobRepository handles job run bookkeeping.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job run.
func (r *JobRepository) Create(ctx context.Context, job *domain.JobRun) error {
	return r.db.WithContext(ctx).Omit("Sources").Create(job).Error
}

// Finish writes the terminal state of a job. Only a running job can be
// finished, and only into a terminal status.
func (r *JobRepository) Finish(ctx context.Context, job *domain.JobRun) error {
	if !job.Status.IsTerminal() {
		return fmt.Errorf("cannot finish job %s with non-terminal status %q", job.RunID, job.Status)
	}
	result := r.db.WithContext(ctx).Model(&domain.JobRun{}).
		Where("run_id = ? AND status = ?", job.RunID, domain.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":            job.Status,
			"records_processed": job.RecordsProcessed,
			"error_message":     job.ErrorMessage,
			"end_time":          job.EndTime,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("job is not running: " + job.RunID)
	}
	return nil
}

// AddSourceRun records the outcome of one source.
func (r *JobRepository) AddSourceRun(ctx context.Context, run *domain.JobSourceRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// GetByRunID retrieves a job with its per-source outcomes.
func (r *JobRepository) GetByRunID(ctx context.Context, runID string) (*domain.JobRun, error) {
	var job domain.JobRun
	if err := r.db.WithContext(ctx).
		Preload("Sources", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&job, "run_id = ?", runID).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// Latest returns the most recently started job, or nil when none exists.
func (r *JobRepository) Latest(ctx context.Context) (*domain.JobRun, error) {
	var job domain.JobRun
	err := r.db.WithContext(ctx).Order("start_time DESC, id DESC").First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListRecent returns up to limit jobs, newest first, with their per-source outcomes.
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]domain.JobRun, error) {
	jobs := []domain.JobRun{}
	if err := r.db.WithContext(ctx).
		Preload("Sources", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("start_time DESC, id DESC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// CountByStatus returns the number of jobs in each status.
func (r *JobRepository) CountByStatus(ctx context.Context) (map[domain.JobStatus]int64, error) {
	var rows []struct {
		Status domain.JobStatus
		Total  int64
	}
	if err := r.db.WithContext(ctx).Model(&domain.JobRun{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[domain.JobStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
