package repository

import (
	"context"

	"github.com/timmy/cryptoetl/internal/domain"
	"gorm.io/gorm"
)

// RawRepository appends unmodified source payloads. Rows are never updated or deleted.
type RawRepository struct {
	db *gorm.DB
}

// NewRawRepository creates a new RawRepository.
func NewRawRepository(db *gorm.DB) *RawRepository {
	return &RawRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *RawRepository) WithTx(tx *gorm.DB) *RawRepository {
	return &RawRepository{db: tx}
}

// CreateAPIRecord stores one API batch.
func (r *RawRepository) CreateAPIRecord(ctx context.Context, rec *domain.RawAPIRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// CreateCSVRecords stores CSV rows in a single insert.
func (r *RawRepository) CreateCSVRecords(ctx context.Context, recs []domain.RawCSVRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&recs).Error
}

// CountAPIRecords returns the number of stored API batches for runID, or all when runID is empty.
func (r *RawRepository) CountAPIRecords(ctx context.Context, runID string) (int64, error) {
	return r.count(ctx, &domain.RawAPIRecord{}, runID)
}

// CountCSVRecords returns the number of stored CSV rows for runID, or all when runID is empty.
func (r *RawRepository) CountCSVRecords(ctx context.Context, runID string) (int64, error) {
	return r.count(ctx, &domain.RawCSVRecord{}, runID)
}

func (r *RawRepository) count(ctx context.Context, model interface{}, runID string) (int64, error) {
	query := r.db.WithContext(ctx).Model(model)
	if runID != "" {
		query = query.Where("run_id = ?", runID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
