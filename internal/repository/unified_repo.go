package repository

import (
	"context"

	"github.com/timmy/cryptoetl/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UnifiedRepository handles unified record operations. Records are insert-only.
type UnifiedRepository struct {
	db *gorm.DB
}

// NewUnifiedRepository creates a new UnifiedRepository.
func NewUnifiedRepository(db *gorm.DB) *UnifiedRepository {
	return &UnifiedRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *UnifiedRepository) WithTx(tx *gorm.DB) *UnifiedRepository {
	return &UnifiedRepository{db: tx}
}

// ExistsByFingerprint checks if a record with the given fingerprint exists.
func (r *UnifiedRepository) ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.UnifiedRecord{}).
		Where("fingerprint = ?", fingerprint).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateIfAbsent inserts rec unless its fingerprint is already stored.
// It reports whether a row was written.
func (r *UnifiedRepository) CreateIfAbsent(ctx context.Context, rec *domain.UnifiedRecord) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fingerprint"}},
			DoNothing: true,
		}).
		Create(rec)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListFilter selects unified records for listing.
type ListFilter struct {
	SourceType string
	Limit      int
	Offset     int
}

// List returns one page of records in insertion order and the total number of matches.
func (r *UnifiedRepository) List(ctx context.Context, filter ListFilter) ([]domain.UnifiedRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.UnifiedRecord{})
	if filter.SourceType != "" {
		query = query.Where("source_type = ?", filter.SourceType)
	}
	// shared by Count and Find
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	records := []domain.UnifiedRecord{}
	if err := query.
		Order("id ASC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Count returns the total number of unified records.
func (r *UnifiedRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.UnifiedRecord{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountBySource returns the number of unified records per source type.
func (r *UnifiedRepository) CountBySource(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		SourceType string
		Total      int64
	}
	if err := r.db.WithContext(ctx).Model(&domain.UnifiedRecord{}).
		Select("source_type, COUNT(*) AS total").
		Group("source_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.SourceType] = row.Total
	}
	return counts, nil
}
