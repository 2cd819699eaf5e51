package domain

import "time"

// UnifiedRecord is the normalized, deduplicated representation served by the read API.
// Fingerprint is unique; a price change for the same coin produces a new row.
type UnifiedRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SourceType    string    `gorm:"type:text;not null;index:idx_unified_data_source" json:"source_type"`
	OriginalID    string    `gorm:"type:text;not null" json:"original_id"`
	Title         string    `gorm:"type:text" json:"title"`
	Content       string    `gorm:"type:text" json:"content"`
	Price         float64   `json:"price"`
	PublishedDate time.Time `json:"published_date"`
	Fingerprint   string    `gorm:"type:text;not null;uniqueIndex:idx_unified_data_fingerprint" json:"fingerprint"`
	NormalizedAt  time.Time `gorm:"autoCreateTime" json:"normalized_at"`
}

// TableName returns the database table name for UnifiedRecord.
func (UnifiedRecord) TableName() string {
	return "unified_data"
}
