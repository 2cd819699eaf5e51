package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSONMap stores arbitrary structured data as JSON text in the database.
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface for database serialization.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan JSONMap")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, m)
}

// RawAPIRecord holds one unmodified batch fetched from a remote API source.
type RawAPIRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RunID      string    `gorm:"type:text;index:idx_raw_api_data_run" json:"run_id"`
	Source     string    `gorm:"type:text;not null" json:"source"`
	RawPayload JSONMap   `gorm:"type:text" json:"raw_payload"`
	IngestedAt time.Time `gorm:"autoCreateTime" json:"ingested_at"`
}

// TableName returns the database table name for RawAPIRecord.
func (RawAPIRecord) TableName() string {
	return "raw_api_data"
}

// RawCSVRecord holds one unmodified row read from the local CSV archive.
type RawCSVRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	RunID         string    `gorm:"type:text;index:idx_raw_csv_data_run" json:"run_id"`
	Source        string    `gorm:"type:text;not null" json:"source"`
	RawRowContent JSONMap   `gorm:"type:text" json:"raw_row_content"`
	IngestedAt    time.Time `gorm:"autoCreateTime" json:"ingested_at"`
}

// TableName returns the database table name for RawCSVRecord.
func (RawCSVRecord) TableName() string {
	return "raw_csv_data"
}
