package domain

import "time"

// JobStatus represents the status of an ETL job run.
// A run starts as JobStatusRunning and moves exactly once to one of the terminal states.
type JobStatus string

const (
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusPartial JobStatus = "partial"
	JobStatusFailed  JobStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSuccess || s == JobStatusPartial || s == JobStatusFailed
}

// SourceStatus is the outcome of a single source inside a run.
type SourceStatus string

const (
	SourceStatusSuccess SourceStatus = "success"
	SourceStatusFailed  SourceStatus = "failed"
	SourceStatusSkipped SourceStatus = "skipped"
)

// JobRun represents one end-to-end execution of the fetch-normalize-store sequence.
type JobRun struct {
	ID               uint           `gorm:"primaryKey" json:"-"`
	RunID            string         `gorm:"type:text;not null;uniqueIndex:idx_etl_jobs_run_id" json:"run_id"`
	Status           JobStatus      `gorm:"type:text;not null;index:idx_etl_jobs_status" json:"status"`
	RecordsProcessed int            `gorm:"default:0" json:"records_processed"`
	ErrorMessage     string         `gorm:"type:text" json:"error_message,omitempty"`
	StartTime        time.Time      `gorm:"not null;index:idx_etl_jobs_start_time" json:"start_time"`
	EndTime          *time.Time     `json:"end_time,omitempty"`
	Sources          []JobSourceRun `gorm:"foreignKey:RunID;references:RunID" json:"sources,omitempty"`
}

// TableName returns the database table name for JobRun.
func (JobRun) TableName() string {
	return "etl_jobs"
}

// Duration returns how long the run took, or zero while it is still running.
func (j *JobRun) Duration() time.Duration {
	if j.EndTime == nil {
		return 0
	}
	return j.EndTime.Sub(j.StartTime)
}

// JobSourceRun records what happened to one source during a run.
type JobSourceRun struct {
	ID              uint         `gorm:"primaryKey" json:"-"`
	RunID           string       `gorm:"type:text;not null;index:idx_etl_job_sources_run" json:"run_id"`
	Source          string       `gorm:"type:text;not null" json:"source"`
	Status          SourceStatus `gorm:"type:text;not null" json:"status"`
	RecordsFetched  int          `gorm:"default:0" json:"records_fetched"`
	RecordsInserted int          `gorm:"default:0" json:"records_inserted"`
	ErrorMessage    string       `gorm:"type:text" json:"error_message,omitempty"`
	StartTime       time.Time    `json:"start_time"`
	EndTime         time.Time    `json:"end_time"`
}

// TableName returns the database table name for JobSourceRun.
func (JobSourceRun) TableName() string {
	return "etl_job_sources"
}
