package models

import "time"

// ExportJobState represents the lifecycle state of a recorded export.
type ExportJobState string

// Export job states.
const (
	// ExportJobRunning is an export currently in flight.
	ExportJobRunning ExportJobState = "running"
	// ExportJobCompleted is an export that finished and produced an output file.
	ExportJobCompleted ExportJobState = "completed"
	// ExportJobFailed is an export that ended in an error.
	ExportJobFailed ExportJobState = "failed"
	// ExportJobCancelled is an export that the caller cancelled mid-flight.
	ExportJobCancelled ExportJobState = "cancelled"
)

// IsTerminal returns true for completed, failed or cancelled jobs.
func (s ExportJobState) IsTerminal() bool {
	return s == ExportJobCompleted || s == ExportJobFailed || s == ExportJobCancelled
}

// ExportJob records a single export invocation: the source, the options it
// ran with, and how it ended. One row per call, never reused.
type ExportJob struct {
	BaseModel

	SourcePath string `gorm:"not null" json:"source_path"`
	OutputPath string `gorm:"not null" json:"output_path"`

	// Options snapshot.
	Format          string `gorm:"not null" json:"format"`
	Quality         string `gorm:"not null" json:"quality"`
	TrimStartMicros int64  `json:"trim_start_micros"`
	TrimEndMicros   int64  `json:"trim_end_micros"`
	IncludeAudio    bool   `json:"include_audio"`

	// Outcome.
	State        ExportJobState `gorm:"not null;index" json:"state"`
	Progress     float64        `json:"progress"`
	Error        string         `json:"error,omitempty"`
	BytesWritten int64          `json:"bytes_written"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TableName returns the database table name for export jobs.
func (ExportJob) TableName() string {
	return "export_jobs"
}
