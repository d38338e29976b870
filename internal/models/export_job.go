package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ExportStatusQueued    = "queued"
	ExportStatusRunning   = "running"
	ExportStatusCompleted = "completed"
	ExportStatusFailed    = "failed"
)

// ExportJob is a persistent queue record. After creation the only mutation
// surface is status transitions plus download-token consumption.
type ExportJob struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint64 `gorm:"not null;index:idx_export_jobs_user_status" json:"user_id"`

	Type   string `gorm:"type:varchar(30);not null" json:"type"`
	Format string `gorm:"type:varchar(10);not null" json:"format"`

	ParamsJSON datatypes.JSON `gorm:"type:jsonb" json:"params"`
	RequestID  string         `gorm:"type:varchar(40);index" json:"request_id"`

	Status        string     `gorm:"type:varchar(12);not null;index:idx_export_jobs_user_status;index" json:"status"`
	AttemptCount  int        `gorm:"not null;default:0" json:"attempt_count"`
	NextAttemptAt *time.Time `gorm:"type:timestamptz" json:"next_attempt_at"`
	Error         string     `gorm:"type:text" json:"error,omitempty"`

	Filename      string `gorm:"type:varchar(120)" json:"filename,omitempty"`
	ContentType   string `gorm:"type:varchar(80)" json:"content_type,omitempty"`
	PayloadBase64 string `gorm:"type:text" json:"-"`

	DownloadTokenExpiresAt  *time.Time `gorm:"type:timestamptz" json:"download_token_expires_at"`
	DownloadTokenConsumedAt *time.Time `gorm:"type:timestamptz" json:"download_token_consumed_at"`

	CreatedAt   time.Time  `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
	StartedAt   *time.Time `gorm:"type:timestamptz" json:"started_at"`
	CompletedAt *time.Time `gorm:"type:timestamptz" json:"completed_at"`
}

func (ExportJob) TableName() string {
	return "export_jobs"
}

// ExportJobPerformance is best-effort per-job instrumentation, pruned by age.
type ExportJobPerformance struct {
	ID    uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID uint64 `gorm:"not null;index" json:"job_id"`

	DurationMs   int64 `gorm:"not null" json:"duration_ms"`
	PayloadBytes int64 `gorm:"not null" json:"payload_bytes"`
	RowCount     int   `gorm:"not null" json:"row_count"`
	Streamed     bool  `gorm:"not null;default:false" json:"streamed"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index" json:"created_at"`
}

func (ExportJobPerformance) TableName() string {
	return "export_job_performance"
}
