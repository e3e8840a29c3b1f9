package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dmarrero/fanlink-backend/pkg/enums"
)

// Job is one queued unit of background work. Attempt bookkeeping and the
// wall-clock deadline live on the row itself rather than in the runner.
type Job struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Kind         enums.JobKind   `gorm:"type:job_kind;not null"`
	Payload      json.RawMessage `gorm:"type:jsonb;not null"`
	Status       enums.JobStatus `gorm:"type:job_status;not null;default:'pending';index:idx_jobs_status_next_run"`
	AttemptCount int             `gorm:"not null;default:0"`
	MaxAttempts  int             `gorm:"not null;default:3"`
	NextRunAt    time.Time       `gorm:"type:timestamptz;not null;index:idx_jobs_status_next_run"`
	DeadlineAt   time.Time       `gorm:"type:timestamptz;not null"`
	LastError    *string         `gorm:"type:text"`
	CreatedAt    time.Time       `gorm:"type:timestamptz;default:now()"`
	UpdatedAt    time.Time       `gorm:"type:timestamptz;default:now()"`
}

// JobFailure captures terminally failed jobs for operator visibility.
type JobFailure struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	JobID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	Kind         enums.JobKind   `gorm:"type:job_kind;not null"`
	Payload      json.RawMessage `gorm:"type:jsonb;not null"`
	AttemptCount int             `gorm:"not null"`
	Reason       string          `gorm:"type:text;not null"`
	FailedAt     time.Time       `gorm:"type:timestamptz;default:now()"`
}
