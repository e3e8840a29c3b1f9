package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
)

// EnqueueParams describes one unit of background work to queue.
type EnqueueParams struct {
	Kind        enums.JobKind
	Payload     any
	RunAt       time.Time
	MaxAttempts int
	// Deadline is the wall-clock point after which the job is abandoned
	// regardless of remaining attempts.
	Deadline time.Time
}

// Repository persists queue state. Claiming uses row locks so concurrent
// worker replicas never pick the same job.
type Repository interface {
	Enqueue(ctx context.Context, tx *gorm.DB, params EnqueueParams) (*models.Job, error)
	ClaimBatch(ctx context.Context, limit int, now time.Time) ([]models.Job, error)
	RequeueStale(ctx context.Context, cutoff time.Time, now time.Time) (int64, error)
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	MarkRetry(ctx context.Context, id uuid.UUID, nextRun time.Time, cause error) error
	Reschedule(ctx context.Context, id uuid.UUID, nextRun time.Time) error
	MarkAbandoned(ctx context.Context, job models.Job, reason string) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a jobs repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Enqueue(ctx context.Context, tx *gorm.DB, params EnqueueParams) (*models.Job, error) {
	if !params.Kind.IsValid() {
		return nil, errors.New("invalid job kind")
	}
	payload, err := json.Marshal(params.Payload)
	if err != nil {
		return nil, err
	}
	runAt := params.RunAt
	if runAt.IsZero() {
		runAt = time.Now().UTC()
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	deadline := params.Deadline
	if deadline.IsZero() {
		deadline = runAt.Add(10 * time.Minute)
	}

	job := models.Job{
		ID:          uuid.New(),
		Kind:        params.Kind,
		Payload:     payload,
		Status:      enums.JobPending,
		MaxAttempts: maxAttempts,
		NextRunAt:   runAt,
		DeadlineAt:  deadline,
	}

	db := r.db
	if tx != nil {
		db = tx
	}
	if err := db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ClaimBatch flips due pending jobs to running inside one transaction.
func (r *repositoryImpl) ClaimBatch(ctx context.Context, limit int, now time.Time) ([]models.Job, error) {
	var claimed []models.Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var due []models.Job
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND next_run_at <= ?", enums.JobPending, now).
			Order("next_run_at ASC").
			Limit(limit).
			Find(&due).Error; err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(due))
		for _, job := range due {
			ids = append(ids, job.ID)
		}
		if err := tx.Model(&models.Job{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":     enums.JobRunning,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		for i := range due {
			due[i].Status = enums.JobRunning
		}
		claimed = due
		return nil
	})
	return claimed, err
}

// RequeueStale flips running jobs last touched before cutoff back to
// pending. A crashed worker otherwise strands its claims in running
// forever; requeued jobs past their deadline are abandoned on the next
// claim, so they still land in job_failures.
func (r *repositoryImpl) RequeueStale(ctx context.Context, cutoff time.Time, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("status = ? AND updated_at < ?", enums.JobRunning, cutoff).
		Updates(map[string]any{
			"status":      enums.JobPending,
			"next_run_at": now,
			"updated_at":  now,
		})
	return res.RowsAffected, res.Error
}

func (r *repositoryImpl) MarkSucceeded(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     enums.JobSucceeded,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *repositoryImpl) MarkRetry(ctx context.Context, id uuid.UUID, nextRun time.Time, cause error) error {
	updates := map[string]any{
		"status":        enums.JobPending,
		"attempt_count": gorm.Expr("attempt_count + 1"),
		"next_run_at":   nextRun,
		"updated_at":    time.Now().UTC(),
	}
	if cause != nil {
		updates["last_error"] = cause.Error()
	}
	return r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// Reschedule pushes the job without consuming an attempt. Used when the
// operation lock is held by a concurrent execution.
func (r *repositoryImpl) Reschedule(ctx context.Context, id uuid.UUID, nextRun time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      enums.JobPending,
			"next_run_at": nextRun,
			"updated_at":  time.Now().UTC(),
		}).Error
}

// MarkAbandoned terminally fails the job and records the operator-visible
// failure row in the same transaction.
func (r *repositoryImpl) MarkAbandoned(ctx context.Context, job models.Job, reason string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Job{}).
			Where("id = ?", job.ID).
			Updates(map[string]any{
				"status":     enums.JobFailed,
				"last_error": reason,
				"updated_at": time.Now().UTC(),
			}).Error; err != nil {
			return err
		}
		failure := models.JobFailure{
			ID:           uuid.New(),
			JobID:        job.ID,
			Kind:         job.Kind,
			Payload:      job.Payload,
			AttemptCount: job.AttemptCount,
			Reason:       reason,
		}
		return tx.Create(&failure).Error
	})
}
