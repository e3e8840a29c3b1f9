package dispatch

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmarrero/fanlink-backend/pkg/db/models"
)

// Repository persists envelopes and their per-channel delivery attempts.
type Repository interface {
	InsertEnvelope(ctx context.Context, envelope *models.Envelope) (bool, error)
	RecordAttempt(ctx context.Context, attempt *models.DeliveryAttempt) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a dispatch repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// InsertEnvelope writes the durable inbox row. Replays of the same
// envelope id are no-ops; the bool reports whether a row was created.
func (r *repositoryImpl) InsertEnvelope(ctx context.Context, envelope *models.Envelope) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(envelope)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RecordAttempt upserts the per-channel outcome, bumping attempt_count on
// conflict so retries accumulate instead of resetting.
func (r *repositoryImpl) RecordAttempt(ctx context.Context, attempt *models.DeliveryAttempt) error {
	now := time.Now().UTC()
	attempt.UpdatedAt = now
	if attempt.AttemptCount == 0 {
		attempt.AttemptCount = 1
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "envelope_id"}, {Name: "channel"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"status":        attempt.Status,
				"attempt_count": gorm.Expr("delivery_attempts.attempt_count + 1"),
				"last_error":    attempt.LastError,
				"updated_at":    now,
			}),
		}).
		Create(attempt).Error
}
