package inbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/pagination"
)

// Repository reads and mutates a recipient's durable envelope rows.
type Repository interface {
	List(ctx context.Context, params listEnvelopesParams) ([]models.Envelope, *pagination.Cursor, error)
	MarkRead(ctx context.Context, recipientID, envelopeID uuid.UUID, now time.Time) (envelopeMarkResult, error)
	MarkAllRead(ctx context.Context, recipientID uuid.UUID, now time.Time) (int64, error)
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an inbox repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listEnvelopesParams struct {
	RecipientID uuid.UUID
	Limit       int
	Cursor      *pagination.Cursor
	UnreadOnly  bool
}

type envelopeMarkResult struct {
	Updated bool
	Found   bool
}

func (r *repositoryImpl) List(ctx context.Context, params listEnvelopesParams) ([]models.Envelope, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Envelope{}).Where("recipient_id = ?", params.RecipientID)
	if params.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var envelopes []models.Envelope
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&envelopes).Error; err != nil {
		return nil, nil, err
	}

	if len(envelopes) > normalized {
		next := envelopes[normalized]
		envelopes = envelopes[:normalized]
		return envelopes, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return envelopes, nil, nil
}

func (r *repositoryImpl) MarkRead(ctx context.Context, recipientID, envelopeID uuid.UUID, now time.Time) (envelopeMarkResult, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Envelope{}).
		Where("id = ? AND recipient_id = ? AND read_at IS NULL", envelopeID, recipientID).
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return envelopeMarkResult{}, result.Error
	}

	mark := envelopeMarkResult{Updated: result.RowsAffected > 0}
	if result.RowsAffected > 0 {
		mark.Found = true
		return mark, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Envelope{}).
		Where("id = ? AND recipient_id = ?", envelopeID, recipientID).
		Count(&count).Error; err != nil {
		return envelopeMarkResult{}, err
	}
	mark.Found = count > 0
	return mark, nil
}

func (r *repositoryImpl) MarkAllRead(ctx context.Context, recipientID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Envelope{}).
		Where("recipient_id = ? AND read_at IS NULL", recipientID).
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repositoryImpl) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Envelope{}).
		Where("recipient_id = ? AND read_at IS NULL", recipientID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
