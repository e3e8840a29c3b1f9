package messages

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/pagination"
)

// ListParams page through one conversation. BeforeSeq of zero starts at
// the newest message.
type ListParams struct {
	Limit     int
	BeforeSeq int64
}

// Repository persists direct messages with their media and permission rows.
type Repository interface {
	CreateWithAssets(tx *gorm.DB, msg *models.Message, mediaRefs []string, viewerIDs []uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.Message, error)
	ListConversation(ctx context.Context, userA, userB uuid.UUID, params ListParams) ([]models.Message, error)
	MarkRead(ctx context.Context, id, readerID uuid.UUID, readAt time.Time) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a messages repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// CreateWithAssets writes the message plus its media references and viewer
// grants on the caller's transaction, so a retried job re-creates all rows
// or none of them.
func (r *repositoryImpl) CreateWithAssets(tx *gorm.DB, msg *models.Message, mediaRefs []string, viewerIDs []uuid.UUID) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if err := tx.Create(msg).Error; err != nil {
		return err
	}
	for _, ref := range mediaRefs {
		media := models.MessageMedia{
			ID:        uuid.New(),
			MessageID: msg.ID,
			MediaRef:  ref,
		}
		if err := tx.Create(&media).Error; err != nil {
			return err
		}
		msg.Media = append(msg.Media, media)
	}
	for _, viewerID := range viewerIDs {
		permission := models.MessagePermission{
			ID:        uuid.New(),
			MessageID: msg.ID,
			UserID:    viewerID,
		}
		if err := tx.Create(&permission).Error; err != nil {
			return err
		}
		msg.Permissions = append(msg.Permissions, permission)
	}
	return nil
}

func (r *repositoryImpl) Get(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).First(&msg, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// ListConversation returns messages between the pair, newest first by seq.
func (r *repositoryImpl) ListConversation(ctx context.Context, userA, userB uuid.UUID, params ListParams) ([]models.Message, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			userA, userB, userB, userA)
	if params.BeforeSeq > 0 {
		query = query.Where("seq < ?", params.BeforeSeq)
	}
	var msgs []models.Message
	if err := query.Order("seq DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead flips read_at once. The conditional update keeps it idempotent
// under concurrent read receipts.
func (r *repositoryImpl) MarkRead(ctx context.Context, id, readerID uuid.UUID, readAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND recipient_id = ? AND read_at IS NULL", id, readerID).
		Update("read_at", readAt)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
