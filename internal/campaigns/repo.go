package campaigns

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
)

// Repository persists campaigns and their per-recipient send ledger.
type Repository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	Get(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]models.Campaign, error)
	UpdateDraft(ctx context.Context, campaign *models.Campaign) (bool, error)
	Transition(ctx context.Context, id uuid.UUID, from []enums.CampaignStatus, to enums.CampaignStatus, updates map[string]any) (bool, error)
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.Campaign, error)
	ListSending(ctx context.Context) ([]models.Campaign, error)

	EnsureRecipients(ctx context.Context, campaignID uuid.UUID, recipientIDs []uuid.UUID) error
	ListPendingRecipients(ctx context.Context, campaignID uuid.UUID, limit int) ([]models.CampaignRecipient, error)
	CountPendingRecipients(ctx context.Context, campaignID uuid.UUID) (int64, error)
	GetRecipient(ctx context.Context, id uuid.UUID) (*models.CampaignRecipient, error)
	MarkRecipientSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkRecipientFailed(ctx context.Context, id uuid.UUID, reason string) error
	SkipPendingRecipients(ctx context.Context, campaignID uuid.UUID) (int64, error)
	ResetRecipients(ctx context.Context, campaignID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a campaign repository on the shared gorm handle.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, campaign *models.Campaign) error {
	if campaign.ID == uuid.Nil {
		campaign.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(campaign).Error
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.db.WithContext(ctx).First(&campaign, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (r *repository) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Find(&campaigns).Error
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

// UpdateDraft rewrites the mutable authoring fields, guarded on the
// campaign still being editable so an edit racing the scheduler loses.
func (r *repository) UpdateDraft(ctx context.Context, campaign *models.Campaign) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Campaign{}).
		Where("id = ? AND status IN ?", campaign.ID, []enums.CampaignStatus{enums.CampaignDraft, enums.CampaignScheduled}).
		Updates(map[string]any{
			"content":       campaign.Content,
			"media_refs":    campaign.MediaRefs,
			"recipients":    campaign.Recipients,
			"scheduled_for": campaign.ScheduledFor,
			"recur_every":   campaign.RecurEvery,
			"end_date":      campaign.EndDate,
			"updated_at":    time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Transition is a compare-and-set on status. Cancel racing a release
// trigger resolves here: whichever update lands first wins.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from []enums.CampaignStatus, to enums.CampaignStatus, updates map[string]any) (bool, error) {
	values := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for column, value := range updates {
		values[column] = value
	}
	result := r.db.WithContext(ctx).
		Model(&models.Campaign{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ClaimDue flips due scheduled campaigns to sending and returns them.
func (r *repository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.Campaign, error) {
	var claimed []models.Campaign
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var due []models.Campaign
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND scheduled_for IS NOT NULL AND scheduled_for <= ?", enums.CampaignScheduled, now).
			Order("scheduled_for ASC").
			Limit(limit).
			Find(&due).Error
		if err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(due))
		for i := range due {
			ids = append(ids, due[i].ID)
		}
		err = tx.Model(&models.Campaign{}).
			Where("id IN ?", ids).
			Updates(map[string]any{"status": enums.CampaignSending, "updated_at": now}).Error
		if err != nil {
			return err
		}
		for i := range due {
			due[i].Status = enums.CampaignSending
		}
		claimed = due
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *repository) ListSending(ctx context.Context) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.CampaignSending).
		Order("updated_at ASC").
		Find(&campaigns).Error
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

// EnsureRecipients inserts the per-recipient ledger rows. The unique
// index on (campaign_id, recipient_id) makes re-running after a crash
// a no-op for rows that already exist.
func (r *repository) EnsureRecipients(ctx context.Context, campaignID uuid.UUID, recipientIDs []uuid.UUID) error {
	if len(recipientIDs) == 0 {
		return nil
	}
	rows := make([]models.CampaignRecipient, 0, len(recipientIDs))
	for _, recipientID := range recipientIDs {
		rows = append(rows, models.CampaignRecipient{
			ID:          uuid.New(),
			CampaignID:  campaignID,
			RecipientID: recipientID,
			Status:      enums.RecipientPending,
		})
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *repository) ListPendingRecipients(ctx context.Context, campaignID uuid.UUID, limit int) ([]models.CampaignRecipient, error) {
	var recipients []models.CampaignRecipient
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND status = ?", campaignID, enums.RecipientPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&recipients).Error
	if err != nil {
		return nil, err
	}
	return recipients, nil
}

func (r *repository) CountPendingRecipients(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CampaignRecipient{}).
		Where("campaign_id = ? AND status = ?", campaignID, enums.RecipientPending).
		Count(&count).Error
	return count, err
}

func (r *repository) GetRecipient(ctx context.Context, id uuid.UUID) (*models.CampaignRecipient, error) {
	var recipient models.CampaignRecipient
	err := r.db.WithContext(ctx).First(&recipient, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &recipient, nil
}

func (r *repository) MarkRecipientSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.CampaignRecipient{}).
		Where("id = ? AND status = ?", id, enums.RecipientPending).
		Updates(map[string]any{"status": enums.RecipientSent, "sent_at": sentAt}).Error
}

func (r *repository) MarkRecipientFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.CampaignRecipient{}).
		Where("id = ? AND status = ?", id, enums.RecipientPending).
		Updates(map[string]any{"status": enums.RecipientFailed, "last_error": reason}).Error
}

// SkipPendingRecipients halts every not-yet-sent recipient. Already
// sent or failed rows are left untouched.
func (r *repository) SkipPendingRecipients(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CampaignRecipient{}).
		Where("campaign_id = ? AND status = ?", campaignID, enums.RecipientPending).
		Update("status", enums.RecipientSkipped)
	return result.RowsAffected, result.Error
}

// ResetRecipients clears the ledger so a recurring occurrence starts
// from fresh rows, and with them fresh outbox dedup identities.
func (r *repository) ResetRecipients(ctx context.Context, campaignID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Delete(&models.CampaignRecipient{}).Error
}
