package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/dmarrero/fanlink-backend/pkg/db/types"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
)

// Campaign is a mass-message authoring unit. Recipients are resolved at
// creation time; per-recipient rows are created when the scheduler
// claims the campaign for sending.
type Campaign struct {
	ID           uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AuthorID     uuid.UUID            `gorm:"type:uuid;not null;index"`
	Content      string               `gorm:"type:text;not null"`
	MediaRefs    dbtypes.UUIDArray    `gorm:"type:uuid[]"`
	Recipients   dbtypes.UUIDArray    `gorm:"type:uuid[];not null"`
	DeliveryMode enums.DeliveryMode   `gorm:"type:campaign_delivery_mode;not null"`
	Status       enums.CampaignStatus `gorm:"type:campaign_status;not null;default:'draft';index"`
	ScheduledFor *time.Time           `gorm:"type:timestamptz;index"`
	RecurEvery   *time.Duration       `gorm:"type:bigint"`
	EndDate      *time.Time           `gorm:"type:timestamptz"`
	CompletedAt  *time.Time           `gorm:"type:timestamptz"`
	CreatedAt    time.Time            `gorm:"type:timestamptz;default:now()"`
	UpdatedAt    time.Time            `gorm:"type:timestamptz;default:now()"`
}

// CampaignRecipient tracks one recipient's send status so expansion can
// resume after a crash without double-sending.
type CampaignRecipient struct {
	ID          uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CampaignID  uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:ux_campaign_recipients_campaign_user"`
	RecipientID uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:ux_campaign_recipients_campaign_user"`
	Status      enums.RecipientStatus `gorm:"type:campaign_recipient_status;not null;default:'pending';index"`
	LastError   *string               `gorm:"type:text"`
	SentAt      *time.Time            `gorm:"type:timestamptz"`
	CreatedAt   time.Time             `gorm:"type:timestamptz;default:now()"`
}
