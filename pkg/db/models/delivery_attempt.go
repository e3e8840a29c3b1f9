package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmarrero/fanlink-backend/pkg/enums"
)

// DeliveryAttempt records one channel's delivery outcome for one envelope.
type DeliveryAttempt struct {
	ID           uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EnvelopeID   uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:ux_delivery_attempts_envelope_channel"`
	Channel      enums.Channel        `gorm:"type:delivery_channel;not null;uniqueIndex:ux_delivery_attempts_envelope_channel"`
	Status       enums.DeliveryStatus `gorm:"type:delivery_status;not null;default:'pending'"`
	AttemptCount int                  `gorm:"not null;default:0"`
	LastError    *string              `gorm:"type:text"`
	CreatedAt    time.Time            `gorm:"type:timestamptz;default:now()"`
	UpdatedAt    time.Time            `gorm:"type:timestamptz;default:now()"`
}
