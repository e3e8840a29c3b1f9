package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dmarrero/fanlink-backend/pkg/enums"
)

// Envelope is the durable inbox row for one recipient of one event.
// The id is assigned at render time so replays of the same dispatch
// are idempotent inserts.
type Envelope struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Kind        enums.EventKind `gorm:"type:event_kind;not null"`
	RecipientID uuid.UUID       `gorm:"type:uuid;not null;index:idx_envelopes_recipient_created"`
	Data        json.RawMessage `gorm:"type:jsonb;not null"`
	ReadAt      *time.Time      `gorm:"type:timestamptz"`
	CreatedAt   time.Time       `gorm:"type:timestamptz;default:now();index:idx_envelopes_recipient_created"`
}
