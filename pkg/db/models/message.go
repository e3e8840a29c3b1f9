package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is one direct message between two users. Seq is a global
// monotonic sequence; ordering within a conversation follows from it.
type Message struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Seq         int64     `gorm:"autoIncrement;uniqueIndex"`
	SenderID    uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_conversation"`
	RecipientID uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_conversation"`
	Body        string    `gorm:"type:text;not null"`
	ReadAt      *time.Time `gorm:"type:timestamptz"`
	CreatedAt   time.Time  `gorm:"type:timestamptz;default:now()"`

	Media       []MessageMedia      `gorm:"foreignKey:MessageID"`
	Permissions []MessagePermission `gorm:"foreignKey:MessageID"`
}

// MessageMedia references an asset attached to a message. The asset
// itself lives in external storage; only the reference is kept here.
type MessageMedia struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;index"`
	MediaRef  string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;default:now()"`
}

// MessagePermission grants a user visibility of gated message content.
type MessagePermission struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_message_permissions_message_user"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_message_permissions_message_user"`
	CreatedAt time.Time `gorm:"type:timestamptz;default:now()"`
}
