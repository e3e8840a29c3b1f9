package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmarrero/fanlink-backend/pkg/enums"
)

// User is the minimal identity row the dispatch core reads. Account
// management itself lives in a separate service.
type User struct {
	ID        uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string           `gorm:"type:text;not null"`
	Username  string           `gorm:"type:text;not null;uniqueIndex"`
	Email     string           `gorm:"type:text;not null"`
	Avatar    *string          `gorm:"type:text"`
	Bio       *string          `gorm:"type:text"`
	Role      enums.MemberRole `gorm:"type:member_role;not null;default:'fan'"`
	CreatedAt time.Time        `gorm:"type:timestamptz;default:now()"`
	DeletedAt *time.Time       `gorm:"type:timestamptz"`
}
