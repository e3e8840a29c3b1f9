package models

import (
	"time"

	"github.com/google/uuid"
)

// Follow links a follower to a followed creator. The unique pair index
// makes replayed follow attempts idempotent inserts.
type Follow struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	FollowerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_follows_follower_followed"`
	FollowedID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_follows_follower_followed"`
	CreatedAt  time.Time `gorm:"type:timestamptz;default:now()"`
}
