package models

import (
	"time"

	"github.com/google/uuid"
)

// Post is the minimal post row the envelope builder flattens from. Full
// post CRUD lives outside the dispatch core.
type Post struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AuthorID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	Body      string     `gorm:"type:text;not null"`
	CreatedAt time.Time  `gorm:"type:timestamptz;default:now()"`
	DeletedAt *time.Time `gorm:"type:timestamptz"`
}

// Tag is a request to tag a user in a post, approved or rejected by the
// tagged user.
type Tag struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PostID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:ux_tags_post_user"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:ux_tags_post_user"`
	Status    string     `gorm:"type:text;not null;default:'pending'"`
	CreatedAt time.Time  `gorm:"type:timestamptz;default:now()"`
	DecidedAt *time.Time `gorm:"type:timestamptz"`
}
