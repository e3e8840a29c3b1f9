package posts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmarrero/fanlink-backend/pkg/db/models"
)

// Repository exposes the post reads the dispatch core needs.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Post, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a posts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// Get returns the post row, or nil when the post is missing or
// soft-deleted so renderers can drop the reference.
func (r *repositoryImpl) Get(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if post.DeletedAt != nil {
		return nil, nil
	}
	return &post, nil
}
