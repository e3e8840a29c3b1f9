package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
)

// Repository exposes the identity reads the dispatch core needs.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a users repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// Get returns the user row, or a tombstone when the user is missing or
// soft-deleted. Historical envelopes stay renderable either way.
func (r *repositoryImpl) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Tombstone(id), nil
		}
		return nil, err
	}
	if user.DeletedAt != nil {
		return Tombstone(id), nil
	}
	return &user, nil
}

func (r *repositoryImpl) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error) {
	result := make(map[uuid.UUID]*models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var rows []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].DeletedAt != nil {
			continue
		}
		result[rows[i].ID] = &rows[i]
	}
	for _, id := range ids {
		if _, ok := result[id]; !ok {
			result[id] = Tombstone(id)
		}
	}
	return result, nil
}

// Tombstone is the placeholder identity for deleted or unknown users.
func Tombstone(id uuid.UUID) *models.User {
	return &models.User{
		ID:       id,
		Name:     "Deleted User",
		Username: "deleted",
		Role:     enums.RoleFan,
	}
}

// IsTombstone reports whether the user row is the deleted-user placeholder.
func IsTombstone(user *models.User) bool {
	return user == nil || (user.Username == "deleted" && user.Email == "")
}
