package follows

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmarrero/fanlink-backend/pkg/db/models"
)

// Repository persists follow relationships. The unique pair index plus
// ON CONFLICT DO NOTHING makes Insert an idempotent operation.
type Repository interface {
	Insert(tx *gorm.DB, followerID, followedID uuid.UUID) (bool, error)
	Delete(ctx context.Context, followerID, followedID uuid.UUID) (bool, error)
	Exists(ctx context.Context, followerID, followedID uuid.UUID) (bool, error)
	ListFollowerIDs(ctx context.Context, followedID uuid.UUID) ([]uuid.UUID, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a follows repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// Insert reports whether a new relationship was created.
func (r *repositoryImpl) Insert(tx *gorm.DB, followerID, followedID uuid.UUID) (bool, error) {
	follow := models.Follow{
		ID:         uuid.New(),
		FollowerID: followerID,
		FollowedID: followedID,
	}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&follow)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) Delete(ctx context.Context, followerID, followedID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Delete(&models.Follow{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) Exists(ctx context.Context, followerID, followedID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListFollowerIDs returns everyone following the given creator. Campaign
// recipient resolution reads from here.
func (r *repositoryImpl) ListFollowerIDs(ctx context.Context, followedID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("followed_id = ?", followedID).
		Order("created_at ASC").
		Pluck("follower_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
