package follows

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dmarrero/fanlink-backend/pkg/db/models"
)

func setupFollowsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	follows := `
CREATE TABLE IF NOT EXISTS follows (
  id TEXT PRIMARY KEY,
  follower_id TEXT NOT NULL,
  followed_id TEXT NOT NULL,
  created_at DATETIME,
  UNIQUE (follower_id, followed_id)
);`
	require.NoError(t, db.Exec("DROP TABLE IF EXISTS follows").Error)
	require.NoError(t, db.Exec(follows).Error)
	return db
}

func TestInsertIsIdempotent(t *testing.T) {
	db := setupFollowsTestDB(t)
	repo := NewRepository(db)

	follower := uuid.New()
	followed := uuid.New()

	created, err := repo.Insert(db, follower, followed)
	require.NoError(t, err)
	assert.True(t, created)

	again, err := repo.Insert(db, follower, followed)
	require.NoError(t, err)
	assert.False(t, again)

	var count int64
	require.NoError(t, db.Model(&models.Follow{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDeleteReportsWhetherRowExisted(t *testing.T) {
	db := setupFollowsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	follower := uuid.New()
	followed := uuid.New()
	_, err := repo.Insert(db, follower, followed)
	require.NoError(t, err)

	deleted, err := repo.Delete(ctx, follower, followed)
	require.NoError(t, err)
	assert.True(t, deleted)

	again, err := repo.Delete(ctx, follower, followed)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestListFollowerIDs(t *testing.T) {
	db := setupFollowsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	creator := uuid.New()
	fans := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, fan := range fans {
		_, err := repo.Insert(db, fan, creator)
		require.NoError(t, err)
	}
	_, err := repo.Insert(db, uuid.New(), uuid.New())
	require.NoError(t, err)

	ids, err := repo.ListFollowerIDs(ctx, creator)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	exists, err := repo.Exists(ctx, fans[0], creator)
	require.NoError(t, err)
	assert.True(t, exists)
}
