package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
)

func setupJobsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	jobs := `
CREATE TABLE IF NOT EXISTS jobs (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  payload TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  attempt_count INTEGER NOT NULL DEFAULT 0,
  max_attempts INTEGER NOT NULL DEFAULT 3,
  next_run_at DATETIME NOT NULL,
  deadline_at DATETIME NOT NULL,
  last_error TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	jobFailures := `
CREATE TABLE IF NOT EXISTS job_failures (
  id TEXT PRIMARY KEY,
  job_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  payload TEXT NOT NULL,
  attempt_count INTEGER NOT NULL,
  reason TEXT NOT NULL,
  failed_at DATETIME
);`
	require.NoError(t, db.Exec("DROP TABLE IF EXISTS jobs").Error)
	require.NoError(t, db.Exec("DROP TABLE IF EXISTS job_failures").Error)
	require.NoError(t, db.Exec(jobs).Error)
	require.NoError(t, db.Exec(jobFailures).Error)
	return db
}

func TestEnqueueAppliesDefaults(t *testing.T) {
	db := setupJobsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	before := time.Now().UTC()
	job, err := repo.Enqueue(ctx, nil, EnqueueParams{
		Kind:    enums.JobMailDelivery,
		Payload: map[string]string{"envelope_id": uuid.NewString()},
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, enums.JobPending, job.Status)
	assert.Equal(t, 3, job.MaxAttempts)
	assert.False(t, job.NextRunAt.Before(before))
	assert.Equal(t, job.NextRunAt.Add(10*time.Minute), job.DeadlineAt)

	var stored models.Job
	require.NoError(t, db.First(&stored, "id = ?", job.ID).Error)
	assert.Equal(t, enums.JobMailDelivery, stored.Kind)
}

func TestEnqueueRejectsUnknownKind(t *testing.T) {
	db := setupJobsTestDB(t)
	repo := NewRepository(db)

	_, err := repo.Enqueue(context.Background(), nil, EnqueueParams{
		Kind:    enums.JobKind("badkind"),
		Payload: map[string]string{},
	})
	require.Error(t, err)
}

func TestMarkRetryBumpsAttemptAndRecordsError(t *testing.T) {
	db := setupJobsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	job, err := repo.Enqueue(ctx, nil, EnqueueParams{
		Kind:    enums.JobFollowNotification,
		Payload: map[string]string{},
	})
	require.NoError(t, err)

	nextRun := time.Now().UTC().Add(10 * time.Second)
	require.NoError(t, repo.MarkRetry(ctx, job.ID, nextRun, assert.AnError))

	var stored models.Job
	require.NoError(t, db.First(&stored, "id = ?", job.ID).Error)
	assert.Equal(t, enums.JobPending, stored.Status)
	assert.Equal(t, 1, stored.AttemptCount)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, assert.AnError.Error(), *stored.LastError)
	assert.WithinDuration(t, nextRun, stored.NextRunAt, time.Second)
}

func TestRescheduleKeepsAttemptCount(t *testing.T) {
	db := setupJobsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	job, err := repo.Enqueue(ctx, nil, EnqueueParams{
		Kind:    enums.JobMailDelivery,
		Payload: map[string]string{},
	})
	require.NoError(t, err)
	require.NoError(t, repo.MarkRetry(ctx, job.ID, time.Now().UTC(), assert.AnError))

	nextRun := time.Now().UTC().Add(time.Second)
	require.NoError(t, repo.Reschedule(ctx, job.ID, nextRun))

	var stored models.Job
	require.NoError(t, db.First(&stored, "id = ?", job.ID).Error)
	assert.Equal(t, 1, stored.AttemptCount)
	assert.Equal(t, enums.JobPending, stored.Status)
}

func TestRequeueStaleRecoversAbandonedClaims(t *testing.T) {
	db := setupJobsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	stale, err := repo.Enqueue(ctx, nil, EnqueueParams{
		Kind:    enums.JobFollowNotification,
		Payload: map[string]string{},
	})
	require.NoError(t, err)
	fresh, err := repo.Enqueue(ctx, nil, EnqueueParams{
		Kind:    enums.JobFollowNotification,
		Payload: map[string]string{},
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, db.Model(&models.Job{}).Where("id = ?", stale.ID).
		Updates(map[string]any{"status": enums.JobRunning, "updated_at": now.Add(-10 * time.Minute)}).Error)
	require.NoError(t, db.Model(&models.Job{}).Where("id = ?", fresh.ID).
		Updates(map[string]any{"status": enums.JobRunning, "updated_at": now}).Error)

	requeued, err := repo.RequeueStale(ctx, now.Add(-2*time.Minute), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), requeued)

	var recovered models.Job
	require.NoError(t, db.First(&recovered, "id = ?", stale.ID).Error)
	assert.Equal(t, enums.JobPending, recovered.Status)
	assert.WithinDuration(t, now, recovered.NextRunAt, time.Second)

	var untouched models.Job
	require.NoError(t, db.First(&untouched, "id = ?", fresh.ID).Error)
	assert.Equal(t, enums.JobRunning, untouched.Status)
}

func TestMarkSucceeded(t *testing.T) {
	db := setupJobsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	job, err := repo.Enqueue(ctx, nil, EnqueueParams{
		Kind:    enums.JobCampaignDelivery,
		Payload: map[string]string{},
	})
	require.NoError(t, err)
	require.NoError(t, repo.MarkSucceeded(ctx, job.ID))

	var stored models.Job
	require.NoError(t, db.First(&stored, "id = ?", job.ID).Error)
	assert.Equal(t, enums.JobSucceeded, stored.Status)
}

func TestMarkAbandonedWritesFailureRow(t *testing.T) {
	db := setupJobsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	job, err := repo.Enqueue(ctx, nil, EnqueueParams{
		Kind:    enums.JobMailDelivery,
		Payload: map[string]string{"envelope_id": uuid.NewString()},
	})
	require.NoError(t, err)

	job.AttemptCount = 3
	require.NoError(t, repo.MarkAbandoned(ctx, *job, "attempts exhausted"))

	var stored models.Job
	require.NoError(t, db.First(&stored, "id = ?", job.ID).Error)
	assert.Equal(t, enums.JobFailed, stored.Status)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "attempts exhausted", *stored.LastError)

	var failures []models.JobFailure
	require.NoError(t, db.Find(&failures, "job_id = ?", job.ID).Error)
	require.Len(t, failures, 1)
	assert.Equal(t, enums.JobMailDelivery, failures[0].Kind)
	assert.Equal(t, 3, failures[0].AttemptCount)
	assert.Equal(t, "attempts exhausted", failures[0].Reason)
}
