package campaigns

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
	dbtypes "github.com/dmarrero/fanlink-backend/pkg/db/types"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
)

func setupCampaignsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	campaigns := `
CREATE TABLE IF NOT EXISTS campaigns (
  id TEXT PRIMARY KEY,
  author_id TEXT NOT NULL,
  content TEXT NOT NULL,
  media_refs TEXT,
  recipients TEXT NOT NULL,
  delivery_mode TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  scheduled_for DATETIME,
  recur_every INTEGER,
  end_date DATETIME,
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	recipients := `
CREATE TABLE IF NOT EXISTS campaign_recipients (
  id TEXT PRIMARY KEY,
  campaign_id TEXT NOT NULL,
  recipient_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  last_error TEXT,
  sent_at DATETIME,
  created_at DATETIME,
  UNIQUE (campaign_id, recipient_id)
);`
	require.NoError(t, db.Exec("DROP TABLE IF EXISTS campaigns").Error)
	require.NoError(t, db.Exec("DROP TABLE IF EXISTS campaign_recipients").Error)
	require.NoError(t, db.Exec(campaigns).Error)
	require.NoError(t, db.Exec(recipients).Error)
	return db
}

func seedCampaign(t *testing.T, repo Repository, status enums.CampaignStatus, recipients ...uuid.UUID) *models.Campaign {
	t.Helper()
	campaign := &models.Campaign{
		AuthorID:     uuid.New(),
		Content:      "new drop this friday",
		Recipients:   dbtypes.UUIDArray(recipients),
		DeliveryMode: enums.DeliveryScheduled,
		Status:       status,
	}
	require.NoError(t, repo.Create(context.Background(), campaign))
	return campaign
}

func TestRepositoryCreateAndGet(t *testing.T) {
	db := setupCampaignsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	fan := uuid.New()
	campaign := seedCampaign(t, repo, enums.CampaignDraft, fan)
	require.NotEqual(t, uuid.Nil, campaign.ID)

	loaded, err := repo.Get(ctx, campaign.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, campaign.Content, loaded.Content)
	require.Len(t, loaded.Recipients, 1)
	assert.Equal(t, fan, loaded.Recipients[0])

	missing, err := repo.Get(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryUpdateDraftRejectsClaimedCampaign(t *testing.T) {
	db := setupCampaignsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	campaign := seedCampaign(t, repo, enums.CampaignDraft, uuid.New())
	campaign.Content = "edited"
	updated, err := repo.UpdateDraft(ctx, campaign)
	require.NoError(t, err)
	assert.True(t, updated)

	moved, err := repo.Transition(ctx, campaign.ID,
		[]enums.CampaignStatus{enums.CampaignDraft, enums.CampaignScheduled},
		enums.CampaignSending, nil)
	require.NoError(t, err)
	require.True(t, moved)

	campaign.Content = "too late"
	updated, err = repo.UpdateDraft(ctx, campaign)
	require.NoError(t, err)
	assert.False(t, updated)

	loaded, err := repo.Get(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", loaded.Content)
}

func TestRepositoryTransitionIsCompareAndSet(t *testing.T) {
	db := setupCampaignsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	campaign := seedCampaign(t, repo, enums.CampaignScheduled, uuid.New())

	cancelled, err := repo.Transition(ctx, campaign.ID,
		[]enums.CampaignStatus{enums.CampaignDraft, enums.CampaignScheduled},
		enums.CampaignCancelled, nil)
	require.NoError(t, err)
	assert.True(t, cancelled)

	// A release trigger racing the cancel finds the status already gone.
	claimed, err := repo.Transition(ctx, campaign.ID,
		[]enums.CampaignStatus{enums.CampaignScheduled},
		enums.CampaignSending, nil)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestRepositoryEnsureRecipientsIsResumable(t *testing.T) {
	db := setupCampaignsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	fans := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	campaign := seedCampaign(t, repo, enums.CampaignSending, fans...)

	require.NoError(t, repo.EnsureRecipients(ctx, campaign.ID, fans[:2]))
	first, err := repo.ListPendingRecipients(ctx, campaign.ID, 10)
	require.NoError(t, err)
	require.Len(t, first, 2)

	require.NoError(t, repo.MarkRecipientSent(ctx, first[0].ID, time.Now().UTC()))

	// A restart re-runs the full expansion; sent rows are untouched and
	// only the missing fan gains a row.
	require.NoError(t, repo.EnsureRecipients(ctx, campaign.ID, fans))
	pending, err := repo.CountPendingRecipients(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	kept, err := repo.GetRecipient(ctx, first[0].ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Equal(t, enums.RecipientSent, kept.Status)
}

func TestRepositoryMarkRecipientOnlyMovesPendingRows(t *testing.T) {
	db := setupCampaignsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	fan := uuid.New()
	campaign := seedCampaign(t, repo, enums.CampaignSending, fan)
	require.NoError(t, repo.EnsureRecipients(ctx, campaign.ID, []uuid.UUID{fan}))
	rows, err := repo.ListPendingRecipients(ctx, campaign.ID, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, repo.MarkRecipientSent(ctx, rows[0].ID, time.Now().UTC()))
	require.NoError(t, repo.MarkRecipientFailed(ctx, rows[0].ID, "late failure"))

	row, err := repo.GetRecipient(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RecipientSent, row.Status)
	assert.Nil(t, row.LastError)
}

func TestRepositorySkipAndResetRecipients(t *testing.T) {
	db := setupCampaignsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	fans := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	campaign := seedCampaign(t, repo, enums.CampaignSending, fans...)
	require.NoError(t, repo.EnsureRecipients(ctx, campaign.ID, fans))

	rows, err := repo.ListPendingRecipients(ctx, campaign.ID, 10)
	require.NoError(t, err)
	require.NoError(t, repo.MarkRecipientSent(ctx, rows[0].ID, time.Now().UTC()))

	skipped, err := repo.SkipPendingRecipients(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), skipped)

	pending, err := repo.CountPendingRecipients(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Zero(t, pending)

	require.NoError(t, repo.ResetRecipients(ctx, campaign.ID))
	rows, err = repo.ListPendingRecipients(ctx, campaign.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
