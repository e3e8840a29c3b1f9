package campaigns

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	dbtypes "github.com/dmarrero/fanlink-backend/pkg/db/types"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
	pkgerrors "github.com/dmarrero/fanlink-backend/pkg/errors"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
)

// FollowerSource resolves the audience for a campaign at creation time.
type FollowerSource interface {
	ListFollowerIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// CreateParams describe a new mass message.
type CreateParams struct {
	AuthorID     uuid.UUID
	Content      string
	MediaRefs    []uuid.UUID
	DeliveryMode enums.DeliveryMode
	ScheduledFor *time.Time
	RecurEvery   *time.Duration
	EndDate      *time.Time
}

// UpdateParams carry the fields an author may change before send time.
type UpdateParams struct {
	Content      string
	MediaRefs    []uuid.UUID
	ScheduledFor *time.Time
	RecurEvery   *time.Duration
	EndDate      *time.Time
}

// Service owns the campaign lifecycle up to the point the scheduler
// claims a campaign for sending.
type Service struct {
	repo      Repository
	followers FollowerSource
	logg      *logger.Logger
}

// NewService wires the campaign service.
func NewService(repo Repository, followers FollowerSource, logg *logger.Logger) (*Service, error) {
	if repo == nil || followers == nil || logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "campaign service missing dependency")
	}
	return &Service{repo: repo, followers: followers, logg: logg}, nil
}

// Create resolves the author's followers into a fixed recipient set and
// persists the campaign. Immediate campaigns skip straight to sending.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Campaign, error) {
	if err := validateCreate(params); err != nil {
		return nil, err
	}

	recipients, err := s.followers.ListFollowerIDs(ctx, params.AuthorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve campaign recipients")
	}
	if len(recipients) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign has no recipients")
	}

	now := time.Now().UTC()
	campaign := &models.Campaign{
		AuthorID:     params.AuthorID,
		Content:      params.Content,
		MediaRefs:    dbtypes.UUIDArray(params.MediaRefs),
		Recipients:   dbtypes.UUIDArray(recipients),
		DeliveryMode: params.DeliveryMode,
		Status:       initialStatus(params, now),
		ScheduledFor: params.ScheduledFor,
		RecurEvery:   params.RecurEvery,
		EndDate:      params.EndDate,
	}
	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create campaign")
	}

	campaignCtx := s.logg.WithField(ctx, "campaign_id", campaign.ID.String())
	campaignCtx = s.logg.WithField(campaignCtx, "recipient_count", len(recipients))
	s.logg.Info(campaignCtx, "campaign created")
	return campaign, nil
}

// Get returns one campaign to its author.
func (s *Service) Get(ctx context.Context, authorID, id uuid.UUID) (*models.Campaign, error) {
	campaign, err := s.loadOwned(ctx, authorID, id)
	if err != nil {
		return nil, err
	}
	return campaign, nil
}

// List returns the author's campaigns, newest first.
func (s *Service) List(ctx context.Context, authorID uuid.UUID) ([]models.Campaign, error) {
	if authorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "author id required")
	}
	campaigns, err := s.repo.ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list campaigns")
	}
	return campaigns, nil
}

// Update rewrites authoring fields. Once a campaign enters sending the
// edit is rejected so every recipient receives the same content.
func (s *Service) Update(ctx context.Context, authorID, id uuid.UUID, params UpdateParams) (*models.Campaign, error) {
	campaign, err := s.loadOwned(ctx, authorID, id)
	if err != nil {
		return nil, err
	}
	if !campaign.Status.Editable() {
		return nil, pkgerrors.New(pkgerrors.CodeCampaignLocked, "campaign can no longer be edited")
	}
	if params.Content == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign content required")
	}

	campaign.Content = params.Content
	campaign.MediaRefs = dbtypes.UUIDArray(params.MediaRefs)
	campaign.ScheduledFor = params.ScheduledFor
	campaign.RecurEvery = params.RecurEvery
	campaign.EndDate = params.EndDate

	updated, err := s.repo.UpdateDraft(ctx, campaign)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update campaign")
	}
	if !updated {
		// The scheduler claimed it between our read and the write.
		return nil, pkgerrors.New(pkgerrors.CodeCampaignLocked, "campaign can no longer be edited")
	}
	return campaign, nil
}

// Schedule moves a draft onto the release calendar.
func (s *Service) Schedule(ctx context.Context, authorID, id uuid.UUID, scheduledFor time.Time) error {
	if scheduledFor.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "scheduled time required")
	}
	campaign, err := s.loadOwned(ctx, authorID, id)
	if err != nil {
		return err
	}
	moved, err := s.repo.Transition(ctx, campaign.ID,
		[]enums.CampaignStatus{enums.CampaignDraft, enums.CampaignScheduled},
		enums.CampaignScheduled,
		map[string]any{"scheduled_for": scheduledFor.UTC()})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "schedule campaign")
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeCampaignLocked, "campaign can no longer be scheduled")
	}
	return nil
}

// Cancel withdraws a campaign that has not started sending. A send in
// progress cannot be cancelled; use PauseRemaining to halt what is left.
func (s *Service) Cancel(ctx context.Context, authorID, id uuid.UUID) error {
	campaign, err := s.loadOwned(ctx, authorID, id)
	if err != nil {
		return err
	}
	cancelled, err := s.repo.Transition(ctx, campaign.ID,
		[]enums.CampaignStatus{enums.CampaignDraft, enums.CampaignScheduled},
		enums.CampaignCancelled, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel campaign")
	}
	if !cancelled {
		return pkgerrors.New(pkgerrors.CodeCampaignLocked, "campaign already claimed for sending")
	}
	s.logg.Info(s.logg.WithField(ctx, "campaign_id", campaign.ID.String()), "campaign cancelled")
	return nil
}

// PauseRemaining halts the not-yet-sent recipients of an in-flight
// campaign. Recipients already delivered to are unaffected.
func (s *Service) PauseRemaining(ctx context.Context, authorID, id uuid.UUID) (int64, error) {
	campaign, err := s.loadOwned(ctx, authorID, id)
	if err != nil {
		return 0, err
	}
	if campaign.Status != enums.CampaignSending {
		return 0, pkgerrors.New(pkgerrors.CodeStateConflict, "campaign is not sending")
	}
	skipped, err := s.repo.SkipPendingRecipients(ctx, campaign.ID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "pause campaign")
	}
	pausedCtx := s.logg.WithField(ctx, "campaign_id", campaign.ID.String())
	pausedCtx = s.logg.WithField(pausedCtx, "skipped", skipped)
	s.logg.Info(pausedCtx, "campaign remaining recipients paused")
	return skipped, nil
}

func (s *Service) loadOwned(ctx context.Context, authorID, id uuid.UUID) (*models.Campaign, error) {
	if authorID == uuid.Nil || id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign and author ids required")
	}
	campaign, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load campaign")
	}
	if campaign == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
	}
	if campaign.AuthorID != authorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "campaign belongs to another author")
	}
	return campaign, nil
}

func validateCreate(params CreateParams) error {
	if params.AuthorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "author id required")
	}
	if params.Content == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "campaign content required")
	}
	if !params.DeliveryMode.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery mode")
	}
	if params.DeliveryMode != enums.DeliveryImmediate && params.ScheduledFor == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "scheduled time required")
	}
	if params.DeliveryMode == enums.DeliveryRecurring {
		if params.RecurEvery == nil || *params.RecurEvery <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "recurrence interval required")
		}
	}
	return nil
}

// initialStatus implements the shortcut for immediate sends: no future
// release time means the scheduler can pick the campaign up right away.
func initialStatus(params CreateParams, now time.Time) enums.CampaignStatus {
	if params.DeliveryMode == enums.DeliveryImmediate {
		return enums.CampaignSending
	}
	if params.ScheduledFor != nil && !params.ScheduledFor.After(now) {
		return enums.CampaignSending
	}
	return enums.CampaignScheduled
}
