package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmarrero/fanlink-backend/api/middleware"
	"github.com/dmarrero/fanlink-backend/api/responses"
	"github.com/dmarrero/fanlink-backend/api/validators"
	"github.com/dmarrero/fanlink-backend/internal/campaigns"
	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
	pkgerrors "github.com/dmarrero/fanlink-backend/pkg/errors"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
)

// CampaignsService is the slice of the campaign lifecycle the API consumes.
type CampaignsService interface {
	Create(ctx context.Context, params campaigns.CreateParams) (*models.Campaign, error)
	Get(ctx context.Context, authorID, id uuid.UUID) (*models.Campaign, error)
	List(ctx context.Context, authorID uuid.UUID) ([]models.Campaign, error)
	Update(ctx context.Context, authorID, id uuid.UUID, params campaigns.UpdateParams) (*models.Campaign, error)
	Schedule(ctx context.Context, authorID, id uuid.UUID, scheduledFor time.Time) error
	Cancel(ctx context.Context, authorID, id uuid.UUID) error
	PauseRemaining(ctx context.Context, authorID, id uuid.UUID) (int64, error)
}

type campaignPayload struct {
	Content      string     `json:"content" validate:"required"`
	MediaRefs    []string   `json:"media_refs" validate:"dive,uuid"`
	DeliveryMode string     `json:"delivery_mode"`
	ScheduledFor *time.Time `json:"scheduled_for"`
	RecurEvery   string     `json:"recur_every"`
	EndDate      *time.Time `json:"end_date"`
}

type scheduleCampaignPayload struct {
	ScheduledFor time.Time `json:"scheduled_for" validate:"required"`
}

func (p campaignPayload) mediaRefIDs() ([]uuid.UUID, error) {
	refs := make([]uuid.UUID, 0, len(p.MediaRefs))
	for _, raw := range p.MediaRefs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid media ref")
		}
		refs = append(refs, id)
	}
	return refs, nil
}

func (p campaignPayload) recurEvery() (*time.Duration, error) {
	raw := strings.TrimSpace(p.RecurEvery)
	if raw == "" {
		return nil, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recur_every duration")
	}
	return &d, nil
}

// CampaignCreate creates a mass-message campaign addressed to the author's followers.
func CampaignCreate(svc CampaignsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaigns service unavailable"))
			return
		}

		authorID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		var payload campaignPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		mediaRefs, err := payload.mediaRefIDs()
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		recurEvery, err := payload.recurEvery()
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		campaign, err := svc.Create(ctx, campaigns.CreateParams{
			AuthorID:     authorID,
			Content:      validators.SanitizeString(payload.Content, 0),
			MediaRefs:    mediaRefs,
			DeliveryMode: enums.DeliveryMode(strings.TrimSpace(payload.DeliveryMode)),
			ScheduledFor: payload.ScheduledFor,
			RecurEvery:   recurEvery,
			EndDate:      payload.EndDate,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, campaign)
	}
}

// CampaignGet returns one campaign owned by the authenticated author.
func CampaignGet(svc CampaignsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaigns service unavailable"))
			return
		}

		authorID, campaignID, err := campaignIdentity(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		campaign, err := svc.Get(ctx, authorID, campaignID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, campaign)
	}
}

// CampaignList returns the author's campaigns newest first.
func CampaignList(svc CampaignsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaigns service unavailable"))
			return
		}

		authorID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		list, err := svc.List(ctx, authorID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// CampaignUpdate edits a campaign that has not been claimed for sending.
func CampaignUpdate(svc CampaignsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaigns service unavailable"))
			return
		}

		authorID, campaignID, err := campaignIdentity(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload campaignPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		mediaRefs, err := payload.mediaRefIDs()
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		recurEvery, err := payload.recurEvery()
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		campaign, err := svc.Update(ctx, authorID, campaignID, campaigns.UpdateParams{
			Content:      validators.SanitizeString(payload.Content, 0),
			MediaRefs:    mediaRefs,
			ScheduledFor: payload.ScheduledFor,
			RecurEvery:   recurEvery,
			EndDate:      payload.EndDate,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, campaign)
	}
}

// CampaignSchedule sets or moves the send time of an editable campaign.
func CampaignSchedule(svc CampaignsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaigns service unavailable"))
			return
		}

		authorID, campaignID, err := campaignIdentity(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload scheduleCampaignPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if payload.ScheduledFor.IsZero() {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "scheduled_for is required"))
			return
		}

		if err := svc.Schedule(ctx, authorID, campaignID, payload.ScheduledFor); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"scheduled": true})
	}
}

// CampaignCancel cancels a campaign before the scheduler claims it.
func CampaignCancel(svc CampaignsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaigns service unavailable"))
			return
		}

		authorID, campaignID, err := campaignIdentity(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.Cancel(ctx, authorID, campaignID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"cancelled": true})
	}
}

// CampaignPauseRemaining skips recipients that have not been delivered yet.
func CampaignPauseRemaining(svc CampaignsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaigns service unavailable"))
			return
		}

		authorID, campaignID, err := campaignIdentity(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		skipped, err := svc.PauseRemaining(ctx, authorID, campaignID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"skipped": skipped})
	}
}

func campaignIdentity(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	authorID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}
	campaignID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "campaignId")))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid campaign id")
	}
	return authorID, campaignID, nil
}
