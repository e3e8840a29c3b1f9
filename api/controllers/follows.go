package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmarrero/fanlink-backend/api/middleware"
	"github.com/dmarrero/fanlink-backend/api/responses"
	"github.com/dmarrero/fanlink-backend/api/validators"
	"github.com/dmarrero/fanlink-backend/internal/follows"
	pkgerrors "github.com/dmarrero/fanlink-backend/pkg/errors"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
)

// FollowsService is the slice of the follow graph the API consumes.
type FollowsService interface {
	Follow(ctx context.Context, params follows.FollowParams) (bool, error)
	Unfollow(ctx context.Context, followerID, followedID uuid.UUID) error
}

type followPayload struct {
	CreatorID        string   `json:"creator_id" validate:"required,uuid"`
	WelcomeMessage   string   `json:"welcome_message"`
	WelcomeMediaRefs []string `json:"welcome_media_refs"`
}

// FollowCreate follows a creator. Re-following is a no-op and reports created false.
func FollowCreate(svc FollowsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "follows service unavailable"))
			return
		}

		followerID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		var payload followPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		creatorID, err := uuid.Parse(strings.TrimSpace(payload.CreatorID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid creator id"))
			return
		}

		created, err := svc.Follow(ctx, follows.FollowParams{
			FollowerID:       followerID,
			FollowedID:       creatorID,
			WelcomeMessage:   validators.SanitizeString(payload.WelcomeMessage, 0),
			WelcomeMediaRefs: payload.WelcomeMediaRefs,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"created": created})
	}
}

// FollowDelete removes a follow edge.
func FollowDelete(svc FollowsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "follows service unavailable"))
			return
		}

		followerID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		creatorID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "creatorId")))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid creator id"))
			return
		}

		if err := svc.Unfollow(ctx, followerID, creatorID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"removed": true})
	}
}
