package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmarrero/fanlink-backend/api/middleware"
	"github.com/dmarrero/fanlink-backend/api/responses"
	"github.com/dmarrero/fanlink-backend/api/validators"
	"github.com/dmarrero/fanlink-backend/internal/messages"
	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	pkgerrors "github.com/dmarrero/fanlink-backend/pkg/errors"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
)

// MessagesService is the slice of the chat service the API consumes.
type MessagesService interface {
	Send(ctx context.Context, params messages.SendParams) (*models.Message, error)
	MarkRead(ctx context.Context, messageID, readerID uuid.UUID) error
	ListConversation(ctx context.Context, userID, otherID uuid.UUID, params messages.ListParams) ([]models.Message, error)
}

type sendMessagePayload struct {
	RecipientID string   `json:"recipient_id" validate:"required,uuid"`
	Body        string   `json:"body"`
	MediaRefs   []string `json:"media_refs"`
	ViewerIDs   []string `json:"viewer_ids" validate:"dive,uuid"`
}

// MessagesSend creates a direct message and echoes it back after commit.
func MessagesSend(svc MessagesService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "messages service unavailable"))
			return
		}

		senderID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		var payload sendMessagePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		recipientID, err := uuid.Parse(strings.TrimSpace(payload.RecipientID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recipient id"))
			return
		}

		viewerIDs := make([]uuid.UUID, 0, len(payload.ViewerIDs))
		for _, raw := range payload.ViewerIDs {
			id, err := uuid.Parse(strings.TrimSpace(raw))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid viewer id"))
				return
			}
			viewerIDs = append(viewerIDs, id)
		}

		msg, err := svc.Send(ctx, messages.SendParams{
			SenderID:    senderID,
			RecipientID: recipientID,
			Body:        validators.SanitizeString(payload.Body, 0),
			MediaRefs:   payload.MediaRefs,
			ViewerIDs:   viewerIDs,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, msg)
	}
}

// MessagesListConversation returns the newest-first page of a conversation.
func MessagesListConversation(svc MessagesService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "messages service unavailable"))
			return
		}

		userID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		otherID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "userId")))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		params := messages.ListParams{}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 200)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		params.Limit = limit
		if beforeStr := strings.TrimSpace(r.URL.Query().Get("beforeSeq")); beforeStr != "" {
			value, err := strconv.ParseInt(beforeStr, 10, 64)
			if err != nil || value <= 0 {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "beforeSeq must be a positive integer"))
				return
			}
			params.BeforeSeq = value
		}

		msgs, err := svc.ListConversation(ctx, userID, otherID, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, msgs)
	}
}

// MessagesMarkRead records a read receipt for a single message.
func MessagesMarkRead(svc MessagesService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "messages service unavailable"))
			return
		}

		readerID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		messageID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "messageId")))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid message id"))
			return
		}

		if err := svc.MarkRead(ctx, messageID, readerID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"read": true})
	}
}
