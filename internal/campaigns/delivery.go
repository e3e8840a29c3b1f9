package campaigns

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dmarrero/fanlink-backend/internal/events"
	"github.com/dmarrero/fanlink-backend/internal/jobs"
	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
	pkgerrors "github.com/dmarrero/fanlink-backend/pkg/errors"
	"github.com/dmarrero/fanlink-backend/pkg/outbox/payloads"
)

// DeliveryPayload is the queued unit of work for one campaign recipient.
type DeliveryPayload struct {
	EventID        string    `json:"event_id"`
	RecipientRowID uuid.UUID `json:"recipient_row_id"`
	CampaignID     uuid.UUID `json:"campaign_id"`
	AuthorID       uuid.UUID `json:"author_id"`
	RecipientID    uuid.UUID `json:"recipient_id"`
	Content        string    `json:"content"`
}

// RecipientStore is the slice of the repository the handler needs.
type RecipientStore interface {
	GetRecipient(ctx context.Context, id uuid.UUID) (*models.CampaignRecipient, error)
	MarkRecipientSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkRecipientFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// DeliveryHandler renders and dispatches one campaign envelope per job.
// The recipient ledger row gates execution, so a paused or already-sent
// recipient makes a redelivered job a no-op.
type DeliveryHandler struct {
	recipients RecipientStore
	renderer   events.Renderer
	pipeline   events.PipelineRunner
}

// NewDeliveryHandler wires the campaign delivery job handler.
func NewDeliveryHandler(recipients RecipientStore, renderer events.Renderer, pipeline events.PipelineRunner) (*DeliveryHandler, error) {
	if recipients == nil || renderer == nil || pipeline == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "delivery handler missing dependency")
	}
	return &DeliveryHandler{recipients: recipients, renderer: renderer, pipeline: pipeline}, nil
}

// Kind implements jobs.Handler.
func (h *DeliveryHandler) Kind() enums.JobKind {
	return enums.JobCampaignDelivery
}

// LockParts scopes the dedup lock to one recipient ledger row.
func (h *DeliveryHandler) LockParts(job models.Job) []string {
	var payload DeliveryPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil || payload.RecipientRowID == uuid.Nil {
		return []string{"campaign", job.ID.String()}
	}
	return []string{"campaign", payload.RecipientRowID.String()}
}

// Handle implements jobs.Handler.
func (h *DeliveryHandler) Handle(ctx context.Context, job models.Job) error {
	var payload DeliveryPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return &jobs.NonRetryableError{Err: err}
	}

	recipient, err := h.recipients.GetRecipient(ctx, payload.RecipientRowID)
	if err != nil {
		return err
	}
	if recipient == nil {
		// Ledger reset by a recurrence rollover; this occurrence is over.
		return &jobs.NonRetryableError{Err: pkgerrors.New(pkgerrors.CodeGone, "campaign recipient no longer tracked")}
	}
	if recipient.Status != enums.RecipientPending {
		return nil
	}

	event := events.Event{
		Kind:       enums.EventCampaignMessage,
		EventID:    payload.EventID,
		ActorID:    payload.AuthorID,
		Recipients: []uuid.UUID{payload.RecipientID},
		Payload: &payloads.CampaignMessageEvent{
			CampaignID:  payload.CampaignID,
			AuthorID:    payload.AuthorID,
			RecipientID: payload.RecipientID,
			Content:     payload.Content,
		},
	}

	envelopes, err := h.renderer.Render(ctx, event)
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil {
			switch appErr.Code() {
			case pkgerrors.CodeGone:
				// Author deleted; skip this recipient permanently.
				if markErr := h.recipients.MarkRecipientFailed(ctx, recipient.ID, appErr.Error()); markErr != nil {
					return markErr
				}
				return nil
			case pkgerrors.CodeValidation:
				return &jobs.NonRetryableError{Err: err}
			}
		}
		return err
	}

	var errs error
	for _, envelope := range envelopes {
		if _, dispatchErr := h.pipeline.Dispatch(ctx, envelope, nil); dispatchErr != nil {
			errs = multierr.Append(errs, dispatchErr)
		}
	}
	if errs != nil {
		// Recipient stays pending so the retry re-runs delivery.
		return errs
	}
	return h.recipients.MarkRecipientSent(ctx, recipient.ID, time.Now().UTC())
}
