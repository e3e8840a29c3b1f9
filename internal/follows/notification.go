package follows

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dmarrero/fanlink-backend/internal/events"
	"github.com/dmarrero/fanlink-backend/internal/jobs"
	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
	pkgerrors "github.com/dmarrero/fanlink-backend/pkg/errors"
	"github.com/dmarrero/fanlink-backend/pkg/outbox/payloads"
)

// FollowNotificationPayload is the queued form of a follow notification.
// EventID seeds the deterministic envelope id so redelivery stays an
// idempotent insert.
type FollowNotificationPayload struct {
	EventID    string    `json:"event_id"`
	FollowerID uuid.UUID `json:"follower_id"`
	FollowedID uuid.UUID `json:"followed_id"`
}

// FollowNotificationHandler renders and delivers the new-follower envelope
// from the job queue, so delivery retries ride the queue's backoff and
// deadline machinery.
type FollowNotificationHandler struct {
	renderer events.Renderer
	pipeline events.PipelineRunner
}

// NewFollowNotificationHandler builds the handler.
func NewFollowNotificationHandler(renderer events.Renderer, pipeline events.PipelineRunner) (*FollowNotificationHandler, error) {
	if renderer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "renderer required")
	}
	if pipeline == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "pipeline required")
	}
	return &FollowNotificationHandler{renderer: renderer, pipeline: pipeline}, nil
}

func (h *FollowNotificationHandler) Kind() enums.JobKind {
	return enums.JobFollowNotification
}

// LockParts key the lock on the pair, so a duplicate notification job for
// the same follow can never double-deliver.
func (h *FollowNotificationHandler) LockParts(job models.Job) []string {
	var payload FollowNotificationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return []string{"notify-job", job.ID.String()}
	}
	return []string{"notify-job", payload.FollowerID.String(), payload.FollowedID.String()}
}

func (h *FollowNotificationHandler) Handle(ctx context.Context, job models.Job) error {
	var payload FollowNotificationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return &jobs.NonRetryableError{Err: fmt.Errorf("decode follow notification payload: %w", err)}
	}

	event := events.Event{
		Kind:       enums.EventNewFollower,
		EventID:    payload.EventID,
		ActorID:    payload.FollowerID,
		Recipients: []uuid.UUID{payload.FollowedID},
		Payload: &payloads.FollowCreatedEvent{
			FollowerID: payload.FollowerID,
			FollowedID: payload.FollowedID,
		},
	}
	envelopes, err := h.renderer.Render(ctx, event)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeValidation {
			return &jobs.NonRetryableError{Err: err}
		}
		return err
	}

	var errs error
	for _, env := range envelopes {
		if _, dispatchErr := h.pipeline.Dispatch(ctx, env, nil); dispatchErr != nil {
			errs = multierr.Append(errs, dispatchErr)
		}
	}
	return errs
}
