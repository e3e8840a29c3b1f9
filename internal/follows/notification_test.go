package follows

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/dmarrero/fanlink-backend/internal/events"
	"github.com/dmarrero/fanlink-backend/internal/jobs"
	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
)

type fakeRenderer struct {
	rendered  []events.Event
	envelopes []models.Envelope
	err       error
}

func (f *fakeRenderer) Render(ctx context.Context, event events.Event) ([]models.Envelope, error) {
	f.rendered = append(f.rendered, event)
	return f.envelopes, f.err
}

type fakePipeline struct {
	dispatched []models.Envelope
	err        error
}

func (f *fakePipeline) Dispatch(ctx context.Context, envelope models.Envelope, channels []enums.Channel) ([]models.DeliveryAttempt, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.dispatched = append(f.dispatched, envelope)
	return nil, nil
}

func notificationJob(t *testing.T, payload FollowNotificationPayload) models.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return models.Job{ID: uuid.New(), Kind: enums.JobFollowNotification, Payload: raw}
}

func TestFollowNotificationHandlerRendersAndDispatches(t *testing.T) {
	follower := uuid.New()
	followed := uuid.New()
	renderer := &fakeRenderer{envelopes: []models.Envelope{
		{ID: uuid.New(), Kind: enums.EventNewFollower, RecipientID: followed, Data: []byte(`{}`)},
	}}
	pipeline := &fakePipeline{}
	handler, err := NewFollowNotificationHandler(renderer, pipeline)
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	payload := FollowNotificationPayload{
		EventID:    uuid.NewString(),
		FollowerID: follower,
		FollowedID: followed,
	}
	if err := handler.Handle(context.Background(), notificationJob(t, payload)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	if len(renderer.rendered) != 1 {
		t.Fatalf("expected 1 render, got %d", len(renderer.rendered))
	}
	event := renderer.rendered[0]
	if event.EventID != payload.EventID {
		t.Fatal("event id must carry through for deterministic envelope ids")
	}
	if len(event.Recipients) != 1 || event.Recipients[0] != followed {
		t.Fatalf("wrong recipients: %v", event.Recipients)
	}
	if len(pipeline.dispatched) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(pipeline.dispatched))
	}
}

func TestFollowNotificationHandlerDispatchFailureIsRetryable(t *testing.T) {
	renderer := &fakeRenderer{envelopes: []models.Envelope{
		{ID: uuid.New(), Kind: enums.EventNewFollower, RecipientID: uuid.New(), Data: []byte(`{}`)},
	}}
	pipeline := &fakePipeline{err: errors.New("redis down")}
	handler, err := NewFollowNotificationHandler(renderer, pipeline)
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	payload := FollowNotificationPayload{EventID: uuid.NewString(), FollowerID: uuid.New(), FollowedID: uuid.New()}
	handleErr := handler.Handle(context.Background(), notificationJob(t, payload))
	if handleErr == nil {
		t.Fatal("expected error")
	}
	var nonRetryable *jobs.NonRetryableError
	if errors.As(handleErr, &nonRetryable) {
		t.Fatalf("dispatch failure must stay retryable, got %v", handleErr)
	}
}

func TestFollowNotificationHandlerBadPayload(t *testing.T) {
	handler, err := NewFollowNotificationHandler(&fakeRenderer{}, &fakePipeline{})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	job := models.Job{ID: uuid.New(), Kind: enums.JobFollowNotification, Payload: []byte("nope")}
	handleErr := handler.Handle(context.Background(), job)
	var nonRetryable *jobs.NonRetryableError
	if !errors.As(handleErr, &nonRetryable) {
		t.Fatalf("expected non-retryable, got %v", handleErr)
	}
}
