package events

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
	"github.com/dmarrero/fanlink-backend/pkg/outbox"
	"github.com/dmarrero/fanlink-backend/pkg/outbox/payloads"
)

type fakeRenderer struct {
	envelopes []models.Envelope
	err       error
}

func (f *fakeRenderer) Render(ctx context.Context, event Event) ([]models.Envelope, error) {
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

type fakeEmitter struct {
	emitted []outbox.DomainEvent
	onceSet []bool
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.emitted = append(f.emitted, event)
	f.onceSet = append(f.onceSet, false)
	return nil
}

func (f *fakeEmitter) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.emitted = append(f.emitted, event)
	f.onceSet = append(f.onceSet, true)
	return nil
}

func newTestDispatcher(t *testing.T, renderer *fakeRenderer, pipeline *fakePipeline, emitter *fakeEmitter) *Dispatcher {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	dispatcher, err := NewDispatcher(renderer, pipeline, emitter, logg)
	if err != nil {
		t.Fatalf("failed to build dispatcher: %v", err)
	}
	return dispatcher
}

func TestRaiseDispatchesLatencySensitiveKindsInline(t *testing.T) {
	recipient := uuid.New()
	renderer := &fakeRenderer{envelopes: []models.Envelope{
		{ID: uuid.New(), Kind: enums.EventNewMessage, RecipientID: recipient, Data: []byte(`{}`)},
	}}
	pipeline := &fakePipeline{}
	emitter := &fakeEmitter{}
	dispatcher := newTestDispatcher(t, renderer, pipeline, emitter)

	event := Event{
		Kind:       enums.EventNewMessage,
		ActorID:    uuid.New(),
		Recipients: []uuid.UUID{recipient},
		Payload:    &payloads.MessageSentEvent{MessageID: uuid.New()},
	}
	if err := dispatcher.Raise(context.Background(), event, RaiseParams{}); err != nil {
		t.Fatalf("raise failed: %v", err)
	}

	if len(pipeline.dispatched) != 1 {
		t.Fatalf("expected 1 inline dispatch, got %d", len(pipeline.dispatched))
	}
	if len(emitter.emitted) != 0 {
		t.Fatalf("latency-sensitive kind must not touch the outbox")
	}
}

func TestRaiseDefersOtherKindsThroughOutbox(t *testing.T) {
	renderer := &fakeRenderer{}
	pipeline := &fakePipeline{}
	emitter := &fakeEmitter{}
	dispatcher := newTestDispatcher(t, renderer, pipeline, emitter)

	actor := uuid.New()
	followed := uuid.New()
	event := Event{
		Kind:       enums.EventNewFollower,
		ActorID:    actor,
		Recipients: []uuid.UUID{followed},
		Payload:    &payloads.FollowCreatedEvent{FollowerID: actor, FollowedID: followed},
	}
	params := RaiseParams{
		Tx:            &gorm.DB{},
		AggregateType: enums.AggregateUser,
		AggregateID:   followed,
		Once:          true,
	}
	if err := dispatcher.Raise(context.Background(), event, params); err != nil {
		t.Fatalf("raise failed: %v", err)
	}

	if len(pipeline.dispatched) != 0 {
		t.Fatalf("deferred kind must not dispatch inline")
	}
	if len(emitter.emitted) != 1 {
		t.Fatalf("expected 1 outbox emission, got %d", len(emitter.emitted))
	}
	if !emitter.onceSet[0] {
		t.Fatal("expected EmitIfNotExists for Once params")
	}
	emitted := emitter.emitted[0]
	if emitted.EventKind != enums.EventNewFollower || emitted.AggregateID != followed {
		t.Fatalf("unexpected emission: %+v", emitted)
	}
	if emitted.Actor == nil || emitted.Actor.UserID != actor {
		t.Fatalf("expected actor carried, got %+v", emitted.Actor)
	}
}

func TestRaiseDeferredRequiresTransaction(t *testing.T) {
	dispatcher := newTestDispatcher(t, &fakeRenderer{}, &fakePipeline{}, &fakeEmitter{})

	event := Event{
		Kind:       enums.EventNewFollower,
		Recipients: []uuid.UUID{uuid.New()},
		Payload:    &payloads.FollowCreatedEvent{},
	}
	if err := dispatcher.Raise(context.Background(), event, RaiseParams{}); err == nil {
		t.Fatal("expected error without transaction")
	}
}

func TestRaiseSyncDeliversRemainingRecipientsOnPartialRenderFailure(t *testing.T) {
	recipient := uuid.New()
	renderer := &fakeRenderer{
		envelopes: []models.Envelope{
			{ID: uuid.New(), Kind: enums.EventNewMessage, RecipientID: recipient, Data: []byte(`{}`)},
		},
		err: errors.New("one recipient failed"),
	}
	pipeline := &fakePipeline{}
	dispatcher := newTestDispatcher(t, renderer, pipeline, &fakeEmitter{})

	event := Event{
		Kind:       enums.EventNewMessage,
		Recipients: []uuid.UUID{recipient, uuid.New()},
		Payload:    &payloads.MessageSentEvent{MessageID: uuid.New()},
	}
	err := dispatcher.Raise(context.Background(), event, RaiseParams{})
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(pipeline.dispatched) != 1 {
		t.Fatalf("surviving envelope must still dispatch, got %d", len(pipeline.dispatched))
	}
}
