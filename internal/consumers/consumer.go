package consumers

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/dmarrero/fanlink-backend/internal/campaigns"
	"github.com/dmarrero/fanlink-backend/internal/events"
	"github.com/dmarrero/fanlink-backend/internal/follows"
	"github.com/dmarrero/fanlink-backend/internal/jobs"
	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
	pkgerrors "github.com/dmarrero/fanlink-backend/pkg/errors"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
	"github.com/dmarrero/fanlink-backend/pkg/outbox"
	"github.com/dmarrero/fanlink-backend/pkg/outbox/idempotency"
	"github.com/dmarrero/fanlink-backend/pkg/outbox/payloads"
	"github.com/dmarrero/fanlink-backend/pkg/outbox/registry"
)

const dispatchConsumer = "dispatch"

// JobEnqueuer queues background work outside a caller transaction.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, tx *gorm.DB, params jobs.EnqueueParams) (*models.Job, error)
}

// Dispatcher consumes domain events and turns them into envelope
// deliveries: latency-tolerant kinds dispatch inline, kinds that need
// queue-backed retry become background jobs.
type Dispatcher struct {
	decoders    *registry.DecoderRegistry
	idempotency *idempotency.Manager
	renderer    events.Renderer
	pipeline    events.PipelineRunner
	jobs        JobEnqueuer
	logg        *logger.Logger
}

// NewDispatcher builds the domain event consumer.
func NewDispatcher(manager *idempotency.Manager, renderer events.Renderer, pipeline events.PipelineRunner, enqueuer JobEnqueuer, logg *logger.Logger) (*Dispatcher, error) {
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("renderer required")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("dispatch pipeline required")
	}
	if enqueuer == nil {
		return nil, fmt.Errorf("job enqueuer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{
		decoders:    buildDecoders(),
		idempotency: manager,
		renderer:    renderer,
		pipeline:    pipeline,
		jobs:        enqueuer,
		logg:        logg,
	}, nil
}

func buildDecoders() *registry.DecoderRegistry {
	decoders := registry.NewDecoderRegistry()
	register := func(kind enums.EventKind, factory func() interface{}) {
		decoders.Register(kind, 0, func(raw json.RawMessage) (interface{}, error) {
			payload := factory()
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			return payload, nil
		})
	}
	register(enums.EventNewMessage, func() interface{} { return &payloads.MessageSentEvent{} })
	register(enums.EventMessageRead, func() interface{} { return &payloads.MessageReadEvent{} })
	register(enums.EventNewFollower, func() interface{} { return &payloads.FollowCreatedEvent{} })
	register(enums.EventNewLike, func() interface{} { return &payloads.PostLikedEvent{} })
	register(enums.EventTagRequest, func() interface{} { return &payloads.TagRequestedEvent{} })
	register(enums.EventTagApproved, func() interface{} { return &payloads.TagDecidedEvent{} })
	register(enums.EventTagRejected, func() interface{} { return &payloads.TagDecidedEvent{} })
	register(enums.EventCreatorApproved, func() interface{} { return &payloads.CreatorApplicationDecidedEvent{} })
	register(enums.EventCreatorRejected, func() interface{} { return &payloads.CreatorApplicationDecidedEvent{} })
	register(enums.EventReferralEarning, func() interface{} { return &payloads.ReferralEarningEvent{} })
	register(enums.EventCampaignMessage, func() interface{} { return &payloads.CampaignMessageEvent{} })
	return decoders
}

// Run starts the consumer loop until the context is canceled.
func (d *Dispatcher) Run(ctx context.Context, subscription *pubsub.Subscriber) error {
	if subscription == nil {
		return fmt.Errorf("events subscription required")
	}
	return subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := d.Process(ctx, msg.Attributes, msg.Data, msg.ID)
		if result.Nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// ProcessResult tells the receive loop how to settle a message.
type ProcessResult struct {
	Ack  bool
	Nack bool
}

// Process handles one domain event message. Exported so tests can
// drive it without a live subscription.
func (d *Dispatcher) Process(ctx context.Context, attributes map[string]string, data []byte, messageID string) ProcessResult {
	kind := enums.EventKind(attributes["event_kind"])
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_kind": string(kind),
	})

	if !kind.IsValid() {
		d.logg.Info(logCtx, "skipping unknown event kind")
		return ProcessResult{Ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		d.logg.Error(logCtx, "failed to decode envelope", err)
		return ProcessResult{Ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		d.logg.Error(logCtx, "invalid event id", err)
		return ProcessResult{Ack: true}
	}
	logCtx = d.logg.WithField(logCtx, "event_id", envelope.EventID)

	already, err := d.idempotency.CheckAndMarkProcessed(ctx, dispatchConsumer, eventID)
	if err != nil {
		d.logg.Error(logCtx, "idempotency check failed", err)
		return ProcessResult{Nack: true}
	}
	if already {
		d.logg.Info(logCtx, "event already processed")
		return ProcessResult{Ack: true}
	}

	payload, err := d.decoders.Decode(kind, envelope.Version, envelope.Data)
	if err != nil {
		d.logg.Error(logCtx, "failed to decode payload", err)
		_ = d.idempotency.Delete(ctx, dispatchConsumer, eventID)
		return ProcessResult{Ack: true}
	}

	if err := d.handle(ctx, kind, envelope, payload, attributes, logCtx); err != nil {
		d.logg.Error(logCtx, "event handling failed", err)
		_ = d.idempotency.Delete(ctx, dispatchConsumer, eventID)
		return ProcessResult{Nack: true}
	}
	return ProcessResult{Ack: true}
}

func (d *Dispatcher) handle(ctx context.Context, kind enums.EventKind, envelope outbox.PayloadEnvelope, payload interface{}, attributes map[string]string, logCtx context.Context) error {
	switch typed := payload.(type) {
	case *payloads.FollowCreatedEvent:
		return d.enqueueFollowNotification(ctx, envelope, typed, logCtx)
	case *payloads.CampaignMessageEvent:
		return d.enqueueCampaignDelivery(ctx, envelope, typed, attributes, logCtx)
	default:
		return d.dispatchInline(ctx, kind, envelope, payload, logCtx)
	}
}

// enqueueFollowNotification hands follow notifications to the job
// queue so delivery retries ride its backoff and deadline.
func (d *Dispatcher) enqueueFollowNotification(ctx context.Context, envelope outbox.PayloadEnvelope, payload *payloads.FollowCreatedEvent, logCtx context.Context) error {
	_, err := d.jobs.Enqueue(ctx, nil, jobs.EnqueueParams{
		Kind: enums.JobFollowNotification,
		Payload: follows.FollowNotificationPayload{
			EventID:    envelope.EventID,
			FollowerID: payload.FollowerID,
			FollowedID: payload.FollowedID,
		},
	})
	if err != nil {
		return fmt.Errorf("enqueue follow notification: %w", err)
	}
	d.logg.Info(logCtx, "follow notification queued")
	return nil
}

func (d *Dispatcher) enqueueCampaignDelivery(ctx context.Context, envelope outbox.PayloadEnvelope, payload *payloads.CampaignMessageEvent, attributes map[string]string, logCtx context.Context) error {
	recipientRowID, err := uuid.Parse(attributes["aggregate_id"])
	if err != nil {
		return fmt.Errorf("campaign event missing recipient row id: %w", err)
	}
	_, err = d.jobs.Enqueue(ctx, nil, jobs.EnqueueParams{
		Kind: enums.JobCampaignDelivery,
		Payload: campaigns.DeliveryPayload{
			EventID:        envelope.EventID,
			RecipientRowID: recipientRowID,
			CampaignID:     payload.CampaignID,
			AuthorID:       payload.AuthorID,
			RecipientID:    payload.RecipientID,
			Content:        payload.Content,
		},
	})
	if err != nil {
		return fmt.Errorf("enqueue campaign delivery: %w", err)
	}
	d.logg.Info(logCtx, "campaign delivery queued")
	return nil
}

// dispatchInline renders and delivers directly from the consumer; a
// failure nacks the message and pub/sub redelivery is the retry.
func (d *Dispatcher) dispatchInline(ctx context.Context, kind enums.EventKind, envelope outbox.PayloadEnvelope, payload interface{}, logCtx context.Context) error {
	event := events.Event{
		Kind:    kind,
		EventID: envelope.EventID,
		Payload: payload,
	}
	if envelope.Actor != nil {
		event.ActorID = envelope.Actor.UserID
	}
	event.Recipients = recipientsFor(payload)
	if len(event.Recipients) == 0 {
		d.logg.Info(logCtx, "event has no recipients to notify")
		return nil
	}

	envelopes, err := d.renderer.Render(ctx, event)
	if err != nil {
		if pkgerrors.As(err).Code() == pkgerrors.CodeGone {
			d.logg.Warn(logCtx, "originator gone; dropping event")
			return nil
		}
		return err
	}

	var errs error
	for _, rendered := range envelopes {
		if _, dispatchErr := d.pipeline.Dispatch(ctx, rendered, nil); dispatchErr != nil {
			errs = multierr.Append(errs, dispatchErr)
		}
	}
	return errs
}

// recipientsFor derives who gets notified for each payload shape.
func recipientsFor(payload interface{}) []uuid.UUID {
	switch typed := payload.(type) {
	case *payloads.MessageSentEvent:
		return []uuid.UUID{typed.RecipientID}
	case *payloads.MessageReadEvent:
		return []uuid.UUID{typed.SenderID}
	case *payloads.PostLikedEvent:
		return []uuid.UUID{typed.AuthorID}
	case *payloads.TagRequestedEvent:
		return []uuid.UUID{typed.TaggedUserID}
	case *payloads.TagDecidedEvent:
		return []uuid.UUID{typed.RequesterID}
	case *payloads.CreatorApplicationDecidedEvent:
		return []uuid.UUID{typed.UserID}
	case *payloads.ReferralEarningEvent:
		return []uuid.UUID{typed.UserID}
	default:
		return nil
	}
}
