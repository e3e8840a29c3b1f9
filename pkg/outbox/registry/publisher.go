package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dmarrero/fanlink-backend/pkg/config"
	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
	"github.com/dmarrero/fanlink-backend/pkg/outbox"
	"github.com/dmarrero/fanlink-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

// EventDescriptor links an event kind to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventKind      enums.EventKind
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event kind to its descriptor.
type EventRegistry struct {
	entries map[enums.EventKind]EventDescriptor
}

// NonRetryableError signals the publisher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic name.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.EventsTopic == "" {
		return nil, fmt.Errorf("events topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.EventKind]EventDescriptor)}
	topic := cfg.EventsTopic

	for _, desc := range []EventDescriptor{
		{
			EventKind:      enums.EventNewMessage,
			AggregateType:  enums.AggregateMessage,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.MessageSentEvent{} },
		},
		{
			EventKind:      enums.EventMessageRead,
			AggregateType:  enums.AggregateMessage,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.MessageReadEvent{} },
		},
		{
			EventKind:      enums.EventNewFollower,
			AggregateType:  enums.AggregateUser,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.FollowCreatedEvent{} },
		},
		{
			EventKind:      enums.EventNewLike,
			AggregateType:  enums.AggregatePost,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.PostLikedEvent{} },
		},
		{
			EventKind:      enums.EventTagRequest,
			AggregateType:  enums.AggregateTag,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.TagRequestedEvent{} },
		},
		{
			EventKind:      enums.EventTagApproved,
			AggregateType:  enums.AggregateTag,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.TagDecidedEvent{} },
		},
		{
			EventKind:      enums.EventTagRejected,
			AggregateType:  enums.AggregateTag,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.TagDecidedEvent{} },
		},
		{
			EventKind:      enums.EventCreatorApproved,
			AggregateType:  enums.AggregateUser,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.CreatorApplicationDecidedEvent{} },
		},
		{
			EventKind:      enums.EventCreatorRejected,
			AggregateType:  enums.AggregateUser,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.CreatorApplicationDecidedEvent{} },
		},
		{
			EventKind:      enums.EventReferralEarning,
			AggregateType:  enums.AggregateUser,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.ReferralEarningEvent{} },
		},
		{
			EventKind:      enums.EventCampaignMessage,
			AggregateType:  enums.AggregateCampaign,
			Topic:          topic,
			PayloadFactory: func() interface{} { return &payloads.CampaignMessageEvent{} },
		},
	} {
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventKind] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventKind]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event kind %s", event.EventKind))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventKind))
	}

	payload := desc.PayloadFactory()
	if payload == nil {
		return nil, NewNonRetryableError(fmt.Errorf("payload factory not configured for %s", event.EventKind))
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventKind, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
