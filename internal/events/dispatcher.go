package events

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
	pkgerrors "github.com/dmarrero/fanlink-backend/pkg/errors"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
	"github.com/dmarrero/fanlink-backend/pkg/outbox"
)

// Renderer turns an event into per-recipient envelopes.
type Renderer interface {
	Render(ctx context.Context, event Event) ([]models.Envelope, error)
}

// PipelineRunner delivers one envelope across its channels.
type PipelineRunner interface {
	Dispatch(ctx context.Context, envelope models.Envelope, channels []enums.Channel) ([]models.DeliveryAttempt, error)
}

// OutboxEmitter queues deferred events in the caller's transaction.
type OutboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RaiseParams carry the transactional and aggregate context for one event.
type RaiseParams struct {
	// Tx is required for deferred kinds: the outbox row commits or rolls
	// back with the caller's domain write.
	Tx            *gorm.DB
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	// Once suppresses a duplicate emission while an identical unpublished
	// outbox row exists.
	Once bool
}

// Dispatcher is the single entry point domain services call to trigger
// dispatch. Latency-sensitive kinds render and deliver synchronously in
// the request path; everything else rides the transactional outbox.
type Dispatcher struct {
	renderer Renderer
	pipeline PipelineRunner
	emitter  OutboxEmitter
	logg     *logger.Logger
}

// NewDispatcher wires the dispatcher.
func NewDispatcher(renderer Renderer, pipeline PipelineRunner, emitter OutboxEmitter, logg *logger.Logger) (*Dispatcher, error) {
	if renderer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "renderer required")
	}
	if pipeline == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "pipeline required")
	}
	if emitter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Dispatcher{renderer: renderer, pipeline: pipeline, emitter: emitter, logg: logg}, nil
}

// Raise triggers dispatch for one event.
func (d *Dispatcher) Raise(ctx context.Context, event Event, params RaiseParams) error {
	if !event.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid event kind")
	}
	if event.Kind.LatencySensitive() {
		return d.raiseSync(ctx, event)
	}
	return d.raiseDeferred(ctx, event, params)
}

// raiseSync renders and delivers in the request path. A recipient whose
// render failed does not block delivery to the others.
func (d *Dispatcher) raiseSync(ctx context.Context, event Event) error {
	envelopes, renderErr := d.renderer.Render(ctx, event)
	errs := renderErr
	for _, env := range envelopes {
		if _, err := d.pipeline.Dispatch(ctx, env, nil); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		d.logg.Error(ctx, "synchronous dispatch incomplete", errs)
	}
	return errs
}

func (d *Dispatcher) raiseDeferred(ctx context.Context, event Event, params RaiseParams) error {
	if params.Tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "deferred events require a transaction")
	}
	domainEvent := outbox.DomainEvent{
		EventKind:     event.Kind,
		AggregateType: params.AggregateType,
		AggregateID:   params.AggregateID,
		Data:          event.Payload,
	}
	if event.ActorID != uuid.Nil {
		domainEvent.Actor = &outbox.ActorRef{UserID: event.ActorID}
	}
	if params.Once {
		return d.emitter.EmitIfNotExists(ctx, params.Tx, domainEvent)
	}
	return d.emitter.Emit(ctx, params.Tx, domainEvent)
}
