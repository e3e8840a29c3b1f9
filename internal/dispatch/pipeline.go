package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/multierr"

	"github.com/dmarrero/fanlink-backend/internal/events"
	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
	pkgerrors "github.com/dmarrero/fanlink-backend/pkg/errors"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
	"github.com/dmarrero/fanlink-backend/pkg/metrics"
	"github.com/dmarrero/fanlink-backend/pkg/realtime"
)

// MailEnqueuer hands mail delivery off to the background queue.
type MailEnqueuer interface {
	EnqueueMail(ctx context.Context, envelope models.Envelope) error
}

// Pipeline delivers one envelope across its channels. Channels are
// independent: one channel failing never rolls back another's success.
type Pipeline struct {
	repo     Repository
	realtime realtime.Publisher
	mail     MailEnqueuer
	metrics  *metrics.DispatchMetrics
	logg     *logger.Logger
}

// NewPipeline wires the dispatch pipeline.
func NewPipeline(repo Repository, rt realtime.Publisher, mail MailEnqueuer, dispatchMetrics *metrics.DispatchMetrics, logg *logger.Logger) (*Pipeline, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "dispatch repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Pipeline{repo: repo, realtime: rt, mail: mail, metrics: dispatchMetrics, logg: logg}, nil
}

// Dispatch persists the envelope, attempts each channel, and records a
// DeliveryAttempt per channel. The returned error aggregates channel
// failures for observability; successful channels stay delivered.
func (p *Pipeline) Dispatch(ctx context.Context, envelope models.Envelope, channels []enums.Channel) ([]models.DeliveryAttempt, error) {
	if len(channels) == 0 {
		channels = events.ChannelsFor(envelope.Kind)
	}

	needsPersist := containsChannel(channels, enums.ChannelPersisted)
	if needsPersist {
		if _, err := p.repo.InsertEnvelope(ctx, &envelope); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist envelope")
		}
	}
	p.metrics.IncRendered(string(envelope.Kind))

	logCtx := p.logg.WithFields(ctx, map[string]any{
		"envelope_id": envelope.ID.String(),
		"event_kind":  envelope.Kind,
		"recipient":   envelope.RecipientID.String(),
	})

	var attempts []models.DeliveryAttempt
	var errs error
	for _, channel := range channels {
		status := enums.DeliverySent
		var lastError *string

		switch channel {
		case enums.ChannelPersisted:
			// Satisfied by the durable insert above.
		case enums.ChannelRealtime:
			if err := p.publishRealtime(ctx, envelope); err != nil {
				status = enums.DeliveryFailed
				msg := err.Error()
				lastError = &msg
				errs = multierr.Append(errs, fmt.Errorf("realtime: %w", err))
			}
		case enums.ChannelMail:
			if err := p.enqueueMail(ctx, envelope); err != nil {
				status = enums.DeliveryFailed
				msg := err.Error()
				lastError = &msg
				errs = multierr.Append(errs, fmt.Errorf("mail: %w", err))
			}
		default:
			status = enums.DeliveryFailed
			msg := fmt.Sprintf("unknown channel %s", channel)
			lastError = &msg
			errs = multierr.Append(errs, pkgerrors.New(pkgerrors.CodeValidation, msg))
		}

		attempt := models.DeliveryAttempt{
			EnvelopeID: envelope.ID,
			Channel:    channel,
			Status:     status,
			LastError:  lastError,
		}
		if err := p.repo.RecordAttempt(ctx, &attempt); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("record %s attempt: %w", channel, err))
		}
		attempts = append(attempts, attempt)
		p.metrics.IncDelivery(string(channel), string(status))

		if status == enums.DeliveryFailed {
			p.logg.Warn(p.logg.WithField(logCtx, "channel", channel), "channel delivery failed")
		}
	}

	return attempts, errs
}

func (p *Pipeline) publishRealtime(ctx context.Context, envelope models.Envelope) error {
	if p.realtime == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "realtime publisher not configured")
	}
	payload, err := json.Marshal(envelopeFrame(envelope))
	if err != nil {
		return fmt.Errorf("marshal envelope frame: %w", err)
	}
	frame := realtime.Frame{Type: string(envelope.Kind), Data: payload}
	if err := p.realtime.PublishToUser(ctx, envelope.RecipientID, frame); err != nil {
		return err
	}
	if events.BroadcastsToPosts(envelope.Kind) {
		if err := p.realtime.PublishPosts(ctx, frame); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) enqueueMail(ctx context.Context, envelope models.Envelope) error {
	if p.mail == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "mail enqueuer not configured")
	}
	return p.mail.EnqueueMail(ctx, envelope)
}

// envelopeFrame is the client-facing rendering of an inbox row.
func envelopeFrame(envelope models.Envelope) map[string]any {
	return map[string]any{
		"id":           envelope.ID.String(),
		"type":         envelope.Kind,
		"recipient_id": envelope.RecipientID.String(),
		"data":         json.RawMessage(envelope.Data),
		"created_at":   envelope.CreatedAt,
		"read_at":      envelope.ReadAt,
	}
}

func containsChannel(channels []enums.Channel, target enums.Channel) bool {
	for _, channel := range channels {
		if channel == target {
			return true
		}
	}
	return false
}
