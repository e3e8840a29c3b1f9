package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmarrero/fanlink-backend/internal/users"
	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
	"github.com/dmarrero/fanlink-backend/pkg/mailer"
)

// MailPayload carries everything the mail job needs so the handler does not
// depend on the envelope row still existing unchanged.
type MailPayload struct {
	EnvelopeID  uuid.UUID       `json:"envelope_id"`
	RecipientID uuid.UUID       `json:"recipient_id"`
	Kind        enums.EventKind `json:"kind"`
	Data        json.RawMessage `json:"data"`
}

// MailEnqueuer queues a mail_delivery job for an envelope. It is the mail
// channel of the dispatch pipeline.
type MailEnqueuer struct {
	repo Repository
}

// NewMailEnqueuer builds the enqueuer.
func NewMailEnqueuer(repo Repository) (*MailEnqueuer, error) {
	if repo == nil {
		return nil, errors.New("jobs repository is required")
	}
	return &MailEnqueuer{repo: repo}, nil
}

// EnqueueMail queues the delivery. Sending happens out of band so provider
// latency never sits on the dispatch path.
func (e *MailEnqueuer) EnqueueMail(ctx context.Context, envelope models.Envelope) error {
	payload := MailPayload{
		EnvelopeID:  envelope.ID,
		RecipientID: envelope.RecipientID,
		Kind:        envelope.Kind,
		Data:        envelope.Data,
	}
	_, err := e.repo.Enqueue(ctx, nil, EnqueueParams{
		Kind:    enums.JobMailDelivery,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("enqueue mail job: %w", err)
	}
	return nil
}

// UserSource resolves recipients to their account records.
type UserSource interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// MailHandler sends queued mail through the provider.
type MailHandler struct {
	users  UserSource
	sender mailer.Sender
}

// NewMailHandler builds the mail_delivery handler.
func NewMailHandler(source UserSource, sender mailer.Sender) (*MailHandler, error) {
	if source == nil {
		return nil, errors.New("user source is required")
	}
	if sender == nil {
		return nil, errors.New("mail sender is required")
	}
	return &MailHandler{users: source, sender: sender}, nil
}

func (h *MailHandler) Kind() enums.JobKind {
	return enums.JobMailDelivery
}

// LockParts scope the lock to the envelope so a duplicate job for the same
// notification cannot double-send.
func (h *MailHandler) LockParts(job models.Job) []string {
	var payload MailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil || payload.EnvelopeID == uuid.Nil {
		return []string{"mail", job.ID.String()}
	}
	return []string{"mail", payload.EnvelopeID.String()}
}

func (h *MailHandler) Handle(ctx context.Context, job models.Job) error {
	var payload MailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return &NonRetryableError{Err: fmt.Errorf("decode mail payload: %w", err)}
	}

	recipient, err := h.users.Get(ctx, payload.RecipientID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}
	if users.IsTombstone(recipient) || recipient.Email == "" {
		return &NonRetryableError{Err: fmt.Errorf("recipient %s has no deliverable address", payload.RecipientID)}
	}

	mail := mailer.Mail{
		To:      recipient.Email,
		Subject: mailSubject(payload.Kind),
		Body:    mailBody(payload),
	}
	if err := h.sender.Send(ctx, mail); err != nil {
		var permanent mailer.PermanentError
		if errors.As(err, &permanent) {
			return &NonRetryableError{Err: err}
		}
		return err
	}
	return nil
}

var subjectByKind = map[enums.EventKind]string{
	enums.EventNewMessage:      "You have a new message",
	enums.EventNewFollower:     "You have a new follower",
	enums.EventCreatorApproved: "Your creator application was approved",
	enums.EventCreatorRejected: "An update on your creator application",
	enums.EventReferralEarning: "You earned a referral reward",
	enums.EventCampaignMessage: "A creator you follow sent you a message",
}

func mailSubject(kind enums.EventKind) string {
	if subject, ok := subjectByKind[kind]; ok {
		return subject
	}
	return "You have a new notification"
}

// mailBody pulls the human-readable line out of the rendered envelope data.
func mailBody(payload MailPayload) string {
	var data struct {
		Body        string `json:"body"`
		Message     string `json:"message"`
		PostExcerpt string `json:"post_excerpt"`
	}
	if err := json.Unmarshal(payload.Data, &data); err == nil {
		if data.Body != "" {
			return data.Body
		}
		if data.Message != "" {
			return data.Message
		}
		if data.PostExcerpt != "" {
			return data.PostExcerpt
		}
	}
	return "Open the app to see what's new."
}
