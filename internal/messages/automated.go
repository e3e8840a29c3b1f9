package messages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmarrero/fanlink-backend/internal/jobs"
	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
	pkgerrors "github.com/dmarrero/fanlink-backend/pkg/errors"
)

// AutomatedMessagePayload is the queued form of a triggered message
// (welcome-on-follow, thanks-on-tip and similar templates).
type AutomatedMessagePayload struct {
	SenderID    uuid.UUID   `json:"sender_id"`
	RecipientID uuid.UUID   `json:"recipient_id"`
	Body        string      `json:"body"`
	MediaRefs   []string    `json:"media_refs,omitempty"`
	ViewerIDs   []uuid.UUID `json:"viewer_ids,omitempty"`
}

// MessageSender is the slice of Service the handler needs.
type MessageSender interface {
	Send(ctx context.Context, params SendParams) (*models.Message, error)
}

// AutomatedMessageHandler delivers queued automated messages. The send is
// one transaction, so a retry after partial failure re-runs from scratch
// without leaving duplicate media or permission rows.
type AutomatedMessageHandler struct {
	sender MessageSender
}

// NewAutomatedMessageHandler builds the handler.
func NewAutomatedMessageHandler(sender MessageSender) (*AutomatedMessageHandler, error) {
	if sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "message sender required")
	}
	return &AutomatedMessageHandler{sender: sender}, nil
}

func (h *AutomatedMessageHandler) Kind() enums.JobKind {
	return enums.JobAutomatedMessage
}

// LockParts key the lock on the sender/recipient pair so two concurrently
// scheduled copies of the same trigger never both send.
func (h *AutomatedMessageHandler) LockParts(job models.Job) []string {
	var payload AutomatedMessagePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return []string{"notify-job", job.ID.String()}
	}
	return []string{"notify-job", payload.SenderID.String(), payload.RecipientID.String()}
}

func (h *AutomatedMessageHandler) Handle(ctx context.Context, job models.Job) error {
	var payload AutomatedMessagePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return &jobs.NonRetryableError{Err: fmt.Errorf("decode automated message payload: %w", err)}
	}

	_, err := h.sender.Send(ctx, SendParams{
		SenderID:    payload.SenderID,
		RecipientID: payload.RecipientID,
		Body:        payload.Body,
		MediaRefs:   payload.MediaRefs,
		ViewerIDs:   payload.ViewerIDs,
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeValidation {
			return &jobs.NonRetryableError{Err: err}
		}
		return err
	}
	return nil
}
