package messages

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmarrero/fanlink-backend/internal/events"
	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
	pkgerrors "github.com/dmarrero/fanlink-backend/pkg/errors"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
	"github.com/dmarrero/fanlink-backend/pkg/outbox/payloads"
)

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// EventRaiser triggers dispatch for a domain event.
type EventRaiser interface {
	Raise(ctx context.Context, event events.Event, params events.RaiseParams) error
}

// SendParams describe one direct message.
type SendParams struct {
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	Body        string
	MediaRefs   []string
	// ViewerIDs grant additional users visibility of gated content.
	ViewerIDs []uuid.UUID
}

// Service owns the chat write path. Sends are transactional; the realtime
// echo happens synchronously after commit so the sender sees delivery
// within the same request.
type Service struct {
	tx     TxRunner
	repo   Repository
	raiser EventRaiser
	logg   *logger.Logger
}

// NewService wires the messages service.
func NewService(tx TxRunner, repo Repository, raiser EventRaiser, logg *logger.Logger) (*Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tx runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "repository required")
	}
	if raiser == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "event raiser required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Service{tx: tx, repo: repo, raiser: raiser, logg: logg}, nil
}

// Send persists the message with its assets atomically, then dispatches the
// new-message event inline. Delivery trouble is recorded per channel and
// never undoes the persisted message.
func (s *Service) Send(ctx context.Context, params SendParams) (*models.Message, error) {
	if params.SenderID == uuid.Nil || params.RecipientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sender and recipient are required")
	}
	if params.SenderID == params.RecipientID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot message yourself")
	}
	if strings.TrimSpace(params.Body) == "" && len(params.MediaRefs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message needs a body or media")
	}

	msg := &models.Message{
		SenderID:    params.SenderID,
		RecipientID: params.RecipientID,
		Body:        params.Body,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.CreateWithAssets(tx, msg, params.MediaRefs, params.ViewerIDs)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create message")
	}

	event := events.Event{
		Kind:       enums.EventNewMessage,
		ActorID:    params.SenderID,
		Recipients: []uuid.UUID{params.RecipientID},
		Payload: &payloads.MessageSentEvent{
			MessageID:   msg.ID,
			SenderID:    params.SenderID,
			RecipientID: params.RecipientID,
		},
	}
	if raiseErr := s.raiser.Raise(ctx, event, events.RaiseParams{}); raiseErr != nil {
		// The message row is the source of truth; channel outcomes live
		// in delivery_attempts for the sender-facing delivery status.
		s.logg.Error(ctx, "new message dispatch incomplete", raiseErr)
	}
	return msg, nil
}

// MarkRead sets the read receipt and echoes it to the sender's realtime
// channel. Reading an already-read message is a no-op.
func (s *Service) MarkRead(ctx context.Context, messageID, readerID uuid.UUID) error {
	msg, err := s.repo.Get(ctx, messageID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load message")
	}
	if msg == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "message not found")
	}
	if msg.RecipientID != readerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the recipient can mark a message read")
	}

	updated, err := s.repo.MarkRead(ctx, messageID, readerID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark message read")
	}
	if !updated {
		return nil
	}

	event := events.Event{
		Kind:       enums.EventMessageRead,
		ActorID:    readerID,
		Recipients: []uuid.UUID{msg.SenderID},
		Payload: &payloads.MessageReadEvent{
			MessageID: messageID,
			ReaderID:  readerID,
			SenderID:  msg.SenderID,
		},
	}
	if raiseErr := s.raiser.Raise(ctx, event, events.RaiseParams{}); raiseErr != nil {
		s.logg.Error(ctx, "read receipt dispatch incomplete", raiseErr)
	}
	return nil
}

// ListConversation pages through the conversation between the caller and
// the other user, newest first.
func (s *Service) ListConversation(ctx context.Context, userID, otherID uuid.UUID, params ListParams) ([]models.Message, error) {
	if userID == uuid.Nil || otherID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "both conversation members are required")
	}
	msgs, err := s.repo.ListConversation(ctx, userID, otherID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list conversation")
	}
	return msgs, nil
}
