package messages

import (
	"context"
	"errors"
	"io"
	"testing"
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

type fakeTxRunner struct {
	err error
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(&gorm.DB{})
}

type createCall struct {
	msg       *models.Message
	mediaRefs []string
	viewerIDs []uuid.UUID
}

type fakeMessagesRepo struct {
	creates   []createCall
	createErr error
	message   *models.Message
	getErr    error
	marked    []uuid.UUID
	markedOK  bool
	listed    []models.Message
}

func (f *fakeMessagesRepo) CreateWithAssets(tx *gorm.DB, msg *models.Message, mediaRefs []string, viewerIDs []uuid.UUID) error {
	if f.createErr != nil {
		return f.createErr
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	f.creates = append(f.creates, createCall{msg: msg, mediaRefs: mediaRefs, viewerIDs: viewerIDs})
	return nil
}

func (f *fakeMessagesRepo) Get(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.message, nil
}

func (f *fakeMessagesRepo) ListConversation(ctx context.Context, userA, userB uuid.UUID, params ListParams) ([]models.Message, error) {
	return f.listed, nil
}

func (f *fakeMessagesRepo) MarkRead(ctx context.Context, id, readerID uuid.UUID, readAt time.Time) (bool, error) {
	f.marked = append(f.marked, id)
	return f.markedOK, nil
}

type fakeRaiser struct {
	events []events.Event
	err    error
}

func (f *fakeRaiser) Raise(ctx context.Context, event events.Event, params events.RaiseParams) error {
	f.events = append(f.events, event)
	return f.err
}

func newTestService(t *testing.T, repo *fakeMessagesRepo, raiser *fakeRaiser) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(&fakeTxRunner{}, repo, raiser, logg)
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return svc
}

func TestSendCreatesMessageAndRaisesEvent(t *testing.T) {
	repo := &fakeMessagesRepo{}
	raiser := &fakeRaiser{}
	svc := newTestService(t, repo, raiser)

	sender := uuid.New()
	recipient := uuid.New()
	viewer := uuid.New()
	msg, err := svc.Send(context.Background(), SendParams{
		SenderID:    sender,
		RecipientID: recipient,
		Body:        "hey there",
		MediaRefs:   []string{"media/abc"},
		ViewerIDs:   []uuid.UUID{viewer},
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if msg.ID == uuid.Nil {
		t.Fatal("expected message id assigned")
	}

	if len(repo.creates) != 1 {
		t.Fatalf("expected 1 create, got %d", len(repo.creates))
	}
	call := repo.creates[0]
	if len(call.mediaRefs) != 1 || len(call.viewerIDs) != 1 {
		t.Fatalf("media and viewers must be written with the message: %+v", call)
	}

	if len(raiser.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(raiser.events))
	}
	event := raiser.events[0]
	if event.Kind != enums.EventNewMessage {
		t.Fatalf("wrong kind: %s", event.Kind)
	}
	if len(event.Recipients) != 1 || event.Recipients[0] != recipient {
		t.Fatalf("wrong recipients: %v", event.Recipients)
	}
	payload, ok := event.Payload.(*payloads.MessageSentEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", event.Payload)
	}
	if payload.MessageID != msg.ID {
		t.Fatal("payload must reference the created message")
	}
}

func TestSendRejectsInvalidInput(t *testing.T) {
	svc := newTestService(t, &fakeMessagesRepo{}, &fakeRaiser{})
	userID := uuid.New()

	cases := []SendParams{
		{SenderID: userID, RecipientID: userID, Body: "self"},
		{SenderID: userID, RecipientID: uuid.New(), Body: "   "},
		{RecipientID: uuid.New(), Body: "no sender"},
	}
	for _, params := range cases {
		if _, err := svc.Send(context.Background(), params); err == nil {
			t.Fatalf("expected validation error for %+v", params)
		}
	}
}

func TestSendSurvivesDispatchFailure(t *testing.T) {
	repo := &fakeMessagesRepo{}
	raiser := &fakeRaiser{err: errors.New("realtime down")}
	svc := newTestService(t, repo, raiser)

	msg, err := svc.Send(context.Background(), SendParams{
		SenderID:    uuid.New(),
		RecipientID: uuid.New(),
		Body:        "hello",
	})
	if err != nil {
		t.Fatalf("send must not fail on channel trouble: %v", err)
	}
	if msg == nil {
		t.Fatal("expected persisted message returned")
	}
}

func TestMarkReadRaisesReceiptToSender(t *testing.T) {
	sender := uuid.New()
	reader := uuid.New()
	messageID := uuid.New()
	repo := &fakeMessagesRepo{
		message:  &models.Message{ID: messageID, SenderID: sender, RecipientID: reader},
		markedOK: true,
	}
	raiser := &fakeRaiser{}
	svc := newTestService(t, repo, raiser)

	if err := svc.MarkRead(context.Background(), messageID, reader); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}

	if len(raiser.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(raiser.events))
	}
	event := raiser.events[0]
	if event.Kind != enums.EventMessageRead {
		t.Fatalf("wrong kind: %s", event.Kind)
	}
	if len(event.Recipients) != 1 || event.Recipients[0] != sender {
		t.Fatalf("read receipt must go to the sender, got %v", event.Recipients)
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	reader := uuid.New()
	messageID := uuid.New()
	readAt := time.Now()
	repo := &fakeMessagesRepo{
		message:  &models.Message{ID: messageID, SenderID: uuid.New(), RecipientID: reader, ReadAt: &readAt},
		markedOK: false,
	}
	raiser := &fakeRaiser{}
	svc := newTestService(t, repo, raiser)

	if err := svc.MarkRead(context.Background(), messageID, reader); err != nil {
		t.Fatalf("second mark read must no-op: %v", err)
	}
	if len(raiser.events) != 0 {
		t.Fatal("no event expected for an already-read message")
	}
}

func TestMarkReadRejectsNonRecipient(t *testing.T) {
	messageID := uuid.New()
	repo := &fakeMessagesRepo{
		message: &models.Message{ID: messageID, SenderID: uuid.New(), RecipientID: uuid.New()},
	}
	svc := newTestService(t, repo, &fakeRaiser{})

	err := svc.MarkRead(context.Background(), messageID, uuid.New())
	if err == nil {
		t.Fatal("expected forbidden error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden code, got %v", err)
	}
}

func TestMarkReadMissingMessage(t *testing.T) {
	svc := newTestService(t, &fakeMessagesRepo{}, &fakeRaiser{})

	err := svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
