package messages

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/dmarrero/fanlink-backend/internal/jobs"
	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
	pkgerrors "github.com/dmarrero/fanlink-backend/pkg/errors"
)

type fakeMessageSender struct {
	params []SendParams
	err    error
}

func (f *fakeMessageSender) Send(ctx context.Context, params SendParams) (*models.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.params = append(f.params, params)
	return &models.Message{ID: uuid.New()}, nil
}

func automatedJob(t *testing.T, payload AutomatedMessagePayload) models.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return models.Job{ID: uuid.New(), Kind: enums.JobAutomatedMessage, Payload: raw}
}

func TestAutomatedMessageHandlerSends(t *testing.T) {
	sender := &fakeMessageSender{}
	handler, err := NewAutomatedMessageHandler(sender)
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	payload := AutomatedMessagePayload{
		SenderID:    uuid.New(),
		RecipientID: uuid.New(),
		Body:        "thanks for following!",
		MediaRefs:   []string{"media/welcome"},
	}
	if err := handler.Handle(context.Background(), automatedJob(t, payload)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	if len(sender.params) != 1 {
		t.Fatalf("expected 1 send, got %d", len(sender.params))
	}
	sent := sender.params[0]
	if sent.SenderID != payload.SenderID || sent.RecipientID != payload.RecipientID {
		t.Fatalf("wrong parties: %+v", sent)
	}
	if sent.Body != payload.Body || len(sent.MediaRefs) != 1 {
		t.Fatalf("payload not carried through: %+v", sent)
	}
}

func TestAutomatedMessageHandlerLockParts(t *testing.T) {
	handler, err := NewAutomatedMessageHandler(&fakeMessageSender{})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	payload := AutomatedMessagePayload{SenderID: uuid.New(), RecipientID: uuid.New(), Body: "hi"}
	job := automatedJob(t, payload)
	parts := handler.LockParts(job)
	want := []string{"notify-job", payload.SenderID.String(), payload.RecipientID.String()}
	if len(parts) != 3 || parts[0] != want[0] || parts[1] != want[1] || parts[2] != want[2] {
		t.Fatalf("unexpected lock parts: %v", parts)
	}
}

func TestAutomatedMessageHandlerErrorClassification(t *testing.T) {
	var nonRetryable *jobs.NonRetryableError

	badPayload, err := NewAutomatedMessageHandler(&fakeMessageSender{})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	job := models.Job{ID: uuid.New(), Kind: enums.JobAutomatedMessage, Payload: []byte("not-json")}
	if handleErr := badPayload.Handle(context.Background(), job); !errors.As(handleErr, &nonRetryable) {
		t.Fatalf("expected non-retryable for broken payload, got %v", handleErr)
	}

	invalid, err := NewAutomatedMessageHandler(&fakeMessageSender{
		err: pkgerrors.New(pkgerrors.CodeValidation, "cannot message yourself"),
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	payload := AutomatedMessagePayload{SenderID: uuid.New(), RecipientID: uuid.New(), Body: "hi"}
	if handleErr := invalid.Handle(context.Background(), automatedJob(t, payload)); !errors.As(handleErr, &nonRetryable) {
		t.Fatalf("expected non-retryable for validation failure, got %v", handleErr)
	}

	transient, err := NewAutomatedMessageHandler(&fakeMessageSender{err: errors.New("db timeout")})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	handleErr := transient.Handle(context.Background(), automatedJob(t, payload))
	if handleErr == nil {
		t.Fatal("expected error")
	}
	if errors.As(handleErr, &nonRetryable) {
		t.Fatalf("db trouble must stay retryable, got %v", handleErr)
	}
}
