package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmarrero/fanlink-backend/api/middleware"
	"github.com/dmarrero/fanlink-backend/internal/inbox"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
)

type testInboxService struct {
	listFn        func(ctx context.Context, params inbox.ListParams) (*inbox.ListResult, error)
	markReadFn    func(ctx context.Context, recipientID, envelopeID uuid.UUID) error
	markAllReadFn func(ctx context.Context, recipientID uuid.UUID) (int64, error)
	unreadFn      func(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

func (s *testInboxService) List(ctx context.Context, params inbox.ListParams) (*inbox.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return &inbox.ListResult{}, nil
}

func (s *testInboxService) MarkRead(ctx context.Context, recipientID, envelopeID uuid.UUID) error {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, recipientID, envelopeID)
	}
	return nil
}

func (s *testInboxService) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if s.markAllReadFn != nil {
		return s.markAllReadFn(ctx, recipientID)
	}
	return 0, nil
}

func (s *testInboxService) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	if s.unreadFn != nil {
		return s.unreadFn(ctx, recipientID)
	}
	return 0, nil
}

func testControllerLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func authedRequest(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestInboxListForwardsQueryParams(t *testing.T) {
	userID := uuid.New()
	var captured inbox.ListParams
	svc := &testInboxService{
		listFn: func(ctx context.Context, params inbox.ListParams) (*inbox.ListResult, error) {
			captured = params
			return &inbox.ListResult{Cursor: "next"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inbox?limit=10&cursor=abc&unreadOnly=true", nil)
	req = authedRequest(req, userID)
	resp := httptest.NewRecorder()
	InboxList(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if captured.RecipientID != userID {
		t.Fatalf("unexpected recipient %s", captured.RecipientID)
	}
	if captured.Limit != 10 || captured.Cursor != "abc" || !captured.UnreadOnly {
		t.Fatalf("unexpected params %+v", captured)
	}
}

func TestInboxListRejectsBadLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/inbox?limit=zero", nil)
	req = authedRequest(req, uuid.New())
	resp := httptest.NewRecorder()
	InboxList(&testInboxService{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestInboxListMissingUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/inbox", nil)
	resp := httptest.NewRecorder()
	InboxList(&testInboxService{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestInboxMarkReadSuccess(t *testing.T) {
	userID := uuid.New()
	envelopeID := uuid.New()
	called := false
	svc := &testInboxService{
		markReadFn: func(ctx context.Context, rid, eid uuid.UUID) error {
			called = true
			if rid != userID {
				t.Fatalf("unexpected recipient %s", rid)
			}
			if eid != envelopeID {
				t.Fatalf("unexpected envelope %s", eid)
			}
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/inbox/"+envelopeID.String()+"/read", nil)
	req = authedRequest(req, userID)
	req = addRouteParam(req, "envelopeId", envelopeID.String())
	resp := httptest.NewRecorder()
	InboxMarkRead(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if !called {
		t.Fatal("expected service called")
	}
}

func TestInboxMarkReadInvalidID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inbox/invalid/read", nil)
	req = authedRequest(req, uuid.New())
	req = addRouteParam(req, "envelopeId", "invalid")
	resp := httptest.NewRecorder()
	InboxMarkRead(&testInboxService{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestInboxMarkAllReadReturnsCount(t *testing.T) {
	userID := uuid.New()
	svc := &testInboxService{
		markAllReadFn: func(ctx context.Context, rid uuid.UUID) (int64, error) {
			if rid != userID {
				t.Fatalf("unexpected recipient %s", rid)
			}
			return 7, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/inbox/read-all", nil)
	req = authedRequest(req, userID)
	resp := httptest.NewRecorder()
	InboxMarkAllRead(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data map[string]float64 `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["updated"] != 7 {
		t.Fatalf("expected updated=7 got %v", envelope.Data["updated"])
	}
}

func TestInboxUnreadCount(t *testing.T) {
	svc := &testInboxService{
		unreadFn: func(ctx context.Context, rid uuid.UUID) (int64, error) {
			return 3, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inbox/unread-count", nil)
	req = authedRequest(req, uuid.New())
	resp := httptest.NewRecorder()
	InboxUnreadCount(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data map[string]float64 `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["unread"] != 3 {
		t.Fatalf("expected unread=3 got %v", envelope.Data["unread"])
	}
}
