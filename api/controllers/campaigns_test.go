package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dmarrero/fanlink-backend/internal/campaigns"
	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
)

type testCampaignsService struct {
	createFn   func(ctx context.Context, params campaigns.CreateParams) (*models.Campaign, error)
	getFn      func(ctx context.Context, authorID, id uuid.UUID) (*models.Campaign, error)
	listFn     func(ctx context.Context, authorID uuid.UUID) ([]models.Campaign, error)
	updateFn   func(ctx context.Context, authorID, id uuid.UUID, params campaigns.UpdateParams) (*models.Campaign, error)
	scheduleFn func(ctx context.Context, authorID, id uuid.UUID, scheduledFor time.Time) error
	cancelFn   func(ctx context.Context, authorID, id uuid.UUID) error
	pauseFn    func(ctx context.Context, authorID, id uuid.UUID) (int64, error)
}

func (s *testCampaignsService) Create(ctx context.Context, params campaigns.CreateParams) (*models.Campaign, error) {
	if s.createFn != nil {
		return s.createFn(ctx, params)
	}
	return &models.Campaign{}, nil
}

func (s *testCampaignsService) Get(ctx context.Context, authorID, id uuid.UUID) (*models.Campaign, error) {
	if s.getFn != nil {
		return s.getFn(ctx, authorID, id)
	}
	return &models.Campaign{}, nil
}

func (s *testCampaignsService) List(ctx context.Context, authorID uuid.UUID) ([]models.Campaign, error) {
	if s.listFn != nil {
		return s.listFn(ctx, authorID)
	}
	return nil, nil
}

func (s *testCampaignsService) Update(ctx context.Context, authorID, id uuid.UUID, params campaigns.UpdateParams) (*models.Campaign, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, authorID, id, params)
	}
	return &models.Campaign{}, nil
}

func (s *testCampaignsService) Schedule(ctx context.Context, authorID, id uuid.UUID, scheduledFor time.Time) error {
	if s.scheduleFn != nil {
		return s.scheduleFn(ctx, authorID, id, scheduledFor)
	}
	return nil
}

func (s *testCampaignsService) Cancel(ctx context.Context, authorID, id uuid.UUID) error {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, authorID, id)
	}
	return nil
}

func (s *testCampaignsService) PauseRemaining(ctx context.Context, authorID, id uuid.UUID) (int64, error) {
	if s.pauseFn != nil {
		return s.pauseFn(ctx, authorID, id)
	}
	return 0, nil
}

func TestCampaignCreateParsesPayload(t *testing.T) {
	authorID := uuid.New()
	var captured campaigns.CreateParams
	svc := &testCampaignsService{
		createFn: func(ctx context.Context, params campaigns.CreateParams) (*models.Campaign, error) {
			captured = params
			return &models.Campaign{ID: uuid.New(), AuthorID: params.AuthorID}, nil
		},
	}

	body := `{"content":"new drop tonight","delivery_mode":"scheduled","scheduled_for":"2026-09-01T18:00:00Z","recur_every":"24h"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/campaigns", strings.NewReader(body))
	req = authedRequest(req, authorID)
	resp := httptest.NewRecorder()
	CampaignCreate(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if captured.AuthorID != authorID {
		t.Fatalf("unexpected author %s", captured.AuthorID)
	}
	if captured.DeliveryMode != enums.DeliveryScheduled {
		t.Fatalf("unexpected mode %s", captured.DeliveryMode)
	}
	if captured.ScheduledFor == nil || !captured.ScheduledFor.Equal(time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected scheduled_for %v", captured.ScheduledFor)
	}
	if captured.RecurEvery == nil || *captured.RecurEvery != 24*time.Hour {
		t.Fatalf("unexpected recur_every %v", captured.RecurEvery)
	}
}

func TestCampaignCreateRejectsBadDuration(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/campaigns", strings.NewReader(`{"content":"x","delivery_mode":"recurring","recur_every":"daily"}`))
	req = authedRequest(req, uuid.New())
	resp := httptest.NewRecorder()
	CampaignCreate(&testCampaignsService{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCampaignCreateMissingUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/campaigns", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	CampaignCreate(&testCampaignsService{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCampaignGetInvalidID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/campaigns/invalid", nil)
	req = authedRequest(req, uuid.New())
	req = addRouteParam(req, "campaignId", "invalid")
	resp := httptest.NewRecorder()
	CampaignGet(&testCampaignsService{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCampaignScheduleRequiresTimestamp(t *testing.T) {
	campaignID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/campaigns/"+campaignID.String()+"/schedule", strings.NewReader(`{}`))
	req = authedRequest(req, uuid.New())
	req = addRouteParam(req, "campaignId", campaignID.String())
	resp := httptest.NewRecorder()
	CampaignSchedule(&testCampaignsService{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCampaignScheduleSuccess(t *testing.T) {
	authorID := uuid.New()
	campaignID := uuid.New()
	when := time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)
	called := false
	svc := &testCampaignsService{
		scheduleFn: func(ctx context.Context, aid, cid uuid.UUID, scheduledFor time.Time) error {
			called = true
			if aid != authorID || cid != campaignID {
				t.Fatalf("unexpected args %s %s", aid, cid)
			}
			if !scheduledFor.Equal(when) {
				t.Fatalf("unexpected time %v", scheduledFor)
			}
			return nil
		},
	}

	body := `{"scheduled_for":"2026-09-02T09:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/campaigns/"+campaignID.String()+"/schedule", strings.NewReader(body))
	req = authedRequest(req, authorID)
	req = addRouteParam(req, "campaignId", campaignID.String())
	resp := httptest.NewRecorder()
	CampaignSchedule(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if !called {
		t.Fatal("expected service called")
	}
}

func TestCampaignPauseReturnsSkippedCount(t *testing.T) {
	campaignID := uuid.New()
	svc := &testCampaignsService{
		pauseFn: func(ctx context.Context, aid, cid uuid.UUID) (int64, error) {
			return 12, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/campaigns/"+campaignID.String()+"/pause", nil)
	req = authedRequest(req, uuid.New())
	req = addRouteParam(req, "campaignId", campaignID.String())
	resp := httptest.NewRecorder()
	CampaignPauseRemaining(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data map[string]float64 `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["skipped"] != 12 {
		t.Fatalf("expected skipped=12 got %v", envelope.Data["skipped"])
	}
}
