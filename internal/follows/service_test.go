package follows

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/dmarrero/fanlink-backend/internal/events"
	"github.com/dmarrero/fanlink-backend/internal/jobs"
	"github.com/dmarrero/fanlink-backend/pkg/config"
	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
	pkgerrors "github.com/dmarrero/fanlink-backend/pkg/errors"
	"github.com/dmarrero/fanlink-backend/pkg/lock"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
)

type fakeTxRunner struct{}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeFollowsRepo struct {
	inserted [][2]uuid.UUID
	exists   bool
	deleted  [][2]uuid.UUID
}

func (f *fakeFollowsRepo) Insert(tx *gorm.DB, followerID, followedID uuid.UUID) (bool, error) {
	if f.exists {
		return false, nil
	}
	f.inserted = append(f.inserted, [2]uuid.UUID{followerID, followedID})
	f.exists = true
	return true, nil
}

func (f *fakeFollowsRepo) Delete(ctx context.Context, followerID, followedID uuid.UUID) (bool, error) {
	f.deleted = append(f.deleted, [2]uuid.UUID{followerID, followedID})
	existed := f.exists
	f.exists = false
	return existed, nil
}

func (f *fakeFollowsRepo) Exists(ctx context.Context, followerID, followedID uuid.UUID) (bool, error) {
	return f.exists, nil
}

func (f *fakeFollowsRepo) ListFollowerIDs(ctx context.Context, followedID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

type fakeRaiser struct {
	events []events.Event
	params []events.RaiseParams
}

func (f *fakeRaiser) Raise(ctx context.Context, event events.Event, params events.RaiseParams) error {
	f.events = append(f.events, event)
	f.params = append(f.params, params)
	return nil
}

type fakeEnqueuer struct {
	enqueued []jobs.EnqueueParams
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, tx *gorm.DB, params jobs.EnqueueParams) (*models.Job, error) {
	f.enqueued = append(f.enqueued, params)
	return &models.Job{ID: uuid.New(), Kind: params.Kind}, nil
}

type fakeLockStore struct {
	values map[string]string
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{values: make(map[string]string)}
}

func (f *fakeLockStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := f.values[key]; exists {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeLockStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return value, nil
}

func (f *fakeLockStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeLockStore) LockKey(parts ...string) string {
	return "fl:lock:" + strings.Join(parts, ":")
}

func newTestFollowsService(t *testing.T, repo Repository, raiser *fakeRaiser, enqueuer *fakeEnqueuer, store *fakeLockStore) *Service {
	t.Helper()
	locks, err := lock.NewManager(store, 30*time.Second)
	if err != nil {
		t.Fatalf("failed to build lock manager: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	cfg := config.LocksConfig{FollowTTL: 15 * time.Second, NotifyJobTTL: 30 * time.Second}
	svc, err := NewService(&fakeTxRunner{}, repo, raiser, enqueuer, locks, cfg, logg)
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return svc
}

func TestFollowCreatesRelationshipAndRaisesEvent(t *testing.T) {
	repo := &fakeFollowsRepo{}
	raiser := &fakeRaiser{}
	enqueuer := &fakeEnqueuer{}
	svc := newTestFollowsService(t, repo, raiser, enqueuer, newFakeLockStore())

	follower := uuid.New()
	followed := uuid.New()
	created, err := svc.Follow(context.Background(), FollowParams{FollowerID: follower, FollowedID: followed})
	if err != nil {
		t.Fatalf("follow failed: %v", err)
	}
	if !created {
		t.Fatal("expected relationship created")
	}

	if len(raiser.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(raiser.events))
	}
	if raiser.events[0].Kind != enums.EventNewFollower {
		t.Fatalf("wrong kind: %s", raiser.events[0].Kind)
	}
	if !raiser.params[0].Once {
		t.Fatal("follow notification must emit once per unpublished duplicate")
	}
	if raiser.params[0].AggregateID != followed {
		t.Fatalf("aggregate must be the followed user, got %s", raiser.params[0].AggregateID)
	}
	if len(enqueuer.enqueued) != 0 {
		t.Fatal("no welcome message configured; nothing should be queued")
	}
}

func TestFollowDoubleClickCreatesOneFollow(t *testing.T) {
	repo := &fakeFollowsRepo{}
	raiser := &fakeRaiser{}
	store := newFakeLockStore()
	svc := newTestFollowsService(t, repo, raiser, &fakeEnqueuer{}, store)

	follower := uuid.New()
	followed := uuid.New()

	// Simulate the second click arriving while the first holds the lock.
	store.values["fl:lock:follow:"+follower.String()+":"+followed.String()] = "first-click"
	_, err := svc.Follow(context.Background(), FollowParams{FollowerID: follower, FollowedID: followed})
	if !lock.IsHeld(err) {
		t.Fatalf("expected LockHeld, got %v", err)
	}
	if len(repo.inserted) != 0 {
		t.Fatal("locked follow must not write")
	}

	delete(store.values, "fl:lock:follow:"+follower.String()+":"+followed.String())
	created, err := svc.Follow(context.Background(), FollowParams{FollowerID: follower, FollowedID: followed})
	if err != nil || !created {
		t.Fatalf("first logical follow should succeed: created=%v err=%v", created, err)
	}

	// A later repeat is an idempotent no-op, no second notification.
	created, err = svc.Follow(context.Background(), FollowParams{FollowerID: follower, FollowedID: followed})
	if err != nil {
		t.Fatalf("repeat follow errored: %v", err)
	}
	if created {
		t.Fatal("repeat follow must not create")
	}
	if len(raiser.events) != 1 {
		t.Fatalf("expected exactly 1 notification event, got %d", len(raiser.events))
	}
}

func TestFollowQueuesWelcomeMessage(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	svc := newTestFollowsService(t, &fakeFollowsRepo{}, &fakeRaiser{}, enqueuer, newFakeLockStore())

	follower := uuid.New()
	followed := uuid.New()
	_, err := svc.Follow(context.Background(), FollowParams{
		FollowerID:     follower,
		FollowedID:     followed,
		WelcomeMessage: "thanks for subscribing!",
	})
	if err != nil {
		t.Fatalf("follow failed: %v", err)
	}

	if len(enqueuer.enqueued) != 1 {
		t.Fatalf("expected 1 queued job, got %d", len(enqueuer.enqueued))
	}
	if enqueuer.enqueued[0].Kind != enums.JobAutomatedMessage {
		t.Fatalf("wrong job kind: %s", enqueuer.enqueued[0].Kind)
	}
}

func TestFollowRejectsSelfFollow(t *testing.T) {
	svc := newTestFollowsService(t, &fakeFollowsRepo{}, &fakeRaiser{}, &fakeEnqueuer{}, newFakeLockStore())

	userID := uuid.New()
	_, err := svc.Follow(context.Background(), FollowParams{FollowerID: userID, FollowedID: userID})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUnfollowIsIdempotent(t *testing.T) {
	repo := &fakeFollowsRepo{exists: true}
	svc := newTestFollowsService(t, repo, &fakeRaiser{}, &fakeEnqueuer{}, newFakeLockStore())

	follower := uuid.New()
	followed := uuid.New()
	if err := svc.Unfollow(context.Background(), follower, followed); err != nil {
		t.Fatalf("unfollow failed: %v", err)
	}
	if err := svc.Unfollow(context.Background(), follower, followed); err != nil {
		t.Fatalf("second unfollow must no-op: %v", err)
	}
}
