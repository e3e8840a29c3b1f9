package lock

import (
	"context"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type fakeStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		values: make(map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := f.values[key]; exists {
		return false, nil
	}
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeStore) LockKey(parts ...string) string {
	return "fl:lock:" + strings.Join(parts, ":")
}

func TestAcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	mgr, err := NewManager(store, 15*time.Second)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	handle, err := mgr.Acquire(ctx, "follow", "a", "b")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if store.ttls["fl:lock:follow:a:b"] != 15*time.Second {
		t.Fatalf("unexpected ttl %v", store.ttls["fl:lock:follow:a:b"])
	}

	if err := handle.Release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, exists := store.values["fl:lock:follow:a:b"]; exists {
		t.Fatalf("lock not deleted on release")
	}
}

func TestAcquireFailsFastWhenHeld(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	mgr, _ := NewManager(store, time.Minute)

	if _, err := mgr.Acquire(ctx, "campaign", "c1"); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	_, err := mgr.Acquire(ctx, "campaign", "c1")
	if err == nil {
		t.Fatalf("expected held error")
	}
	if !IsHeld(err) {
		t.Fatalf("expected lock-held code, got %v", err)
	}
}

func TestReleaseSkipsForeignOwner(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	mgr, _ := NewManager(store, time.Minute)

	handle, err := mgr.Acquire(ctx, "job", "j1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	// Simulate TTL expiry and re-acquisition by another holder.
	store.values["fl:lock:job:j1"] = "someone-else"

	if err := handle.Release(ctx); err != nil {
		t.Fatalf("release errored: %v", err)
	}
	if store.values["fl:lock:job:j1"] != "someone-else" {
		t.Fatalf("release deleted a lock it no longer owns")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	mgr, _ := NewManager(store, time.Minute)

	handle, err := mgr.Acquire(ctx, "job", "j2")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if err := handle.Release(ctx); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := handle.Release(ctx); err != nil {
		t.Fatalf("second release: %v", err)
	}
}

func TestAcquireTTLOverride(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	mgr, _ := NewManager(store, time.Minute)

	if _, err := mgr.AcquireTTL(ctx, 5*time.Second, "notify", "n1"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if store.ttls["fl:lock:notify:n1"] != 5*time.Second {
		t.Fatalf("ttl override not applied: %v", store.ttls["fl:lock:notify:n1"])
	}
}

func TestAcquireRequiresKey(t *testing.T) {
	store := newFakeStore()
	mgr, _ := NewManager(store, time.Minute)
	if _, err := mgr.Acquire(context.Background()); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
