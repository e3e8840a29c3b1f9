package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	apperrors "github.com/dmarrero/fanlink-backend/pkg/errors"
)

const defaultTTL = 30 * time.Second

// Store defines the Redis operations used by the manager.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(parts ...string) string
}

// Manager hands out short-lived keyed locks backed by Redis SETNX + TTL.
// Acquire never waits: a held key fails immediately so duplicate triggers
// are dropped instead of queued.
type Manager struct {
	store Store
	ttl   time.Duration
}

// Handle represents an acquired lock. Release is safe to call more than once.
type Handle struct {
	store Store
	key   string
	owner string
}

// NewManager builds a lock manager with the given default TTL.
func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("lock store is required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// Acquire takes the lock for the scoped key parts or fails fast when another
// holder owns it.
func (m *Manager) Acquire(ctx context.Context, parts ...string) (*Handle, error) {
	return m.AcquireTTL(ctx, m.ttl, parts...)
}

// AcquireTTL takes the lock with an explicit TTL override.
func (m *Manager) AcquireTTL(ctx context.Context, ttl time.Duration, parts ...string) (*Handle, error) {
	if len(parts) == 0 || strings.TrimSpace(strings.Join(parts, "")) == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = m.ttl
	}
	key := m.store.LockKey(parts...)
	owner := uuid.NewString()
	ok, err := m.store.SetNX(ctx, key, owner, ttl)
	if err != nil {
		return nil, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return nil, apperrors.New(apperrors.CodeLockHeld, fmt.Sprintf("lock %s already held", key))
	}
	return &Handle{store: m.store, key: key, owner: owner}, nil
}

// Release frees the lock only if the owner value still matches, so an
// expired-and-reacquired key is never deleted from under its new holder.
func (h *Handle) Release(ctx context.Context) error {
	if h == nil || h.owner == "" {
		return nil
	}
	value, err := h.store.Get(ctx, h.key)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			h.owner = ""
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != h.owner {
		h.owner = ""
		return nil
	}
	if err := h.store.Del(ctx, h.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	h.owner = ""
	return nil
}

// IsHeld reports whether err is the fail-fast already-held error.
func IsHeld(err error) bool {
	if typed := apperrors.As(err); typed != nil {
		return typed.Code() == apperrors.CodeLockHeld
	}
	return false
}
