package follows

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmarrero/fanlink-backend/internal/events"
	"github.com/dmarrero/fanlink-backend/internal/jobs"
	"github.com/dmarrero/fanlink-backend/internal/messages"
	"github.com/dmarrero/fanlink-backend/pkg/config"
	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
	pkgerrors "github.com/dmarrero/fanlink-backend/pkg/errors"
	"github.com/dmarrero/fanlink-backend/pkg/lock"
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

// JobEnqueuer queues background work in the caller's transaction.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, tx *gorm.DB, params jobs.EnqueueParams) (*models.Job, error)
}

// FollowParams describe one follow action. WelcomeMessage, when the creator
// has one configured, is queued as an automated message in the same
// transaction as the relationship row.
type FollowParams struct {
	FollowerID       uuid.UUID
	FollowedID       uuid.UUID
	WelcomeMessage   string
	WelcomeMediaRefs []string
}

// Service guards follow writes with the dedup lock so a double-click
// creates exactly one relationship and one notification.
type Service struct {
	tx     TxRunner
	repo   Repository
	raiser EventRaiser
	jobs   JobEnqueuer
	locks  *lock.Manager
	cfg    config.LocksConfig
	logg   *logger.Logger
}

// NewService wires the follows service.
func NewService(tx TxRunner, repo Repository, raiser EventRaiser, enqueuer JobEnqueuer, locks *lock.Manager, cfg config.LocksConfig, logg *logger.Logger) (*Service, error) {
	if tx == nil || repo == nil || raiser == nil || enqueuer == nil || locks == nil || logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "follows service missing dependency")
	}
	return &Service{tx: tx, repo: repo, raiser: raiser, jobs: enqueuer, locks: locks, cfg: cfg, logg: logg}, nil
}

// Follow creates the relationship once. A concurrent duplicate fails fast
// with LockHeld; callers treat that as "already in flight", not a failure.
func (s *Service) Follow(ctx context.Context, params FollowParams) (bool, error) {
	if params.FollowerID == uuid.Nil || params.FollowedID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "follower and followed are required")
	}
	if params.FollowerID == params.FollowedID {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "cannot follow yourself")
	}

	handle, err := s.locks.AcquireTTL(ctx, s.cfg.FollowTTL, "follow", params.FollowerID.String(), params.FollowedID.String())
	if err != nil {
		return false, err
	}
	defer func() {
		if relErr := handle.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release follow lock", relErr)
		}
	}()

	var created bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var insertErr error
		created, insertErr = s.repo.Insert(tx, params.FollowerID, params.FollowedID)
		if insertErr != nil {
			return insertErr
		}
		if !created {
			return nil
		}

		event := events.Event{
			Kind:       enums.EventNewFollower,
			ActorID:    params.FollowerID,
			Recipients: []uuid.UUID{params.FollowedID},
			Payload: &payloads.FollowCreatedEvent{
				FollowerID: params.FollowerID,
				FollowedID: params.FollowedID,
			},
		}
		raiseParams := events.RaiseParams{
			Tx:            tx,
			AggregateType: enums.AggregateUser,
			AggregateID:   params.FollowedID,
			Once:          true,
		}
		if raiseErr := s.raiser.Raise(ctx, event, raiseParams); raiseErr != nil {
			return raiseErr
		}

		if params.WelcomeMessage == "" {
			return nil
		}
		payload := messages.AutomatedMessagePayload{
			SenderID:    params.FollowedID,
			RecipientID: params.FollowerID,
			Body:        params.WelcomeMessage,
			MediaRefs:   params.WelcomeMediaRefs,
		}
		_, enqueueErr := s.jobs.Enqueue(ctx, tx, jobs.EnqueueParams{
			Kind:    enums.JobAutomatedMessage,
			Payload: payload,
		})
		return enqueueErr
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create follow")
	}
	return created, nil
}

// Unfollow removes the relationship. Removing a non-existent follow is a
// no-op.
func (s *Service) Unfollow(ctx context.Context, followerID, followedID uuid.UUID) error {
	if followerID == uuid.Nil || followedID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "follower and followed are required")
	}
	if _, err := s.repo.Delete(ctx, followerID, followedID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete follow")
	}
	return nil
}
