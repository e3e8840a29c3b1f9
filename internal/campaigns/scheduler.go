package campaigns

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/dmarrero/fanlink-backend/pkg/config"
	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
	pkgerrors "github.com/dmarrero/fanlink-backend/pkg/errors"
	"github.com/dmarrero/fanlink-backend/pkg/lock"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
	"github.com/dmarrero/fanlink-backend/pkg/metrics"
	"github.com/dmarrero/fanlink-backend/pkg/outbox"
	"github.com/dmarrero/fanlink-backend/pkg/outbox/payloads"
)

const (
	defaultReleaseInterval = 15 * time.Second
	defaultExpandBatchSize = 100
	defaultClaimLockTTL    = 60 * time.Second

	claimBatchLimit = 10
)

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Emitter appends domain events to the transactional outbox.
type Emitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SchedulerParams configure the campaign release loop.
type SchedulerParams struct {
	Logger  *logger.Logger
	Repo    Repository
	Tx      TxRunner
	Emitter Emitter
	Locks   *lock.Manager
	Metrics *metrics.CronJobMetrics
	Clock   clockwork.Clock
	Config  config.CampaignsConfig
}

// Scheduler releases due campaigns and drives per-recipient expansion.
// Each cycle is guarded by a redis lock so only one instance expands at
// a time; every step inside a cycle is idempotent, so a crash mid-cycle
// simply leaves work for the next holder.
type Scheduler struct {
	logg    *logger.Logger
	repo    Repository
	tx      TxRunner
	emitter Emitter
	locks   *lock.Manager
	metrics *metrics.CronJobMetrics
	clock   clockwork.Clock
	cfg     config.CampaignsConfig
}

// NewScheduler builds the campaign scheduler.
func NewScheduler(params SchedulerParams) (*Scheduler, error) {
	if params.Logger == nil || params.Repo == nil || params.Tx == nil || params.Emitter == nil || params.Locks == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "campaign scheduler missing dependency")
	}
	clock := params.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	cfg := params.Config
	if cfg.ReleaseInterval <= 0 {
		cfg.ReleaseInterval = defaultReleaseInterval
	}
	if cfg.ExpandBatchSize <= 0 {
		cfg.ExpandBatchSize = defaultExpandBatchSize
	}
	if cfg.ClaimLockTTL <= 0 {
		cfg.ClaimLockTTL = defaultClaimLockTTL
	}
	return &Scheduler{
		logg:    params.Logger,
		repo:    params.Repo,
		tx:      params.Tx,
		emitter: params.Emitter,
		locks:   params.Locks,
		metrics: params.Metrics,
		clock:   clock,
		cfg:     cfg,
	}, nil
}

// Run executes release cycles until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.RunCycle(ctx)
	ticker := s.clock.NewTicker(s.cfg.ReleaseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "campaign scheduler context canceled")
			return ctx.Err()
		case <-ticker.Chan():
			s.RunCycle(ctx)
		}
	}
}

// RunCycle claims due campaigns and advances every sending campaign.
// Exported for callers that drive the cadence themselves.
func (s *Scheduler) RunCycle(ctx context.Context) {
	handle, err := s.locks.AcquireTTL(ctx, s.cfg.ClaimLockTTL, "campaign-scheduler")
	if lock.IsHeld(err) {
		s.logg.Info(ctx, "another scheduler instance is running; skipping this cycle")
		return
	}
	if err != nil {
		s.logg.Error(ctx, "campaign scheduler lock acquire failed", err)
		return
	}
	defer func() {
		if relErr := handle.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release scheduler lock", relErr)
		}
	}()

	start := s.clock.Now()
	err = s.runCycle(ctx, start)
	s.metrics.ObserveDuration("campaign_release", s.clock.Now().Sub(start))
	if err != nil {
		s.metrics.IncFailure("campaign_release")
		s.logg.Error(ctx, "campaign release cycle failed", err)
		return
	}
	s.metrics.IncSuccess("campaign_release")
}

func (s *Scheduler) runCycle(ctx context.Context, now time.Time) error {
	claimed, err := s.repo.ClaimDue(ctx, now, claimBatchLimit)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim due campaigns")
	}
	for i := range claimed {
		claimedCtx := s.logg.WithField(ctx, "campaign_id", claimed[i].ID.String())
		s.logg.Info(claimedCtx, "campaign claimed for sending")
	}

	sending, err := s.repo.ListSending(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sending campaigns")
	}

	var errs error
	for i := range sending {
		if err := s.advance(ctx, &sending[i], now); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// advance pushes one sending campaign forward: materialize the ledger,
// emit an outbox event per pending recipient, and finish the campaign
// once every recipient has reached a terminal status.
func (s *Scheduler) advance(ctx context.Context, campaign *models.Campaign, now time.Time) error {
	if err := s.repo.EnsureRecipients(ctx, campaign.ID, campaign.Recipients); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure campaign recipients")
	}
	if err := s.emitPending(ctx, campaign); err != nil {
		return err
	}

	pending, err := s.repo.CountPendingRecipients(ctx, campaign.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pending recipients")
	}
	if pending > 0 {
		return nil
	}
	return s.finish(ctx, campaign, now)
}

// emitPending writes one outbox event per pending recipient. The event
// is keyed by the recipient ledger row id, so re-running after a crash
// emits nothing for rows that already have an event.
func (s *Scheduler) emitPending(ctx context.Context, campaign *models.Campaign) error {
	for {
		batch, err := s.repo.ListPendingRecipients(ctx, campaign.ID, s.cfg.ExpandBatchSize)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending recipients")
		}
		if len(batch) == 0 {
			return nil
		}
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			for _, recipient := range batch {
				event := outbox.DomainEvent{
					EventKind:     enums.EventCampaignMessage,
					AggregateType: enums.AggregateCampaign,
					AggregateID:   recipient.ID,
					Actor:         &outbox.ActorRef{UserID: campaign.AuthorID, Role: string(enums.RoleCreator)},
					Data: payloads.CampaignMessageEvent{
						CampaignID:  campaign.ID,
						AuthorID:    campaign.AuthorID,
						RecipientID: recipient.RecipientID,
						Content:     campaign.Content,
					},
				}
				if err := s.emitter.EmitIfNotExists(ctx, tx, event); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit campaign events")
		}
		if len(batch) < s.cfg.ExpandBatchSize {
			return nil
		}
	}
}

// finish completes the occurrence. Recurring campaigns roll back onto
// the calendar with a fresh recipient ledger until their end date.
func (s *Scheduler) finish(ctx context.Context, campaign *models.Campaign, now time.Time) error {
	finishCtx := s.logg.WithField(ctx, "campaign_id", campaign.ID.String())

	if next, ok := nextOccurrence(campaign, now); ok {
		if err := s.repo.ResetRecipients(ctx, campaign.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset campaign recipients")
		}
		moved, err := s.repo.Transition(ctx, campaign.ID,
			[]enums.CampaignStatus{enums.CampaignSending},
			enums.CampaignScheduled,
			map[string]any{"scheduled_for": next, "completed_at": now})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reschedule recurring campaign")
		}
		if moved {
			s.logg.Info(s.logg.WithField(finishCtx, "next_run", next.Format(time.RFC3339)), "recurring campaign rescheduled")
		}
		return nil
	}

	moved, err := s.repo.Transition(ctx, campaign.ID,
		[]enums.CampaignStatus{enums.CampaignSending},
		enums.CampaignCompleted,
		map[string]any{"completed_at": now})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete campaign")
	}
	if moved {
		s.logg.Info(finishCtx, "campaign completed")
	}
	return nil
}

// nextOccurrence computes the next release time for a recurring
// campaign, rolled forward past any missed intervals.
func nextOccurrence(campaign *models.Campaign, now time.Time) (time.Time, bool) {
	if campaign.RecurEvery == nil || *campaign.RecurEvery <= 0 {
		return time.Time{}, false
	}
	base := now
	if campaign.ScheduledFor != nil {
		base = *campaign.ScheduledFor
	}
	next := base.Add(*campaign.RecurEvery)
	for !next.After(now) {
		next = next.Add(*campaign.RecurEvery)
	}
	if campaign.EndDate != nil && next.After(*campaign.EndDate) {
		return time.Time{}, false
	}
	return next, true
}
