package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dmarrero/fanlink-backend/pkg/config"
	"github.com/dmarrero/fanlink-backend/pkg/db/models"
	"github.com/dmarrero/fanlink-backend/pkg/enums"
	apperrors "github.com/dmarrero/fanlink-backend/pkg/errors"
	"github.com/dmarrero/fanlink-backend/pkg/lock"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
	"github.com/dmarrero/fanlink-backend/pkg/metrics"
)

// Handler executes one job kind. LockParts scopes the per-operation lock so
// two concurrent claims of the same underlying operation never both run.
type Handler interface {
	Kind() enums.JobKind
	LockParts(job models.Job) []string
	Handle(ctx context.Context, job models.Job) error
}

// NonRetryableError marks a handler failure that no retry can fix. The
// worker abandons the job immediately instead of burning attempts.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// WorkerParams configure the job worker.
type WorkerParams struct {
	Logger  *logger.Logger
	Repo    Repository
	Locks   *lock.Manager
	Metrics *metrics.DispatchMetrics
	Clock   clockwork.Clock
	Config  config.JobsConfig
}

// Worker polls the jobs table and runs registered handlers.
type Worker struct {
	logg     *logger.Logger
	repo     Repository
	locks    *lock.Manager
	metrics  *metrics.DispatchMetrics
	clock    clockwork.Clock
	cfg      config.JobsConfig
	handlers map[enums.JobKind]Handler
}

// NewWorker builds a worker. Handlers are registered separately so wiring
// stays explicit at the composition root.
func NewWorker(params WorkerParams) (*Worker, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock manager required")
	}
	clock := params.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	cfg := params.Config
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = defaultVisibilityTimeout
	}
	return &Worker{
		logg:     params.Logger,
		repo:     params.Repo,
		locks:    params.Locks,
		metrics:  params.Metrics,
		clock:    clock,
		cfg:      cfg,
		handlers: make(map[enums.JobKind]Handler),
	}, nil
}

const (
	defaultPollInterval      = time.Second
	defaultBatchSize         = 20
	defaultVisibilityTimeout = 2 * time.Minute
)

// Register wires a handler for its job kind.
func (w *Worker) Register(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler required")
	}
	kind := handler.Kind()
	if !kind.IsValid() {
		return fmt.Errorf("invalid job kind %q", kind)
	}
	if _, exists := w.handlers[kind]; exists {
		return fmt.Errorf("handler for %q already registered", kind)
	}
	w.handlers[kind] = handler
	return nil
}

// Run polls until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := w.runCycle(ctx); err != nil {
		w.logg.Error(ctx, "job cycle failed", err)
	}
	ticker := w.clock.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logg.Info(ctx, "job worker context canceled")
			return ctx.Err()
		case <-ticker.Chan():
			if err := w.runCycle(ctx); err != nil {
				w.logg.Error(ctx, "job cycle failed", err)
			}
		}
	}
}

func (w *Worker) runCycle(ctx context.Context) error {
	now := w.clock.Now().UTC()
	requeued, err := w.repo.RequeueStale(ctx, now.Add(-w.cfg.VisibilityTimeout), now)
	if err != nil {
		return fmt.Errorf("requeue stale: %w", err)
	}
	if requeued > 0 {
		w.logg.Info(w.logg.WithField(ctx, "count", requeued), "requeued stale running jobs")
	}
	claimed, err := w.repo.ClaimBatch(ctx, w.cfg.BatchSize, now)
	if err != nil {
		return fmt.Errorf("claim batch: %w", err)
	}
	for _, job := range claimed {
		w.runJob(ctx, job)
	}
	return nil
}

// RunCycle executes one poll cycle. Exposed for callers that drive the
// cadence themselves.
func (w *Worker) RunCycle(ctx context.Context) error {
	return w.runCycle(ctx)
}

func (w *Worker) runJob(ctx context.Context, job models.Job) {
	jobCtx := w.logg.WithJobID(ctx, job.ID.String())
	jobCtx = w.logg.WithField(jobCtx, "job_kind", string(job.Kind))

	now := w.clock.Now().UTC()
	if now.After(job.DeadlineAt) {
		w.abandon(jobCtx, job, "retry deadline exceeded")
		return
	}

	handler, ok := w.handlers[job.Kind]
	if !ok {
		w.abandon(jobCtx, job, fmt.Sprintf("no handler registered for %q", job.Kind))
		return
	}

	handle, err := w.locks.Acquire(jobCtx, handler.LockParts(job)...)
	if err != nil {
		if lock.IsHeld(err) {
			// Another execution of the same operation is in flight.
			// Push the job back without spending an attempt.
			w.logg.Info(jobCtx, "operation lock held; rescheduling job")
			if rsErr := w.repo.Reschedule(jobCtx, job.ID, now.Add(w.cfg.PollInterval)); rsErr != nil {
				w.logg.Error(jobCtx, "failed to reschedule locked job", rsErr)
			}
			return
		}
		w.logg.Error(jobCtx, "failed to acquire job lock", err)
		w.retry(jobCtx, job, err)
		return
	}
	defer func() {
		if relErr := handle.Release(jobCtx); relErr != nil {
			w.logg.Error(jobCtx, "failed to release job lock", relErr)
		}
	}()

	w.logg.Info(jobCtx, "job start")
	start := w.clock.Now()
	handleErr := handler.Handle(jobCtx, job)
	duration := w.clock.Now().Sub(start)
	w.metrics.ObserveJobDuration(string(job.Kind), duration)
	jobCtx = w.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())

	if handleErr == nil {
		if err := w.repo.MarkSucceeded(jobCtx, job.ID); err != nil {
			w.logg.Error(jobCtx, "failed to mark job succeeded", err)
			return
		}
		w.logg.Info(jobCtx, "job completed")
		return
	}

	var permanent *NonRetryableError
	if errors.As(handleErr, &permanent) {
		w.abandon(jobCtx, job, handleErr.Error())
		return
	}
	w.logg.Error(jobCtx, "job failed", handleErr)
	w.retry(jobCtx, job, handleErr)
}

func (w *Worker) retry(ctx context.Context, job models.Job, cause error) {
	completed := job.AttemptCount + 1
	if completed >= job.MaxAttempts {
		w.abandon(ctx, job, fmt.Sprintf("attempts exhausted after %d: %v", completed, cause))
		return
	}
	nextRun := w.clock.Now().UTC().Add(backoffDelay(job.Kind, completed))
	if nextRun.After(job.DeadlineAt) {
		w.abandon(ctx, job, fmt.Sprintf("retry deadline exceeded: %v", cause))
		return
	}
	if err := w.repo.MarkRetry(ctx, job.ID, nextRun, cause); err != nil {
		w.logg.Error(ctx, "failed to schedule job retry", err)
		return
	}
	w.metrics.IncJobRetry(string(job.Kind))
}

func (w *Worker) abandon(ctx context.Context, job models.Job, reason string) {
	err := apperrors.New(apperrors.CodeRetryExhausted, reason)
	w.logg.Error(ctx, "job abandoned", err)
	if markErr := w.repo.MarkAbandoned(ctx, job, reason); markErr != nil {
		w.logg.Error(ctx, "failed to record job failure", markErr)
	}
}
