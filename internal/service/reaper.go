package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/target/notify-dispatch/config"
	"github.com/target/notify-dispatch/internal/core"
	obserrors "github.com/target/notify-dispatch/internal/observability/errors"
	"github.com/target/notify-dispatch/internal/observability/metrics"
	"github.com/target/notify-dispatch/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.ReaperRepository // Required
	Config  config.ReaperConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// ReaperService keeps the notification tables bounded. A pass deletes sent
// jobs and dead letters past retention, releases queue entries whose job is
// gone, and re-queues jobs stranded in queued or processing.
type ReaperService struct {
	repo    core.ReaperRepository
	cfg     config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewReaperService validates opts.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReaperRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ReaperService{
		repo:    opts.Repo,
		cfg:     opts.Config,
		logger:  logger.With("component", "reaper"),
		metrics: opts.Metrics,
	}, nil
}

// Run cleans once after a random start delay of up to a tenth of the
// interval, then once per interval. It returns nil when ctx is canceled and
// ctx.Err() for any other context end. Pass failures are logged, not returned.
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper",
		"interval", s.cfg.Interval,
		"sent_max_age", s.cfg.SentMaxAge,
		"dlq_max_age", s.cfg.DLQMaxAge,
		"stuck_max_age", s.cfg.StuckMaxAge,
	)

	if spread := int64(s.cfg.Interval / 10); spread > 0 {
		select {
		case <-time.After(time.Duration(rand.Int64N(spread))):
		case <-ctx.Done():
		}
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if ctx.Err() == nil {
			s.logPassError(ctx, s.runCleanup(ctx))
		}
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type reaperStep struct {
	name      string
	operation string
	maxAge    time.Duration
	run       func(context.Context) (int64, error)
}

func (s *ReaperService) steps() []reaperStep {
	batched := func(op func(context.Context, core.CleanupParams) (int64, error), age time.Duration) func(context.Context) (int64, error) {
		p := core.CleanupParams{OlderThan: age, BatchSize: s.cfg.BatchSize}
		return func(ctx context.Context) (int64, error) {
			return drainBatches(ctx, func(ctx context.Context) (int64, error) { return op(ctx, p) })
		}
	}
	return []reaperStep{
		{"delete sent jobs", "delete_sent", s.cfg.SentMaxAge, batched(s.repo.DeleteSentJobs, s.cfg.SentMaxAge)},
		{"delete dead letters", "delete_dead_letters", s.cfg.DLQMaxAge, batched(s.repo.DeleteDeadLetters, s.cfg.DLQMaxAge)},
		// Released orphans come back as stale entries and drain through the consumer.
		{"release orphaned entries", "release_orphans", 0, func(ctx context.Context) (int64, error) {
			return s.repo.ReleaseOrphanedEntries(ctx, s.cfg.BatchSize)
		}},
		{"recover stuck jobs", "recover_stuck", s.cfg.StuckMaxAge, batched(s.repo.RecoverStuckJobs, s.cfg.StuckMaxAge)},
	}
}

// runCleanup runs every step even when earlier ones fail. It returns
// context.Canceled when every failure was a context cancellation.
func (s *ReaperService) runCleanup(ctx context.Context) error {
	start := time.Now()
	var (
		errs     []error
		firstErr error
		total    int64
		canceled = true
	)

	for _, step := range s.steps() {
		n, err := step.run(ctx)
		total += n
		if n > 0 {
			s.logger.InfoContext(ctx, step.name, "count", n, "max_age", step.maxAge)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			if !isContextCancellation(err) {
				canceled = false
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		s.emitOperation(step.operation, n, suppressContextCancellation(err))
	}

	s.emitPass(total, firstErr, time.Since(start))

	switch {
	case len(errs) == 0:
		return nil
	case canceled:
		return context.Canceled
	default:
		return fmt.Errorf("cleanup failed: %w", errors.Join(errs...))
	}
}

// drainBatches calls op until a batch removes nothing or ctx ends.
func drainBatches(ctx context.Context, op func(context.Context) (int64, error)) (int64, error) {
	var total int64
	for {
		n, err := op(ctx)
		total += n
		if err != nil || n == 0 {
			return total, err
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

func resultFor(n int64, err error) string {
	switch {
	case err != nil:
		return metrics.ResultError
	case n == 0:
		return metrics.ResultNoop
	default:
		return metrics.ResultSuccess
	}
}

func (s *ReaperService) emitPass(total int64, err error, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	tags := map[string]string{"result": resultFor(total, err)}
	if err != nil {
		tags["error_class"] = obserrors.Classify(err)
	}
	s.metrics.Count("reaper.cleanup", 1, tags)
	s.metrics.Timing("reaper.cleanup_duration", elapsed, metrics.CloneTags(tags))
	if err == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func (s *ReaperService) emitOperation(operation string, n int64, err error) {
	if s.metrics == nil {
		return
	}
	tags := map[string]string{"operation": operation, "result": resultFor(n, err)}
	if err != nil {
		tags["error_class"] = obserrors.Classify(err)
	}
	s.metrics.Count("reaper.cleanup_operation", 1, tags)
	if err == nil && n > 0 {
		s.metrics.Count("reaper.rows_processed", n, metrics.CloneTags(tags))
	}
}

func (s *ReaperService) logPassError(ctx context.Context, err error) {
	switch {
	case err == nil:
	case isContextCancellation(err):
		s.logger.DebugContext(ctx, "cleanup interrupted", "error", err)
	default:
		s.logger.ErrorContext(ctx, "cleanup failed", "error", err)
	}
}

func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
