// Package jobrunner runs the background promote-and-dispatch loop.
package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/notify-dispatch/internal/domain/model"
)

const (
	defaultInterval = 5 * time.Second
	// maxDrainCycles bounds back-to-back cycles before yielding to the next tick.
	maxDrainCycles = 50
)

// Promoter enqueues due jobs.
type Promoter interface {
	PromoteDue(ctx context.Context) (int, error)
}

// CycleRunner drains one batch from the queue.
type CycleRunner interface {
	RunCycleFrom(ctx context.Context, source string) (model.CycleResult, error)
}

// Signal announces new queue entries between ticks.
type Signal interface {
	Subscribe() (func(), <-chan struct{})
}

// RunnerOptions configures the dispatch runner.
type RunnerOptions struct {
	Promoter Promoter
	Consumer CycleRunner
	Logger   *slog.Logger

	// Signal wakes the loop early; nil means interval only.
	Signal Signal
	// Interval between passes when no signal arrives; defaults to 5s.
	Interval time.Duration
}

// Runner promotes due jobs and drains the queue on every tick or enqueue signal.
type Runner struct {
	promoter Promoter
	consumer CycleRunner
	signal   Signal
	interval time.Duration
	logger   *slog.Logger
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// NewRunner constructs a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Promoter == nil {
		return nil, errors.New("promoter is required")
	}
	if opts.Consumer == nil {
		return nil, errors.New("consumer is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Runner{
		promoter: opts.Promoter,
		consumer: opts.Consumer,
		signal:   opts.Signal,
		interval: interval,
		logger:   resolveLogger(opts.Logger).With("component", "dispatch_runner"),
	}, nil
}

// Run loops until ctx is cancelled. Pass failures are logged and the loop continues.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting dispatch runner", "interval", r.interval, "signal", r.signal != nil)

	var notify <-chan struct{}
	if r.signal != nil {
		unsub, ch := r.signal.Subscribe()
		defer unsub()
		notify = ch
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.Pass(ctx); err != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "dispatch pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "dispatch runner stopped")
			return nil
		case <-ticker.C:
		case <-notify:
		}
	}
}

// Pass promotes due jobs, then runs cycles until the queue yields nothing to process.
func (r *Runner) Pass(ctx context.Context) error {
	var errs []error
	if _, err := r.promoter.PromoteDue(ctx); err != nil {
		errs = append(errs, err)
	}

	var total model.CycleResult
	for range maxDrainCycles {
		if ctx.Err() != nil {
			break
		}
		res, err := r.consumer.RunCycleFrom(ctx, "dispatcher")
		if err != nil {
			errs = append(errs, fmt.Errorf("run cycle: %w", err))
			break
		}
		total.Processed += res.Processed
		total.Errors += res.Errors
		if res.Processed == 0 {
			break
		}
	}

	if total.Processed > 0 {
		r.logger.DebugContext(ctx, "dispatch pass complete", "processed", total.Processed, "errors", total.Errors)
	}
	return errors.Join(errs...)
}
