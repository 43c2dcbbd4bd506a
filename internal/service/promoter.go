package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/notify-dispatch/config"
	"github.com/target/notify-dispatch/internal/core"
	"github.com/target/notify-dispatch/internal/observability/metrics"
	"github.com/target/notify-dispatch/internal/observability/statsd"
)

// PromoterOptions groups dependencies for Promoter.
type PromoterOptions struct {
	Queue   core.QueueRepository    // Required: promotion runs in the queue's SQL
	Config  config.DispatcherConfig // Optional: tenant scope, backoff and limit
	Logger  *slog.Logger            // Optional: structured logger
	Metrics statsd.Sink             // Optional: metrics sink
}

// Promoter moves due scheduled jobs and retryable failed jobs onto the queue.
type Promoter struct {
	queue   core.QueueRepository
	params  core.PromoteParams
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewPromoter constructs a Promoter.
func NewPromoter(opts PromoterOptions) (*Promoter, error) {
	if opts.Queue == nil {
		return nil, errors.New("QueueRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Promoter{
		queue: opts.Queue,
		params: core.PromoteParams{
			TenantID:     opts.Config.TenantID,
			RetryBackoff: opts.Config.RetryBackoff,
			Limit:        opts.Config.PromoteLimit,
		},
		logger:  logger.With("component", "promoter"),
		metrics: opts.Metrics,
	}, nil
}

// PromoteDue enqueues every job that is ready to run and returns how many
// entries were created. Jobs that already have a queue entry are skipped,
// so concurrent callers never double-enqueue.
func (p *Promoter) PromoteDue(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := p.queue.PromoteScheduled(ctx, p.params)
	if err != nil {
		p.emit(0, time.Since(start), err)
		return 0, fmt.Errorf("promote due jobs: %w", err)
	}
	if n > 0 {
		p.logger.InfoContext(ctx, "promoted due jobs", "count", n, "tenant_id", p.params.TenantID)
	}
	p.emit(n, time.Since(start), nil)
	return n, nil
}

func (p *Promoter) emit(n int, d time.Duration, err error) {
	if p.metrics == nil {
		return
	}
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	tags := map[string]string{"result": result}
	p.metrics.Count("dispatch.promoted", int64(n), tags)
	p.metrics.Timing("dispatch.promote_duration", d, tags)
}
