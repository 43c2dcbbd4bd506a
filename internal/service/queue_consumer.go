package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/notify-dispatch/config"
	"github.com/target/notify-dispatch/internal/core"
	"github.com/target/notify-dispatch/internal/domain/job"
	"github.com/target/notify-dispatch/internal/domain/model"
	"github.com/target/notify-dispatch/internal/domain/template"
	"github.com/target/notify-dispatch/internal/observability/metrics"
	"github.com/target/notify-dispatch/internal/observability/statsd"
)

// ErrTemplateNotFound is recorded when neither a tenant nor a system template matches a job.
var ErrTemplateNotFound = errors.New("template not found")

// QueueConsumerDeps lists the collaborators of a QueueConsumer.
type QueueConsumerDeps struct {
	Queue       core.QueueRepository       // Required: leasing queue
	Tracker     *StatusTracker             // Required: job status writes
	Templates   *TemplateResolver          // Required: template selection
	Dispatchers core.DispatcherRegistry    // Required: channel routing
	DeadLetters []core.DeadLetterPublisher // Optional: archival notices
}

// QueueConsumerOptions groups dependencies for QueueConsumer.
type QueueConsumerOptions struct {
	Deps    QueueConsumerDeps
	Config  config.DispatcherConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// QueueConsumer drains the notification queue one batch at a time.
type QueueConsumer struct {
	queue       core.QueueRepository
	tracker     *StatusTracker
	templates   *TemplateResolver
	dispatchers core.DispatcherRegistry
	deadLetters []core.DeadLetterPublisher

	batchSize  int
	visibility job.VisibilityDecision
	logger     *slog.Logger
	metrics    statsd.Sink
	now        func() time.Time
}

// NewQueueConsumer constructs a QueueConsumer.
func NewQueueConsumer(opts QueueConsumerOptions) (*QueueConsumer, error) {
	d := opts.Deps
	if d.Queue == nil {
		return nil, errors.New("QueueRepository is required")
	}
	if d.Tracker == nil {
		return nil, errors.New("StatusTracker is required")
	}
	if d.Templates == nil {
		return nil, errors.New("TemplateResolver is required")
	}
	if d.Dispatchers == nil {
		return nil, errors.New("DispatcherRegistry is required")
	}

	policy, err := job.NewVisibilityPolicy(job.DefaultVisibilityTimeout)
	if err != nil {
		return nil, fmt.Errorf("visibility policy: %w", err)
	}
	batch := opts.Config.BatchSize
	if batch <= 0 {
		batch = job.DefaultBatchSize
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	publishers := make([]core.DeadLetterPublisher, 0, len(d.DeadLetters))
	for _, p := range d.DeadLetters {
		if p != nil {
			publishers = append(publishers, p)
		}
	}

	return &QueueConsumer{
		queue:       d.Queue,
		tracker:     d.Tracker,
		templates:   d.Templates,
		dispatchers: d.Dispatchers,
		deadLetters: publishers,
		batchSize:   batch,
		visibility:  policy.Resolve(opts.Config.VisibilityTimeout),
		logger:      logger.With("component", "queue_consumer"),
		metrics:     opts.Metrics,
		now:         time.Now,
	}, nil
}

// MustNewQueueConsumer constructs a QueueConsumer and panics on error.
func MustNewQueueConsumer(opts QueueConsumerOptions) *QueueConsumer {
	c, err := NewQueueConsumer(opts)
	if err != nil {
		panic(err) //nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
	}
	return c
}

// entryOutcome is the per-entry result folded into a CycleResult.
type entryOutcome int

const (
	entryStale entryOutcome = iota
	entryHandled
	entryFailed
)

// RunCycle leases one batch and dispatches each entry in order.
//
// Only a failed dequeue is returned as an error. Every leased entry is either
// released or archived, and per-entry failures are counted in Errors.
func (c *QueueConsumer) RunCycle(ctx context.Context) (model.CycleResult, error) {
	return c.runCycle(ctx, "")
}

// RunCycleFrom is RunCycle with a source tag on the emitted cycle metrics.
func (c *QueueConsumer) RunCycleFrom(ctx context.Context, source string) (model.CycleResult, error) {
	return c.runCycle(ctx, source)
}

func (c *QueueConsumer) runCycle(ctx context.Context, source string) (model.CycleResult, error) {
	var res model.CycleResult
	start := c.now()

	entries, err := c.queue.Dequeue(ctx, core.DequeueParams{
		BatchSize:         c.batchSize,
		VisibilitySeconds: c.visibility.Seconds,
	})
	if err != nil {
		err = fmt.Errorf("dequeue: %w", err)
		metrics.EmitCycle(c.metrics, metrics.CycleMetric{Source: source, Duration: time.Since(start), Err: err})
		return res, err
	}

	for i := range entries {
		switch c.processEntry(ctx, entries[i]) {
		case entryHandled:
			res.Processed++
		case entryFailed:
			res.Processed++
			res.Errors++
		case entryStale:
		}
	}

	if len(entries) > 0 {
		c.logger.InfoContext(ctx, "dispatch cycle complete",
			"leased", len(entries), "processed", res.Processed, "errors", res.Errors)
	}
	metrics.EmitCycle(c.metrics, metrics.CycleMetric{
		Source:    source,
		Processed: res.Processed,
		Errors:    res.Errors,
		Duration:  time.Since(start),
	})
	return res, nil
}

// processEntry runs the pipeline for one lease. It never panics and never
// returns without settling the lease.
func (c *QueueConsumer) processEntry(ctx context.Context, entry model.QueueEntry) (out entryOutcome) {
	l := &lease{entry: entry, logger: c.logger.With("lease_id", entry.LeaseID, "job_id", entry.Payload.JobID)}

	var j *model.Job
	defer func() {
		if r := recover(); r != nil {
			l.logger.ErrorContext(ctx, "panic while dispatching entry", "panic", r)
			if l.settled {
				out = entryFailed
				return
			}
			out = c.fail(ctx, l, j, fmt.Sprintf("panic: %v", r))
		}
	}()

	var err error
	j, err = c.tracker.Load(ctx, entry.Payload.JobID)
	switch {
	case errors.Is(err, model.ErrJobNotFound):
		l.logger.WarnContext(ctx, "stale queue entry: job missing")
		c.release(ctx, l)
		c.emit(string(entry.Payload.Channel), metrics.OutcomeStale, 0, nil)
		return entryStale
	case err != nil:
		l.logger.ErrorContext(ctx, "load job failed", "error", err)
		c.emit(string(entry.Payload.Channel), metrics.OutcomeFailed, 0, err)
		return c.fail(ctx, l, nil, err.Error())
	}

	if isSettled(j.Status) {
		l.logger.InfoContext(ctx, "stale queue entry: job already settled", "status", j.Status)
		c.release(ctx, l)
		c.emit(string(j.Channel), metrics.OutcomeStale, 0, nil)
		return entryStale
	}

	if job.IsExhausted(j) {
		return c.archiveExhausted(ctx, l, j)
	}

	if err := c.tracker.MarkProcessing(ctx, j); err != nil {
		l.logger.WarnContext(ctx, "mark processing failed", "error", err)
	}

	start := c.now()
	outcome := c.deliver(ctx, j)
	elapsed := time.Since(start)

	if !outcome.Success {
		c.emit(string(j.Channel), metrics.OutcomeFailed, elapsed, errors.New(outcome.Error))
		return c.fail(ctx, l, j, outcome.Error)
	}

	c.release(ctx, l)
	if err := c.tracker.MarkSent(ctx, j, outcome.MessageID); err != nil {
		l.logger.ErrorContext(ctx, "mark sent failed", "error", err)
	}
	c.emit(string(j.Channel), metrics.OutcomeSent, elapsed, nil)
	return entryHandled
}

// deliver resolves, renders and sends. Every failure becomes an outcome.
func (c *QueueConsumer) deliver(ctx context.Context, j *model.Job) model.DeliveryOutcome {
	dispatcher, err := c.dispatchers.Lookup(j.Channel)
	if err != nil {
		return model.DeliveryFailed(err)
	}

	tmpl, err := c.templates.Resolve(ctx, model.TemplateKey{
		EventType: j.EventType,
		Channel:   j.Channel,
		TenantID:  j.TenantID,
	})
	if err != nil {
		return model.DeliveryFailed(err)
	}
	if tmpl == nil {
		return model.DeliveryFailed(fmt.Errorf("%w for %s/%s", ErrTemplateNotFound, j.EventType, j.Channel))
	}

	return dispatcher.Send(ctx, buildSendRequest(j, tmpl))
}

func buildSendRequest(j *model.Job, tmpl *model.Template) model.SendRequest {
	vars := j.RenderVariables()
	lookup := vars.Map()

	req := model.SendRequest{
		JobID:         j.ID,
		TenantID:      j.TenantID,
		UserID:        j.RecipientAddress,
		Destination:   j.RecipientAddress,
		RecipientName: j.RecipientName,
		Body:          template.Render(tmpl.Body, lookup),
		Metadata:      j.MetadataMap(),

		Variables:         vars,
		DeclaredVariables: j.TemplateVariables,
	}
	if uid, ok := req.Metadata["user_id"].(string); ok && uid != "" {
		req.UserID = uid
	}
	if tmpl.Subject != nil {
		req.Subject = template.Render(*tmpl.Subject, lookup)
	}
	if tmpl.BodyRich != nil {
		req.BodyRich = template.Render(*tmpl.BodyRich, lookup)
	}
	switch {
	case j.TemplateKey != nil && *j.TemplateKey != "":
		req.ProviderTemplateID = *j.TemplateKey
	case tmpl.ProviderTemplateID != nil:
		req.ProviderTemplateID = *tmpl.ProviderTemplateID
	}
	return req
}

// fail records a failed attempt and settles the lease according to the retry
// budget. A nil job stands for one that could not be loaded; the attempt is
// charged to the id in the queue payload.
func (c *QueueConsumer) fail(ctx context.Context, l *lease, j *model.Job, errMsg string) entryOutcome {
	if j == nil {
		j = l.entry.Payload.Job()
	}

	rec, err := c.tracker.RecordFailure(ctx, j, errMsg)
	if err != nil {
		l.logger.ErrorContext(ctx, "record failure failed", "error", err, "dispatch_error", errMsg)
		c.release(ctx, l)
		return entryFailed
	}

	if !rec.Terminal {
		l.logger.WarnContext(ctx, "dispatch failed, will retry",
			"error", errMsg, "retry_count", rec.RetryCount, "max_retries", rec.MaxRetries)
		c.release(ctx, l)
		return entryFailed
	}

	l.logger.ErrorContext(ctx, "dispatch failed, retries exhausted",
		"error", errMsg, "retry_count", rec.RetryCount, "max_retries", rec.MaxRetries)
	c.archive(ctx, l, j, rec.RetryCount, errMsg)
	return entryFailed
}

// archiveExhausted handles a job leased with no attempts left.
func (c *QueueConsumer) archiveExhausted(ctx context.Context, l *lease, j *model.Job) entryOutcome {
	errMsg := fmt.Sprintf("max retries (%d) exceeded", j.EffectiveMaxRetries())
	if j.LastError != nil && *j.LastError != "" {
		errMsg = *j.LastError
	}
	if err := c.tracker.MarkExhausted(ctx, j, errMsg); err != nil {
		l.logger.ErrorContext(ctx, "mark exhausted failed", "error", err)
	}
	c.archive(ctx, l, j, j.RetryCount, errMsg)
	return entryFailed
}

// archive moves the entry to the dead-letter table. A failed archive is
// logged and the lease is left to expire.
func (c *QueueConsumer) archive(ctx context.Context, l *lease, j *model.Job, retryCount int, errMsg string) {
	l.settled = true
	if err := c.queue.Archive(ctx, l.entry.LeaseID, errMsg); err != nil {
		l.logger.ErrorContext(ctx, "archive to dead letter failed", "error", err)
		return
	}
	c.emit(string(j.Channel), metrics.OutcomeArchived, 0, nil)

	ev := core.DeadLetterEvent{
		LeaseID:     l.entry.LeaseID,
		JobID:       j.ID,
		TenantID:    j.TenantID,
		Channel:     string(j.Channel),
		EventType:   j.EventType,
		Environment: string(j.Environment),
		RetryCount:  retryCount,
		Error:       errMsg,
		ArchivedAt:  c.now().UTC(),
	}
	for _, p := range c.deadLetters {
		_ = runDetached(ctx, l.logger, "dead_letter_publish", func(ctx context.Context) error {
			return p.PublishDeadLetter(ctx, ev)
		})
	}
}

// lease tracks whether an entry has been released or archived.
type lease struct {
	entry   model.QueueEntry
	logger  *slog.Logger
	settled bool
}

func (c *QueueConsumer) release(ctx context.Context, l *lease) {
	if l.settled {
		return
	}
	l.settled = true
	if err := c.queue.Release(ctx, l.entry.LeaseID); err != nil {
		l.logger.ErrorContext(ctx, "release lease failed", "error", err)
	}
}

func (c *QueueConsumer) emit(channel, outcome string, d time.Duration, err error) {
	metrics.EmitDispatch(c.metrics, metrics.DispatchMetric{
		Channel:  channel,
		Outcome:  outcome,
		Duration: d,
		Err:      err,
	})
}

// isSettled reports whether the job needs no further dispatch.
func isSettled(s model.JobStatus) bool {
	switch s {
	case model.JobStatusSent, model.JobStatusDelivered, model.JobStatusRead:
		return true
	}
	return false
}
