package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/notify-dispatch/internal/core"
	"github.com/target/notify-dispatch/internal/domain/job"
	"github.com/target/notify-dispatch/internal/domain/model"
)

// StatusTrackerOptions groups dependencies for StatusTracker.
type StatusTrackerOptions struct {
	Jobs    core.JobRepository           // Required: owns the status columns
	History core.StatusHistoryRepository // Optional: transition log
	Logger  *slog.Logger                 // Optional: structured logger
}

// StatusTracker is the single path through which the dispatcher changes job status.
// Each transition is mirrored into the history log as a fire-and-forget side effect.
type StatusTracker struct {
	jobs    core.JobRepository
	history core.StatusHistoryRepository
	logger  *slog.Logger
}

// NewStatusTracker constructs a StatusTracker.
func NewStatusTracker(opts StatusTrackerOptions) (*StatusTracker, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusTracker{
		jobs:    opts.Jobs,
		history: opts.History,
		logger:  logger.With("component", "status_tracker"),
	}, nil
}

// Load reads the current state of a job. A missing row yields model.ErrJobNotFound.
func (t *StatusTracker) Load(ctx context.Context, id string) (*model.Job, error) {
	j, err := t.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if j == nil {
		return nil, fmt.Errorf("load job %s: %w", id, model.ErrJobNotFound)
	}
	return j, nil
}

// MarkProcessing records that a consumer holds the lease and is dispatching.
func (t *StatusTracker) MarkProcessing(ctx context.Context, j *model.Job) error {
	if err := t.jobs.MarkProcessing(ctx, j.ID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	_ = t.appendHistory(ctx, model.StatusTransition{
		JobID:      j.ID,
		Status:     model.JobStatusProcessing,
		RetryCount: j.RetryCount,
	})
	return nil
}

// MarkSent records provider acceptance.
func (t *StatusTracker) MarkSent(ctx context.Context, j *model.Job, messageID string) error {
	if err := t.jobs.MarkSent(ctx, j.ID, messageID); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	var detail *string
	if messageID != "" {
		detail = &messageID
	}
	_ = t.appendHistory(ctx, model.StatusTransition{
		JobID:      j.ID,
		Status:     model.JobStatusSent,
		Detail:     detail,
		RetryCount: j.RetryCount,
	})
	return nil
}

// RecordFailure increments the retry counter and decides whether the job is
// out of attempts.
func (t *StatusTracker) RecordFailure(ctx context.Context, j *model.Job, errMsg string) (*model.FailureRecord, error) {
	rec, err := t.jobs.RecordFailure(ctx, j.ID, errMsg)
	if err != nil {
		return nil, fmt.Errorf("record failure: %w", err)
	}
	rec.Terminal = job.ShouldArchive(rec.RetryCount, rec.MaxRetries)
	_ = t.appendHistory(ctx, model.StatusTransition{
		JobID:      j.ID,
		Status:     model.JobStatusFailed,
		Detail:     &errMsg,
		RetryCount: rec.RetryCount,
	})
	return rec, nil
}

// MarkExhausted records a job that was leased with no attempts left.
func (t *StatusTracker) MarkExhausted(ctx context.Context, j *model.Job, errMsg string) error {
	if err := t.jobs.MarkExhausted(ctx, j.ID, errMsg); err != nil {
		return fmt.Errorf("mark exhausted: %w", err)
	}
	_ = t.appendHistory(ctx, model.StatusTransition{
		JobID:      j.ID,
		Status:     model.JobStatusFailed,
		Detail:     &errMsg,
		RetryCount: j.RetryCount,
	})
	return nil
}

func (t *StatusTracker) appendHistory(ctx context.Context, tr model.StatusTransition) core.Detached {
	if t.history == nil {
		return core.Detached{Name: "status_history"}
	}
	return runDetached(ctx, t.logger, "status_history", func(ctx context.Context) error {
		return t.history.Append(ctx, tr)
	})
}
