package core

import (
	"context"
	"time"

	"github.com/target/notify-dispatch/internal/domain/model"
)

// This file contains the repository interfaces (ports) the dispatch services depend on.
// Service implementations depend on these contracts, never on internal/data directly.

// JobRepository reads notification jobs and owns their status columns.
type JobRepository interface {
	GetByID(ctx context.Context, id string) (*model.Job, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkSent(ctx context.Context, id, providerMessageID string) error
	RecordFailure(ctx context.Context, id, errMsg string) (*model.FailureRecord, error)
	MarkExhausted(ctx context.Context, id, errMsg string) error
}

// StatusHistoryRepository appends job status transitions.
type StatusHistoryRepository interface {
	Append(ctx context.Context, t model.StatusTransition) error
}

// DequeueParams groups the lease parameters for QueueRepository.Dequeue.
type DequeueParams struct {
	BatchSize         int
	VisibilitySeconds int
}

// PromoteParams scopes a promotion pass.
type PromoteParams struct {
	// TenantID limits promotion to one tenant; empty means all tenants.
	TenantID string
	// RetryBackoff is the per-attempt delay before a retryable failed job is promoted again.
	RetryBackoff time.Duration
	Limit        int
}

// QueueRepository is the leasing work queue.
type QueueRepository interface {
	Dequeue(ctx context.Context, p DequeueParams) ([]model.QueueEntry, error)
	Release(ctx context.Context, leaseID int64) error
	Archive(ctx context.Context, leaseID int64, errMsg string) error
	PromoteScheduled(ctx context.Context, p PromoteParams) (int, error)
	Enqueue(ctx context.Context, payload model.QueuePayload) (int64, error)
	Stats(ctx context.Context) (*model.QueueStats, error)
}

// TemplateRepository finds the best template for a key: tenant first, then system.
type TemplateRepository interface {
	FindBest(ctx context.Context, key model.TemplateKey) (*model.Template, error)
}

// TemplateCache stores resolved templates. A nil template with nil error is a miss.
type TemplateCache interface {
	Get(ctx context.Context, key model.TemplateKey) (*model.Template, bool, error)
	Set(ctx context.Context, key model.TemplateKey, tmpl *model.Template, ttl time.Duration) error
}

// InAppRepository persists in-app notifications.
type InAppRepository interface {
	Insert(ctx context.Context, n *model.InAppNotification) (*model.InAppNotification, error)
}

// DeadLetterPublisher announces archived entries to downstream tooling.
type DeadLetterPublisher interface {
	PublishDeadLetter(ctx context.Context, ev DeadLetterEvent) error
}

// DeadLetterEvent describes one archival.
type DeadLetterEvent struct {
	LeaseID     int64     `json:"lease_id"`
	JobID       string    `json:"job_id"`
	TenantID    string    `json:"tenant_id"`
	Channel     string    `json:"channel"`
	EventType   string    `json:"event_type"`
	Environment string    `json:"environment"`
	RetryCount  int       `json:"retry_count"`
	Error       string    `json:"error"`
	ArchivedAt  time.Time `json:"archived_at"`
}

// ReaperRepository removes old rows.
type ReaperRepository interface {
	DeleteSentJobs(ctx context.Context, p CleanupParams) (int64, error)
	DeleteDeadLetters(ctx context.Context, p CleanupParams) (int64, error)
	ReleaseOrphanedEntries(ctx context.Context, batchSize int) (int64, error)
	RecoverStuckJobs(ctx context.Context, p CleanupParams) (int64, error)
}

// CleanupParams bounds a reaper deletion.
type CleanupParams struct {
	OlderThan time.Duration
	BatchSize int
}
