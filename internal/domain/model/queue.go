package model

import (
	"encoding/json"
	"time"
)

// QueuePayload is the thin pointer carried by a queue entry. The routing
// fields are denormalised copies; the job row stays authoritative.
type QueuePayload struct {
	JobID     string  `json:"job_id"`
	TenantID  string  `json:"tenant_id"`
	Channel   Channel `json:"channel"`
	EventType string  `json:"event_type"`
}

// Job returns a job carrying only the payload's routing fields, for failure
// bookkeeping when the row itself could not be read.
func (p QueuePayload) Job() *Job {
	return &Job{ID: p.JobID, TenantID: p.TenantID, Channel: p.Channel, EventType: p.EventType}
}

// QueueEntry is one leased message. Retry state never lives here.
type QueueEntry struct {
	LeaseID    int64        `json:"lease_id"    db:"msg_id"`
	ReadCount  int          `json:"read_count"  db:"read_ct"`
	EnqueuedAt time.Time    `json:"enqueued_at" db:"enqueued_at"`
	VisibleAt  time.Time    `json:"visible_at"  db:"vt"`
	Payload    QueuePayload `json:"payload"     db:"message"`
}

// DeadLetter is an archived queue entry.
type DeadLetter struct {
	ID           string          `json:"id"            db:"id"`
	LeaseID      int64           `json:"lease_id"      db:"msg_id"`
	JobID        *string         `json:"job_id"        db:"job_id"`
	Message      json.RawMessage `json:"message"       db:"message"`
	ErrorMessage string          `json:"error_message" db:"error_message"`
	ReadCount    int             `json:"read_count"    db:"read_ct"`
	EnqueuedAt   time.Time       `json:"enqueued_at"   db:"enqueued_at"`
	ArchivedAt   time.Time       `json:"archived_at"   db:"archived_at"`
}

// QueueStats summarises queue and dead-letter sizes.
type QueueStats struct {
	Ready       int `json:"ready"`
	Leased      int `json:"leased"`
	DeadLetters int `json:"dead_letters"`
}

// CycleResult aggregates one consumer pass.
type CycleResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}
