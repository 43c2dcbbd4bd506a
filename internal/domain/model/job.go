// Package model defines the core data types shared across the notification dispatch pipeline.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a notification job.
//
// The dispatcher only writes the core states. Provider webhooks may later move a
// sent job to delivered or read, so unknown values must round-trip untouched.
type JobStatus string

const (
	// JobStatusScheduled indicates the job waits for its scheduled time.
	JobStatusScheduled JobStatus = "scheduled"
	// JobStatusQueued indicates a queue entry exists for the job.
	JobStatusQueued JobStatus = "queued"
	// JobStatusProcessing indicates a consumer holds the lease and is dispatching.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusSent indicates the provider accepted the message.
	JobStatusSent JobStatus = "sent"
	// JobStatusFailed indicates the last attempt failed. Whether it is retryable
	// depends on retry_count and max_retries.
	JobStatusFailed JobStatus = "failed"
	// JobStatusDelivered is written by provider webhooks.
	JobStatusDelivered JobStatus = "delivered"
	// JobStatusRead is written by provider webhooks.
	JobStatusRead JobStatus = "read"
)

// Valid reports whether s is one of the known states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusScheduled, JobStatusQueued, JobStatusProcessing, JobStatusSent,
		JobStatusFailed, JobStatusDelivered, JobStatusRead:
		return true
	}
	return false
}

// Environment distinguishes live traffic from test sends.
type Environment string

const (
	// EnvironmentLive is production traffic.
	EnvironmentLive Environment = "live"
	// EnvironmentTest marks jobs created with test credentials.
	EnvironmentTest Environment = "test"
)

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Environment) UnmarshalText(text []byte) error {
	v := Environment(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case "":
		*e = EnvironmentLive
	case EnvironmentLive, EnvironmentTest:
		*e = v
	default:
		return fmt.Errorf("invalid environment: %q", v)
	}
	return nil
}

// DefaultMaxRetries applies when a job row carries no positive max_retries.
const DefaultMaxRetries = 3

// ErrJobNotFound is returned when a job id does not resolve to a row.
var ErrJobNotFound = errors.New("job not found")

// Job is the durable record of one notification to deliver.
type Job struct {
	ID          string      `json:"id"          db:"id"`
	TenantID    string      `json:"tenant_id"   db:"tenant_id"`
	Environment Environment `json:"environment" db:"environment"`

	EventType string  `json:"event_type" db:"event_type"`
	Channel   Channel `json:"channel"    db:"channel"`

	RecipientName    string `json:"recipient_name"    db:"recipient_name"`
	RecipientAddress string `json:"recipient_address" db:"recipient_address"`

	Payload           json.RawMessage   `json:"payload"                db:"payload"`
	TemplateKey       *string           `json:"template_key,omitempty" db:"template_key"`
	TemplateVariables TemplateVariables `json:"template_variables"     db:"template_variables"`
	Metadata          json.RawMessage   `json:"metadata"               db:"metadata"`

	Status            JobStatus `json:"status"                        db:"status"`
	RetryCount        int       `json:"retry_count"                   db:"retry_count"`
	MaxRetries        int       `json:"max_retries"                   db:"max_retries"`
	LastError         *string   `json:"last_error,omitempty"          db:"last_error"`
	ProviderMessageID *string   `json:"provider_message_id,omitempty" db:"provider_message_id"`

	ScheduledAt *time.Time `json:"scheduled_at,omitempty"  db:"scheduled_at"`
	ExecutedAt  *time.Time `json:"executed_at,omitempty"   db:"executed_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"  db:"completed_at"`
	LastRetryAt *time.Time `json:"last_retry_at,omitempty" db:"last_retry_at"`
	CreatedAt   time.Time  `json:"created_at"              db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"              db:"updated_at"`
}

// EffectiveMaxRetries returns MaxRetries, or DefaultMaxRetries when unset.
func (j *Job) EffectiveMaxRetries() int {
	if j == nil || j.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return j.MaxRetries
}

// jobPayload is the subset of the free-form payload the dispatcher understands.
type jobPayload struct {
	Recipient TemplateVariables `json:"recipient_data"`
	Variables TemplateVariables `json:"variables"`
}

// RenderVariables assembles the substitution map for a job.
//
// Precedence, lowest first: recipient fields, payload recipient_data,
// payload variables, then the job's own template_variables. Declaration order
// is preserved; later sources overwrite values in place.
func (j *Job) RenderVariables() TemplateVariables {
	var vars TemplateVariables
	if j == nil {
		return vars
	}
	if j.RecipientName != "" {
		vars = vars.With("recipient_name", j.RecipientName)
		vars = vars.With("name", j.RecipientName)
	}
	if j.RecipientAddress != "" {
		vars = vars.With("recipient_address", j.RecipientAddress)
	}

	if len(j.Payload) > 0 {
		var p jobPayload
		if err := json.Unmarshal(j.Payload, &p); err == nil {
			for _, v := range p.Recipient {
				vars = vars.With(v.Name, v.Value)
			}
			for _, v := range p.Variables {
				vars = vars.With(v.Name, v.Value)
			}
		}
	}

	for _, v := range j.TemplateVariables {
		vars = vars.With(v.Name, v.Value)
	}
	return vars
}

// MetadataMap decodes Metadata into a map. Invalid or empty metadata yields an empty map.
func (j *Job) MetadataMap() map[string]any {
	out := map[string]any{}
	if j == nil || len(j.Metadata) == 0 {
		return out
	}
	if err := json.Unmarshal(j.Metadata, &out); err != nil {
		return map[string]any{}
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// StatusTransition is an append-only history record for a job.
type StatusTransition struct {
	JobID      string    `json:"job_id"      db:"job_id"`
	Status     JobStatus `json:"status"      db:"status"`
	Detail     *string   `json:"detail"      db:"detail"`
	RetryCount int       `json:"retry_count" db:"retry_count"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
}

// FailureRecord is the state of a job after a failed attempt was recorded.
type FailureRecord struct {
	RetryCount int
	MaxRetries int
	Terminal   bool
}

// CreateJobRequest describes a job produced by an upstream collaborator. The
// dispatcher itself never creates jobs; this exists for seeding and tests.
type CreateJobRequest struct {
	TenantID          string            `json:"tenant_id"`
	Environment       Environment       `json:"environment,omitempty"`
	EventType         string            `json:"event_type"`
	Channel           Channel           `json:"channel"`
	RecipientName     string            `json:"recipient_name,omitempty"`
	RecipientAddress  string            `json:"recipient_address"`
	Payload           json.RawMessage   `json:"payload,omitempty"`
	TemplateKey       *string           `json:"template_key,omitempty"`
	TemplateVariables TemplateVariables `json:"template_variables,omitempty"`
	Metadata          json.RawMessage   `json:"metadata,omitempty"`
	ScheduledAt       *time.Time        `json:"scheduled_at,omitempty"`
	MaxRetries        int               `json:"max_retries,omitempty"`
}

// Validate checks required fields.
func (r *CreateJobRequest) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return errors.New("tenant id is required")
	}
	if strings.TrimSpace(r.EventType) == "" {
		return errors.New("event type is required")
	}
	if !r.Channel.Valid() {
		return fmt.Errorf("invalid channel: %q", r.Channel)
	}
	if strings.TrimSpace(r.RecipientAddress) == "" {
		return errors.New("recipient address is required")
	}
	if r.MaxRetries < 0 {
		return errors.New("max retries must be >= 0")
	}
	return nil
}
