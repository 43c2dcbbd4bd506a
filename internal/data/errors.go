package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrLeaseNotFound is returned when a queue entry no longer exists.
	ErrLeaseNotFound = errors.New("queue entry not found")
	// ErrAlreadyQueued is returned when a job already has a live queue entry.
	ErrAlreadyQueued = errors.New("job already queued")
	// ErrJobIDRequired is returned for blank job ids.
	ErrJobIDRequired = errors.New("job_id is required")
	// ErrTemplateKeyInvalid is returned for template lookups missing event type or channel.
	ErrTemplateKeyInvalid = errors.New("template key requires event type and channel")
)
