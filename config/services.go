package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server with the dispatch trigger.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeDispatcher runs the background promote-and-dispatch loop.
	ServiceModeDispatcher ServiceMode = "dispatcher"
	// ServiceModeReaper runs cleanup of aged jobs and dead letters.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeDispatcher,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeDispatcher, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, dispatcher, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// DispatcherConfig contains queue consumer and promoter configuration.
// The HTTP trigger and the background dispatcher share these values.
type DispatcherConfig struct {
	// BatchSize is the number of queue entries leased per cycle.
	BatchSize int `env:"DISPATCHER_BATCH_SIZE" envDefault:"10"`

	// VisibilityTimeout hides a leased entry from other consumers.
	VisibilityTimeout time.Duration `env:"DISPATCHER_VISIBILITY_TIMEOUT" envDefault:"60s"`

	// Interval is the background loop tick when no enqueue notification arrives.
	Interval time.Duration `env:"DISPATCHER_INTERVAL" envDefault:"5s"`

	// RetryBackoff is multiplied by retry_count to delay re-promotion of failed jobs.
	RetryBackoff time.Duration `env:"DISPATCHER_RETRY_BACKOFF" envDefault:"30s"`

	// PromoteLimit caps jobs queued per promotion pass.
	PromoteLimit int `env:"DISPATCHER_PROMOTE_LIMIT" envDefault:"500"`

	// TenantID optionally restricts promotion to one tenant.
	TenantID string `env:"DISPATCHER_TENANT_ID"`
}

// Sanitize applies guardrails to dispatcher configuration values.
func (d *DispatcherConfig) Sanitize() {
	if d.BatchSize < 1 {
		d.BatchSize = 1
	}
	if d.BatchSize > 100 {
		d.BatchSize = 100
	}
	if d.VisibilityTimeout < time.Second {
		d.VisibilityTimeout = time.Second
	}
	if d.Interval < 100*time.Millisecond {
		d.Interval = 100 * time.Millisecond
	}
	if d.RetryBackoff < 0 {
		d.RetryBackoff = 0
	}
	if d.PromoteLimit < 1 {
		d.PromoteLimit = 1
	}
	d.TenantID = strings.TrimSpace(d.TenantID)
}

// ReaperConfig contains reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// SentMaxAge is the maximum age for sent jobs before deletion.
	SentMaxAge time.Duration `env:"REAPER_SENT_MAX_AGE" envDefault:"720h"` // 30 days

	// DLQMaxAge is the maximum age for dead letters before deletion.
	DLQMaxAge time.Duration `env:"REAPER_DLQ_MAX_AGE" envDefault:"2160h"` // 90 days

	// StuckMaxAge is how long a job may sit queued or processing without a queue entry.
	StuckMaxAge time.Duration `env:"REAPER_STUCK_MAX_AGE" envDefault:"15m"`

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.SentMaxAge < 1*time.Hour {
		r.SentMaxAge = 1 * time.Hour
	}
	if r.DLQMaxAge < 24*time.Hour {
		r.DLQMaxAge = 24 * time.Hour
	}
	if r.StuckMaxAge < 2*time.Minute {
		r.StuckMaxAge = 2 * time.Minute
	}

	// Enforce batch size bounds to prevent excessive locks or inefficiency
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
