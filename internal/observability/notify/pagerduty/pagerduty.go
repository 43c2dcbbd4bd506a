// Package pagerduty pages on dead-lettered notifications through the Events API v2.
package pagerduty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/target/notify-dispatch/internal/observability/notify"
)

// APIEndpoint is the Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

const defaultSource = "notify-dispatch"

// Config configures the sink. Endpoint overrides APIEndpoint.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Endpoint   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client is a notify.Sink backed by PagerDuty.
type Client struct {
	routingKey string
	source     string
	component  string
	endpoint   string
	retryLimit int
	backoff    time.Duration
	http       *http.Client
	now        func() time.Time
}

var _ notify.Sink = (*Client)(nil)

// NewClient requires a routing key.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
	}

	hc := cfg.Client
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		routingKey: key,
		source:     orDefault(cfg.Source, defaultSource),
		component:  orDefault(cfg.Component, defaultSource),
		endpoint:   orDefault(cfg.Endpoint, APIEndpoint),
		retryLimit: max(cfg.RetryLimit, 0),
		backoff:    200 * time.Millisecond,
		http:       hc,
		now:        time.Now,
	}, nil
}

type event struct {
	RoutingKey  string       `json:"routing_key"`
	EventAction string       `json:"event_action"`
	DedupKey    string       `json:"dedup_key,omitempty"`
	Payload     eventPayload `json:"payload"`
}

type eventPayload struct {
	Summary       string         `json:"summary"`
	Severity      string         `json:"severity"`
	Source        string         `json:"source"`
	Component     string         `json:"component"`
	Group         string         `json:"group,omitempty"`
	Class         string         `json:"class,omitempty"`
	Timestamp     string         `json:"timestamp"`
	CustomDetails map[string]any `json:"custom_details"`
}

// SendDeadLetter triggers an incident deduplicated per channel and job.
// Rejections other than 429 and 5xx are returned without retrying.
func (c *Client) SendDeadLetter(ctx context.Context, payload notify.DeadLetterPayload) error {
	body, err := json.Marshal(c.buildEvent(payload))
	if err != nil {
		return fmt.Errorf("encode pagerduty event: %w", err)
	}
	return notify.PostJSON(ctx, c.http, "pagerduty", c.endpoint, body,
		notify.RetryPolicy{Limit: c.retryLimit, Backoff: c.backoff})
}

func (c *Client) buildEvent(p notify.DeadLetterPayload) event {
	severity := strings.ToLower(strings.TrimSpace(p.Severity))
	if severity == "" {
		severity = notify.SeverityCritical
	}
	at := p.OccurredAt
	if at.IsZero() {
		at = c.now()
	}

	details := make(map[string]any, len(p.Metadata)+8)
	for k, v := range p.Metadata {
		details[k] = v
	}
	details["job_id"] = p.JobID
	details["tenant_id"] = p.TenantID
	details["channel"] = p.Channel
	details["event_type"] = p.EventType
	details["retry_count"] = p.RetryCount
	details["test"] = p.IsTest
	details["error"] = p.Error
	details["error_class"] = p.ErrorClass

	return event{
		RoutingKey:  c.routingKey,
		EventAction: "trigger",
		DedupKey:    strings.Trim(p.Channel+":"+p.JobID, ":"),
		Payload: eventPayload{
			Summary: fmt.Sprintf("%s notification %s for tenant %s dead-lettered after %d attempts",
				orDefault(p.Channel, "unknown"), orDefault(p.JobID, "unknown"),
				orDefault(p.TenantID, "unknown"), p.RetryCount),
			Severity:      severity,
			Source:        c.source,
			Component:     c.component,
			Group:         p.TenantID,
			Class:         p.ErrorClass,
			Timestamp:     at.UTC().Format(time.RFC3339),
			CustomDetails: details,
		},
	}
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}
