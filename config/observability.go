package config

import (
	"strings"
	"time"
)

const (
	defaultAlertSource   = "notify-dispatch"
	defaultMetricsPrefix = "notify_dispatch"
)

// ObservabilityConfig covers StatsD metrics and dead-letter alerting.
type ObservabilityConfig struct {
	Metrics MetricsConfig
	Alerts  DeadLetterAlertsConfig
}

// Sanitize applies guardrails to both halves.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
	c.Alerts.Sanitize()
}

// MetricsConfig controls the StatsD client. Tags are sent on every line,
// e.g. METRICS_TAGS=env:prod,region:in.
type MetricsConfig struct {
	Enabled       bool              `env:"METRICS_ENABLED"        envDefault:"false"`
	StatsdAddress string            `env:"METRICS_STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
	Prefix        string            `env:"METRICS_PREFIX"         envDefault:"notify_dispatch"`
	Tags          map[string]string `env:"METRICS_TAGS"`
	// FlushInterval batches lines into one datagram. Zero writes each line immediately.
	FlushInterval time.Duration `env:"METRICS_FLUSH_INTERVAL" envDefault:"1s"`
}

// Sanitize trims the address and prefix and drops blank tags.
func (c *MetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.StatsdAddress == "" {
		c.Enabled = false
	}
	c.Prefix = strings.Trim(strings.TrimSpace(c.Prefix), ".")
	if c.Prefix == "" {
		c.Prefix = defaultMetricsPrefix
	}
	for k, v := range c.Tags {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			delete(c.Tags, k)
		}
	}
	c.FlushInterval = max(c.FlushInterval, 0)
}

// IsEnabled reports whether a StatsD client should be built.
func (c *MetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}

// DeadLetterAlertsConfig controls who hears about archived jobs. A sink is
// active once its credential is set; Enabled gates all of them.
type DeadLetterAlertsConfig struct {
	Enabled    bool          `env:"DLQ_ALERTS_ENABLED"     envDefault:"false"`
	Timeout    time.Duration `env:"DLQ_ALERTS_TIMEOUT"     envDefault:"5s"`
	RetryLimit int           `env:"DLQ_ALERTS_RETRY_LIMIT" envDefault:"3"`
	// IncludeTestJobs pages on jobs created in the test environment too.
	IncludeTestJobs bool `env:"DLQ_ALERTS_INCLUDE_TEST_JOBS" envDefault:"false"`

	Slack     SlackAlertConfig     `envPrefix:"DLQ_ALERTS_SLACK_"`
	PagerDuty PagerDutyAlertConfig `envPrefix:"DLQ_ALERTS_PAGERDUTY_"`
}

// Sanitize clamps timings and trims sink settings.
func (c *DeadLetterAlertsConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	c.RetryLimit = max(c.RetryLimit, 0)
	c.Slack.sanitize()
	c.PagerDuty.sanitize()
}

// SlackEnabled reports whether the Slack sink should be built.
func (c *DeadLetterAlertsConfig) SlackEnabled() bool {
	return c.Enabled && c.Slack.WebhookURL != ""
}

// PagerDutyEnabled reports whether the PagerDuty sink should be built.
func (c *DeadLetterAlertsConfig) PagerDutyEnabled() bool {
	return c.Enabled && c.PagerDuty.RoutingKey != ""
}

// SlackAlertConfig addresses an incoming webhook. JobURLPrefix turns job ids
// into links, e.g. https://admin.example/jobs.
type SlackAlertConfig struct {
	WebhookURL   string `env:"WEBHOOK_URL"`
	Channel      string `env:"CHANNEL"`
	Username     string `env:"USERNAME"`
	JobURLPrefix string `env:"JOB_URL_PREFIX"`
}

func (c *SlackAlertConfig) sanitize() {
	c.WebhookURL = strings.TrimSpace(c.WebhookURL)
	c.Channel = strings.TrimSpace(c.Channel)
	c.Username = strings.TrimSpace(c.Username)
	c.JobURLPrefix = strings.TrimSpace(c.JobURLPrefix)
}

// PagerDutyAlertConfig addresses the Events API v2. Endpoint is only set
// for a proxy or a test server.
type PagerDutyAlertConfig struct {
	RoutingKey string `env:"ROUTING_KEY"`
	Source     string `env:"SOURCE"`
	Component  string `env:"COMPONENT"`
	Endpoint   string `env:"ENDPOINT"`
}

func (c *PagerDutyAlertConfig) sanitize() {
	c.RoutingKey = strings.TrimSpace(c.RoutingKey)
	c.Endpoint = strings.TrimSpace(c.Endpoint)
	if c.Source = strings.TrimSpace(c.Source); c.Source == "" {
		c.Source = defaultAlertSource
	}
	if c.Component = strings.TrimSpace(c.Component); c.Component == "" {
		c.Component = defaultAlertSource
	}
}
