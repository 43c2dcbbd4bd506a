// Package slack posts dead-letter alerts to an incoming webhook.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/target/notify-dispatch/internal/observability/notify"
)

// Config configures the webhook sink. JobURLPrefix turns job ids into links.
type Config struct {
	WebhookURL   string
	Channel      string
	Username     string
	Timeout      time.Duration
	RetryLimit   int
	Client       *http.Client
	JobURLPrefix string
}

// Client is a notify.Sink backed by a Slack incoming webhook.
type Client struct {
	webhookURL string
	channel    string
	username   string
	jobURL     *url.URL
	retry      notify.RetryPolicy
	http       *http.Client
	now        func() time.Time
}

var _ notify.Sink = (*Client)(nil)

// NewClient requires a webhook URL.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}

	hc := cfg.Client
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = "notify-dispatch"
	}

	return &Client{
		webhookURL: webhookURL,
		channel:    strings.TrimSpace(cfg.Channel),
		username:   username,
		jobURL:     parseJobURLPrefix(cfg.JobURLPrefix),
		retry:      notify.RetryPolicy{Limit: max(cfg.RetryLimit, 0), Backoff: 200 * time.Millisecond},
		http:       hc,
		now:        time.Now,
	}, nil
}

type message struct {
	Text     string  `json:"text"`
	Username string  `json:"username,omitempty"`
	Channel  string  `json:"channel,omitempty"`
	Blocks   []block `json:"blocks"`
}

type block struct {
	Type     string `json:"type"`
	Text     *text  `json:"text,omitempty"`
	Fields   []text `json:"fields,omitempty"`
	Elements []text `json:"elements,omitempty"`
}

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func mrkdwn(s string) text { return text{Type: "mrkdwn", Text: s} }

// SendDeadLetter posts a Block Kit message describing the archived job.
func (c *Client) SendDeadLetter(ctx context.Context, payload notify.DeadLetterPayload) error {
	body, err := json.Marshal(c.buildMessage(payload))
	if err != nil {
		return fmt.Errorf("encode slack message: %w", err)
	}
	return notify.PostJSON(ctx, c.http, "slack", c.webhookURL, body, c.retry)
}

func (c *Client) buildMessage(p notify.DeadLetterPayload) message {
	at := p.OccurredAt
	if at.IsZero() {
		at = c.now()
	}

	title := "Notification dead-lettered"
	if p.Channel != "" {
		title += " (" + escape(p.Channel)
		if p.EventType != "" {
			title += "/" + escape(p.EventType)
		}
		title += ")"
	}
	if p.IsTest {
		title += " [test]"
	}

	severity := p.Severity
	if severity == "" {
		severity = notify.SeverityCritical
	}

	var fields []text
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fields = append(fields, mrkdwn("*"+label+"*\n"+value))
		}
	}
	add("Severity", escape(severity))
	add("Job", c.jobValue(p.JobID))
	add("Tenant", escape(p.TenantID))
	add("Attempts", strconv.Itoa(p.RetryCount))
	add("Error class", escape(p.ErrorClass))

	blocks := []block{
		{Type: "header", Text: &text{Type: "plain_text", Text: title}},
		{Type: "section", Fields: fields},
	}
	if p.Error != "" {
		blocks = append(blocks, block{Type: "section", Text: ptr(mrkdwn("```" + escape(p.Error) + "```"))})
	}
	if meta := formatMetadata(p.Metadata); meta != "" {
		blocks = append(blocks, block{Type: "section", Text: ptr(mrkdwn(meta))})
	}
	blocks = append(blocks, block{Type: "context", Elements: []text{mrkdwn(at.UTC().Format(time.RFC3339))}})

	return message{
		Text:     title,
		Username: c.username,
		Channel:  c.channel,
		Blocks:   blocks,
	}
}

func (c *Client) jobValue(jobID string) string {
	id := strings.TrimSpace(jobID)
	if id == "" {
		return ""
	}
	if c.jobURL != nil {
		return fmt.Sprintf("<%s|%s>", c.jobURL.JoinPath(id).String(), escape(id))
	}
	return "`" + escape(id) + "`"
}

// parseJobURLPrefix returns nil unless prefix is an absolute URL.
func parseJobURLPrefix(prefix string) *url.URL {
	u, err := url.Parse(strings.TrimSpace(prefix))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return u
}

func formatMetadata(meta map[string]string) string {
	if len(meta) == 0 {
		return ""
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("• ")
		b.WriteString(escape(k))
		b.WriteString(": ")
		b.WriteString(escape(meta[k]))
	}
	return b.String()
}

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escape(s string) string { return slackEscaper.Replace(s) }

func ptr[T any](v T) *T { return &v }
