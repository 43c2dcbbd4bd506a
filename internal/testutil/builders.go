// Package testutil provides testing utilities and helpers for the notification dispatcher.
package testutil

import (
	"encoding/json"
	"time"

	"github.com/target/notify-dispatch/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects for testing.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a new JobRequestBuilder with sensible defaults.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			TenantID:         "tenant-1",
			Environment:      model.EnvironmentLive,
			EventType:        "welcome",
			Channel:          model.ChannelEmail,
			RecipientName:    "Asha",
			RecipientAddress: "asha@example.com",
			Payload:          json.RawMessage(`{}`),
			MaxRetries:       model.DefaultMaxRetries,
		},
	}
}

// WithTenant sets the tenant.
func (b *JobRequestBuilder) WithTenant(tenantID string) *JobRequestBuilder {
	b.req.TenantID = tenantID
	return b
}

// WithEventType sets the event type.
func (b *JobRequestBuilder) WithEventType(eventType string) *JobRequestBuilder {
	b.req.EventType = eventType
	return b
}

// WithChannel sets the channel.
func (b *JobRequestBuilder) WithChannel(ch model.Channel) *JobRequestBuilder {
	b.req.Channel = ch
	return b
}

// WithRecipient sets the recipient name and address.
func (b *JobRequestBuilder) WithRecipient(name, address string) *JobRequestBuilder {
	b.req.RecipientName = name
	b.req.RecipientAddress = address
	return b
}

// WithPayloadString sets the job payload from a string.
func (b *JobRequestBuilder) WithPayloadString(payload string) *JobRequestBuilder {
	b.req.Payload = json.RawMessage(payload)
	return b
}

// WithMetadataString sets the job metadata from a string.
func (b *JobRequestBuilder) WithMetadataString(metadata string) *JobRequestBuilder {
	b.req.Metadata = json.RawMessage(metadata)
	return b
}

// WithVariable appends a template variable.
func (b *JobRequestBuilder) WithVariable(name, value string) *JobRequestBuilder {
	b.req.TemplateVariables = b.req.TemplateVariables.With(name, value)
	return b
}

// WithTemplateKey sets the provider template key.
func (b *JobRequestBuilder) WithTemplateKey(key string) *JobRequestBuilder {
	b.req.TemplateKey = &key
	return b
}

// WithScheduledAt sets the scheduled time.
func (b *JobRequestBuilder) WithScheduledAt(scheduledAt time.Time) *JobRequestBuilder {
	b.req.ScheduledAt = &scheduledAt
	return b
}

// WithMaxRetries sets the maximum number of retries.
func (b *JobRequestBuilder) WithMaxRetries(maxRetries int) *JobRequestBuilder {
	b.req.MaxRetries = maxRetries
	return b
}

// Build returns the constructed CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// Common test job request presets

// EmailJobRequest creates an email job request with default values.
func EmailJobRequest() *model.CreateJobRequest {
	return NewJobRequest().Build()
}

// SMSJobRequest creates an SMS job request.
func SMSJobRequest() *model.CreateJobRequest {
	return NewJobRequest().
		WithChannel(model.ChannelSMS).
		WithRecipient("Asha", "98765 43210").
		Build()
}

// InvitationChatRequest creates a chat invitation job with the four positional variables.
func InvitationChatRequest() *model.CreateJobRequest {
	return NewJobRequest().
		WithChannel(model.ChannelChat).
		WithEventType("invitation").
		WithRecipient("Asha", "+919876543210").
		WithTemplateKey("invitation").
		WithVariable("invite_link", "https://example.com/i/abc").
		WithVariable("organization_name", "Acme").
		WithVariable("inviter_name", "Ravi").
		Build()
}

// InAppJobRequest creates an in-app job request addressed to a user id.
func InAppJobRequest(userID string) *model.CreateJobRequest {
	return NewJobRequest().
		WithChannel(model.ChannelInApp).
		WithRecipient("Asha", userID).
		Build()
}

// ScheduledJobRequest creates a job request scheduled for the given time.
func ScheduledJobRequest(scheduledAt time.Time) *model.CreateJobRequest {
	return NewJobRequest().
		WithScheduledAt(scheduledAt).
		Build()
}

// RetryableJobRequest creates a job request with custom retry settings.
func RetryableJobRequest(maxRetries int) *model.CreateJobRequest {
	return NewJobRequest().
		WithMaxRetries(maxRetries).
		Build()
}
