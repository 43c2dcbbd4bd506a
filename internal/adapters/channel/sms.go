package channel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/target/notify-dispatch/config"
	"github.com/target/notify-dispatch/internal/domain/model"
)

// SMSOptions configures the SMS dispatcher.
type SMSOptions struct {
	Config             config.ProviderConfig
	DefaultCountryCode string
	HTTPClient         *http.Client
	Logger             *slog.Logger
}

// SMSDispatcher delivers plain-text messages through the SMS provider.
type SMSDispatcher struct {
	provider *httpProvider
	sender   string
	country  string
}

// NewSMSDispatcher constructs an SMSDispatcher.
func NewSMSDispatcher(opts SMSOptions) (*SMSDispatcher, error) {
	p, err := newHTTPProvider(providerOptions{
		EnvPrefix:  "SMS_PROVIDER_",
		Config:     opts.Config,
		HTTPClient: opts.HTTPClient,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &SMSDispatcher{
		provider: p,
		sender:   strings.TrimSpace(opts.Config.Sender),
		country:  opts.DefaultCountryCode,
	}, nil
}

// Channel implements core.ChannelDispatcher.
func (d *SMSDispatcher) Channel() model.Channel { return model.ChannelSMS }

type smsRequest struct {
	Sender     string            `json:"sender"`
	To         string            `json:"to"`
	Message    string            `json:"message"`
	TemplateID string            `json:"template_id,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`
	Reference  string            `json:"reference,omitempty"`
}

// Send implements core.ChannelDispatcher.
func (d *SMSDispatcher) Send(ctx context.Context, req model.SendRequest) model.DeliveryOutcome {
	if err := d.provider.requireConfigured(); err != nil {
		return model.DeliveryFailed(fmt.Errorf("sms: %w", err))
	}
	if d.sender == "" {
		return model.DeliveryFailed(fmt.Errorf("sms: %w", missingSetting("SMS_PROVIDER_SENDER")))
	}

	to, err := NormalizePhone(req.Destination, d.country)
	if err != nil {
		return model.DeliveryFailed(fmt.Errorf("sms: %w", err))
	}

	body := smsRequest{
		Sender:     d.sender,
		To:         to,
		Message:    req.Body,
		TemplateID: req.ProviderTemplateID,
		Reference:  req.JobID,
	}
	if body.TemplateID != "" && len(req.Variables) > 0 {
		body.Variables = req.Variables.Map()
	}

	id, err := d.provider.post(ctx, body)
	if err != nil {
		return model.DeliveryFailed(fmt.Errorf("sms: %w", err))
	}
	return model.Delivered(id)
}
