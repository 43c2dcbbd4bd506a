package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/target/notify-dispatch/config"
	"github.com/target/notify-dispatch/internal/domain/model"
	"golang.org/x/net/publicsuffix"
)

// ErrInvalidEmail is returned for addresses that fail parsing or have an unregistered domain.
var ErrInvalidEmail = errors.New("invalid email address")

// EmailOptions configures the email dispatcher.
type EmailOptions struct {
	Config     config.ProviderConfig
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// EmailDispatcher delivers through the email provider.
type EmailDispatcher struct {
	provider *httpProvider
	sender   string
}

// NewEmailDispatcher constructs an EmailDispatcher.
func NewEmailDispatcher(opts EmailOptions) (*EmailDispatcher, error) {
	p, err := newHTTPProvider(providerOptions{
		EnvPrefix:  "EMAIL_PROVIDER_",
		Config:     opts.Config,
		HTTPClient: opts.HTTPClient,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &EmailDispatcher{provider: p, sender: strings.TrimSpace(opts.Config.Sender)}, nil
}

// Channel implements core.ChannelDispatcher.
func (d *EmailDispatcher) Channel() model.Channel { return model.ChannelEmail }

type emailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type emailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type emailRequest struct {
	From       emailAddress      `json:"from"`
	To         []emailAddress    `json:"to"`
	Subject    string            `json:"subject"`
	Content    []emailContent    `json:"content"`
	TemplateID string            `json:"template_id,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`
	Reference  string            `json:"reference,omitempty"`
}

// Send implements core.ChannelDispatcher.
func (d *EmailDispatcher) Send(ctx context.Context, req model.SendRequest) model.DeliveryOutcome {
	if err := d.provider.requireConfigured(); err != nil {
		return model.DeliveryFailed(fmt.Errorf("email: %w", err))
	}
	if d.sender == "" {
		return model.DeliveryFailed(fmt.Errorf("email: %w", missingSetting("EMAIL_PROVIDER_SENDER")))
	}

	to, err := ValidateEmail(req.Destination)
	if err != nil {
		return model.DeliveryFailed(fmt.Errorf("email: %w", err))
	}

	content := emailContent{Type: "text/plain", Value: req.Body}
	if strings.TrimSpace(req.BodyRich) != "" {
		content = emailContent{Type: "text/html", Value: req.BodyRich}
	}

	body := emailRequest{
		From:       emailAddress{Email: d.sender},
		To:         []emailAddress{{Email: to, Name: req.RecipientName}},
		Subject:    req.Subject,
		Content:    []emailContent{content},
		TemplateID: req.ProviderTemplateID,
		Reference:  req.JobID,
	}
	if body.TemplateID != "" && len(req.Variables) > 0 {
		body.Variables = req.Variables.Map()
	}

	id, err := d.provider.post(ctx, body)
	if err != nil {
		return model.DeliveryFailed(fmt.Errorf("email: %w", err))
	}
	return model.Delivered(id)
}

// ValidateEmail parses addr and requires its domain to sit under a known public suffix.
// It returns the bare address.
func ValidateEmail(addr string) (string, error) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(addr))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, addr)
	}
	at := strings.LastIndexByte(parsed.Address, '@')
	if at < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, addr)
	}
	domain := strings.ToLower(strings.TrimSuffix(parsed.Address[at+1:], "."))

	suffix, icann := publicsuffix.PublicSuffix(domain)
	// Unlisted TLDs fall back to the last label with icann=false.
	if !icann && !strings.Contains(suffix, ".") {
		return "", fmt.Errorf("%w: unknown domain suffix %q", ErrInvalidEmail, suffix)
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(domain); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, addr)
	}
	return parsed.Address, nil
}
