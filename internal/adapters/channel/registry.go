// Package channel implements the delivery channels and the registry that routes to them.
package channel

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/target/notify-dispatch/config"
	"github.com/target/notify-dispatch/internal/core"
	"github.com/target/notify-dispatch/internal/domain/model"
)

// Registry maps every channel in the closed set to exactly one dispatcher.
type Registry struct {
	dispatchers map[model.Channel]core.ChannelDispatcher
}

// NewRegistry builds a registry. It fails unless every channel in
// model.AllChannels is served exactly once.
func NewRegistry(dispatchers ...core.ChannelDispatcher) (*Registry, error) {
	m := make(map[model.Channel]core.ChannelDispatcher, len(dispatchers))
	for _, d := range dispatchers {
		if d == nil {
			return nil, errors.New("nil dispatcher")
		}
		ch := d.Channel()
		if !ch.Valid() {
			return nil, fmt.Errorf("%w: %q", core.ErrUnknownChannel, ch)
		}
		if _, dup := m[ch]; dup {
			return nil, fmt.Errorf("duplicate dispatcher for channel %q", ch)
		}
		m[ch] = d
	}

	var missing []error
	for _, ch := range model.AllChannels() {
		if _, ok := m[ch]; !ok {
			missing = append(missing, fmt.Errorf("no dispatcher for channel %q", ch))
		}
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}

	return &Registry{dispatchers: m}, nil
}

// Lookup returns the dispatcher for ch or core.ErrUnknownChannel.
func (r *Registry) Lookup(ch model.Channel) (core.ChannelDispatcher, error) {
	d, ok := r.dispatchers[ch]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownChannel, ch)
	}
	return d, nil
}

// RegistryOptions groups what NewDefaultRegistry needs.
type RegistryOptions struct {
	Channels   config.ChannelsConfig
	InApp      core.InAppRepository
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewDefaultRegistry builds the four production dispatchers from configuration.
func NewDefaultRegistry(opts RegistryOptions) (*Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "channel")

	email, err := NewEmailDispatcher(EmailOptions{
		Config:     opts.Channels.Email,
		HTTPClient: opts.HTTPClient,
		Logger:     logger.With("channel", model.ChannelEmail),
	})
	if err != nil {
		return nil, fmt.Errorf("email dispatcher: %w", err)
	}
	sms, err := NewSMSDispatcher(SMSOptions{
		Config:             opts.Channels.SMS,
		DefaultCountryCode: opts.Channels.DefaultCountryCode,
		HTTPClient:         opts.HTTPClient,
		Logger:             logger.With("channel", model.ChannelSMS),
	})
	if err != nil {
		return nil, fmt.Errorf("sms dispatcher: %w", err)
	}
	chat, err := NewChatDispatcher(ChatOptions{
		Config:             opts.Channels.Chat,
		DefaultCountryCode: opts.Channels.DefaultCountryCode,
		HTTPClient:         opts.HTTPClient,
		Logger:             logger.With("channel", model.ChannelChat),
	})
	if err != nil {
		return nil, fmt.Errorf("chat dispatcher: %w", err)
	}
	inApp, err := NewInAppDispatcher(opts.InApp)
	if err != nil {
		return nil, fmt.Errorf("in_app dispatcher: %w", err)
	}

	return NewRegistry(email, sms, chat, inApp)
}
