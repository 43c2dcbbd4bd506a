package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/target/notify-dispatch/config"
	"github.com/target/notify-dispatch/internal/domain/model"
)

// ErrChatTemplateRequired is returned when no provider template name is available.
var ErrChatTemplateRequired = errors.New("chat provider template name is required")

// positionalLayouts fixes the slot order for provider templates whose
// parameters are not in variable declaration order.
var positionalLayouts = map[string][]string{
	"invitation": {"recipient_name", "inviter_name", "organization_name", "invite_link"},
}

// ChatOptions configures the chat dispatcher.
type ChatOptions struct {
	Config             config.ProviderConfig
	DefaultCountryCode string
	HTTPClient         *http.Client
	Logger             *slog.Logger
}

// ChatDispatcher sends pre-registered provider templates to a chat messaging app.
type ChatDispatcher struct {
	provider *httpProvider
	sender   string
	country  string
}

// NewChatDispatcher constructs a ChatDispatcher.
func NewChatDispatcher(opts ChatOptions) (*ChatDispatcher, error) {
	p, err := newHTTPProvider(providerOptions{
		EnvPrefix:  "CHAT_PROVIDER_",
		Config:     opts.Config,
		HTTPClient: opts.HTTPClient,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &ChatDispatcher{
		provider: p,
		sender:   strings.TrimSpace(opts.Config.Sender),
		country:  opts.DefaultCountryCode,
	}, nil
}

// Channel implements core.ChannelDispatcher.
func (d *ChatDispatcher) Channel() model.Channel { return model.ChannelChat }

type chatParameter struct {
	Type  string     `json:"type"`
	Text  string     `json:"text,omitempty"`
	Image *chatMedia `json:"image,omitempty"`
	Video *chatMedia `json:"video,omitempty"`
	Doc   *chatMedia `json:"document,omitempty"`
}

type chatMedia struct {
	Link string `json:"link"`
}

type chatComponent struct {
	Type       string          `json:"type"`
	Parameters []chatParameter `json:"parameters"`
}

type chatTemplate struct {
	Name       string          `json:"name"`
	Language   chatLanguage    `json:"language"`
	Components []chatComponent `json:"components,omitempty"`
}

type chatLanguage struct {
	Code string `json:"code"`
}

type chatRequest struct {
	From     string       `json:"from,omitempty"`
	To       string       `json:"to"`
	Type     string       `json:"type"`
	Template chatTemplate `json:"template"`
}

// Send implements core.ChannelDispatcher.
func (d *ChatDispatcher) Send(ctx context.Context, req model.SendRequest) model.DeliveryOutcome {
	if err := d.provider.requireConfigured(); err != nil {
		return model.DeliveryFailed(fmt.Errorf("chat: %w", err))
	}
	name := strings.TrimSpace(req.ProviderTemplateID)
	if name == "" {
		return model.DeliveryFailed(fmt.Errorf("chat: %w", ErrChatTemplateRequired))
	}

	to, err := NormalizePhone(req.Destination, d.country)
	if err != nil {
		return model.DeliveryFailed(fmt.Errorf("chat: %w", err))
	}

	body := chatRequest{
		From: d.sender,
		To:   to,
		Type: "template",
		Template: chatTemplate{
			Name:       name,
			Language:   chatLanguage{Code: metadataString(req.Metadata, "language", "en")},
			Components: chatComponents(name, req),
		},
	}

	id, err := d.provider.post(ctx, body)
	if err != nil {
		return model.DeliveryFailed(fmt.Errorf("chat: %w", err))
	}
	return model.Delivered(id)
}

func chatComponents(templateName string, req model.SendRequest) []chatComponent {
	var components []chatComponent
	if header, ok := mediaHeader(req.Metadata); ok {
		components = append(components, header)
	}
	values := PositionalValues(templateName, req.Variables, req.DeclaredVariables)
	if len(values) > 0 {
		params := make([]chatParameter, 0, len(values))
		for _, v := range values {
			params = append(params, chatParameter{Type: "text", Text: v})
		}
		components = append(components, chatComponent{Type: "body", Parameters: params})
	}
	return components
}

// PositionalValues maps variables to template slots. Templates with a fixed
// layout look their fields up by name in named, using "" for absent ones.
// All others take declared as is, in declaration order.
func PositionalValues(templateName string, named, declared model.TemplateVariables) []string {
	if layout, ok := positionalLayouts[templateName]; ok {
		out := make([]string, len(layout))
		for i, name := range layout {
			out[i], _ = named.Get(name)
		}
		return out
	}
	out := make([]string, 0, len(declared))
	for _, v := range declared {
		out = append(out, v.Value)
	}
	return out
}

func mediaHeader(metadata map[string]any) (chatComponent, bool) {
	link := metadataString(metadata, "media_url", "")
	if link == "" {
		return chatComponent{}, false
	}
	media := &chatMedia{Link: link}
	param := chatParameter{}
	switch strings.ToLower(metadataString(metadata, "media_type", "image")) {
	case "video":
		param.Type, param.Video = "video", media
	case "document":
		param.Type, param.Doc = "document", media
	default:
		param.Type, param.Image = "image", media
	}
	return chatComponent{Type: "header", Parameters: []chatParameter{param}}, true
}

func metadataString(metadata map[string]any, key, fallback string) string {
	if v, ok := metadata[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}
