package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/target/notify-dispatch/config"
	"github.com/target/notify-dispatch/internal/core"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// maxResponseBodyBytes bounds the provider response kept as error detail.
const maxResponseBodyBytes = 4 * 1024

// providerOptions configures an httpProvider.
type providerOptions struct {
	// EnvPrefix names the settings in errors, e.g. "EMAIL_PROVIDER_".
	EnvPrefix  string
	Config     config.ProviderConfig
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// httpProvider posts JSON to a messaging provider and interprets its reply.
type httpProvider struct {
	envPrefix     string
	url           string
	apiKey        string
	apiKeyHeader  string
	successExpr   string
	successValue  string
	messageIDExpr string
	oauth         bool
	client        *http.Client
	logger        *slog.Logger
}

func newHTTPProvider(opts providerOptions) (*httpProvider, error) {
	cfg := opts.Config
	for _, expr := range []string{cfg.SuccessExpr, cfg.MessageIDExpr} {
		if strings.TrimSpace(expr) == "" {
			continue
		}
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("%sinvalid JMESPath %q: %w", opts.EnvPrefix, expr, err)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	if cfg.OAuth.Enabled() {
		hc = clientCredentialsClient(cfg.OAuth, hc)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	header := strings.TrimSpace(cfg.APIKeyHeader)
	if header == "" {
		header = "Authorization"
	}

	return &httpProvider{
		envPrefix:     opts.EnvPrefix,
		url:           strings.TrimSpace(cfg.URL),
		apiKey:        strings.TrimSpace(cfg.APIKey),
		apiKeyHeader:  header,
		successExpr:   strings.TrimSpace(cfg.SuccessExpr),
		successValue:  cfg.SuccessValue,
		messageIDExpr: strings.TrimSpace(cfg.MessageIDExpr),
		oauth:         cfg.OAuth.Enabled(),
		client:        hc,
		logger:        logger,
	}, nil
}

// clientCredentialsClient wraps base with an OAuth2 client-credentials token source.
func clientCredentialsClient(cfg config.ProviderOAuthConfig, base *http.Client) *http.Client {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	hc := cc.Client(ctx)
	hc.Timeout = base.Timeout
	return hc
}

// requireConfigured reports the first missing setting among URL and API key.
// An OAuth token source stands in for the API key.
func (p *httpProvider) requireConfigured() error {
	if p.url == "" {
		return missingSetting(p.envPrefix + "URL")
	}
	if p.apiKey == "" && !p.oauth {
		return missingSetting(p.envPrefix + "API_KEY")
	}
	return nil
}

func missingSetting(name string) error {
	return fmt.Errorf("%w: %s", core.ErrMissingConfig, name)
}

// post sends body and returns the provider message id when the reply is a success.
func (p *httpProvider) post(ctx context.Context, body any) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set(p.apiKeyHeader, p.apiKeyValue())
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send provider request: %w", err)
	}

	raw, readErr := readResponseBody(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil && readErr == nil {
		readErr = closeErr
	}
	if readErr != nil {
		return "", fmt.Errorf("read provider response: %w", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("provider returned status %d: %s", resp.StatusCode, raw)
	}

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return "", fmt.Errorf("provider returned non-JSON response: %s", raw)
	}

	if !p.accepted(decoded) {
		return "", fmt.Errorf("provider rejected message: %s", raw)
	}

	return p.messageID(decoded), nil
}

func (p *httpProvider) apiKeyValue() string {
	if strings.EqualFold(p.apiKeyHeader, "Authorization") && !strings.Contains(p.apiKey, " ") {
		return "Bearer " + p.apiKey
	}
	return p.apiKey
}

// accepted evaluates the success discriminator against the decoded reply.
func (p *httpProvider) accepted(decoded any) bool {
	if p.successExpr == "" {
		return true
	}
	v, err := jmespath.Search(p.successExpr, decoded)
	if err != nil {
		p.logger.Debug("success expression failed", "expr", p.successExpr, "error", err)
		return false
	}
	return scalarString(v) == p.successValue
}

func (p *httpProvider) messageID(decoded any) string {
	if p.messageIDExpr == "" {
		return ""
	}
	v, err := jmespath.Search(p.messageIDExpr, decoded)
	if err != nil {
		p.logger.Debug("message id expression failed", "expr", p.messageIDExpr, "error", err)
		return ""
	}
	return scalarString(v)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// readResponseBody reads at most maxResponseBodyBytes and drains the rest.
func readResponseBody(body io.Reader) (string, error) {
	if body == nil {
		return "", nil
	}
	limited := io.LimitReader(body, maxResponseBodyBytes+1)
	data, err := io.ReadAll(limited)
	if len(data) > maxResponseBodyBytes {
		data = data[:maxResponseBodyBytes]
		if _, drainErr := io.Copy(io.Discard, body); drainErr != nil && err == nil {
			err = drainErr
		}
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
