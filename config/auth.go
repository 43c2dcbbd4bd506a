package config

import (
	"strings"
	"time"
)

// OIDCConfig configures bearer ID-token verification.
// When Issuer is empty the trigger falls back to StaticTokens.
type OIDCConfig struct {
	Issuer   string `env:"ISSUER"`
	ClientID string `env:"CLIENT_ID" envDefault:"notify-dispatch"`
	// SkipClientIDCheck accepts tokens minted for any audience at this issuer.
	SkipClientIDCheck bool `env:"SKIP_CLIENT_ID_CHECK" envDefault:"false"`
}

// Enabled reports whether OIDC verification is configured.
func (c OIDCConfig) Enabled() bool {
	return c.Issuer != ""
}

// TriggerConfig controls who may call the dispatch trigger endpoint and how long a run may take.
type TriggerConfig struct {
	// CronSecret is compared against the X-Cron-Secret header. Empty disables cron auth.
	CronSecret string `env:"TRIGGER_CRON_SECRET"`

	// StaticTokens is a list of accepted bearer tokens, used when OIDC is not configured.
	StaticTokens []string `env:"TRIGGER_STATIC_TOKENS" envSeparator:","`

	// OIDC bearer verification.
	OIDC OIDCConfig `envPrefix:"TRIGGER_OIDC_"`

	// Timeout bounds one promote plus cycle run.
	Timeout time.Duration `env:"TRIGGER_TIMEOUT" envDefault:"55s"`

	// AllowedOrigin is echoed in CORS responses.
	AllowedOrigin string `env:"TRIGGER_ALLOWED_ORIGIN" envDefault:"*"`
}

// Sanitize applies guardrails to trigger configuration values.
func (t *TriggerConfig) Sanitize() {
	t.CronSecret = strings.TrimSpace(t.CronSecret)
	t.OIDC.Issuer = strings.TrimSpace(t.OIDC.Issuer)

	tokens := t.StaticTokens[:0]
	for _, tok := range t.StaticTokens {
		if tok = strings.TrimSpace(tok); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	t.StaticTokens = tokens

	if t.Timeout <= 0 {
		t.Timeout = 55 * time.Second
	}
	if strings.TrimSpace(t.AllowedOrigin) == "" {
		t.AllowedOrigin = "*"
	}
}
