// Package oidc verifies bearer tokens presented to the dispatch trigger.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/target/notify-dispatch/internal/ports"
)

// Verifier validates OIDC ID tokens against an issuer's published keys.
type Verifier struct {
	verifier *gooidc.IDTokenVerifier
}

// VerifierConfig holds configuration for the OIDC verifier.
type VerifierConfig struct {
	Issuer            string
	ClientID          string
	SkipClientIDCheck bool
	HTTPClient        *http.Client // Optional, defaults to a 30s-timeout client
}

// NewVerifier discovers the issuer and builds a token verifier.
func NewVerifier(ctx context.Context, config VerifierConfig) (*Verifier, error) {
	if config.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if config.ClientID == "" && !config.SkipClientIDCheck {
		return nil, errors.New("client ID is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	// The same client is used for discovery and later key set refreshes.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(config.Issuer, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &Verifier{
		verifier: op.Verifier(&gooidc.Config{
			ClientID:          config.ClientID,
			SkipClientIDCheck: config.SkipClientIDCheck,
		}),
	}, nil
}

// idClaims are the claims used to label the caller.
type idClaims struct {
	Sub            string `json:"sub"`
	SamAccountName string `json:"samaccountname"`
	Email          string `json:"email"`
	ClientID       string `json:"client_id"`
}

// Verify checks signature, issuer, audience and expiry of raw.
func (v *Verifier) Verify(ctx context.Context, raw string) (ports.Caller, error) {
	if raw == "" {
		return ports.Caller{}, fmt.Errorf("%w: empty token", ports.ErrInvalidToken)
	}
	tok, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return ports.Caller{}, fmt.Errorf("%w: %w", ports.ErrInvalidToken, err)
	}
	var c idClaims
	if err := tok.Claims(&c); err != nil {
		return ports.Caller{}, fmt.Errorf("%w: parse claims: %w", ports.ErrInvalidToken, err)
	}
	return ports.Caller{
		Subject: firstNonEmpty(c.SamAccountName, c.Email, c.ClientID, c.Sub, tok.Subject),
		Method:  ports.AuthMethodBearer,
	}, nil
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
