package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/target/notify-dispatch/config"
	"github.com/target/notify-dispatch/internal/adapters/oidc"
	"github.com/target/notify-dispatch/internal/ports"
)

// BuildTriggerVerifier picks the bearer verifier for the dispatch trigger.
// OIDC wins when an issuer is configured, then static tokens. A nil verifier
// means only the cron secret is accepted.
//
//nolint:ireturn // callers only need the port; the adapter depends on config.
func BuildTriggerVerifier(
	ctx context.Context,
	cfg config.TriggerConfig,
	logger *slog.Logger,
) (ports.TokenVerifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch {
	case cfg.OIDC.Enabled():
		v, err := oidc.NewVerifier(ctx, oidc.VerifierConfig{
			Issuer:            cfg.OIDC.Issuer,
			ClientID:          cfg.OIDC.ClientID,
			SkipClientIDCheck: cfg.OIDC.SkipClientIDCheck,
		})
		if err != nil {
			return nil, fmt.Errorf("create oidc verifier: %w", err)
		}
		logger.InfoContext(ctx, "trigger bearer auth via oidc", "issuer", cfg.OIDC.Issuer)
		return v, nil

	case len(cfg.StaticTokens) > 0:
		v, err := oidc.NewStaticVerifier(cfg.StaticTokens)
		if err != nil {
			return nil, fmt.Errorf("create static verifier: %w", err)
		}
		logger.InfoContext(ctx, "trigger bearer auth via static tokens", "count", len(cfg.StaticTokens))
		return v, nil
	}

	if cfg.CronSecret == "" {
		logger.WarnContext(ctx, "trigger has no credentials configured; every request will be rejected")
	}
	return nil, nil
}
