package httpx

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/target/notify-dispatch/internal/ports"
)

// CronSecretHeader carries the shared scheduler secret.
const CronSecretHeader = "X-Cron-Secret"

var errUnauthorized = errors.New("unauthorized")

type callerKey struct{}

// CallerFromContext returns the caller attached by RequireTrigger.
func CallerFromContext(ctx context.Context) (ports.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(ports.Caller)
	return c, ok
}

// TriggerAuth accepts either a bearer token checked by Verifier or the cron secret.
type TriggerAuth struct {
	Verifier   ports.TokenVerifier // Optional: nil rejects bearer tokens
	CronSecret string              // Optional: empty disables the cron header
	Logger     *slog.Logger
}

// RequireTrigger rejects unauthenticated requests with 401 {success:false, error}.
func RequireTrigger(a TriggerAuth) func(http.Handler) http.Handler {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := a.authenticate(r)
			if err != nil {
				logger.WarnContext(r.Context(), "trigger rejected", "error", err, "remote_addr", r.RemoteAddr)
				WriteFailure(w, http.StatusUnauthorized, errUnauthorized.Error())
				return
			}
			ctx := context.WithValue(r.Context(), callerKey{}, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a TriggerAuth) authenticate(r *http.Request) (ports.Caller, error) {
	if secret := r.Header.Get(CronSecretHeader); secret != "" && a.CronSecret != "" {
		if subtle.ConstantTimeCompare([]byte(secret), []byte(a.CronSecret)) == 1 {
			return ports.Caller{Subject: "cron", Method: ports.AuthMethodCron}, nil
		}
	}

	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok || a.Verifier == nil {
		return ports.Caller{}, errUnauthorized
	}
	return a.Verifier.Verify(r.Context(), token)
}

// bearerToken extracts the credential from an Authorization header.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
