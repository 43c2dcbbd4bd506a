package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/target/notify-dispatch/internal/core"
)

// detachedTimeout bounds a side effect that outlives its caller's context.
const detachedTimeout = 5 * time.Second

// runDetached runs fn as a fire-and-forget side effect. The error is logged
// here and surfaced only through the returned value, which callers discard.
// Cancellation of ctx does not cancel fn.
func runDetached(ctx context.Context, logger *slog.Logger, name string, fn func(context.Context) error) core.Detached {
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedTimeout)
	defer cancel()

	err := fn(sideCtx)
	if err != nil && logger != nil {
		logger.WarnContext(ctx, "side effect failed", "side_effect", name, "error", err)
	}
	return core.Detached{Name: name, Err: err}
}
