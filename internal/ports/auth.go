package ports

// Package ports defines interfaces (hexagonal ports) for trigger authentication.
// Implementations live in internal/adapters; the HTTP layer consumes them.

import (
	"context"
	"errors"
)

// ErrInvalidToken is returned when a bearer token is malformed, expired, or unknown.
var ErrInvalidToken = errors.New("invalid token")

// AuthMethod records how a trigger caller proved its identity.
type AuthMethod string

const (
	// AuthMethodBearer is an Authorization: Bearer token.
	AuthMethodBearer AuthMethod = "bearer"
	// AuthMethodCron is the shared cron secret header.
	AuthMethodCron AuthMethod = "cron"
)

// Caller is an authenticated trigger caller.
type Caller struct {
	Subject string
	Method  AuthMethod
}

// TokenVerifier validates a raw bearer token.
type TokenVerifier interface {
	// Verify returns the caller identified by raw, or an error wrapping ErrInvalidToken.
	Verify(ctx context.Context, raw string) (Caller, error)
}
