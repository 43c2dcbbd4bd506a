package core

import (
	"context"
	"errors"

	"github.com/target/notify-dispatch/internal/domain/model"
)

// ErrUnknownChannel is returned when no dispatcher is registered for a channel code.
var ErrUnknownChannel = errors.New("unknown channel")

// ErrMissingConfig marks a delivery that could not start because a provider setting is absent.
var ErrMissingConfig = errors.New("missing channel configuration")

// ChannelDispatcher delivers one rendered notification over a single channel.
// Send never returns a Go error; failures are carried in the outcome.
type ChannelDispatcher interface {
	Channel() model.Channel
	Send(ctx context.Context, req model.SendRequest) model.DeliveryOutcome
}

// DispatcherRegistry resolves the dispatcher for a channel.
type DispatcherRegistry interface {
	Lookup(ch model.Channel) (ChannelDispatcher, error)
}

// Detached is the result of a side effect whose failure must never change
// the caller's control flow. Callers discard it with `_ =`; the helper that
// produced it has already logged any error.
type Detached struct {
	Name string
	Err  error
}

// Failed reports whether the side effect failed.
func (d Detached) Failed() bool {
	return d.Err != nil
}
