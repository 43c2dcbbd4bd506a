package job

import (
	"errors"
	"math"
	"time"
)

// DefaultVisibilityTimeout hides a leased queue entry from other consumers.
const DefaultVisibilityTimeout = 60 * time.Second

// DefaultBatchSize is how many entries a consumer leases per cycle.
const DefaultBatchSize = 10

// ErrInvalidVisibility indicates the configured default visibility timeout is not positive.
var ErrInvalidVisibility = errors.New("default visibility timeout must be positive")

// VisibilitySource identifies how a visibility timeout was resolved.
type VisibilitySource string

const (
	// VisibilitySourceExplicit indicates the caller supplied a positive duration.
	VisibilitySourceExplicit VisibilitySource = "explicit"
	// VisibilitySourceDefault indicates the default duration was used.
	VisibilitySourceDefault VisibilitySource = "default"
	// VisibilitySourceClamped indicates the request was raised to one second.
	VisibilitySourceClamped VisibilitySource = "clamped"
)

// VisibilityPolicy turns durations into the whole seconds the queue accepts.
type VisibilityPolicy struct {
	fallback time.Duration
}

// NewVisibilityPolicy builds a policy with the given fallback timeout.
func NewVisibilityPolicy(fallback time.Duration) (*VisibilityPolicy, error) {
	if fallback <= 0 {
		return nil, ErrInvalidVisibility
	}
	return &VisibilityPolicy{fallback: fallback}, nil
}

// VisibilityDecision is the resolved timeout.
type VisibilityDecision struct {
	Seconds   int
	Source    VisibilitySource
	Requested time.Duration
}

// Resolve maps a requested duration to seconds. Zero selects the fallback;
// anything below one second is clamped up.
func (p *VisibilityPolicy) Resolve(request time.Duration) VisibilityDecision {
	d := VisibilityDecision{Requested: request}
	fallback := DefaultVisibilityTimeout
	if p != nil {
		fallback = p.fallback
	}

	switch {
	case request == 0:
		d.Seconds, _ = wholeSeconds(fallback)
		d.Source = VisibilitySourceDefault
	case request < 0:
		d.Seconds = 1
		d.Source = VisibilitySourceClamped
	default:
		var clamped bool
		d.Seconds, clamped = wholeSeconds(request)
		d.Source = VisibilitySourceExplicit
		if clamped {
			d.Source = VisibilitySourceClamped
		}
	}
	return d
}

func wholeSeconds(d time.Duration) (int, bool) {
	s := int64(d / time.Second)
	if s <= 0 {
		return 1, true
	}
	if s > math.MaxInt32 {
		return math.MaxInt32, true
	}
	return int(s), false
}
