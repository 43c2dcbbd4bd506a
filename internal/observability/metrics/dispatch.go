package metrics

import (
	"time"

	obserrors "github.com/target/notify-dispatch/internal/observability/errors"
	"github.com/target/notify-dispatch/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Dispatch outcomes, emitted as dispatch.<outcome>.
const (
	OutcomeSent     = "sent"
	OutcomeFailed   = "failed"
	OutcomeArchived = "archived"
	OutcomeStale    = "stale"
)

// DispatchMetric captures one queue entry's outcome.
type DispatchMetric struct {
	Channel  string
	Outcome  string
	Duration time.Duration
	Err      error
}

// EmitDispatch emits a per-entry counter and, when known, a send timing.
func EmitDispatch(sink statsd.Sink, in DispatchMetric) {
	if sink == nil || in.Outcome == "" {
		return
	}

	tags := map[string]string{}
	if in.Channel != "" {
		tags["channel"] = in.Channel
	}
	if in.Err != nil {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("dispatch."+in.Outcome, 1, CloneTags(tags))

	if in.Duration > 0 {
		sink.Timing("dispatch.send_duration", in.Duration, CloneTags(tags))
	}
}

// CycleMetric summarises one consumer cycle.
type CycleMetric struct {
	Source    string
	Processed int
	Errors    int
	Duration  time.Duration
	Err       error
}

// EmitCycle emits cycle counters and duration.
func EmitCycle(sink statsd.Sink, in CycleMetric) {
	if sink == nil {
		return
	}

	result := ResultSuccess
	switch {
	case in.Err != nil:
		result = ResultError
	case in.Processed == 0:
		result = ResultNoop
	}

	tags := map[string]string{"result": result}
	if in.Source != "" {
		tags["source"] = in.Source
	}
	if in.Err != nil {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("dispatch.cycle", 1, tags)
	if in.Processed > 0 {
		sink.Count("dispatch.processed", int64(in.Processed), CloneTags(tags))
	}
	if in.Errors > 0 {
		sink.Count("dispatch.errors", int64(in.Errors), CloneTags(tags))
	}
	if in.Duration > 0 {
		sink.Timing("dispatch.cycle_duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
