package failurenotifier

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/target/notify-dispatch/internal/core"
	"github.com/target/notify-dispatch/internal/domain/model"
	"github.com/target/notify-dispatch/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// IncludeTestJobs notifies on test-environment jobs as well.
	IncludeTestJobs bool
}

// Service dispatches dead-letter events to all registered sinks.
type Service struct {
	logger      *slog.Logger
	sinks       []SinkRegistration
	includeTest bool
}

// NewService constructs a failure notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "failure_notifier")

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{
			Name: name,
			Sink: entry.Sink,
		})
	}

	return &Service{
		logger:      logger,
		sinks:       sinks,
		includeTest: opts.IncludeTestJobs,
	}
}

// NotifyDeadLetter fans the payload out to all sinks and waits for them to finish.
// Jobs created with test credentials are skipped unless IncludeTestJobs was set.
func (s *Service) NotifyDeadLetter(ctx context.Context, payload notify.DeadLetterPayload) {
	if len(s.sinks) == 0 {
		return
	}

	if payload.IsTest && !s.includeTest {
		s.logger.DebugContext(ctx, "skipping notification for test job",
			"job_id", payload.JobID,
			"channel", payload.Channel,
		)
		return
	}

	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendDeadLetter(ctx, payload); err != nil {
				s.logger.ErrorContext(ctx, "failure notifier delivery error",
					"sink", entry.Name,
					"job_id", payload.JobID,
					"channel", payload.Channel,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}

// PublishDeadLetter adapts an archival event to the sink payload and notifies synchronously.
// Sink errors are logged, never returned.
func (s *Service) PublishDeadLetter(ctx context.Context, ev core.DeadLetterEvent) error {
	s.NotifyDeadLetter(ctx, PayloadFromEvent(ev))
	return nil
}

// PayloadFromEvent maps an archival event onto the sink payload.
func PayloadFromEvent(ev core.DeadLetterEvent) notify.DeadLetterPayload {
	metadata := map[string]string{}
	if ev.LeaseID != 0 {
		metadata["lease_id"] = strconv.FormatInt(ev.LeaseID, 10)
	}
	return notify.DeadLetterPayload{
		JobID:      ev.JobID,
		TenantID:   ev.TenantID,
		Channel:    ev.Channel,
		EventType:  ev.EventType,
		RetryCount: ev.RetryCount,
		IsTest:     ev.Environment == string(model.EnvironmentTest),
		Error:      ev.Error,
		ErrorClass: classifyDeliveryError(ev.Error),
		OccurredAt: ev.ArchivedAt,
		Metadata:   metadata,
	}
}

// classifyDeliveryError buckets the stored error text for alert routing.
func classifyDeliveryError(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case lower == "":
		return ""
	case strings.Contains(lower, "template not found"):
		return "template_missing"
	case strings.Contains(lower, core.ErrMissingConfig.Error()):
		return "config_missing"
	case strings.Contains(lower, core.ErrUnknownChannel.Error()):
		return "unknown_channel"
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "deadline exceeded"):
		return "timeout"
	case strings.Contains(lower, "panic"):
		return "panic"
	default:
		return "provider_error"
	}
}
