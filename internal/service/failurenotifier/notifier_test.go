package failurenotifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/target/notify-dispatch/internal/core"
	"github.com/target/notify-dispatch/internal/observability/notify"
)

func TestServiceNotifyDeadLetter(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var received []notify.DeadLetterPayload
	capture := notify.SinkFunc(func(_ context.Context, payload notify.DeadLetterPayload) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, payload)
		return nil
	})
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{Name: "slack", Sink: capture},
			{Name: "pagerduty", Sink: capture},
			{Name: "ignored", Sink: nil},
		},
	})

	svc.NotifyDeadLetter(ctx, notify.DeadLetterPayload{
		JobID:   "123",
		Channel: "email",
	})

	if len(received) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(received))
	}
	if received[0].Severity != notify.SeverityCritical {
		t.Fatalf("expected severity to default to critical, got %s", received[0].Severity)
	}
}

func TestServiceKeepsExplicitSeverity(t *testing.T) {
	var got string
	svc := NewService(Options{
		Sinks: []SinkRegistration{{
			Sink: notify.SinkFunc(func(_ context.Context, payload notify.DeadLetterPayload) error {
				got = payload.Severity
				return nil
			}),
		}},
	})

	svc.NotifyDeadLetter(context.Background(), notify.DeadLetterPayload{JobID: "1", Severity: notify.SeverityWarning})
	if got != notify.SeverityWarning {
		t.Fatalf("expected warning severity, got %q", got)
	}
}

func TestServiceDisabled(t *testing.T) {
	svc := NewService(Options{})
	if svc.Enabled() {
		t.Fatal("expected Enabled() to be false when no sinks registered")
	}
	// No sinks is a no-op.
	svc.NotifyDeadLetter(context.Background(), notify.DeadLetterPayload{JobID: "1"})
}

func TestServiceLogsErrors(t *testing.T) {
	// Ensure we don't panic when sink returns an error.
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{
				Name: "fail",
				Sink: notify.SinkFunc(func(context.Context, notify.DeadLetterPayload) error {
					return errors.New("boom")
				}),
			},
		},
	})

	svc.NotifyDeadLetter(context.Background(), notify.DeadLetterPayload{JobID: "123"})
}

func TestServiceSkipsTestJobs(t *testing.T) {
	ctx := context.Background()
	var called bool
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{
				Name: "capture",
				Sink: notify.SinkFunc(func(context.Context, notify.DeadLetterPayload) error {
					called = true
					return nil
				}),
			},
		},
	})

	svc.NotifyDeadLetter(ctx, notify.DeadLetterPayload{
		JobID:  "test-job",
		IsTest: true,
	})

	if called {
		t.Fatal("expected sink not to be invoked for test job")
	}
}

func TestServiceIncludesTestJobsWhenAsked(t *testing.T) {
	var called bool
	svc := NewService(Options{
		IncludeTestJobs: true,
		Sinks: []SinkRegistration{{
			Name: "capture",
			Sink: notify.SinkFunc(func(context.Context, notify.DeadLetterPayload) error {
				called = true
				return nil
			}),
		}},
	})

	svc.NotifyDeadLetter(context.Background(), notify.DeadLetterPayload{JobID: "test-job", IsTest: true})
	if !called {
		t.Fatal("expected sink to be invoked for test job")
	}
}

func TestPayloadFromEvent(t *testing.T) {
	archived := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	payload := PayloadFromEvent(core.DeadLetterEvent{
		LeaseID:     42,
		JobID:       "job-1",
		TenantID:    "tenant-1",
		Channel:     "sms",
		EventType:   "otp",
		Environment: "test",
		RetryCount:  3,
		Error:       "sms: missing channel configuration: SMS_PROVIDER_URL",
		ArchivedAt:  archived,
	})

	if !payload.IsTest {
		t.Fatal("expected test environment to mark payload as test")
	}
	if payload.ErrorClass != "config_missing" {
		t.Fatalf("expected config_missing class, got %q", payload.ErrorClass)
	}
	if payload.Metadata["lease_id"] != "42" {
		t.Fatalf("expected lease id metadata, got %v", payload.Metadata)
	}
	if !payload.OccurredAt.Equal(archived) {
		t.Fatalf("expected occurred at %v, got %v", archived, payload.OccurredAt)
	}
}

func TestClassifyDeliveryError(t *testing.T) {
	cases := map[string]string{
		"":                                   "",
		"template not found for welcome/sms": "template_missing",
		"unknown channel: fax":               "unknown_channel",
		"send: context deadline exceeded":    "timeout",
		"panic: nil map":                     "panic",
		"provider rejected: 400":             "provider_error",
	}
	for msg, want := range cases {
		if got := classifyDeliveryError(msg); got != want {
			t.Errorf("classifyDeliveryError(%q) = %q, want %q", msg, got, want)
		}
	}
}

func TestPublishDeadLetterNeverFails(t *testing.T) {
	svc := NewService(Options{
		Sinks: []SinkRegistration{{
			Name: "fail",
			Sink: notify.SinkFunc(func(context.Context, notify.DeadLetterPayload) error {
				return errors.New("boom")
			}),
		}},
	})

	if err := svc.PublishDeadLetter(context.Background(), core.DeadLetterEvent{JobID: "1"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
