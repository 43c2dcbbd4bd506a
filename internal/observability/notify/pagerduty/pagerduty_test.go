package pagerduty

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/notify-dispatch/internal/observability/notify"
)

func newTestClient(t *testing.T, endpoint string, retries int) *Client {
	t.Helper()
	c, err := NewClient(Config{RoutingKey: "rk", Endpoint: endpoint, RetryLimit: retries})
	require.NoError(t, err)
	c.backoff = time.Millisecond
	return c
}

func TestNewClientRequiresRoutingKey(t *testing.T) {
	_, err := NewClient(Config{RoutingKey: "  "})
	require.Error(t, err)
}

func TestBuildEvent(t *testing.T) {
	c := newTestClient(t, "", 0)
	c.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("IST", 19800)) }

	ev := c.buildEvent(notify.DeadLetterPayload{
		JobID:      "123",
		TenantID:   "tenant-1",
		Channel:    "chat",
		EventType:  "invitation",
		RetryCount: 3,
		Error:      "boom",
		ErrorClass: "provider_error",
		Metadata:   map[string]string{"job_id": "spoofed", "region": "south"},
	})

	assert.Equal(t, APIEndpoint, c.endpoint)
	assert.Equal(t, "rk", ev.RoutingKey)
	assert.Equal(t, "trigger", ev.EventAction)
	assert.Equal(t, "chat:123", ev.DedupKey)
	assert.Equal(t, notify.SeverityCritical, ev.Payload.Severity)
	assert.Equal(t, "notify-dispatch", ev.Payload.Source)
	assert.Equal(t, "tenant-1", ev.Payload.Group)
	assert.Equal(t, "provider_error", ev.Payload.Class)
	assert.Equal(t, "2026-03-01T03:30:00Z", ev.Payload.Timestamp)
	assert.Contains(t, ev.Payload.Summary, "after 3 attempts")
	assert.Equal(t, "123", ev.Payload.CustomDetails["job_id"])
	assert.Equal(t, "south", ev.Payload.CustomDetails["region"])
}

func TestSendDeadLetterPostsEvent(t *testing.T) {
	var got event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	err := c.SendDeadLetter(context.Background(), notify.DeadLetterPayload{JobID: "j1", Channel: "sms", Severity: "Warning"})
	require.NoError(t, err)
	assert.Equal(t, "sms:j1", got.DedupKey)
	assert.Equal(t, notify.SeverityWarning, got.Payload.Severity)
}

func TestSendDeadLetterRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	require.NoError(t, c.SendDeadLetter(context.Background(), notify.DeadLetterPayload{JobID: "j1"}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendDeadLetterDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"status":"invalid event"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	err := c.SendDeadLetter(context.Background(), notify.DeadLetterPayload{JobID: "j1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pagerduty api 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendDeadLetterStopsOnCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 5)
	c.backoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.SendDeadLetter(ctx, notify.DeadLetterPayload{JobID: "j1"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
