package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/notify-dispatch/internal/domain/model"
	"github.com/target/notify-dispatch/internal/ports"
)

type fakePromoter struct {
	n     int
	err   error
	calls int
}

func (f *fakePromoter) PromoteDue(context.Context) (int, error) {
	f.calls++
	return f.n, f.err
}

type fakeCycle struct {
	res    model.CycleResult
	err    error
	calls  int
	source string
	hasDL  bool
}

func (f *fakeCycle) RunCycleFrom(ctx context.Context, source string) (model.CycleResult, error) {
	f.calls++
	f.source = source
	_, f.hasDL = ctx.Deadline()
	return f.res, f.err
}

type fakeVerifier struct {
	token string
}

func (f fakeVerifier) Verify(_ context.Context, raw string) (ports.Caller, error) {
	if raw != f.token {
		return ports.Caller{}, ports.ErrInvalidToken
	}
	return ports.Caller{Subject: "svc-scheduler", Method: ports.AuthMethodBearer}, nil
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

type fakeStats struct {
	stats *model.QueueStats
	err   error
}

func (f fakeStats) Stats(context.Context) (*model.QueueStats, error) { return f.stats, f.err }

type routerHarness struct {
	promoter *fakePromoter
	cycle    *fakeCycle
	handler  http.Handler
}

func newRouterHarness(t *testing.T) *routerHarness {
	t.Helper()
	h := &routerHarness{
		promoter: &fakePromoter{n: 2},
		cycle:    &fakeCycle{res: model.CycleResult{Processed: 5, Errors: 1}},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.handler = NewRouter(RouterServices{
		Dispatch: &DispatchHandlers{
			Promoter: h.promoter,
			Consumer: h.cycle,
			Timeout:  time.Minute,
			Logger:   logger,
			now:      func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) },
		},
		Health: &HealthHandlers{
			DB:     fakePinger{},
			Queue:  fakeStats{stats: &model.QueueStats{Ready: 3, Leased: 1, DeadLetters: 4}},
			Logger: logger,
		},
		Auth: TriggerAuth{
			Verifier:   fakeVerifier{token: "good-token"},
			CronSecret: "cron-secret",
		},
		AllowedOrigin: "*",
		Logger:        logger,
	})
	return h
}

func (h *routerHarness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestDispatchRun_PreflightSkipsWork(t *testing.T) {
	h := newRouterHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodOptions, "/api/dispatch/run", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	assert.Zero(t, h.promoter.calls)
	assert.Zero(t, h.cycle.calls)
	assert.Empty(t, rec.Body.String())
}

func TestDispatchRun_Unauthorized(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
	}{
		{name: "no credentials", header: http.Header{}},
		{name: "wrong bearer", header: http.Header{"Authorization": {"Bearer nope"}}},
		{name: "wrong scheme", header: http.Header{"Authorization": {"Basic good-token"}}},
		{name: "wrong cron secret", header: http.Header{CronSecretHeader: {"guess"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouterHarness(t)
			req := httptest.NewRequest(http.MethodPost, "/api/dispatch/run", nil)
			req.Header = tt.header

			rec := h.do(req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, "unauthorized", body["error"])
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Zero(t, h.promoter.calls)
			assert.Zero(t, h.cycle.calls)
		})
	}
}

func TestDispatchRun_Success(t *testing.T) {
	tests := []struct {
		name   string
		method string
		header http.Header
	}{
		{name: "bearer post", method: http.MethodPost, header: http.Header{"Authorization": {"Bearer good-token"}}},
		{name: "lowercase scheme", method: http.MethodPost, header: http.Header{"Authorization": {"bearer good-token"}}},
		{name: "cron get", method: http.MethodGet, header: http.Header{CronSecretHeader: {"cron-secret"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouterHarness(t)
			req := httptest.NewRequest(tt.method, "/api/dispatch/run", nil)
			req.Header = tt.header

			rec := h.do(req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			body := decodeBody(t, rec)
			assert.Equal(t, true, body["success"])
			assert.InDelta(t, 2, body["scheduled_enqueued"], 0)
			assert.InDelta(t, 5, body["processed"], 0)
			assert.InDelta(t, 1, body["errors"], 0)
			assert.Equal(t, "2026-03-01T09:30:00Z", body["timestamp"])
			assert.Equal(t, "trigger", h.cycle.source)
			assert.True(t, h.cycle.hasDL)
		})
	}
}

func TestDispatchRun_PromoteFailure(t *testing.T) {
	h := newRouterHarness(t)
	h.promoter.err = errors.New("promote due jobs: connection refused")
	req := httptest.NewRequest(http.MethodPost, "/api/dispatch/run", nil)
	req.Header.Set(CronSecretHeader, "cron-secret")

	rec := h.do(req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "promote due jobs: connection refused", body["error"])
	assert.Zero(t, h.cycle.calls)
}

func TestDispatchRun_CycleFailure(t *testing.T) {
	h := newRouterHarness(t)
	h.cycle.err = errors.New("dequeue: timeout")
	req := httptest.NewRequest(http.MethodPost, "/api/dispatch/run", nil)
	req.Header.Set("Authorization", "Bearer good-token")

	rec := h.do(req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "dequeue: timeout", body["error"])
	_, hasCounts := body["processed"]
	assert.False(t, hasCounts)
}

func TestDispatchRun_PanicRecovered(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewRouter(RouterServices{
		Dispatch: &DispatchHandlers{Promoter: panicPromoter{}, Consumer: &fakeCycle{}},
		Auth:     TriggerAuth{CronSecret: "s"},
		Logger:   logger,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/dispatch/run", nil)
	req.Header.Set(CronSecretHeader, "s")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])
}

type panicPromoter struct{}

func (panicPromoter) PromoteDue(context.Context) (int, error) { panic("boom") }

func TestHealth(t *testing.T) {
	h := newRouterHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	rec = h.do(httptest.NewRequest(http.MethodHead, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestHealth_DatabaseDown(t *testing.T) {
	hh := &HealthHandlers{DB: fakePinger{err: errors.New("refused")}}
	rec := httptest.NewRecorder()

	hh.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestQueueMetrics(t *testing.T) {
	h := newRouterHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/metrics/queue", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.InDelta(t, 3, body["ready"], 0)
	assert.InDelta(t, 1, body["leased"], 0)
	assert.InDelta(t, 4, body["dead_letters"], 0)
}

func TestQueueMetrics_Error(t *testing.T) {
	hh := &HealthHandlers{Queue: fakeStats{err: errors.New("boom")}}
	rec := httptest.NewRecorder()

	hh.QueueMetrics(rec, httptest.NewRequest(http.MethodGet, "/metrics/queue", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "queue stats unavailable", decodeBody(t, rec)["error"])
}

func TestNotFound(t *testing.T) {
	h := newRouterHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "  Bearer   abc  ", want: "abc", ok: true},
		{header: "Bearer", ok: false},
		{header: "Bearer   ", ok: false},
		{header: "Token abc", ok: false},
		{header: "", ok: false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}

func TestCallerFromContext(t *testing.T) {
	var seen ports.Caller
	mw := RequireTrigger(TriggerAuth{Verifier: fakeVerifier{token: "t"}})
	handler := mw(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen, _ = CallerFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer t")

	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "svc-scheduler", seen.Subject)
	assert.Equal(t, ports.AuthMethodBearer, seen.Method)
}
