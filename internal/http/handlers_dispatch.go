package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/notify-dispatch/internal/domain/model"
)

// Promoter enqueues due jobs.
type Promoter interface {
	PromoteDue(ctx context.Context) (int, error)
}

// CycleRunner drains one batch from the queue.
type CycleRunner interface {
	RunCycleFrom(ctx context.Context, source string) (model.CycleResult, error)
}

// DispatchHandlers serves the dispatch trigger.
type DispatchHandlers struct {
	Promoter Promoter
	Consumer CycleRunner
	Timeout  time.Duration
	Logger   *slog.Logger

	now func() time.Time
}

type dispatchResponse struct {
	Success           bool   `json:"success"`
	ScheduledEnqueued int    `json:"scheduled_enqueued"`
	Processed         int    `json:"processed"`
	Errors            int    `json:"errors"`
	Timestamp         string `json:"timestamp"`
}

// Run promotes due jobs and then runs one consumer cycle.
func (h *DispatchHandlers) Run(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	logger := h.logger()
	if caller, ok := CallerFromContext(ctx); ok {
		logger = logger.With("caller", caller.Subject, "auth_method", string(caller.Method))
	}

	enqueued, err := h.Promoter.PromoteDue(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "trigger promote failed", "error", err)
		WriteFailure(w, http.StatusInternalServerError, err.Error())
		return
	}

	res, err := h.Consumer.RunCycleFrom(ctx, "trigger")
	if err != nil {
		logger.ErrorContext(ctx, "trigger cycle failed", "error", err)
		WriteFailure(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.InfoContext(ctx, "trigger run complete",
		"scheduled_enqueued", enqueued, "processed", res.Processed, "errors", res.Errors)
	WriteJSON(w, http.StatusOK, dispatchResponse{
		Success:           true,
		ScheduledEnqueued: enqueued,
		Processed:         res.Processed,
		Errors:            res.Errors,
		Timestamp:         h.clock().UTC().Format(time.RFC3339),
	})
}

func (h *DispatchHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *DispatchHandlers) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}
