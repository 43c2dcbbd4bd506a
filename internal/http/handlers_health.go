package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/notify-dispatch/internal/domain/model"
)

// Pinger reports database reachability. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// QueueStatser reports queue depth.
type QueueStatser interface {
	Stats(ctx context.Context) (*model.QueueStats, error)
}

// HealthHandlers serves liveness and queue metrics.
type HealthHandlers struct {
	DB     Pinger
	Queue  QueueStatser
	Logger *slog.Logger
}

const healthTimeout = 2 * time.Second

// Health returns 200 {"status":"ok"} when the database answers a ping.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			h.logger().WarnContext(ctx, "health check failed", "error", err)
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// QueueMetrics returns ready, leased and dead-letter counts.
func (h *HealthHandlers) QueueMetrics(w http.ResponseWriter, r *http.Request) {
	if h.Queue == nil {
		WriteFailure(w, http.StatusNotFound, "queue metrics unavailable")
		return
	}
	stats, err := h.Queue.Stats(r.Context())
	if err != nil {
		h.logger().ErrorContext(r.Context(), "queue stats failed", "error", err)
		WriteFailure(w, http.StatusInternalServerError, "queue stats unavailable")
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

func (h *HealthHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
