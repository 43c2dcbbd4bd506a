package httpx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterServices holds everything the HTTP router serves.
type RouterServices struct {
	Dispatch *DispatchHandlers
	Health   *HealthHandlers
	Auth     TriggerAuth

	// AllowedOrigin is echoed in CORS responses from the trigger.
	AllowedOrigin string
	Logger        *slog.Logger // Logger for request and panic logs (optional)
}

// NewRouter creates the chi router for the trigger and health endpoints.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if services.Auth.Logger == nil {
		services.Auth.Logger = logger
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logging(logger))
	r.Use(Recover(logger))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteFailure(w, http.StatusNotFound, "not found")
	})

	if services.Health != nil {
		r.Get("/healthz", services.Health.Health)
		r.Head("/healthz", services.Health.Health)
		r.Get("/metrics/queue", services.Health.QueueMetrics)
	}

	if services.Dispatch != nil {
		r.With(CORS(services.AllowedOrigin), RequireTrigger(services.Auth)).
			HandleFunc("/api/dispatch/run", services.Dispatch.Run)
	}

	return r
}
