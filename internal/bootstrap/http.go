package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/notify-dispatch/config"
	httpx "github.com/target/notify-dispatch/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
	ErrCh    chan<- error // Optional: receives listener failures
}

// BuildHTTPHandler assembles the router for the trigger and health endpoints.
func BuildHTTPHandler(cfg *HTTPServerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	services := httpx.RouterServices{
		Health: &httpx.HealthHandlers{Logger: logger},
		Auth: httpx.TriggerAuth{
			Verifier:   cfg.Services.Verifier,
			CronSecret: appCfg.Trigger.CronSecret,
			Logger:     logger,
		},
		AllowedOrigin: appCfg.Trigger.AllowedOrigin,
		Logger:        logger,
	}
	if cfg.DB != nil {
		services.Health.DB = cfg.DB
	}
	if cfg.Services.Queue != nil {
		services.Health.Queue = cfg.Services.Queue
	}
	if cfg.Services.Promoter != nil && cfg.Services.Consumer != nil {
		services.Dispatch = &httpx.DispatchHandlers{
			Promoter: cfg.Services.Promoter,
			Consumer: cfg.Services.Consumer,
			Timeout:  appCfg.Trigger.Timeout,
			Logger:   logger,
		}
	}
	return httpx.NewRouter(services)
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var httpCfg config.HTTPConfig
	if cfg.Config != nil {
		httpCfg = cfg.Config.HTTP
	}
	addr := httpCfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	writeTimeout := httpCfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 60 * time.Second
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           BuildHTTPHandler(cfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			if cfg.ErrCh != nil {
				select {
				case cfg.ErrCh <- fmt.Errorf("http server: %w", err):
				default:
				}
			}
		}
	}()

	return server
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownWaitTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}
