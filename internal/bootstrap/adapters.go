package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/notify-dispatch/config"
	"github.com/target/notify-dispatch/internal/adapters/jobrunner"
	"github.com/target/notify-dispatch/internal/data"
	"github.com/target/notify-dispatch/internal/observability/statsd"
	"github.com/target/notify-dispatch/internal/service"
)

// DispatcherRunConfig contains configuration for the background dispatcher.
type DispatcherRunConfig struct {
	Services ServiceContainer
	Interval time.Duration
	Logger   *slog.Logger
}

// RunDispatcher runs the promote-and-dispatch loop until ctx is cancelled.
func RunDispatcher(ctx context.Context, cfg DispatcherRunConfig) error {
	if cfg.Services.Promoter == nil || cfg.Services.Consumer == nil {
		return errors.New("dispatcher requires promoter and consumer")
	}
	opts := jobrunner.RunnerOptions{
		Promoter: cfg.Services.Promoter,
		Consumer: cfg.Services.Consumer,
		Logger:   cfg.Logger,
		Interval: cfg.Interval,
	}
	if cfg.Services.Signal != nil {
		opts.Signal = cfg.Services.Signal
	}

	runner, err := jobrunner.NewRunner(opts)
	if err != nil {
		return fmt.Errorf("create dispatcher runner: %w", err)
	}
	if runErr := runner.Run(ctx); runErr != nil {
		return fmt.Errorf("run dispatcher runner: %w", runErr)
	}
	return nil
}

// ReaperConfig contains configuration for the reaper.
type ReaperConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// RunReaper runs table cleanup until ctx is cancelled.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	if cfg.DB == nil {
		return errors.New("reaper requires a database")
	}
	svc, err := service.NewReaperService(service.ReaperServiceOptions{
		Repo:    data.NewReaperRepo(cfg.DB, data.RepoConfig{}),
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper: %w", err)
	}
	return svc.Run(ctx)
}
