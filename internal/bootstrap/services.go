package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/target/notify-dispatch/config"
	"github.com/target/notify-dispatch/internal/adapters/amqpdlq"
	"github.com/target/notify-dispatch/internal/adapters/channel"
	"github.com/target/notify-dispatch/internal/core"
	"github.com/target/notify-dispatch/internal/data"
	"github.com/target/notify-dispatch/internal/domain/job"
	"github.com/target/notify-dispatch/internal/observability/notify/pagerduty"
	"github.com/target/notify-dispatch/internal/observability/notify/slack"
	"github.com/target/notify-dispatch/internal/observability/statsd"
	"github.com/target/notify-dispatch/internal/ports"
	"github.com/target/notify-dispatch/internal/service"
	"github.com/target/notify-dispatch/internal/service/failurenotifier"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Queue         *data.QueueRepo
	Templates     *service.TemplateResolver
	TemplateCache *data.RedisTemplateCache // nil when Redis is disabled
	Consumer      *service.QueueConsumer
	Promoter      *service.Promoter
	Signal        *job.QueueSignal
	Verifier      ports.TokenVerifier
	DeadLetter    *amqpdlq.Publisher // nil when AMQP fan-out is disabled
	Observability ObservabilityContainer
}

// Close releases resources owned by the container.
func (c *ServiceContainer) Close() error {
	var errs []error
	if c.DeadLetter != nil {
		if err := c.DeadLetter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dead letter publisher: %w", err))
		}
	}
	if c.Observability.MetricsSink != nil {
		if err := c.Observability.MetricsSink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close statsd client: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	FailureNotifier *failurenotifier.Service
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	Infra  *Infrastructure
	Logger *slog.Logger
}

// buildObservability configures metrics and dead-letter alerting.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled:       true,
			Address:       cfg.Metrics.StatsdAddress,
			Prefix:        cfg.Metrics.Prefix,
			GlobalTags:    cfg.Metrics.Tags,
			FlushInterval: cfg.Metrics.FlushInterval,
			Logger:        logger,
		})
		if err != nil {
			logger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		FailureNotifier: buildFailureNotifier(logger, cfg.Alerts),
	}
}

func buildFailureNotifier(logger *slog.Logger, cfg config.DeadLetterAlertsConfig) *failurenotifier.Service {
	opts := failurenotifier.Options{Logger: logger, IncludeTestJobs: cfg.IncludeTestJobs}

	if cfg.SlackEnabled() {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:   cfg.Slack.WebhookURL,
			Channel:      cfg.Slack.Channel,
			Username:     cfg.Slack.Username,
			Timeout:      cfg.Timeout,
			RetryLimit:   cfg.RetryLimit,
			JobURLPrefix: cfg.Slack.JobURLPrefix,
		})
		if err != nil {
			logger.Error("failed to initialise slack notifier", "error", err)
		} else {
			opts.Sinks = append(opts.Sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDutyEnabled() {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Endpoint:   cfg.PagerDuty.Endpoint,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			opts.Sinks = append(opts.Sinks, failurenotifier.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	return failurenotifier.NewService(opts)
}

// metricsSink avoids handing a typed nil *statsd.Client to an interface field.
//
//nolint:ireturn // the sink port is what services accept.
func (o ObservabilityContainer) metricsSink() statsd.Sink {
	if o.MetricsSink == nil {
		return nil
	}
	return o.MetricsSink
}

// deadLetterPublishers lists every sink notified when an entry is archived.
func deadLetterPublishers(obs ObservabilityContainer, amqp *amqpdlq.Publisher) []core.DeadLetterPublisher {
	var pubs []core.DeadLetterPublisher
	if obs.FailureNotifier != nil && obs.FailureNotifier.Enabled() {
		pubs = append(pubs, obs.FailureNotifier)
	}
	if amqp != nil {
		pubs = append(pubs, amqp)
	}
	return pubs
}

func buildDeadLetterPublisher(cfg config.DeadLetterConfig, logger *slog.Logger) (*amqpdlq.Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	pub, err := amqpdlq.New(amqpdlq.Options{Config: cfg, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("create amqp dead letter publisher: %w", err)
	}
	return pub, nil
}

// NewServices wires repositories, dispatchers and services from configuration.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil || deps.Infra == nil || deps.Infra.DB == nil {
		return ServiceContainer{}, errors.New("config and database are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	db := deps.Infra.DB

	obs := buildObservability(logger, cfg.Observability)

	queue := data.NewQueueRepo(db, data.RepoConfig{})
	jobs := data.NewJobRepo(db, data.RepoConfig{})

	registry, err := channel.NewDefaultRegistry(channel.RegistryOptions{
		Channels: cfg.Channels,
		InApp:    data.NewInAppRepo(db, data.RepoConfig{}),
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build channel registry: %w", err)
	}

	var templateCache *data.RedisTemplateCache
	cacheOpts := service.TemplateCacheOptions{TTL: cfg.Cache.TemplateTTL}
	if deps.Infra.Redis != nil && cfg.Cache.TemplateTTL > 0 {
		templateCache = data.NewRedisTemplateCache(deps.Infra.Redis)
		cacheOpts.Cache = templateCache
	}
	templates, err := service.NewTemplateResolver(service.TemplateResolverOptions{
		Repo:   data.NewTemplateRepo(db),
		Cache:  cacheOpts,
		Logger: logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build template resolver: %w", err)
	}

	tracker, err := service.NewStatusTracker(service.StatusTrackerOptions{
		Jobs:    jobs,
		History: data.NewStatusHistoryRepo(db, data.RepoConfig{}),
		Logger:  logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build status tracker: %w", err)
	}

	dlq, err := buildDeadLetterPublisher(cfg.DeadLetter, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	consumer, err := service.NewQueueConsumer(service.QueueConsumerOptions{
		Deps: service.QueueConsumerDeps{
			Queue:       queue,
			Tracker:     tracker,
			Templates:   templates,
			Dispatchers: registry,
			DeadLetters: deadLetterPublishers(obs, dlq),
		},
		Config:  cfg.Dispatcher,
		Logger:  logger,
		Metrics: obs.metricsSink(),
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build queue consumer: %w", err)
	}

	promoter, err := service.NewPromoter(service.PromoterOptions{
		Queue:   queue,
		Config:  cfg.Dispatcher,
		Logger:  logger,
		Metrics: obs.metricsSink(),
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build promoter: %w", err)
	}

	queueSignal, err := job.NewQueueSignal(job.SignalOptions{Waiter: queue})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build queue signal: %w", err)
	}

	var verifier ports.TokenVerifier
	if cfg.IsHTTPServerEnabled() {
		verifier, err = BuildTriggerVerifier(ctx, cfg.Trigger, logger)
		if err != nil {
			return ServiceContainer{}, err
		}
	}

	return ServiceContainer{
		Queue:         queue,
		Templates:     templates,
		TemplateCache: templateCache,
		Consumer:      consumer,
		Promoter:      promoter,
		Signal:        queueSignal,
		Verifier:      verifier,
		DeadLetter:    dlq,
		Observability: obs,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Infra    *Infrastructure
	Logger   *slog.Logger
}

// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
const shutdownWaitTimeout = 15 * time.Second

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	name string
	done <-chan struct{}
}

func launchBackground(
	ctx context.Context,
	logger *slog.Logger,
	errCh chan<- error,
	svc backgroundService,
) backgroundServiceHandle {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := svc.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", svc.name, err)
			select {
			case errCh <- errMsg:
			case <-ctx.Done():
			default:
				logger.WarnContext(ctx, "dropping background service error", "service", svc.name, "error", errMsg)
			}
		}
	}()
	logger.InfoContext(ctx, "background service started", "service", svc.name, "mode", svc.mode)
	return backgroundServiceHandle{name: svc.name, done: done}
}

func buildBackgroundServices(cfg *ServiceOrchestrationConfig, logger *slog.Logger) []backgroundService {
	return []backgroundService{
		{
			mode: config.ServiceModeDispatcher,
			name: "dispatcher",
			start: func(ctx context.Context) error {
				return RunDispatcher(ctx, DispatcherRunConfig{
					Services: cfg.Services,
					Interval: cfg.Config.Dispatcher.Interval,
					Logger:   logger,
				})
			},
		},
		{
			mode: config.ServiceModeReaper,
			name: "reaper",
			start: func(ctx context.Context) error {
				return RunReaper(ctx, ReaperConfig{
					DB:      cfg.Infra.DB,
					Logger:  logger,
					Config:  cfg.Config.Reaper,
					Metrics: cfg.Services.Observability.metricsSink(),
				})
			},
		},
	}
}

// errorChannelBufferSize leaves room for one error per enabled service plus the HTTP listener.
func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := 1
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			size++
		}
	}
	return size
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil || cfg.Infra == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabled))

	var server *http.Server
	if enabled[config.ServiceModeHTTP] {
		server = StartHTTPServer(&HTTPServerConfig{
			Config:   cfg.Config,
			Services: cfg.Services,
			DB:       cfg.Infra.DB,
			Logger:   logger,
			ErrCh:    errCh,
		})
	}

	var handles []backgroundServiceHandle
	for _, svc := range buildBackgroundServices(cfg, logger) {
		if !enabled[svc.mode] {
			continue
		}
		handles = append(handles, launchBackground(serviceCtx, logger, errCh, svc))
	}

	return waitForShutdown(shutdownConfig{
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  server,
		logger:      logger,
		backgrounds: handles,
	})
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop drains the HTTP server, then waits for background loops.
func gracefulStop(cfg shutdownConfig) error {
	if err := ShutdownHTTPServer(context.Background(), cfg.httpServer, cfg.logger); err != nil {
		return err
	}
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}
	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
