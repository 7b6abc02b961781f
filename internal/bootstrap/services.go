package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/target/mmk-export/config"
	"github.com/target/mmk-export/internal/adapters/exportapi"
	redisstore "github.com/target/mmk-export/internal/adapters/redis"
	"github.com/target/mmk-export/internal/core"
	"github.com/target/mmk-export/internal/data"
	"github.com/target/mmk-export/internal/domain/export"
	"github.com/target/mmk-export/internal/observability/metrics"
	"github.com/target/mmk-export/internal/observability/notify/pagerduty"
	"github.com/target/mmk-export/internal/observability/notify/slack"
	"github.com/target/mmk-export/internal/observability/statsd"
	"github.com/target/mmk-export/internal/ports"
	"github.com/target/mmk-export/internal/service"
	"github.com/target/mmk-export/internal/service/failurenotifier"
)

// ServiceContainer holds the export services for one process.
type ServiceContainer struct {
	Client   *exportapi.Client
	Poller   *export.Poller
	Launcher *service.Launcher
	Email    *service.CompletionEmailService
	Tracker  *service.ExportTracker

	// Snapshots and History are nil when Redis or Postgres is disabled.
	Snapshots ports.SnapshotStore
	History   core.ExportHistoryRepository

	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	Metrics         metrics.Recorder
	Registry        *prometheus.Registry
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger

	// TokenSource overrides OAuth discovery. When nil and auth is enabled, one is discovered.
	TokenSource oauth2.TokenSource
	// Transport overrides the export client's round tripper.
	Transport http.RoundTripper
	// NewTicker overrides the poller's clock.
	NewTicker export.TickerFactory
}

// NewServices wires the export client, poller, launcher, email service and tracker.
func NewServices(ctx context.Context, deps *ServiceDeps) (*ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return nil, errors.New("service config is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	obs := buildObservability(logger, cfg.Observability)

	tokens := deps.TokenSource
	if tokens == nil && cfg.Auth.Enabled() {
		ts, err := exportapi.NewTokenSource(ctx, exportapi.AuthConfig{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			DiscoveryURL: cfg.Auth.DiscoveryURL,
			Scopes:       cfg.Auth.Scopes,
			Audience:     cfg.Auth.Audience,
		})
		if err != nil {
			obs.close(logger)
			return nil, fmt.Errorf("build token source: %w", err)
		}
		tokens = ts
	}

	client, err := exportapi.NewClient(exportapi.Config{
		BaseURL:        cfg.Export.BaseURL,
		Timeout:        cfg.Export.RequestTimeout,
		RateLimit:      cfg.Export.RateLimit,
		Burst:          cfg.Export.RateBurst,
		TokenSource:    tokens,
		CSRFCookieName: cfg.Export.CSRFCookieName,
		SessionCookie:  cfg.Export.SessionCookie,
		UserAgent:      cfg.Export.UserAgent,
		Transport:      deps.Transport,
		Logger:         logger,
	})
	if err != nil {
		obs.close(logger)
		return nil, fmt.Errorf("build export client: %w", err)
	}

	policy, err := export.NewRetryPolicy(
		cfg.Export.PollInterval,
		cfg.Export.GenericErrorThreshold,
		cfg.Export.BackendUnavailableThreshold,
	)
	if err != nil {
		obs.close(logger)
		return nil, fmt.Errorf("build retry policy: %w", err)
	}

	poller, err := export.NewPoller(export.PollerOptions{
		Querier:   client,
		Policy:    policy,
		NewTicker: deps.NewTicker,
		Logger:    logger,
	})
	if err != nil {
		obs.close(logger)
		return nil, fmt.Errorf("build poller: %w", err)
	}

	stores := buildStores(deps.DB, deps.RedisClient, cfg.Redis)

	container := &ServiceContainer{
		Client: client,
		Poller: poller,
		Launcher: service.NewLauncher(service.LauncherOptions{
			Submitter: client,
			History:   stores.history,
			Config: service.LauncherConfig{
				MaxColumnSize: cfg.Export.MaxColumnSize,
				Logger:        logger,
				Metrics:       obs.Metrics,
			},
		}),
		Email: service.NewCompletionEmailService(service.CompletionEmailOptions{
			Requester: client,
			Cache:     stores.cache,
			Config:    service.CompletionEmailConfig{Logger: logger},
		}),
		Tracker: service.NewExportTracker(service.ExportTrackerOptions{
			Source: poller,
			Sinks: service.TrackerSinks{
				Snapshots: stores.snapshots,
				History:   stores.history,
				Notifier:  obs.FailureNotifier,
				Metrics:   obs.Metrics,
			},
			Logger: logger,
		}),
		Snapshots:     stores.snapshots,
		History:       stores.history,
		Observability: obs,
	}
	return container, nil
}

// Close stops the poller and releases the metrics socket.
func (c *ServiceContainer) Close(logger *slog.Logger) {
	if c == nil {
		return
	}
	if c.Poller != nil {
		c.Poller.Close()
	}
	c.Observability.close(logger)
}

// serviceStores are the optional adapters backed by Postgres and Redis.
// Interface fields stay nil rather than holding typed nil pointers.
type serviceStores struct {
	history   core.ExportHistoryRepository
	snapshots ports.SnapshotStore
	cache     core.CacheRepository
}

func buildStores(db *sql.DB, client redis.UniversalClient, cfg config.RedisConfig) serviceStores {
	var stores serviceStores
	if db != nil {
		stores.history = data.NewExportHistoryRepo(db)
	}
	if client != nil {
		stores.snapshots = redisstore.NewSnapshotStore(client, redisstore.SnapshotStoreOptions{TTL: cfg.SnapshotTTL})
		stores.cache = redisstore.NewCache(client)
	}
	return stores
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorders := metrics.Multi{metrics.NewPrometheusRecorder(registry)}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.StatsdPrefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
			recorders = append(recorders, metrics.StatsdRecorder{Sink: client})
		}
	}

	return ObservabilityContainer{
		Metrics:         recorders,
		Registry:        registry,
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: buildFailureNotifier(obsLogger, cfg.Notifications),
		NotifierConfig:  cfg.Notifications,
	}
}

func (o ObservabilityContainer) close(logger *slog.Logger) {
	if o.MetricsSink == nil {
		return
	}
	if err := o.MetricsSink.Close(); err != nil && logger != nil {
		logger.Warn("close statsd client failed", "error", err)
	}
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{Logger: baseLogger})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:      cfg.Slack.WebhookURL,
			Channel:         cfg.Slack.Channel,
			Username:        cfg.Slack.Username,
			Timeout:         cfg.Timeout,
			RetryLimit:      cfg.RetryLimit,
			ExportURLPrefix: cfg.Slack.ExportURLPrefix,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger:       baseLogger,
		Sinks:        sinks,
		SkipOutcomes: cfg.SkipOutcomes,
	})
}
