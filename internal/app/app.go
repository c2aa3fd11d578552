// Package app initializes and holds long-lived services shared by the CLI
// commands: configuration, logger, tracer provider, upload provider, notifier
// and the optional metrics server.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/stackexchange-crawler/internal/config"
	"github.com/JakeFAU/stackexchange-crawler/internal/harvest"
	"github.com/JakeFAU/stackexchange-crawler/internal/id/uuid"
	"github.com/JakeFAU/stackexchange-crawler/internal/metrics"
	"github.com/JakeFAU/stackexchange-crawler/internal/notify"
	"github.com/JakeFAU/stackexchange-crawler/internal/notify/pubsub"
	"github.com/JakeFAU/stackexchange-crawler/internal/retry"
	"github.com/JakeFAU/stackexchange-crawler/internal/stackexchange"
	"github.com/JakeFAU/stackexchange-crawler/internal/storage"
	"github.com/JakeFAU/stackexchange-crawler/internal/telemetry"
)

// App holds the services built once per process.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	runID     string
	storage   storage.Provider
	publisher *pubsub.Publisher
	notifier  *notify.Notifier
	tracer    *sdktrace.TracerProvider
	out       io.Writer

	stopMetrics context.CancelFunc
	metricsDone chan struct{}
}

// New builds the App. It fails fast when a configured provider cannot be
// reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, logger: logger, runID: runID, out: os.Stdout}

	a.tracer, err = telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		GrpcEndpoint: cfg.Telemetry.OTLPGrpcEndpoint,
		HTTPEndpoint: cfg.Telemetry.OTLPHTTPEndpoint,
		Headers:      cfg.Telemetry.OTLPHeaders,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if cfg.Crawler.Upload {
		a.storage, err = storage.New(ctx, storageConfig(cfg), logger.Named("storage"))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		logger.Info("storage provider ready", zap.String("provider", cfg.Storage.Provider))
	} else {
		a.storage = &storage.NoOpProvider{}
		logger.Info("uploads disabled")
	}

	if cfg.NotifyEnabled() {
		a.publisher, err = pubsub.New(ctx, cfg.Notify.PubSubProject, logger.Named("pubsub"))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize notifications: %w", err)
		}
		a.notifier = notify.New(a.publisher, cfg.Notify.PubSubTopic, logger.Named("notify"))
		logger.Info("notifications enabled", zap.String("topic", cfg.Notify.PubSubTopic))
	}

	if addr := cfg.Metrics.ListenAddr; addr != "" {
		metricsCtx, cancel := context.WithCancel(context.Background())
		a.stopMetrics = cancel
		a.metricsDone = make(chan struct{})
		go func() {
			defer close(a.metricsDone)
			if err := metrics.Serve(metricsCtx, addr, logger.Named("metrics")); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	return a, nil
}

// GetLogger returns the shared logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the loaded configuration.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// RunID identifies this process's harvest in logs and notifications.
func (a *App) RunID() string {
	return a.runID
}

// HarvestSettings turns the configuration into harvester settings.
func (a *App) HarvestSettings() (harvest.Settings, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return harvest.Settings{}, err
	}
	return harvest.Settings{
		RunID:     a.runID,
		OutputDir: a.cfg.Output.Dir,
		Source:    a.cfg.Output.Source,
		Location:  loc,
		Client: stackexchange.Config{
			BaseURL:           a.cfg.APIBaseURL(),
			Key:               a.cfg.API.Key,
			UserAgents:        a.cfg.API.UserAgents,
			RequestsPerSecond: a.cfg.API.RequestsPerSecond,
			Burst:             a.cfg.API.Burst,
			Timeout:           a.cfg.API.Timeout,
			PageSize:          a.cfg.API.PageSize,
			QuestionsFilter:   a.cfg.API.QuestionsFilter,
			SitesFilter:       a.cfg.API.SitesFilter,
		},
		Retry:             retryConfig(a.cfg),
		SitesAttempts:     a.cfg.Retry.SitesAttempts,
		QuestionsAttempts: a.cfg.Retry.QuestionsAttempts,
		OnUnresolved:      a.cfg.Crawler.OnUnresolved,
		Provider:          a.storage,
		StoragePrefix:     a.cfg.Storage.Prefix,
		Notifier:          a.notifier,
		Out:               a.out,
		Logger:            a.logger,
		TracerProvider:    a.tracer,
	}, nil
}

// Close shuts down the metrics server and flushes clients.
func (a *App) Close() {
	if a.stopMetrics != nil {
		a.stopMetrics()
		<-a.metricsDone
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			a.logger.Warn("error shutting down tracer provider", zap.Error(err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("error closing pubsub publisher", zap.Error(err))
		}
	}
	if closer, ok := a.storage.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("error closing storage provider", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func storageConfig(cfg config.Config) storage.Config {
	return storage.Config{
		Provider: cfg.Storage.Provider,
		Bucket:   cfg.Storage.Bucket,
		Prefix:   cfg.Storage.Prefix,
		S3: storage.S3Config{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.S3.Region,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
			Endpoint:        cfg.Storage.S3.Endpoint,
			UsePathStyle:    cfg.Storage.S3.UsePathStyle,
		},
		LocalDir: cfg.Storage.Local.Dir,
	}
}

func retryConfig(cfg config.Config) retry.Config {
	return retry.Config{BaseDelay: cfg.Retry.BaseDelay, Step: cfg.Retry.Step}
}
