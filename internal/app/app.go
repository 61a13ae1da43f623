package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsense/failpredict/internal/config"
	"github.com/failsense/failpredict/internal/domain"
	"github.com/failsense/failpredict/internal/features"
	"github.com/failsense/failpredict/internal/model"
	"github.com/failsense/failpredict/internal/monitoring"
	"github.com/failsense/failpredict/internal/poller"
	"github.com/failsense/failpredict/internal/predictor"
	"github.com/failsense/failpredict/internal/prometheus"
	"github.com/failsense/failpredict/internal/server"
	"github.com/failsense/failpredict/internal/system"
)

// App is the top-level application that wires all subsystems.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	registry   *monitoring.Registry
	predictor  *predictor.Service
	poller     *poller.Poller
	httpServer *server.Server
}

// New loads the model and builds every component. The model is loaded once
// here and shared read-only by all requests.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	registry := monitoring.NewRegistry()

	m, err := newModel(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init model: %w", err)
	}

	source, err := newMetricsSource(cfg, registry, logger)
	if err != nil {
		return nil, fmt.Errorf("init metrics source: %w", err)
	}

	svc := predictor.NewService(source, m, features.NewRandomSampler(), registry, logger)
	handler := server.NewHandler(svc, logger)

	a := &App{
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		predictor:  svc,
		httpServer: server.New(cfg.ListenAddr, handler, cfg.AllowedOrigin, registry, logger),
	}
	if cfg.PollInterval > 0 {
		a.poller = poller.New(svc, registry.FailureProbability, logger, cfg.PollInterval)
	}

	logger.Info("components ready",
		"model", m.Name(),
		"metrics_source", cfg.MetricsSource,
		"poll_interval", cfg.PollInterval.String(),
	)
	return a, nil
}

// newModel constructs the inference backend selected by cfg.ModelBackend.
func newModel(cfg *config.Config, logger *slog.Logger) (domain.Model, error) {
	switch cfg.ModelBackend {
	case config.BackendLSTM, "":
		m, err := model.LoadLSTM(cfg.ModelPath)
		if err != nil {
			return nil, err
		}
		logger.Info("model loaded", "path", cfg.ModelPath)
		return m, nil
	case config.BackendTFServing:
		return model.NewTFServing(cfg.TFServingURL, cfg.TFServingModel, logger), nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.ModelBackend)
	}
}

func newMetricsSource(cfg *config.Config, registry *monitoring.Registry, logger *slog.Logger) (domain.MetricsSource, error) {
	switch cfg.MetricsSource {
	case config.SourcePrometheus, "":
		client := prometheus.NewClient(cfg.PrometheusURL, cfg.PrometheusTimeout, logger)
		return prometheus.NewFetcher(client, registry.MetricFetchFailures, logger), nil
	case config.SourceProcfs:
		return system.NewStatsCollector("/proc", registry.MetricFetchFailures, logger), nil
	default:
		return nil, fmt.Errorf("unknown metrics source %q", cfg.MetricsSource)
	}
}

// Run serves HTTP (and the background scorer, if enabled) until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.poller != nil {
		go a.poller.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.httpServer.Start()
	}()

	a.logger.Info("failpredict ready",
		"version", config.Version,
		"addr", a.cfg.ListenAddr,
		"allowed_origin", a.cfg.AllowedOrigin,
	)

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
		return a.shutdown()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown error", "err", err)
		return err
	}

	a.logger.Info("stopped")
	return nil
}
