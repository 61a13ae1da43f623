package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/failsense/failpredict/internal/app"
	"github.com/failsense/failpredict/internal/config"
	"github.com/urfave/cli/v2"
)

func main() {
	// Environment first; flags override it.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	cliApp := &cli.App{
		Name:    "failpredict",
		Usage:   "serve host failure probability predictions from Prometheus metrics",
		Version: fmt.Sprintf("%s (built %s)", config.Version, config.BuildTime),
		Flags:   flags(cfg),
		Action: func(c *cli.Context) error {
			return run(c.Context, cfg)
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "failpredict: %v\n", err)
		os.Exit(1)
	}
}

func flags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "listen",
			Usage:       "HTTP listen address",
			Value:       cfg.ListenAddr,
			Destination: &cfg.ListenAddr,
		},
		&cli.StringFlag{
			Name:        "prometheus-url",
			Usage:       "Prometheus base URL",
			Value:       cfg.PrometheusURL,
			Destination: &cfg.PrometheusURL,
		},
		&cli.DurationFlag{
			Name:        "prometheus-timeout",
			Usage:       "timeout for a single Prometheus query (0 = none)",
			Value:       cfg.PrometheusTimeout,
			Destination: &cfg.PrometheusTimeout,
		},
		&cli.StringFlag{
			Name:        "metrics-source",
			Usage:       "where host metrics come from: prometheus or procfs",
			Value:       cfg.MetricsSource,
			Destination: &cfg.MetricsSource,
		},
		&cli.StringFlag{
			Name:        "model-backend",
			Usage:       "inference backend: lstm or tfserving",
			Value:       cfg.ModelBackend,
			Destination: &cfg.ModelBackend,
		},
		&cli.StringFlag{
			Name:        "model",
			Usage:       "path to the LSTM weights file",
			Value:       cfg.ModelPath,
			Destination: &cfg.ModelPath,
		},
		&cli.StringFlag{
			Name:        "tfserving-url",
			Usage:       "TensorFlow Serving REST base URL",
			Value:       cfg.TFServingURL,
			Destination: &cfg.TFServingURL,
		},
		&cli.StringFlag{
			Name:        "tfserving-model",
			Usage:       "model name served by TensorFlow Serving",
			Value:       cfg.TFServingModel,
			Destination: &cfg.TFServingModel,
		},
		&cli.StringFlag{
			Name:        "allowed-origin",
			Usage:       "CORS origin allowed to call the API with credentials",
			Value:       cfg.AllowedOrigin,
			Destination: &cfg.AllowedOrigin,
		},
		&cli.DurationFlag{
			Name:        "poll-interval",
			Usage:       "run background predictions at this interval (0 = disabled)",
			Value:       cfg.PollInterval,
			Destination: &cfg.PollInterval,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging",
			Value:       cfg.Debug,
			Destination: &cfg.Debug,
		},
		&cli.StringFlag{
			Name:        "log-dir",
			Usage:       "also write logs to <log-dir>/failpredict.log",
			Value:       cfg.LogDir,
			Destination: &cfg.LogDir,
		},
	}
}

func run(parent context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, err := config.NewLogger(cfg, "failpredict")
	if err != nil {
		return fmt.Errorf("logger error: %w", err)
	}

	logger.Info("starting failpredict",
		"version", config.Version,
		"build_time", config.BuildTime,
		"debug", cfg.Debug,
	)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to start", "err", err)
		return err
	}

	if err := a.Run(ctx); err != nil {
		logger.Error("exited with error", "err", err)
		return err
	}
	return nil
}
