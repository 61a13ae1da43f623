package config

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Build-time variables injected via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	SourcePrometheus = "prometheus"
	SourceProcfs     = "procfs"

	BackendLSTM      = "lstm"
	BackendTFServing = "tfserving"
)

// Config holds all service configuration.
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string

	// PrometheusURL is the base URL of the Prometheus server (without /api/v1).
	PrometheusURL string

	// PrometheusTimeout bounds a single instant query. Zero means no timeout.
	PrometheusTimeout time.Duration

	// MetricsSource selects where CPU and memory usage come from: "prometheus" or "procfs".
	MetricsSource string

	// ModelBackend selects the inference backend: "lstm" or "tfserving".
	ModelBackend string

	// ModelPath is the LSTM weights file loaded at startup.
	ModelPath string

	// TFServingURL is the base URL of a TensorFlow Serving REST endpoint.
	TFServingURL string

	// TFServingModel is the model name served by TensorFlow Serving.
	TFServingModel string

	// AllowedOrigin is the single CORS origin allowed to call the API with credentials.
	AllowedOrigin string

	// PollInterval enables the background scorer when non-zero.
	PollInterval time.Duration

	// Debug enables verbose logging.
	Debug bool

	// LogDir, when set, additionally writes logs to <LogDir>/failpredict.log.
	LogDir string
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     "0.0.0.0:8000",
		PrometheusURL:  "http://172.20.10.5:9090",
		MetricsSource:  SourcePrometheus,
		ModelBackend:   BackendLSTM,
		ModelPath:      "LSTM.json",
		TFServingModel: "lstm",
		AllowedOrigin:  "http://localhost:5173",
	}
}

// Load reads configuration from FAILPRED_* environment variables, applying
// defaults for anything not explicitly set.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("FAILPRED_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}

	if v := os.Getenv("FAILPRED_PROMETHEUS_URL"); v != "" {
		cfg.PrometheusURL = v
	}

	if v := os.Getenv("FAILPRED_PROMETHEUS_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("FAILPRED_PROMETHEUS_TIMEOUT: %w", err)
		}
		cfg.PrometheusTimeout = d
	}

	if v := os.Getenv("FAILPRED_METRICS_SOURCE"); v != "" {
		cfg.MetricsSource = v
	}

	if v := os.Getenv("FAILPRED_MODEL_BACKEND"); v != "" {
		cfg.ModelBackend = v
	}

	if v := os.Getenv("FAILPRED_MODEL_PATH"); v != "" {
		cfg.ModelPath = v
	}

	if v := os.Getenv("FAILPRED_TFSERVING_URL"); v != "" {
		cfg.TFServingURL = v
	}

	if v := os.Getenv("FAILPRED_TFSERVING_MODEL"); v != "" {
		cfg.TFServingModel = v
	}

	if v := os.Getenv("FAILPRED_ALLOWED_ORIGIN"); v != "" {
		cfg.AllowedOrigin = v
	}

	if v := os.Getenv("FAILPRED_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("FAILPRED_POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}

	if v := os.Getenv("FAILPRED_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("FAILPRED_DEBUG: %w", err)
		}
		cfg.Debug = debug
	}

	if v := os.Getenv("FAILPRED_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("listen address is required")
	}

	switch c.MetricsSource {
	case SourcePrometheus:
		if _, err := url.ParseRequestURI(c.PrometheusURL); err != nil {
			return fmt.Errorf("invalid prometheus url %q: %w", c.PrometheusURL, err)
		}
	case SourceProcfs:
	default:
		return fmt.Errorf("unknown metrics source %q (expected %q or %q)", c.MetricsSource, SourcePrometheus, SourceProcfs)
	}

	switch c.ModelBackend {
	case BackendLSTM:
		if c.ModelPath == "" {
			return fmt.Errorf("model path is required for the %s backend", BackendLSTM)
		}
	case BackendTFServing:
		if _, err := url.ParseRequestURI(c.TFServingURL); err != nil {
			return fmt.Errorf("invalid tfserving url %q: %w", c.TFServingURL, err)
		}
		if c.TFServingModel == "" {
			return fmt.Errorf("tfserving model name is required")
		}
	default:
		return fmt.Errorf("unknown model backend %q (expected %q or %q)", c.ModelBackend, BackendLSTM, BackendTFServing)
	}

	if c.PrometheusTimeout < 0 {
		return fmt.Errorf("prometheus timeout must not be negative")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval must not be negative")
	}
	return nil
}

// NewLogger creates a structured logger that writes to stdout and, when
// LogDir is set, to a log file as well.
func NewLogger(cfg *Config, name string) (*slog.Logger, error) {
	var out io.Writer = os.Stdout

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}

		logPath := filepath.Join(cfg.LogDir, name+".log")
		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", logPath, err)
		}
		out = io.MultiWriter(os.Stdout, file)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler), nil
}
