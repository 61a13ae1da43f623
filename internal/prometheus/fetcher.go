package prometheus

import (
	"context"
	"log/slog"

	"github.com/failsense/failpredict/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Query maps a metric name to the PromQL expression that produces it.
type Query struct {
	Metric string
	Expr   string
}

// DefaultQueries are node_exporter based host utilization percentages.
var DefaultQueries = []Query{
	{
		Metric: domain.MetricCPUUsage,
		Expr:   `100 - avg(rate(node_cpu_seconds_total{mode="idle"}[1m])) * 100`,
	},
	{
		Metric: domain.MetricMemoryUsage,
		Expr:   `(1 - node_memory_MemAvailable_bytes / node_memory_MemTotal_bytes) * 100`,
	},
}

// Fetcher implements domain.MetricsSource on top of Prometheus instant queries.
type Fetcher struct {
	client   *Client
	queries  []Query
	failures *prometheus.CounterVec
	logger   *slog.Logger
}

// NewFetcher creates a fetcher running DefaultQueries. failures may be nil.
func NewFetcher(client *Client, failures *prometheus.CounterVec, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client:   client,
		queries:  DefaultQueries,
		failures: failures,
		logger:   logger,
	}
}

// FetchMetrics queries every metric once, sequentially. A failed metric is
// left absent and does not affect the others.
func (f *Fetcher) FetchMetrics(ctx context.Context) domain.MetricsSnapshot {
	var snap domain.MetricsSnapshot

	for _, q := range f.queries {
		value, err := f.client.Query(ctx, q.Expr)
		if err != nil {
			f.logger.Warn("metric unavailable",
				"err", domain.ErrMetricUnavailable{Metric: q.Metric, Err: err},
			)
			if f.failures != nil {
				f.failures.WithLabelValues(q.Metric).Inc()
			}
			continue
		}

		switch q.Metric {
		case domain.MetricCPUUsage:
			snap.CPUUsage = &value
		case domain.MetricMemoryUsage:
			snap.MemoryUsage = &value
		}
	}

	return snap
}
