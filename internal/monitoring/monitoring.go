package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "failpredict"

// Prediction outcomes used as the "outcome" label.
const (
	OutcomeOK             = "ok"
	OutcomeMetricsMissing = "metrics_missing"
	OutcomeInferenceError = "inference_error"
)

// Registry bundles the service registry with the collectors the service updates.
type Registry struct {
	*prometheus.Registry

	MetricFetchFailures *prometheus.CounterVec
	Predictions         *prometheus.CounterVec
	InferenceDuration   prometheus.Histogram
	FailureProbability  prometheus.Gauge
}

func NewRegistry() *Registry {
	r := &Registry{
		Registry: prometheus.NewRegistry(),
		MetricFetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metric_fetch_failures_total",
			Help:      "Number of metric fetches that resolved to an absent value.",
		}, []string{"metric"}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Number of prediction attempts by outcome.",
		}, []string{"outcome"}),
		InferenceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Duration of a single model forward pass.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		FailureProbability: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "failure_probability",
			Help:      "Last failure probability computed by the background scorer.",
		}),
	}

	r.MustRegister(collectors.NewGoCollector())
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(r.MetricFetchFailures, r.Predictions, r.InferenceDuration, r.FailureProbability)
	return r
}
