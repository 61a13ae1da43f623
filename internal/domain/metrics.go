package domain

import "context"

const (
	MetricCPUUsage    = "cpu_usage"
	MetricMemoryUsage = "memory_usage"
)

// MetricsSnapshot holds the two host metrics a prediction is built from.
// A nil field means the metric is absent for this request.
type MetricsSnapshot struct {
	CPUUsage    *float64 `json:"cpu_usage"`
	MemoryUsage *float64 `json:"memory_usage"`
}

// Complete reports whether both metrics are present.
func (s MetricsSnapshot) Complete() bool {
	return s.CPUUsage != nil && s.MemoryUsage != nil
}

// MetricsSource produces a fresh snapshot per call. Failures of individual
// metrics are reported as absent values, not as errors.
type MetricsSource interface {
	FetchMetrics(ctx context.Context) MetricsSnapshot
}
