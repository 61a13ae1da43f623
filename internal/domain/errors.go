package domain

import "fmt"

// ErrMetricUnavailable marks a single metric that could not be fetched or parsed.
// It degrades that metric to absent and never fails a whole fetch.
type ErrMetricUnavailable struct {
	Metric string
	Err    error
}

func (e ErrMetricUnavailable) Error() string {
	return fmt.Sprintf("metric %s unavailable: %v", e.Metric, e.Err)
}

func (e ErrMetricUnavailable) Unwrap() error {
	return e.Err
}

// ErrMetricsMissing is returned when a prediction is requested while one or
// both required metrics are absent.
type ErrMetricsMissing struct{}

func (e ErrMetricsMissing) Error() string {
	return "Could not fetch metrics from Prometheus"
}

// ErrInference wraps a model failure or an unusable model output.
type ErrInference struct {
	Err error
}

func (e ErrInference) Error() string {
	return fmt.Sprintf("inference: %v", e.Err)
}

func (e ErrInference) Unwrap() error {
	return e.Err
}

// ErrModelLoad is returned when the model artifact at Path cannot be read or validated.
type ErrModelLoad struct {
	Path string
	Err  error
}

func (e ErrModelLoad) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e ErrModelLoad) Unwrap() error {
	return e.Err
}
