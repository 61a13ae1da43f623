package predictor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/failsense/failpredict/internal/domain"
	"github.com/failsense/failpredict/internal/features"
	"github.com/failsense/failpredict/internal/monitoring"
	"github.com/prometheus/client_golang/prometheus"
)

// Service computes a failure probability from live host metrics.
type Service struct {
	source  domain.MetricsSource
	model   domain.Model
	sampler features.Sampler
	metrics *monitoring.Registry
	logger  *slog.Logger
}

// NewService wires a prediction service. metrics may be nil.
func NewService(
	source domain.MetricsSource,
	model domain.Model,
	sampler features.Sampler,
	metrics *monitoring.Registry,
	logger *slog.Logger,
) *Service {
	return &Service{
		source:  source,
		model:   model,
		sampler: sampler,
		metrics: metrics,
		logger:  logger,
	}
}

// Predict fetches metrics, builds the feature vector and runs the model once.
// It returns domain.ErrMetricsMissing without touching the model when either
// metric is absent, and domain.ErrInference when the model fails or yields a
// non-finite probability.
func (s *Service) Predict(ctx context.Context) (*domain.PredictionResult, error) {
	snap := s.source.FetchMetrics(ctx)
	if !snap.Complete() {
		s.observe(monitoring.OutcomeMetricsMissing)
		return nil, domain.ErrMetricsMissing{}
	}

	vec := features.Build(*snap.CPUUsage, *snap.MemoryUsage, s.sampler)
	s.logger.Debug("feature vector built",
		"model", s.model.Name(),
		"features", vec.Map(),
	)

	out, err := s.infer(ctx, vec.Tensor())
	if err != nil {
		s.observe(monitoring.OutcomeInferenceError)
		return nil, domain.ErrInference{Err: err}
	}

	p := out[0][0]
	if math.IsNaN(p) || math.IsInf(p, 0) {
		s.observe(monitoring.OutcomeInferenceError)
		return nil, domain.ErrInference{Err: fmt.Errorf("non-finite model output %v", p)}
	}

	s.observe(monitoring.OutcomeOK)
	return &domain.PredictionResult{FailureProbability: p}, nil
}

func (s *Service) infer(ctx context.Context, input [][][]float64) ([][]float64, error) {
	if s.metrics != nil {
		timer := prometheus.NewTimer(s.metrics.InferenceDuration)
		defer timer.ObserveDuration()
	}

	out, err := s.model.Predict(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 || len(out[0]) == 0 {
		return nil, errors.New("model returned an empty output")
	}
	return out, nil
}

func (s *Service) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.Predictions.WithLabelValues(outcome).Inc()
	}
}
