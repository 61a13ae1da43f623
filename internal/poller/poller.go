package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/failsense/failpredict/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// AlertThreshold is the probability above which a background prediction is
// logged at WARN, matching the dashboard alert.
const AlertThreshold = 0.7

// Predictor is the subset of predictor.Service the poller needs.
type Predictor interface {
	Predict(ctx context.Context) (*domain.PredictionResult, error)
}

// Poller periodically scores the host and exports the latest probability.
type Poller struct {
	predictor Predictor
	gauge     prometheus.Gauge
	logger    *slog.Logger
	interval  time.Duration
}

// New creates a poller scoring the host every interval.
func New(predictor Predictor, gauge prometheus.Gauge, logger *slog.Logger, interval time.Duration) *Poller {
	return &Poller{
		predictor: predictor,
		gauge:     gauge,
		logger:    logger,
		interval:  interval,
	}
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := p.predictor.Predict(ctx)
			if err != nil {
				if failures%20 == 0 {
					p.logger.Warn("background prediction failed", "err", err, "failures", failures+1)
				}
				failures++
				continue
			}
			failures = 0
			p.gauge.Set(result.FailureProbability)
			if result.FailureProbability > AlertThreshold {
				p.logger.Warn("failure probability above alert threshold",
					"failure_probability", result.FailureProbability,
					"threshold", AlertThreshold,
				)
				continue
			}
			p.logger.Debug("background prediction", "failure_probability", result.FailureProbability)
		}
	}
}
