package poller

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/failsense/failpredict/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type countingPredictor struct {
	calls       atomic.Int32
	probability float64
	err         error
}

func (p *countingPredictor) Predict(context.Context) (*domain.PredictionResult, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return &domain.PredictionResult{FailureProbability: p.probability}, nil
}

func TestPollerUpdatesGauge(t *testing.T) {
	pred := &countingPredictor{probability: 0.31}
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "failure_probability"})
	p := New(pred, gauge, slog.New(slog.NewTextHandler(io.Discard, nil)), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for pred.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("poller did not stop after cancel")
	}

	if pred.calls.Load() < 3 {
		t.Fatalf("expected at least 3 predictions, got %d", pred.calls.Load())
	}
	if got := testutil.ToFloat64(gauge); got != 0.31 {
		t.Errorf("expected gauge 0.31, got %f", got)
	}
}

func TestPollerKeepsGaugeOnError(t *testing.T) {
	pred := &countingPredictor{err: domain.ErrMetricsMissing{}}
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "failure_probability"})
	gauge.Set(0.9)
	p := New(pred, gauge, slog.New(slog.NewTextHandler(io.Discard, nil)), 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	if pred.calls.Load() == 0 {
		t.Fatalf("expected the poller to attempt predictions")
	}
	if got := testutil.ToFloat64(gauge); got != 0.9 {
		t.Errorf("expected gauge to keep 0.9, got %f", got)
	}
}

func TestPollerWarnsAboveThreshold(t *testing.T) {
	tests := []struct {
		probability float64
		wantWarn    bool
	}{
		{0.85, true},
		{AlertThreshold, false},
		{0.31, false},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
		pred := &countingPredictor{probability: tt.probability}
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "failure_probability"})

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		New(pred, gauge, logger, 5*time.Millisecond).Run(ctx)
		cancel()

		if pred.calls.Load() == 0 {
			t.Fatalf("probability %v: expected the poller to attempt predictions", tt.probability)
		}
		gotWarn := strings.Contains(buf.String(), "above alert threshold")
		if gotWarn != tt.wantWarn {
			t.Errorf("probability %v: expected warn=%v, got log %q", tt.probability, tt.wantWarn, buf.String())
		}
	}
}
