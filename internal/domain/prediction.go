package domain

import "context"

// PredictionResult is the response of a successful prediction.
// The probability is passed through from the model without clamping.
type PredictionResult struct {
	FailureProbability float64 `json:"failure_probability"`
}

// Model runs a forward pass over a (batch, timesteps, channels) tensor and
// returns one output row per batch entry. Implementations are read-only after
// construction and safe for concurrent use.
type Model interface {
	Predict(ctx context.Context, input [][][]float64) ([][]float64, error)
	Name() string
}
