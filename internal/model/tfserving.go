package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

// TFServing runs inference on a TensorFlow Serving REST endpoint.
type TFServing struct {
	predictURL string
	model      string
	http       *http.Client
}

// NewTFServing creates a client for <baseURL>/v1/models/<model>:predict.
// Requests are not retried.
func NewTFServing(baseURL, model string, logger *slog.Logger) *TFServing {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil
	if logger != nil {
		retryClient.Logger = logger
	}

	return &TFServing{
		predictURL: strings.TrimRight(baseURL, "/") + "/v1/models/" + url.PathEscape(model) + ":predict",
		model:      model,
		http:       retryClient.StandardClient(),
	}
}

func (s *TFServing) Name() string {
	return "tfserving/" + s.model
}

type predictRequest struct {
	Instances [][][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error"`
}

func (s *TFServing) Predict(ctx context.Context, input [][][]float64) ([][]float64, error) {
	body, err := json.Marshal(predictRequest{Instances: input})
	if err != nil {
		return nil, fmt.Errorf("marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.predictURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http POST %s: %w", s.predictURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var data predictResponse
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if json.Unmarshal(respBody, &data) == nil && data.Error != "" {
			return nil, fmt.Errorf("tfserving returned %d: %s", resp.StatusCode, data.Error)
		}
		return nil, fmt.Errorf("tfserving returned %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, &data); err != nil {
		return nil, fmt.Errorf("decode predict response: %w", err)
	}
	if len(data.Predictions) != len(input) {
		return nil, fmt.Errorf("expected %d predictions, got %d", len(input), len(data.Predictions))
	}
	return data.Predictions, nil
}
