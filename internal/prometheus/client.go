package prometheus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

var (
	errEmptyResult = errors.New("empty result")
	errNoSample    = errors.New("result has no sample value")
)

// Client runs instant queries against the Prometheus HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a Prometheus API client. Requests are never retried;
// a zero timeout leaves the call unbounded.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil
	if logger != nil {
		retryClient.Logger = logger
	}

	httpClient := retryClient.StandardClient()
	httpClient.Timeout = timeout

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// See https://prometheus.io/docs/prometheus/latest/querying/api/#instant-queries
type queryResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string `json:"metric"`
			Value  []json.RawMessage `json:"value"`
		} `json:"result"`
	} `json:"data"`
}

// Query evaluates expr at the current time and returns the value of the
// first series in the result.
func (c *Client) Query(ctx context.Context, expr string) (float64, error) {
	u := c.baseURL + "/api/v1/query?query=" + url.QueryEscape(expr)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("query %q: %w", expr, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("prometheus returned %d: %s", resp.StatusCode, string(body))
	}

	var data queryResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if len(data.Data.Result) == 0 {
		return 0, errEmptyResult
	}

	sample := data.Data.Result[0].Value
	if len(sample) < 2 {
		return 0, errNoSample
	}
	return parseSampleValue(sample[1])
}

// Sample values are string-encoded ("12.5", "NaN"); a bare number is accepted too.
func parseSampleValue(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid sample value %q: %w", s, err)
		}
		return v, nil
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("invalid sample value %s: %w", string(raw), err)
	}
	return v, nil
}
