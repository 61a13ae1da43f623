package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/failsense/failpredict/internal/domain"
	"github.com/gin-gonic/gin"
)

// Predictor is implemented by predictor.Service.
type Predictor interface {
	Predict(ctx context.Context) (*domain.PredictionResult, error)
}

// Handler serves the prediction API.
type Handler struct {
	predictor Predictor
	logger    *slog.Logger
}

// NewHandler creates a handler around predictor.
func NewHandler(predictor Predictor, logger *slog.Logger) *Handler {
	return &Handler{predictor: predictor, logger: logger}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Predict answers 200 with either the probability or the metrics error
// payload; only an inference failure yields a 500.
func (h *Handler) Predict(c *gin.Context) {
	result, err := h.predictor.Predict(c.Request.Context())
	if err == nil {
		c.JSON(http.StatusOK, result)
		return
	}

	var missing domain.ErrMetricsMissing
	if errors.As(err, &missing) {
		c.JSON(http.StatusOK, gin.H{"error": missing.Error()})
		return
	}

	h.logger.Error("prediction failed",
		"err", err,
		"request_id", c.GetString(requestIDKey),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
}
