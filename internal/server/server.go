package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Server is the HTTP front of the prediction service.
type Server struct {
	http   *http.Server
	logger *slog.Logger
}

// New creates the HTTP server. There is no write timeout: a slow metrics
// backend or model lengthens the response instead of cutting it off.
func New(addr string, h *Handler, allowedOrigin string, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(h, allowedOrigin, gatherer, logger),
			ReadTimeout:       10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// NewRouter builds the gin engine with all middleware and routes.
func NewRouter(h *Handler, allowedOrigin string, gatherer prometheus.Gatherer, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(RecoveryMiddleware(logger))
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(logger))
	router.Use(CORSMiddleware(allowedOrigin))
	RegisterRoutes(router, h, gatherer)
	return router
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
