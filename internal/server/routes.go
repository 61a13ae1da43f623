package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(router *gin.Engine, h *Handler, gatherer prometheus.Gatherer) {
	router.GET("/ping", h.Ping)
	router.GET("/predict", h.Predict)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
