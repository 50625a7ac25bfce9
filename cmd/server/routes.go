package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/kneutral-org/stubguard/internal/lock"
	"github.com/kneutral-org/stubguard/internal/logging"
	"github.com/kneutral-org/stubguard/internal/metrics"
	"github.com/kneutral-org/stubguard/internal/middleware"
)

const maxStubBodyBytes = 4 << 10

type stubRequest struct {
	Value *int `json:"value" binding:"required"`
}

// newRouter builds the HTTP routes of the soak server.
func newRouter(logger zerolog.Logger, gatherer prometheus.Gatherer, s *soak, registry *lock.Registry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.RequestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.GET("/stats", func(c *gin.Context) {
		stats := s.Stats()
		c.JSON(http.StatusOK, gin.H{
			"calls":           stats.Calls,
			"restubs":         stats.Restubs,
			"lockErrors":      stats.LockErrors,
			"registryEntries": registry.Len(),
			"registryShards":  registry.Shards(),
		})
	})

	router.PUT("/stub", middleware.BodyLimit(maxStubBodyBytes, logger), func(c *gin.Context) {
		var req stubRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				_ = c.Error(err)
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalidRequest", "message": err.Error()})
			return
		}

		err := s.Set(c.Request.Context(), *req.Value)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"value": *req.Value})
		case errors.Is(err, lock.ErrWriteLockTimeout), errors.Is(err, lock.ErrInterrupted):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "lockUnavailable", "message": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": err.Error()})
		}
	})

	metrics.RegisterMetricsEndpoint(router, gatherer)

	return router
}
