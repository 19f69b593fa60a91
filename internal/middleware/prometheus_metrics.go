package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klicktape/backend/internal/metrics"
)

// MetricsMiddleware collects HTTP request counts and latencies for Prometheus
func MetricsMiddleware() gin.HandlerFunc {
	m := metrics.Get()

	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		// Numeric status as a label so dashboards can match on status=~"5.."
		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(startTime).Seconds()

		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration)
	}
}
