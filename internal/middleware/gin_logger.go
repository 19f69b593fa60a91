package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klicktape/backend/internal/logger"
	"go.uber.org/zap"
)

// GinLogger logs each HTTP request with structured fields.
// Replaces gin.Logger.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		clientIP := c.ClientIP()

		c.Next()

		statusCode := c.Writer.Status()
		latency := time.Since(startTime)

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("client_ip", clientIP),
			zap.Int("status", statusCode),
			zap.Int("response_size", c.Writer.Size()),
			zap.Duration("latency", latency),
		}
		if requestID := c.GetString("request_id"); requestID != "" {
			fields = append(fields, zap.String("request_id", requestID))
		}

		switch {
		case statusCode >= 500:
			logger.Log.Error("HTTP request", fields...)
		case statusCode >= 400:
			logger.Log.Warn("HTTP request", fields...)
		default:
			logger.Log.Info("HTTP request", fields...)
		}
	}
}
