package server

import (
	"time"

	"github.com/gin-gonic/gin"
	zap "go.uber.org/zap"
)

// RequestLoggingMiddleware logs each request at Info level with method,
// path, status and latency, skipping the noisy /health probe.
func RequestLoggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		logger.Info("request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
