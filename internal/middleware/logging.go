package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"razdel/internal/observability"
)

// RequestLogger writes one structured access log line per request, tagged
// with the request id and client ip.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", observability.RequestIDFromRequest(c.Request)),
			zap.String("client_ip", observability.IPFromRequest(c.Request)),
		)
	}
}
