package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"oncodetect/internal"
)

// RequestLogger logs every request through the internal logger
func RequestLogger(logger *internal.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		status := c.Writer.Status()
		switch {
		case status >= 500:
			logger.Error("[HTTP] %s %s -> %d (%v)", c.Request.Method, path, status, time.Since(start))
		case status >= 400:
			logger.Warn("[HTTP] %s %s -> %d (%v)", c.Request.Method, path, status, time.Since(start))
		default:
			logger.Debug("[HTTP] %s %s -> %d (%v)", c.Request.Method, path, status, time.Since(start))
		}
	}
}
