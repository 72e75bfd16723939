// Package api is the thin HTTP/JSON layer translating gin requests into
// store (or cluster node) calls. It owns no state of its own.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"durakv/internal/log"
)

// requestIDHeader is set on every response so a caller (or an operator
// correlating logs across nodes) can tie a request to its log lines.
const requestIDHeader = "X-Request-Id"

// RequestID assigns a uuid to every inbound request that doesn't already
// carry one, and echoes it back on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// Logger is a gin middleware that logs every request through zerolog —
// method, path, status, latency, request id — instead of the standard
// library logger.
func Logger() gin.HandlerFunc {
	logger := log.Component("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString("request_id")).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// Recovery wraps gin's panic recovery with a structured log line instead
// of the default stack-trace-to-stdout behavior.
func Recovery() gin.HandlerFunc {
	logger := log.Component("http")
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error().Interface("panic", err).Msg("recovered from panic")
				c.AbortWithStatusJSON(500, gin.H{"success": false, "error": "internal server error"})
			}
		}()
		c.Next()
	}
}
