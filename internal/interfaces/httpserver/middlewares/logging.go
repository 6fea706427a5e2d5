package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/observability"
)

// Logging writes one line per request, at warn or error level for failed ones.
func Logging(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}

		if traceID := observability.TraceID(c.Request.Context()); traceID != "" {
			event = event.Str("trace_id", traceID)
		}
		if requestID := c.GetString(requestIDKey); requestID != "" {
			event = event.Str("request_id", requestID)
		}

		event.
			Str("client_ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg(c.Errors.ByType(gin.ErrorTypePrivate).String())
	}
}
