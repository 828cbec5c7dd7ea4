package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/plotbook-crm/internal/domain/shared"
)

// Logger middleware logs HTTP request details including method, path, status,
// latency, client IP, correlation ID and the acting staff member. Probe
// endpoints are logged at debug level.
func Logger(logger *slog.Logger, quietPaths ...string) gin.HandlerFunc {
	quiet := make(map[string]struct{}, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		requestLogger := logger
		if correlationID := GetCorrelationID(c); correlationID != "" {
			requestLogger = requestLogger.With("correlation_id", correlationID)
		}
		if actor, err := shared.ActorFromContext(c.Request.Context()); err == nil {
			requestLogger = requestLogger.With("staff_id", actor.ID.String())
		}

		if raw != "" {
			path = path + "?" + raw
		}

		level := slog.LevelInfo
		if _, ok := quiet[c.Request.URL.Path]; ok {
			level = slog.LevelDebug
		}
		status := c.Writer.Status()
		if status >= 500 {
			level = slog.LevelError
		}

		requestLogger.Log(c.Request.Context(), level, "HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		)
	}
}
