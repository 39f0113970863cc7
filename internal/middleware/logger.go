package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/pkg/logger"
)

// Logger logs one line per request. Bodies are never logged; they carry
// patient data.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"request_id", c.GetString(ContextRequestID),
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		}
		if _, ok := c.Get(ContextPrincipal); ok {
			fields = append(fields, "user_id", GetPrincipal(c).UserID.String())
		}

		switch {
		case status >= 500:
			log.Warn("server error", fields...)
		case status >= 400:
			log.Debug("client error", fields...)
		default:
			log.Info("request processed", fields...)
		}
	}
}
