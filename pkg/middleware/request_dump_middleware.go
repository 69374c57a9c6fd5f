package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"guard-backend/pkg/logging"
)

// RequestDumpMiddleware logs one line per request. Report bodies are sensitive, so
// only their sizes are written.
func RequestDumpMiddleware(logger logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]any{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"latency":  time.Since(start).Round(time.Microsecond).String(),
			"req_size": c.Request.ContentLength,
			"res_size": c.Writer.Size(),
		}
		if fields["path"] == "" {
			fields["path"] = "unmatched"
		}
		entry := logger.WithFields(fields)
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("[Request] %s", c.Errors.String())
		case c.Writer.Status() >= 400:
			entry.Warn("[Request]")
		default:
			entry.Debug("[Request]")
		}
	}
}
