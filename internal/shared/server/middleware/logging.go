package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/shared/telemetry"
)

// quietPaths are polled by infrastructure and never logged.
var quietPaths = map[string]struct{}{
	"/healthz": {},
	"/metrics": {},
}

// Logging emits one structured line per request. Server errors log at
// error level and client errors at warn. Document and disclosure ids are
// included when a handler set them or the route carries them.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if _, quiet := quietPaths[c.Request.URL.Path]; quiet {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"route":       c.FullPath(),
			"path":        c.Request.URL.Path,
			"status":      status,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"subject_id":  SubjectIDFromContext(c),
			"role":        RoleFromContext(c),
			"client_ip":   c.ClientIP(),
		}
		setIfPresent(fields, "document_id", keyOrParam(c, "documentId"))
		setIfPresent(fields, "disclosure_id", keyOrParam(c, "disclosureId"))
		setIfPresent(fields, "status_transition", c.GetString("statusTransition"))
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case status >= http.StatusInternalServerError:
			telemetry.Error("request.complete", fields)
		case status >= http.StatusBadRequest:
			telemetry.Warn("request.complete", fields)
		default:
			telemetry.Info("request.complete", fields)
		}
	}
}

func setIfPresent(fields map[string]any, key, value string) {
	if value != "" {
		fields[key] = value
	}
}

func keyOrParam(c *gin.Context, key string) string {
	if v := c.GetString(key); v != "" {
		return v
	}
	return c.Param(key)
}
