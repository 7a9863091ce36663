package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/shared/apperr"
	"kyc-backend/internal/shared/server/respond"
	"kyc-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into the standard internal_error envelope.
// If the handler already started streaming a document body, the connection
// is left as is and only the log line is written.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			telemetry.Error("request.panic", map[string]any{
				"request_id": RequestIDFromContext(c),
				"route":      c.FullPath(),
				"method":     c.Request.Method,
				"subject_id": SubjectIDFromContext(c),
				"panic":      rec,
				"stack":      string(debug.Stack()),
				"written":    c.Writer.Written(),
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.FromError(c, apperr.New(apperr.KindInternal, "unexpected server error"))
			c.Abort()
		}()
		c.Next()
	}
}
