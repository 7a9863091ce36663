package respond

import (
	"github.com/gin-gonic/gin"

	"kyc-backend/internal/shared/apperr"
	"kyc-backend/internal/shared/telemetry"
)

// ErrorBody is the payload under the "error" key of every failure.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error aborts the request with the error envelope. The request log line
// written by the logging middleware picks the message up from c.Errors.
func Error(c *gin.Context, status int, code, message string, details any) {
	_ = c.Error(apperr.New(apperr.Kind(code), message))
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{Code: code, Message: message, Details: details},
	})
}

// FromError maps a typed application error to its status and code. Causes
// are never echoed to the client; internal errors are logged with theirs.
func FromError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal || kind == apperr.KindStorageIO {
		telemetry.Error("http.internal", map[string]any{
			"request_id": c.GetString("requestId"),
			"route":      c.FullPath(),
			"kind":       string(kind),
			"error":      err,
		})
	}
	Error(c, apperr.HTTPStatus(kind), string(kind), apperr.MessageOf(err), nil)
}
