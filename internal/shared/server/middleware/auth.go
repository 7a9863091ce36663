package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/shared/auth"
	"kyc-backend/internal/shared/server/respond"
)

const (
	subjectIDKey = "subjectId"
	roleKey      = "subjectRole"

	subjectHeader = "X-Subject-Id"
	roleHeader    = "X-Subject-Role"
)

// Verifier checks bearer tokens.
type Verifier interface {
	Verify(token string) (auth.Claims, error)
}

// Auth validates bearer JWTs and stores the principal in context. In dev the
// X-Subject-Id and X-Subject-Role headers are accepted instead of a token.
func Auth(env string, verifier Verifier) gin.HandlerFunc {
	devHeaders := env == "dev" || env == "local" || env == "test"
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader != "" {
			if !strings.HasPrefix(authHeader, "Bearer ") || verifier == nil {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
			claims, err := verifier.Verify(token)
			if err != nil {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
				return
			}
			c.Set(subjectIDKey, claims.Subject)
			c.Set(roleKey, claims.Role)
			c.Next()
			return
		}

		if devHeaders {
			subject := strings.TrimSpace(c.GetHeader(subjectHeader))
			role := strings.ToLower(strings.TrimSpace(c.GetHeader(roleHeader)))
			if subject != "" && auth.ValidRole(role) {
				c.Set(subjectIDKey, subject)
				c.Set(roleKey, role)
				c.Next()
				return
			}
		}

		respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
	}
}

// RequireRole rejects principals whose role is not in roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := allowed[RoleFromContext(c)]; !ok {
			respond.Error(c, http.StatusForbidden, "forbidden", "role not permitted", nil)
			return
		}
		c.Next()
	}
}

// SubjectIDFromContext fetches the subject ID set by the auth middleware.
func SubjectIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(subjectIDKey)
}

// RoleFromContext fetches the role set by the auth middleware.
func RoleFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(roleKey)
}
