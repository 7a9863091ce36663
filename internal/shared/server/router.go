package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/shared/config"
	"kyc-backend/internal/shared/metrics"
	"kyc-backend/internal/shared/server/middleware"
	"kyc-backend/internal/shared/server/respond"
)

// RouteRegistrar is implemented by every feature handler.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps carries what the router needs from bootstrap.
type RouterDeps struct {
	Config   config.Config
	Verifier middleware.Verifier
	Handlers []RouteRegistrar
	// Ready reports backing store health for /healthz; nil means always ready.
	Ready func(ctx context.Context) error
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/healthz", healthHandler(deps.Ready))
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.Use(
		middleware.Auth(deps.Config.Env, deps.Verifier),
		middleware.RateLimit(rateLimitConfig(deps.Config)),
	)
	api.GET("/me", whoAmI)
	for _, h := range deps.Handlers {
		if h != nil {
			h.RegisterRoutes(api)
		}
	}

	return r
}

func healthHandler(ready func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				respond.Error(c, http.StatusServiceUnavailable, "storage_io", "database unavailable", nil)
				return
			}
		}
		respond.OK(c, gin.H{"ok": true})
	}
}

// whoAmI echoes the authenticated principal so clients can check which
// role a token resolved to.
func whoAmI(c *gin.Context) {
	respond.OK(c, gin.H{
		"subjectId": middleware.SubjectIDFromContext(c),
		"role":      middleware.RoleFromContext(c),
		"requestId": middleware.RequestIDFromContext(c),
	})
}

// rateLimitConfig gives status polling more headroom than everything else
// and uploads, which run extraction inline, less.
func rateLimitConfig(cfg config.Config) middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		DefaultGroup: middleware.GroupDefault,
		GroupFor: func(c *gin.Context) string {
			switch {
			case c.Request.Method == http.MethodGet && c.FullPath() == "/api/v1/disclosures/:disclosureId":
				return middleware.GroupPolling
			case c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/documents":
				return middleware.GroupUpload
			}
			return middleware.GroupDefault
		},
		Rules: map[string]middleware.RateLimitRule{
			middleware.GroupDefault: {Rate: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst},
			middleware.GroupPolling: {Rate: cfg.RateLimitRPS * 5, Burst: cfg.RateLimitBurst * 5},
			middleware.GroupUpload:  {Rate: cfg.RateLimitRPS / 2, Burst: max(1, cfg.RateLimitBurst/2)},
		},
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
