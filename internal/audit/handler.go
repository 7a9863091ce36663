package audit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/shared/auth"
	"kyc-backend/internal/shared/server/middleware"
	"kyc-backend/internal/shared/server/respond"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Handler exposes the audit trail to admins and regulators.
type Handler struct {
	Events Lister
}

func NewHandler(events Lister) *Handler {
	return &Handler{Events: events}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/admin/audit", middleware.RequireRole(auth.RoleAdmin, auth.RoleRegulator), h.list)
}

func (h *Handler) list(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "limit must be a positive integer", nil)
			return
		}
		limit = min(n, maxListLimit)
	}
	events, err := h.Events.List(c.Request.Context(), limit)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	if events == nil {
		events = []Event{}
	}
	respond.Items(c, events)
}
