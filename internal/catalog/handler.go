package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/shared/auth"
	"kyc-backend/internal/shared/server/middleware"
	"kyc-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches catalog routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/document-types", h.listTypes)
	rg.POST("/organizations", middleware.RequireRole(auth.RoleAdmin), h.registerOrganization)
	rg.GET("/organizations", middleware.RequireRole(auth.RoleAdmin), h.listOrganizations)
	rg.GET("/compliance-requirements", middleware.RequireRole(auth.RoleAdmin, auth.RoleRegulator), h.listAllRequirements)

	org := rg.Group("/org", middleware.RequireRole(auth.RoleOrganization))
	org.GET("/requirements", h.getRequirements)
	org.PUT("/requirements", h.putRequirements)
}

func (h *Handler) listTypes(c *gin.Context) {
	types, err := h.Svc.DocumentTypes(c.Request.Context())
	if err != nil {
		respond.FromError(c, err)
		return
	}
	items := make([]documentTypeResponse, 0, len(types))
	for _, t := range types {
		items = append(items, toTypeResponse(t))
	}
	respond.Items(c, items)
}

func (h *Handler) registerOrganization(c *gin.Context) {
	var req organizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	org, err := h.Svc.RegisterOrganization(c.Request.Context(), middleware.SubjectIDFromContext(c), Organization{
		ID:     req.ID,
		Name:   req.Name,
		Sector: req.Sector,
	})
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Created(c, toOrgResponse(org))
}

func (h *Handler) listOrganizations(c *gin.Context) {
	orgs, err := h.Svc.Organizations(c.Request.Context())
	if err != nil {
		respond.FromError(c, err)
		return
	}
	items := make([]organizationResponse, 0, len(orgs))
	for _, o := range orgs {
		items = append(items, toOrgResponse(o))
	}
	respond.Items(c, items)
}

func (h *Handler) listAllRequirements(c *gin.Context) {
	groups, err := h.Svc.AllRequirements(c.Request.Context())
	if err != nil {
		respond.FromError(c, err)
		return
	}
	items := make([]requirementsResponse, 0, len(groups))
	for _, g := range groups {
		resp := toRequirementsResponse(g.Organization.ID, g.Requirements)
		resp.OrganizationName = g.Organization.Name
		items = append(items, resp)
	}
	respond.Items(c, items)
}

func (h *Handler) getRequirements(c *gin.Context) {
	orgID := middleware.SubjectIDFromContext(c)
	reqs, err := h.Svc.Requirements(c.Request.Context(), orgID)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, toRequirementsResponse(orgID, reqs))
}

func (h *Handler) putRequirements(c *gin.Context) {
	orgID := middleware.SubjectIDFromContext(c)
	var req requirementsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	reqs := make([]Requirement, 0, len(req.Requirements))
	for _, item := range req.Requirements {
		mandatory := true
		if item.Mandatory != nil {
			mandatory = *item.Mandatory
		}
		reqs = append(reqs, Requirement{
			DocumentTypeID: item.DocumentTypeID,
			Mandatory:      mandatory,
			ValidForDays:   item.ValidForDays,
		})
	}
	saved, err := h.Svc.UpsertRequirements(c.Request.Context(), orgID, reqs)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, toRequirementsResponse(orgID, saved))
}
