package disclosure

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/shared/auth"
	"kyc-backend/internal/shared/server/middleware"
	"kyc-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service and the compliance evaluator.
type Handler struct {
	Svc        *Service
	Compliance *Evaluator
}

func NewHandler(svc *Service, compliance *Evaluator) *Handler {
	return &Handler{Svc: svc, Compliance: compliance}
}

// RegisterRoutes attaches disclosure routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/disclosures")
	g.POST("", middleware.RequireRole(auth.RoleOrganization), h.create)
	g.GET("", h.list)
	g.GET("/:disclosureId", h.get)
	g.GET("/:disclosureId/compliance", h.requestCompliance)
	g.POST("/:disclosureId/decision", middleware.RequireRole(auth.RoleIndividual), h.decide)
	g.POST("/:disclosureId/revoke", middleware.RequireRole(auth.RoleIndividual), h.revoke)

	rg.GET("/org/compliance", middleware.RequireRole(auth.RoleOrganization), h.orgCompliance)
}

func viewer(c *gin.Context) Viewer {
	return Viewer{ID: middleware.SubjectIDFromContext(c), Role: middleware.RoleFromContext(c)}
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	created, err := h.Svc.Create(c.Request.Context(), middleware.SubjectIDFromContext(c), req.OwnerID, req.Purpose, req.ValidUntil)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	c.Set("disclosureId", created.ID)
	c.Set("statusTransition", "->"+string(StatusPending))
	respond.Created(c, toRequestResponse(created, h.Svc.Now()))
}

func (h *Handler) list(c *gin.Context) {
	reqs, err := h.Svc.List(c.Request.Context(), viewer(c), Status(c.Query("status")))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	now := h.Svc.Now()
	items := make([]requestResponse, 0, len(reqs))
	for _, r := range reqs {
		items = append(items, toRequestResponse(r, now))
	}
	respond.Items(c, items)
}

func (h *Handler) get(c *gin.Context) {
	ctx := c.Request.Context()
	v := viewer(c)
	req, err := h.Svc.Get(ctx, v, c.Param("disclosureId"))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	grants, err := h.Svc.Grants(ctx, v, req.ID)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, detailResponse{
		requestResponse: toRequestResponse(req, h.Svc.Now()),
		Grants:          toGrantResponses(grants),
	})
}

func (h *Handler) decide(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	decided, grants, err := h.Svc.Decide(c.Request.Context(), middleware.SubjectIDFromContext(c), c.Param("disclosureId"), req.toInput())
	if err != nil {
		respond.FromError(c, err)
		return
	}
	c.Set("statusTransition", string(StatusPending)+"->"+string(decided.Status))
	respond.OK(c, detailResponse{
		requestResponse: toRequestResponse(decided, h.Svc.Now()),
		Grants:          toGrantResponses(grants),
	})
}

func (h *Handler) revoke(c *gin.Context) {
	revoked, err := h.Svc.Revoke(c.Request.Context(), middleware.SubjectIDFromContext(c), c.Param("disclosureId"))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	c.Set("statusTransition", string(StatusApproved)+"->"+string(StatusRevoked))
	respond.OK(c, toRequestResponse(revoked, h.Svc.Now()))
}

func (h *Handler) requestCompliance(c *gin.Context) {
	ctx := c.Request.Context()
	req, err := h.Svc.Get(ctx, viewer(c), c.Param("disclosureId"))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	items, err := h.Compliance.EvaluateRequest(ctx, req)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, complianceResponse{RequestID: req.ID, Items: items})
}

func (h *Handler) orgCompliance(c *gin.Context) {
	sum, err := h.Compliance.Summarize(c.Request.Context(), middleware.SubjectIDFromContext(c))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	ids := make([]string, 0, len(sum.Requests))
	for id := range sum.Requests {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]complianceResponse, 0, len(ids))
	for _, id := range ids {
		out = append(out, complianceResponse{RequestID: id, Items: sum.Requests[id]})
	}
	respond.OK(c, orgComplianceResponse{
		Items:                  out,
		Count:                  len(out),
		TotalDocumentsAccessed: sum.TotalDocumentsAccessed,
	})
}
