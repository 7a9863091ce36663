package documents

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/shared/auth"
	"kyc-backend/internal/shared/server/middleware"
	"kyc-backend/internal/shared/server/respond"
	"kyc-backend/internal/shared/util"
)

const maxBatchBody = 8 * MaxFileSize

// Access operations an organization can request on a document.
const (
	OpView         = "view"
	OpDownload     = "download"
	OpViewMetadata = "view-metadata"
)

// Authorizer decides whether an organization may perform op on a document.
type Authorizer interface {
	Authorize(ctx context.Context, orgID, docID, op string) (allowed bool, err error)
}

// Jobs queues background re-extraction.
type Jobs interface {
	EnqueueReExtract(ctx context.Context, docID, actorID, requestID string) error
}

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc     *Service
	Access  Authorizer
	Jobs    Jobs
	Columns func() []string
}

func NewHandler(svc *Service, access Authorizer, jobs Jobs, columns func() []string) *Handler {
	return &Handler{Svc: svc, Access: access, Jobs: jobs, Columns: columns}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	docs := rg.Group("/documents", middleware.RequireRole(auth.RoleIndividual))
	docs.POST("", h.upload)
	docs.GET("", h.list)
	docs.GET("/:documentId", h.get)
	docs.GET("/:documentId/file", h.file)
	docs.PUT("/:documentId", h.reUpload)
	docs.POST("/:documentId/re-extract", h.reExtract)
	docs.DELETE("/:documentId", h.delete)

	org := rg.Group("/org/documents", middleware.RequireRole(auth.RoleOrganization))
	org.GET("/:documentId", h.orgView)
	org.GET("/:documentId/download", h.orgDownload)
	org.GET("/:documentId/metadata", h.orgMetadata)

	admin := rg.Group("/admin", middleware.RequireRole(auth.RoleAdmin))
	admin.GET("/export.xlsx", h.export)
	admin.GET("/stats", h.stats)
}

func (h *Handler) upload(c *gin.Context) {
	ownerID := middleware.SubjectIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBatchBody)

	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form is required", nil)
		return
	}
	headers := form.File["files"]
	typeIDs := form.Value["documentTypeIds"]

	uploads := make([]Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return
		}
		defer f.Close()
		uploads = append(uploads, Upload{FileName: fh.Filename, Content: f})
	}

	results, err := h.Svc.UploadBatch(c.Request.Context(), ownerID, uploads, typeIDs)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	resp := toBatchResponse(results, h.Svc.Now())
	status := http.StatusCreated
	if resp.Failed > 0 {
		status = http.StatusMultiStatus
	}
	respond.JSON(c, status, resp)
}

func (h *Handler) list(c *gin.Context) {
	docs, err := h.Svc.List(c.Request.Context(), middleware.SubjectIDFromContext(c))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	now := h.Svc.Now()
	items := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		items = append(items, toResponse(d, now))
	}
	respond.Items(c, items)
}

func (h *Handler) get(c *gin.Context) {
	doc, err := h.Svc.Get(c.Request.Context(), middleware.SubjectIDFromContext(c), c.Param("documentId"))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, toResponse(doc, h.Svc.Now()))
}

func (h *Handler) file(c *gin.Context) {
	doc, err := h.Svc.Get(c.Request.Context(), middleware.SubjectIDFromContext(c), c.Param("documentId"))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	h.stream(c, doc, "inline")
}

func (h *Handler) reUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxFileSize+(1<<20))
	fh, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer f.Close()

	doc, err := h.Svc.ReUpload(c.Request.Context(), middleware.SubjectIDFromContext(c), c.Param("documentId"), Upload{
		FileName: fh.Filename,
		Content:  f,
	})
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, toResponse(doc, h.Svc.Now()))
}

func (h *Handler) reExtract(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID := middleware.SubjectIDFromContext(c)
	docID := c.Param("documentId")

	if h.Jobs != nil {
		if _, err := h.Svc.Get(ctx, ownerID, docID); err != nil {
			respond.FromError(c, err)
			return
		}
		if err := h.Jobs.EnqueueReExtract(ctx, docID, ownerID, middleware.RequestIDFromContext(c)); err != nil {
			respond.FromError(c, err)
			return
		}
		respond.JSON(c, http.StatusAccepted, gin.H{"documentId": docID, "status": "queued"})
		return
	}

	doc, err := h.Svc.ReExtract(ctx, ownerID, docID)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, toResponse(doc, h.Svc.Now()))
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), middleware.SubjectIDFromContext(c), c.Param("documentId")); err != nil {
		respond.FromError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) orgView(c *gin.Context) {
	if doc, ok := h.authorized(c, OpView); ok {
		h.stream(c, doc, "inline")
	}
}

func (h *Handler) orgDownload(c *gin.Context) {
	if doc, ok := h.authorized(c, OpDownload); ok {
		h.stream(c, doc, "attachment")
	}
}

func (h *Handler) orgMetadata(c *gin.Context) {
	if doc, ok := h.authorized(c, OpViewMetadata); ok {
		respond.OK(c, toMetadata(doc))
	}
}

// authorized asks the gateway first; a denial is a uniform 403 whatever the reason.
func (h *Handler) authorized(c *gin.Context, op string) (Document, bool) {
	ctx := c.Request.Context()
	orgID := middleware.SubjectIDFromContext(c)
	docID := c.Param("documentId")

	allowed, err := h.Access.Authorize(ctx, orgID, docID, op)
	if err != nil {
		respond.FromError(c, err)
		return Document{}, false
	}
	if !allowed {
		respond.Error(c, http.StatusForbidden, "forbidden", "access denied", nil)
		return Document{}, false
	}
	doc, err := h.Svc.Find(ctx, docID)
	if err != nil {
		respond.FromError(c, err)
		return Document{}, false
	}
	return doc, true
}

func (h *Handler) stream(c *gin.Context, doc Document, disposition string) {
	rc, err := h.Svc.Open(c.Request.Context(), doc)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	defer rc.Close()

	name, err := util.SanitizeFileName(doc.FileName)
	if err != nil {
		name = doc.ID
	}
	extra := map[string]string{
		"Content-Disposition": fmt.Sprintf("%s; filename=%q", disposition, name),
	}
	c.DataFromReader(http.StatusOK, doc.SizeBytes, doc.MimeType, rc, extra)
}

func (h *Handler) export(c *gin.Context) {
	var columns []string
	if h.Columns != nil {
		columns = h.Columns()
	}
	data, err := h.Svc.Export(c.Request.Context(), middleware.SubjectIDFromContext(c), columns)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="extracted-data.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.Svc.Stats(c.Request.Context())
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.OK(c, stats)
}
