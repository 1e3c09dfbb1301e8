package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain"
	"pharmadesk/internal/domain/documents"
	"pharmadesk/internal/domain/documents/lineitem"
	"pharmadesk/internal/domain/events"
	"pharmadesk/internal/infrastructure/http/v1/dto"
	"pharmadesk/internal/infrastructure/storage/postgres"
)

const historyLimit = 50

// DocumentService is implemented by documents.Service.
type DocumentService interface {
	Build(ctx context.Context, doc *documents.Document, lines []documents.LineDraft) error
	Confirm(ctx context.Context, doc *documents.Document) error
	GetByID(ctx context.Context, docID id.ID) (*documents.Document, error)
	List(ctx context.Context, filter documents.ListFilter) (domain.ListResult[*documents.Document], error)
}

// AuditReader is implemented by postgres.AuditLog.
type AuditReader interface {
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]postgres.AuditEntry, error)
}

// DocumentHandler serves invoices, purchase orders and purchase entries.
type DocumentHandler struct {
	*BaseHandler
	service DocumentService
	audit   AuditReader
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(base *BaseHandler, service DocumentService, audit AuditReader) *DocumentHandler {
	return &DocumentHandler{BaseHandler: base, service: service, audit: audit}
}

// Schema returns the field descriptors of a variant.
// GET /documents/schema/:kind
func (h *DocumentHandler) Schema(c *gin.Context) {
	kind, err := documents.ParseKind(c.Param("kind"))
	if err != nil {
		h.Error(c, err)
		return
	}
	schema, err := documents.SchemaFor(kind)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, schema)
}

// CalculateLine runs the line calculator on one set of inputs.
// POST /documents/lines/calculate
func (h *DocumentHandler) CalculateLine(c *gin.Context) {
	var req dto.CalculateLineRequest
	if !h.BindJSON(c, &req) {
		return
	}
	amounts, err := lineitem.Calculate(req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromAmounts(amounts))
}

// Draft builds and prices a document without persisting it.
// POST /documents/:kind/draft
func (h *DocumentHandler) Draft(c *gin.Context) {
	doc, ok := h.build(c)
	if !ok {
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// Create builds a document and confirms it.
// POST /documents/:kind
func (h *DocumentHandler) Create(c *gin.Context) {
	doc, ok := h.build(c)
	if !ok {
		return
	}
	if err := h.service.Confirm(c.Request.Context(), doc); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromDocument(doc))
}

func (h *DocumentHandler) build(c *gin.Context) (*documents.Document, bool) {
	kind, err := documents.ParseKind(c.Param("kind"))
	if err != nil {
		h.Error(c, err)
		return nil, false
	}

	var req dto.DocumentRequest
	if !h.BindJSON(c, &req) {
		return nil, false
	}

	doc, drafts, err := req.ToDocument(kind, h.PharmacyID(c), h.UserID(c))
	if err != nil {
		h.Error(c, err)
		return nil, false
	}
	if err := h.service.Build(c.Request.Context(), doc, drafts); err != nil {
		h.Error(c, err)
		return nil, false
	}
	return doc, true
}

// Get returns a document with lines.
// GET /documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	doc, err := h.service.GetByID(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// List returns confirmed documents.
// GET /documents
func (h *DocumentHandler) List(c *gin.Context) {
	var req dto.DocumentListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(result, dto.FromDocumentSummary))
}

// History returns the audit entries of a document.
// GET /documents/:id/history
func (h *DocumentHandler) History(c *gin.Context) {
	docID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	entries, err := h.audit.History(c.Request.Context(), events.AggregateDocument, docID, historyLimit)
	if err != nil {
		h.Error(c, err)
		return
	}
	if entries == nil {
		entries = []postgres.AuditEntry{}
	}
	h.OK(c, gin.H{"items": entries})
}
