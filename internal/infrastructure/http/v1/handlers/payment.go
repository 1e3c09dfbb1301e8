package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain/events"
	"pharmadesk/internal/domain/payments"
	"pharmadesk/internal/infrastructure/http/v1/dto"
	"pharmadesk/internal/infrastructure/storage/postgres"
)

// PaymentService is implemented by payments.Service.
type PaymentService interface {
	OutstandingBills(ctx context.Context, supplierID string, status payments.BillStatus) ([]payments.OutstandingBill, error)
	CreditNote(ctx context.Context, supplierID string) (payments.CreditNote, error)
	Prepare(ctx context.Context, session *payments.Session, billNos []string, applyCredit bool) (payments.Computation, error)
	Confirm(ctx context.Context, session *payments.Session, details payments.Details) (*payments.Payment, error)
	GetByID(ctx context.Context, paymentID id.ID) (*payments.Payment, error)
}

// PaymentHandler serves supplier bills and payments.
//
// The API is stateless: every request replays the session from idle, so preview and
// confirm always compute from the bills as they are stored right now.
type PaymentHandler struct {
	*BaseHandler
	service PaymentService
	audit   AuditReader
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(base *BaseHandler, service PaymentService, audit AuditReader) *PaymentHandler {
	return &PaymentHandler{BaseHandler: base, service: service, audit: audit}
}

// Bills lists a supplier's bills.
// GET /suppliers/:supplierId/bills?status=pending|paid
func (h *PaymentHandler) Bills(c *gin.Context) {
	status, err := payments.ParseBillStatus(c.Query("status"))
	if err != nil {
		h.Error(c, err)
		return
	}
	bills, err := h.service.OutstandingBills(c.Request.Context(), c.Param("supplierId"), status)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": dto.FromBills(bills)})
}

// CreditNote returns a supplier's credit balance.
// GET /suppliers/:supplierId/credit-note
func (h *PaymentHandler) CreditNote(c *gin.Context) {
	credit, err := h.service.CreditNote(c.Request.Context(), c.Param("supplierId"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromCreditNote(credit))
}

// Preview computes the allocation of a payment without recording it.
// POST /payments/preview
func (h *PaymentHandler) Preview(c *gin.Context) {
	var req dto.PaymentSelectionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	session, ok := h.prepare(c, req)
	if !ok {
		return
	}
	h.OK(c, dto.FromSession(session))
}

// Create confirms a payment.
// POST /payments
func (h *PaymentHandler) Create(c *gin.Context) {
	var req dto.CreatePaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	session, ok := h.prepare(c, req.PaymentSelectionRequest)
	if !ok {
		return
	}
	p, err := h.service.Confirm(c.Request.Context(), session, req.ToDetails())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromPayment(p))
}

func (h *PaymentHandler) prepare(c *gin.Context, req dto.PaymentSelectionRequest) (*payments.Session, bool) {
	session := payments.NewSession(h.PharmacyID(c), req.SupplierID)
	if _, err := h.service.Prepare(c.Request.Context(), session, req.BillNos, req.ApplyCreditNote); err != nil {
		h.Error(c, err)
		return nil, false
	}
	return session, true
}

// Get returns a payment with its allocations.
// GET /payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	paymentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	p, err := h.service.GetByID(c.Request.Context(), paymentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromPayment(p))
}

// History returns the audit entries of a payment.
// GET /payments/:id/history
func (h *PaymentHandler) History(c *gin.Context) {
	paymentID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	entries, err := h.audit.History(c.Request.Context(), events.AggregatePayment, paymentID, historyLimit)
	if err != nil {
		h.Error(c, err)
		return
	}
	if entries == nil {
		entries = []postgres.AuditEntry{}
	}
	h.OK(c, gin.H{"items": entries})
}
