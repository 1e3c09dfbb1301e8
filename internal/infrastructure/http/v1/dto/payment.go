package dto

import (
	"strings"
	"time"

	"pharmadesk/internal/domain/payments"
)

// --- Request DTOs ---

// PaymentSelectionRequest names the bills a payment should clear.
type PaymentSelectionRequest struct {
	SupplierID      string   `json:"supplierId" binding:"required"`
	BillNos         []string `json:"billNos" binding:"required,min=1,dive,required"`
	ApplyCreditNote bool     `json:"applyCreditNote"`
}

// CreatePaymentRequest confirms a payment over the selected bills.
type CreatePaymentRequest struct {
	PaymentSelectionRequest
	PaymentMode string     `json:"paymentMode"`
	ReferenceNo string     `json:"referenceNo"`
	Remark      string     `json:"remark,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
}

// ToDetails converts to payment details. Missing date means today.
func (r *CreatePaymentRequest) ToDetails() payments.Details {
	d := payments.Details{
		PaymentMode: strings.TrimSpace(r.PaymentMode),
		ReferenceNo: strings.TrimSpace(r.ReferenceNo),
		Remark:      r.Remark,
		Date:        time.Now().UTC(),
	}
	if r.Date != nil {
		d.Date = r.Date.UTC()
	}
	return d
}

// --- Response DTOs ---

// BillResponse is one outstanding or paid supplier bill.
type BillResponse struct {
	DocumentID   string              `json:"documentId"`
	BillNo       string              `json:"billNo"`
	SupplierID   string              `json:"supplierId"`
	BillDate     time.Time           `json:"billDate"`
	BilledAmount string              `json:"billedAmount"`
	Status       payments.BillStatus `json:"status"`
}

// FromBill maps a bill.
func FromBill(b payments.OutstandingBill) BillResponse {
	return BillResponse{
		DocumentID:   b.DocumentID.String(),
		BillNo:       b.BillNo,
		SupplierID:   b.SupplierID,
		BillDate:     b.BillDate,
		BilledAmount: Money(b.BilledAmount),
		Status:       b.Status,
	}
}

// FromBills maps bills.
func FromBills(bills []payments.OutstandingBill) []BillResponse {
	out := make([]BillResponse, len(bills))
	for i, b := range bills {
		out[i] = FromBill(b)
	}
	return out
}

// CreditNoteResponse is a supplier credit balance.
type CreditNoteResponse struct {
	SupplierID string `json:"supplierId"`
	Amount     string `json:"amount"`
}

// FromCreditNote maps a credit note.
func FromCreditNote(c payments.CreditNote) CreditNoteResponse {
	return CreditNoteResponse{SupplierID: c.SupplierID, Amount: Money(c.Amount)}
}

// AllocationResponse is the amount of one bill cleared by a payment.
type AllocationResponse struct {
	DocumentID    string `json:"documentId"`
	BillNo        string `json:"billNo"`
	ClearedAmount string `json:"clearedAmount"`
}

func fromAllocations(allocs []payments.Allocation) []AllocationResponse {
	out := make([]AllocationResponse, len(allocs))
	for i, a := range allocs {
		out[i] = AllocationResponse{
			DocumentID:    a.DocumentID.String(),
			BillNo:        a.BillNo,
			ClearedAmount: Money(a.ClearedAmount),
		}
	}
	return out
}

// ComputationResponse previews a payment.
type ComputationResponse struct {
	SupplierID          string               `json:"supplierId"`
	State               payments.State       `json:"state"`
	TotalBilled         string               `json:"totalBilled"`
	CreditNoteAvailable string               `json:"creditNoteAvailable"`
	CreditNoteApplied   string               `json:"creditNoteApplied"`
	Payable             string               `json:"payable"`
	Allocations         []AllocationResponse `json:"allocations"`
}

// FromSession maps the computation held by a prepared session.
func FromSession(s *payments.Session) ComputationResponse {
	resp := ComputationResponse{
		SupplierID:          s.SupplierID(),
		State:               s.State(),
		TotalBilled:         Money(zeroMoney),
		CreditNoteAvailable: Money(zeroMoney),
		CreditNoteApplied:   Money(zeroMoney),
		Payable:             Money(zeroMoney),
		Allocations:         []AllocationResponse{},
	}
	if c := s.CreditNote(); c != nil {
		resp.CreditNoteAvailable = Money(c.Amount)
	}
	if comp := s.Computation(); comp != nil {
		resp.TotalBilled = Money(comp.TotalBilled)
		resp.CreditNoteApplied = Money(comp.CreditNoteApplied)
		resp.Payable = Money(comp.Payable)
		resp.Allocations = fromAllocations(comp.Allocations)
	}
	return resp
}

// PaymentResponse is a confirmed payment.
type PaymentResponse struct {
	DocumentHeaderResponse
	SupplierID        string               `json:"supplierId"`
	PaymentMode       string               `json:"paymentMode"`
	ReferenceNo       string               `json:"referenceNo"`
	AmountPaid        string               `json:"amountPaid"`
	TotalBilled       string               `json:"totalBilled"`
	CreditNoteApplied string               `json:"creditNoteApplied"`
	Allocations       []AllocationResponse `json:"allocations"`
}

// FromPayment maps a payment.
func FromPayment(p *payments.Payment) PaymentResponse {
	return PaymentResponse{
		DocumentHeaderResponse: FromEntityDocument(p.Document),
		SupplierID:             p.SupplierID,
		PaymentMode:            p.PaymentMode,
		ReferenceNo:            p.ReferenceNo,
		AmountPaid:             Money(p.AmountPaid),
		TotalBilled:            Money(p.TotalBilled),
		CreditNoteApplied:      Money(p.CreditNoteApplied),
		Allocations:            fromAllocations(p.Allocations),
	}
}
