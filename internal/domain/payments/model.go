// Package payments allocates one supplier payment across a chosen set of outstanding
// bills, with an optional credit note offset.
package payments

import (
	"context"
	"strings"
	"time"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/entity"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/types"
)

// BillStatus of a supplier bill.
type BillStatus string

const (
	BillPending BillStatus = "pending"
	BillPaid    BillStatus = "paid"
)

// ParseBillStatus defaults to pending for an empty value.
func ParseBillStatus(s string) (BillStatus, error) {
	switch BillStatus(strings.ToLower(strings.TrimSpace(s))) {
	case "", BillPending:
		return BillPending, nil
	case BillPaid:
		return BillPaid, nil
	}
	return "", apperror.NewInvalidInput("status", "status must be pending or paid")
}

// OutstandingBill references a confirmed purchase entry owed to a supplier.
type OutstandingBill struct {
	DocumentID   id.ID       `db:"document_id" json:"documentId"`
	BillNo       string      `db:"bill_no" json:"billNo"`
	SupplierID   string      `db:"supplier_id" json:"supplierId"`
	BillDate     time.Time   `db:"bill_date" json:"billDate"`
	BilledAmount types.Money `db:"billed_amount" json:"billedAmount"`
	Status       BillStatus  `db:"status" json:"status"`
}

// CreditNote is the credit balance a supplier owes back.
type CreditNote struct {
	SupplierID string      `db:"supplier_id" json:"supplierId"`
	Amount     types.Money `db:"balance" json:"amount"`
}

// Allocation records the amount of one bill cleared by a payment.
type Allocation struct {
	DocumentID    id.ID       `db:"document_id" json:"documentId"`
	BillNo        string      `db:"bill_no" json:"billNo"`
	ClearedAmount types.Money `db:"cleared_amount" json:"clearedAmount"`
}

// Details are the user-entered fields of a payment.
type Details struct {
	PaymentMode string
	ReferenceNo string
	Remark      string
	Date        time.Time
}

// Validate requires payment mode and reference number.
func (d Details) Validate() error {
	if strings.TrimSpace(d.ReferenceNo) == "" {
		return apperror.NewValidation("reference number is required").
			WithDetail("field", "referenceNo")
	}
	if strings.TrimSpace(d.PaymentMode) == "" {
		return apperror.NewValidation("payment mode is required").
			WithDetail("field", "paymentMode")
	}
	return nil
}

// Payment is a supplier payment with its allocations.
type Payment struct {
	entity.Document

	SupplierID        string      `db:"supplier_id" json:"supplierId"`
	PaymentMode       string      `db:"payment_mode" json:"paymentMode"`
	ReferenceNo       string      `db:"reference_no" json:"referenceNo"`
	AmountPaid        types.Money `db:"amount_paid" json:"amountPaid"`
	TotalBilled       types.Money `db:"total_billed" json:"totalBilled"`
	CreditNoteApplied types.Money `db:"credit_note_applied" json:"creditNoteApplied"`

	Allocations []Allocation `db:"-" json:"allocations"`
}

// DocumentIDs returns the bills cleared by the payment.
func (p *Payment) DocumentIDs() []id.ID {
	ids := make([]id.ID, len(p.Allocations))
	for i, a := range p.Allocations {
		ids[i] = a.DocumentID
	}
	return ids
}

// Validate implements entity.Validatable.
func (p *Payment) Validate(ctx context.Context) error {
	if err := p.Document.Validate(ctx); err != nil {
		return err
	}
	if p.SupplierID == "" {
		return apperror.NewValidation("supplier is required").
			WithDetail("field", "supplierId")
	}
	if err := (Details{PaymentMode: p.PaymentMode, ReferenceNo: p.ReferenceNo}).Validate(); err != nil {
		return err
	}
	if !p.AmountPaid.IsPositive() {
		return apperror.NewBusinessRule(apperror.CodePayableNotPositive, "Payable amount must be greater than zero").
			WithDetail("payable", types.FormatMoney(p.AmountPaid))
	}
	if len(p.Allocations) == 0 {
		return apperror.NewValidation("at least one bill is required").
			WithDetail("field", "allocations")
	}
	return nil
}
