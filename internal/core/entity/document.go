package entity

import (
	"context"
	"time"

	"pharmadesk/internal/core/apperror"
)

// Document is the base type for commercial documents (invoices, purchase orders, GRNs, payments).
type Document struct {
	BaseDocument

	// Number is the document number (auto-generated on confirm, unique within type+period)
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	// PharmacyID is the owning pharmacy
	PharmacyID string `db:"pharmacy_id" json:"pharmacyId"`

	// Confirmed documents are immutable; their stock and payment effects are committed.
	Confirmed   bool       `db:"confirmed" json:"confirmed"`
	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmedAt,omitempty"`

	// Remark is an optional user comment
	Remark string `db:"remark" json:"remark,omitempty"`
}

// NewDocument creates a new Document with generated ID.
func NewDocument(pharmacyID string) Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Date:         time.Now().UTC(),
		PharmacyID:   pharmacyID,
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if d.PharmacyID == "" {
		return apperror.NewValidation("pharmacy is required").
			WithDetail("field", "pharmacyId")
	}

	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}

	return nil
}

// CanModify checks if document can be modified.
func (d *Document) CanModify() error {
	if d.Confirmed {
		return apperror.NewBusinessRule(
			apperror.CodeDocumentConfirmed,
			"Cannot modify a confirmed document",
		).WithDetail("document_id", d.ID.String())
	}
	return nil
}

// MarkConfirmed freezes the document.
func (d *Document) MarkConfirmed() {
	now := time.Now().UTC()
	d.Confirmed = true
	d.ConfirmedAt = &now
	d.Touch()
}
