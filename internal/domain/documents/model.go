// Package documents provides the commercial documents of the pharmacy back office:
// sales invoices, purchase orders and purchase entries (GRN).
//
// A Document is a caller-owned value. Editor methods mutate it synchronously and end
// with Recompute, so totals always match the current lines.
package documents

import (
	"context"
	"strings"
	"time"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/entity"
	"pharmadesk/internal/domain/documents/lineitem"
)

// Kind tags the document variant.
type Kind string

const (
	KindInvoice       Kind = "invoice"
	KindPurchaseOrder Kind = "purchase_order"
	KindPurchaseEntry Kind = "purchase_entry"
)

// Kinds lists every variant.
var Kinds = []Kind{KindInvoice, KindPurchaseOrder, KindPurchaseEntry}

// ParseKind accepts both snake_case and kebab-case names.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch k {
	case KindInvoice, KindPurchaseOrder, KindPurchaseEntry:
		return k, nil
	}
	return "", apperror.NewInvalidInput("kind", "unknown document kind: "+s)
}

// PaymentStatus of a confirmed purchase entry towards its supplier.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// InvoiceHeader is the header of a sales invoice.
type InvoiceHeader struct {
	PatientID   string `json:"patientId"`
	DoctorID    string `json:"doctorId,omitempty"`
	PaymentMode string `json:"paymentMode"`
}

// PurchaseOrderHeader is the header of a purchase order.
type PurchaseOrderHeader struct {
	SupplierID   string     `json:"supplierId"`
	ExpectedDate *time.Time `json:"expectedDate,omitempty"`
}

// PurchaseEntryHeader is the header of a purchase entry (goods receipt).
type PurchaseEntryHeader struct {
	SupplierID        string     `json:"supplierId"`
	SupplierInvoiceNo string     `json:"supplierInvoiceNo"`
	PurchaseOrderNo   string     `json:"purchaseOrderNo,omitempty"`
	ReceivedDate      *time.Time `json:"receivedDate,omitempty"`
}

// Document is one of Invoice, PurchaseOrder or PurchaseEntry.
// Exactly one header pointer is set and it matches Kind.
type Document struct {
	entity.Document

	Kind Kind `db:"kind" json:"kind"`

	Invoice       *InvoiceHeader       `db:"-" json:"invoice,omitempty"`
	PurchaseOrder *PurchaseOrderHeader `db:"-" json:"purchaseOrder,omitempty"`
	PurchaseEntry *PurchaseEntryHeader `db:"-" json:"purchaseEntry,omitempty"`

	// PaymentStatus is set for confirmed purchase entries only.
	PaymentStatus PaymentStatus `db:"payment_status" json:"paymentStatus,omitempty"`

	lineitem.Totals

	// Table part
	Lines []lineitem.Line `db:"-" json:"lines"`
}

// NewInvoice creates an invoice draft with one blank line.
func NewInvoice(pharmacyID string, h InvoiceHeader) *Document {
	d := newDocument(KindInvoice, pharmacyID)
	d.Invoice = &h
	return d
}

// NewPurchaseOrder creates a purchase order draft with one blank line.
func NewPurchaseOrder(pharmacyID string, h PurchaseOrderHeader) *Document {
	d := newDocument(KindPurchaseOrder, pharmacyID)
	d.PurchaseOrder = &h
	return d
}

// NewPurchaseEntry creates a purchase entry draft with one blank line.
func NewPurchaseEntry(pharmacyID string, h PurchaseEntryHeader) *Document {
	d := newDocument(KindPurchaseEntry, pharmacyID)
	d.PurchaseEntry = &h
	return d
}

// New creates an empty draft of the given kind.
func New(kind Kind, pharmacyID string) (*Document, error) {
	switch kind {
	case KindInvoice:
		return NewInvoice(pharmacyID, InvoiceHeader{}), nil
	case KindPurchaseOrder:
		return NewPurchaseOrder(pharmacyID, PurchaseOrderHeader{}), nil
	case KindPurchaseEntry:
		return NewPurchaseEntry(pharmacyID, PurchaseEntryHeader{}), nil
	}
	return nil, apperror.NewInvalidInput("kind", "unknown document kind: "+string(kind))
}

func newDocument(kind Kind, pharmacyID string) *Document {
	d := &Document{
		Document: entity.NewDocument(pharmacyID),
		Kind:     kind,
		Lines:    []lineitem.Line{lineitem.NewLine()},
	}
	d.Recompute()
	return d
}

// SupplierID returns the supplier of purchase variants, empty for invoices.
func (d *Document) SupplierID() string {
	switch {
	case d.PurchaseOrder != nil:
		return d.PurchaseOrder.SupplierID
	case d.PurchaseEntry != nil:
		return d.PurchaseEntry.SupplierID
	}
	return ""
}

// Schema returns the field descriptors and policy of the document's variant.
func (d *Document) Schema() Schema {
	s, _ := SchemaFor(d.Kind)
	return s
}

// FilledLines returns the non-blank lines.
func (d *Document) FilledLines() []lineitem.Line {
	out := make([]lineitem.Line, 0, len(d.Lines))
	for _, l := range d.Lines {
		if !l.IsBlank() {
			out = append(out, l)
		}
	}
	return out
}

// Validate implements entity.Validatable.
// Checks the header, the lines and, for stock-checked variants, each line's batch snapshot.
func (d *Document) Validate(ctx context.Context) error {
	if err := d.Document.Validate(ctx); err != nil {
		return err
	}

	schema, err := SchemaFor(d.Kind)
	if err != nil {
		return err
	}
	if !d.headerMatchesKind() {
		return apperror.NewValidation("document header does not match its kind").
			WithDetail("field", "kind").
			WithDetail("kind", string(d.Kind))
	}

	for _, f := range schema.Header {
		if f.Required && f.isEmpty(d) {
			return apperror.NewValidation(f.Label+" is required").
				WithDetail("field", f.Name)
		}
	}

	filled := 0
	for i, line := range d.Lines {
		if line.IsBlank() {
			continue
		}
		filled++
		if err := d.validateLine(i, line, schema.Policy); err != nil {
			return err
		}
	}
	if filled == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	return nil
}

func (d *Document) validateLine(i int, line lineitem.Line, p Policy) error {
	lineErr := func(msg, field string) error {
		return apperror.NewValidation(msg).
			WithDetail("field", field).
			WithDetail("lineNo", i+1)
	}

	if strings.TrimSpace(line.ItemID) == "" {
		return lineErr("item is required", "itemId")
	}
	if p.BatchRequired && strings.TrimSpace(line.BatchNo) == "" {
		return lineErr("batch is required", "batchNo")
	}
	if line.Quantity <= 0 {
		return lineErr("quantity must be positive", "quantity")
	}
	if p.ExpiryEntered && line.ExpiryDate == nil {
		return lineErr("expiry date is required", "expiryDate")
	}
	if err := line.Input().Validate(); err != nil {
		if appErr, ok := apperror.AsAppError(err); ok {
			return appErr.WithDetail("lineNo", i+1)
		}
		return err
	}
	if err := lineitem.CheckDuplicate(line.Key(), d.Lines, i); err != nil {
		return err
	}
	if p.StockChecked {
		if line.Batch == nil {
			return lineErr("batch must be selected from inventory", "batchNo")
		}
		if err := validateStock(line.Quantity, *line.Batch); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) headerMatchesKind() bool {
	switch d.Kind {
	case KindInvoice:
		return d.Invoice != nil && d.PurchaseOrder == nil && d.PurchaseEntry == nil
	case KindPurchaseOrder:
		return d.PurchaseOrder != nil && d.Invoice == nil && d.PurchaseEntry == nil
	case KindPurchaseEntry:
		return d.PurchaseEntry != nil && d.Invoice == nil && d.PurchaseOrder == nil
	}
	return false
}
