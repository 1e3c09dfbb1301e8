package documents

import (
	"strings"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/numerator"
	"pharmadesk/internal/domain/inventory"
)

// FieldType is the input kind of a form field.
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldRef     FieldType = "ref"
	FieldDate    FieldType = "date"
	FieldInteger FieldType = "integer"
	FieldMoney   FieldType = "money"
	FieldPercent FieldType = "percent"
)

// FieldDescriptor describes one header or line field of a variant.
// Derived fields are computed by the engine and never accepted from input.
type FieldDescriptor struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Editable bool      `json:"editable"`

	value func(d *Document) string
}

func (f FieldDescriptor) isEmpty(d *Document) bool {
	if f.value == nil {
		return false
	}
	return strings.TrimSpace(f.value(d)) == ""
}

// Policy captures how a variant treats batches, stock and numbering.
type Policy struct {
	// BatchRequired lines must name a batch.
	BatchRequired bool `json:"batchRequired"`
	// PriceFromBatch takes unit price and GST from the selected batch snapshot.
	PriceFromBatch bool `json:"priceFromBatch"`
	// StockChecked validates quantities against batch availability.
	StockChecked bool `json:"stockChecked"`
	// ExpiryEntered lines carry an expiry date typed by the user.
	ExpiryEntered bool `json:"expiryEntered"`
	// StockEffect applied on confirm; empty means none.
	StockEffect inventory.Direction `json:"stockEffect,omitempty"`
	// CreatesBill marks confirmed documents as outstanding supplier bills.
	CreatesBill bool `json:"createsBill"`

	NumberPrefix string             `json:"numberPrefix"`
	Numbering    numerator.Strategy `json:"-"`
}

// Schema is the enumerated field list of one variant.
type Schema struct {
	Kind   Kind              `json:"kind"`
	Header []FieldDescriptor `json:"header"`
	Line   []FieldDescriptor `json:"line"`
	Policy Policy            `json:"policy"`
}

// LineField returns the descriptor of a line field by name.
func (s Schema) LineField(name string) (FieldDescriptor, bool) {
	for _, f := range s.Line {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// SchemaFor returns the schema of a variant.
func SchemaFor(kind Kind) (Schema, error) {
	switch kind {
	case KindInvoice:
		return invoiceSchema, nil
	case KindPurchaseOrder:
		return purchaseOrderSchema, nil
	case KindPurchaseEntry:
		return purchaseEntrySchema, nil
	}
	return Schema{}, apperror.NewInvalidInput("kind", "unknown document kind: "+string(kind))
}

var (
	fieldDate = FieldDescriptor{Name: "date", Label: "Date", Type: FieldDate, Required: true, Editable: true}

	derivedLineFields = []FieldDescriptor{
		{Name: "discountAmount", Label: "Discount", Type: FieldMoney},
		{Name: "netTotal", Label: "Net total", Type: FieldMoney},
		{Name: "gstAmount", Label: "GST", Type: FieldMoney},
		{Name: "grossTotal", Label: "Gross total", Type: FieldMoney},
	}
)

func lineFields(batchRequired, priceEditable, withExpiry bool) []FieldDescriptor {
	fields := []FieldDescriptor{
		{Name: "itemId", Label: "Item", Type: FieldRef, Required: true, Editable: true},
		{Name: "batchNo", Label: "Batch", Type: FieldRef, Required: batchRequired, Editable: true},
	}
	if withExpiry {
		fields = append(fields, FieldDescriptor{Name: "expiryDate", Label: "Expiry", Type: FieldDate, Required: true, Editable: true})
	}
	fields = append(fields,
		FieldDescriptor{Name: "quantity", Label: "Quantity", Type: FieldInteger, Required: true, Editable: true},
		FieldDescriptor{Name: "unitPrice", Label: "Unit price", Type: FieldMoney, Required: true, Editable: priceEditable},
		FieldDescriptor{Name: "discountPercentage", Label: "Discount %", Type: FieldPercent, Editable: true},
		FieldDescriptor{Name: "gstPercentage", Label: "GST %", Type: FieldPercent, Editable: priceEditable},
	)
	return append(fields, derivedLineFields...)
}

var invoiceSchema = Schema{
	Kind: KindInvoice,
	Header: []FieldDescriptor{
		fieldDate,
		{Name: "patientId", Label: "Patient", Type: FieldRef, Required: true, Editable: true,
			value: func(d *Document) string { return d.Invoice.PatientID }},
		{Name: "doctorId", Label: "Doctor", Type: FieldRef, Editable: true,
			value: func(d *Document) string { return d.Invoice.DoctorID }},
		{Name: "paymentMode", Label: "Payment mode", Type: FieldText, Required: true, Editable: true,
			value: func(d *Document) string { return d.Invoice.PaymentMode }},
	},
	Line: lineFields(true, false, false),
	Policy: Policy{
		BatchRequired:  true,
		PriceFromBatch: true,
		StockChecked:   true,
		StockEffect:    inventory.DirectionIssue,
		NumberPrefix:   "INV",
		Numbering:      numerator.StrategyStrict,
	},
}

var purchaseOrderSchema = Schema{
	Kind: KindPurchaseOrder,
	Header: []FieldDescriptor{
		fieldDate,
		{Name: "supplierId", Label: "Supplier", Type: FieldRef, Required: true, Editable: true,
			value: func(d *Document) string { return d.PurchaseOrder.SupplierID }},
		{Name: "expectedDate", Label: "Expected delivery", Type: FieldDate, Editable: true},
	},
	Line: lineFields(false, true, false),
	Policy: Policy{
		NumberPrefix: "PO",
		Numbering:    numerator.StrategyCached,
	},
}

var purchaseEntrySchema = Schema{
	Kind: KindPurchaseEntry,
	Header: []FieldDescriptor{
		fieldDate,
		{Name: "supplierId", Label: "Supplier", Type: FieldRef, Required: true, Editable: true,
			value: func(d *Document) string { return d.PurchaseEntry.SupplierID }},
		{Name: "supplierInvoiceNo", Label: "Supplier invoice no", Type: FieldText, Required: true, Editable: true,
			value: func(d *Document) string { return d.PurchaseEntry.SupplierInvoiceNo }},
		{Name: "purchaseOrderNo", Label: "Purchase order no", Type: FieldText, Editable: true},
		{Name: "receivedDate", Label: "Received on", Type: FieldDate, Editable: true},
	},
	Line: lineFields(true, true, true),
	Policy: Policy{
		BatchRequired: true,
		ExpiryEntered: true,
		StockEffect:   inventory.DirectionReceipt,
		CreatesBill:   true,
		NumberPrefix:  "GRN",
		Numbering:     numerator.StrategyStrict,
	},
}
