// Package events defines the integration events written to the outbox when
// documents and payments are confirmed.
package events

import (
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/types"
	"pharmadesk/internal/domain/documents"
	"pharmadesk/internal/domain/inventory"
	"pharmadesk/internal/domain/payments"
)

// Event types.
const (
	TypeDocumentConfirmed = "document.confirmed"
	TypePaymentRecorded   = "payment.recorded"
)

// Aggregate types.
const (
	AggregateDocument = "document"
	AggregatePayment  = "payment"
)

// DocumentConfirmed is emitted once per confirmed document.
type DocumentConfirmed struct {
	DocumentID id.ID                `json:"documentId"`
	Kind       documents.Kind       `json:"kind"`
	Number     string               `json:"number"`
	SupplierID string               `json:"supplierId,omitempty"`
	GrandTotal types.Money          `json:"grandTotal"`
	Batches    []inventory.BatchKey `json:"batches,omitempty"`
}

// NewDocumentConfirmed builds the event. Batches lists the stock rows the
// document moved, so consumers can drop cached availability.
func NewDocumentConfirmed(doc *documents.Document) DocumentConfirmed {
	ev := DocumentConfirmed{
		DocumentID: doc.ID,
		Kind:       doc.Kind,
		Number:     doc.Number,
		SupplierID: doc.SupplierID(),
		GrandTotal: doc.GrandTotal,
	}
	for _, m := range documents.Movements(doc) {
		ev.Batches = append(ev.Batches, m.Key)
	}
	return ev
}

// PaymentRecorded is emitted once per committed supplier payment.
type PaymentRecorded struct {
	PaymentID         id.ID       `json:"paymentId"`
	Number            string      `json:"number"`
	SupplierID        string      `json:"supplierId"`
	AmountPaid        types.Money `json:"amountPaid"`
	CreditNoteApplied types.Money `json:"creditNoteApplied"`
	BillIDs           []id.ID     `json:"billIds"`
}

// NewPaymentRecorded builds the event.
func NewPaymentRecorded(p *payments.Payment) PaymentRecorded {
	return PaymentRecorded{
		PaymentID:         p.ID,
		Number:            p.Number,
		SupplierID:        p.SupplierID,
		AmountPaid:        p.AmountPaid,
		CreditNoteApplied: p.CreditNoteApplied,
		BillIDs:           p.DocumentIDs(),
	}
}
