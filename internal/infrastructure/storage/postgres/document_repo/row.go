package document_repo

import (
	"time"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain/documents"
	"pharmadesk/internal/domain/documents/lineitem"
)

// documentRow is the flat shape of doc_documents. The variant headers share
// one table; columns a variant does not use stay empty.
type documentRow struct {
	documents.Document

	PatientID         string     `db:"patient_id"`
	DoctorID          string     `db:"doctor_id"`
	PaymentMode       string     `db:"payment_mode"`
	SupplierID        string     `db:"supplier_id"`
	SupplierInvoiceNo string     `db:"supplier_invoice_no"`
	PurchaseOrderNo   string     `db:"purchase_order_no"`
	ExpectedDate      *time.Time `db:"expected_date"`
	ReceivedDate      *time.Time `db:"received_date"`
}

func toRow(doc *documents.Document) documentRow {
	row := documentRow{Document: *doc}
	row.Lines = nil
	switch {
	case doc.Invoice != nil:
		row.PatientID = doc.Invoice.PatientID
		row.DoctorID = doc.Invoice.DoctorID
		row.PaymentMode = doc.Invoice.PaymentMode
	case doc.PurchaseOrder != nil:
		row.SupplierID = doc.PurchaseOrder.SupplierID
		row.ExpectedDate = doc.PurchaseOrder.ExpectedDate
	case doc.PurchaseEntry != nil:
		row.SupplierID = doc.PurchaseEntry.SupplierID
		row.SupplierInvoiceNo = doc.PurchaseEntry.SupplierInvoiceNo
		row.PurchaseOrderNo = doc.PurchaseEntry.PurchaseOrderNo
		row.ReceivedDate = doc.PurchaseEntry.ReceivedDate
	}
	return row
}

func (r documentRow) toDocument() *documents.Document {
	doc := r.Document
	switch doc.Kind {
	case documents.KindInvoice:
		doc.Invoice = &documents.InvoiceHeader{
			PatientID:   r.PatientID,
			DoctorID:    r.DoctorID,
			PaymentMode: r.PaymentMode,
		}
	case documents.KindPurchaseOrder:
		doc.PurchaseOrder = &documents.PurchaseOrderHeader{
			SupplierID:   r.SupplierID,
			ExpectedDate: r.ExpectedDate,
		}
	case documents.KindPurchaseEntry:
		doc.PurchaseEntry = &documents.PurchaseEntryHeader{
			SupplierID:        r.SupplierID,
			SupplierInvoiceNo: r.SupplierInvoiceNo,
			PurchaseOrderNo:   r.PurchaseOrderNo,
			ReceivedDate:      r.ReceivedDate,
		}
	}
	return &doc
}

type lineRow struct {
	DocumentID id.ID `db:"document_id"`
	lineitem.Line
}
