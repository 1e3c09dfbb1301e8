package dto

import (
	"strings"
	"time"

	"pharmadesk/internal/core/types"
	"pharmadesk/internal/domain/documents"
	"pharmadesk/internal/domain/documents/lineitem"
)

// --- Request DTOs ---

// DocumentRequest is the body of draft and confirm requests for every variant.
// Header fields that do not belong to the requested kind are ignored.
type DocumentRequest struct {
	Date   *time.Time `json:"date,omitempty"`
	Remark string     `json:"remark,omitempty"`

	// Invoice
	PatientID   string `json:"patientId,omitempty"`
	DoctorID    string `json:"doctorId,omitempty"`
	PaymentMode string `json:"paymentMode,omitempty"`

	// Purchase order and purchase entry
	SupplierID        string     `json:"supplierId,omitempty"`
	ExpectedDate      *time.Time `json:"expectedDate,omitempty"`
	SupplierInvoiceNo string     `json:"supplierInvoiceNo,omitempty"`
	PurchaseOrderNo   string     `json:"purchaseOrderNo,omitempty"`
	ReceivedDate      *time.Time `json:"receivedDate,omitempty"`

	Lines []LineRequest `json:"lines" binding:"required,min=1,dive"`
}

// LineRequest is one entered line. Price and GST are ignored for invoices, which
// take them from the selected batch.
type LineRequest struct {
	ItemID             string       `json:"itemId" binding:"required"`
	BatchNo            string       `json:"batchNo,omitempty"`
	ExpiryDate         *time.Time   `json:"expiryDate,omitempty"`
	Quantity           int64        `json:"quantity"`
	UnitPrice          *types.Money `json:"unitPrice,omitempty"`
	DiscountPercentage *types.Money `json:"discountPercentage,omitempty"`
	GSTPercentage      *types.Money `json:"gstPercentage,omitempty"`
}

// ToDocument creates an empty draft of kind with the request header, plus the line
// drafts to build it from.
func (r *DocumentRequest) ToDocument(kind documents.Kind, pharmacyID, userID string) (*documents.Document, []documents.LineDraft, error) {
	var doc *documents.Document
	switch kind {
	case documents.KindInvoice:
		doc = documents.NewInvoice(pharmacyID, documents.InvoiceHeader{
			PatientID:   strings.TrimSpace(r.PatientID),
			DoctorID:    strings.TrimSpace(r.DoctorID),
			PaymentMode: strings.TrimSpace(r.PaymentMode),
		})
	case documents.KindPurchaseOrder:
		doc = documents.NewPurchaseOrder(pharmacyID, documents.PurchaseOrderHeader{
			SupplierID:   strings.TrimSpace(r.SupplierID),
			ExpectedDate: r.ExpectedDate,
		})
	case documents.KindPurchaseEntry:
		doc = documents.NewPurchaseEntry(pharmacyID, documents.PurchaseEntryHeader{
			SupplierID:        strings.TrimSpace(r.SupplierID),
			SupplierInvoiceNo: strings.TrimSpace(r.SupplierInvoiceNo),
			PurchaseOrderNo:   strings.TrimSpace(r.PurchaseOrderNo),
			ReceivedDate:      r.ReceivedDate,
		})
	default:
		_, err := documents.SchemaFor(kind)
		return nil, nil, err
	}

	if r.Date != nil {
		doc.Date = r.Date.UTC()
	}
	doc.Remark = r.Remark
	doc.CreatedBy = userID

	drafts := make([]documents.LineDraft, len(r.Lines))
	for i, l := range r.Lines {
		drafts[i] = documents.LineDraft{
			ItemID:             l.ItemID,
			BatchNo:            l.BatchNo,
			ExpiryDate:         l.ExpiryDate,
			Quantity:           l.Quantity,
			UnitPrice:          l.UnitPrice,
			DiscountPercentage: l.DiscountPercentage,
			GSTPercentage:      l.GSTPercentage,
		}
	}
	return doc, drafts, nil
}

// CalculateLineRequest is the input of the line calculator endpoint.
type CalculateLineRequest struct {
	Quantity           int64       `json:"quantity"`
	UnitPrice          types.Money `json:"unitPrice"`
	DiscountPercentage types.Money `json:"discountPercentage"`
	GSTPercentage      types.Money `json:"gstPercentage"`
}

// ToInput converts to calculator input.
func (r CalculateLineRequest) ToInput() lineitem.Input {
	return lineitem.Input{
		Quantity:           r.Quantity,
		UnitPrice:          r.UnitPrice,
		DiscountPercentage: r.DiscountPercentage,
		GSTPercentage:      r.GSTPercentage,
	}
}

// DocumentListRequest holds list query parameters.
type DocumentListRequest struct {
	PaginationRequest
	Kind          string     `form:"kind"`
	SupplierID    string     `form:"supplierId"`
	PaymentStatus string     `form:"paymentStatus" binding:"omitempty,oneof=pending paid"`
	DateFrom      *time.Time `form:"dateFrom" time_format:"2006-01-02"`
	DateTo        *time.Time `form:"dateTo" time_format:"2006-01-02"`
}

// ToFilter converts to the documents list filter.
func (r DocumentListRequest) ToFilter() (documents.ListFilter, error) {
	f := documents.ListFilter{
		ListFilter: r.ToListFilter(),
		SupplierID: strings.TrimSpace(r.SupplierID),
		DateFrom:   r.DateFrom,
		DateTo:     r.DateTo,
	}
	if r.Kind != "" {
		kind, err := documents.ParseKind(r.Kind)
		if err != nil {
			return f, err
		}
		f.Kind = &kind
	}
	if r.PaymentStatus != "" {
		status := documents.PaymentStatus(r.PaymentStatus)
		f.PaymentStatus = &status
	}
	return f, nil
}

// --- Response DTOs ---

// AmountsResponse holds the derived amounts of one line.
type AmountsResponse struct {
	DiscountAmount string `json:"discountAmount"`
	NetTotal       string `json:"netTotal"`
	GSTAmount      string `json:"gstAmount"`
	GrossTotal     string `json:"grossTotal"`
}

// FromAmounts maps calculator output.
func FromAmounts(a lineitem.Amounts) AmountsResponse {
	return AmountsResponse{
		DiscountAmount: Money(a.DiscountAmount),
		NetTotal:       Money(a.NetTotal),
		GSTAmount:      Money(a.GSTAmount),
		GrossTotal:     Money(a.GrossTotal),
	}
}

// LineResponse is one document line.
type LineResponse struct {
	LineNo             int        `json:"lineNo"`
	ItemID             string     `json:"itemId"`
	ItemName           string     `json:"itemName,omitempty"`
	BatchNo            string     `json:"batchNo,omitempty"`
	ExpiryDate         *time.Time `json:"expiryDate,omitempty"`
	Quantity           int64      `json:"quantity"`
	UnitPrice          string     `json:"unitPrice"`
	DiscountPercentage string     `json:"discountPercentage"`
	GSTPercentage      string     `json:"gstPercentage"`
	AmountsResponse
}

// TotalsResponse holds document totals.
type TotalsResponse struct {
	TotalQuantity int64  `json:"totalQuantity"`
	SubTotal      string `json:"subTotal"`
	TotalDiscount string `json:"totalDiscount"`
	TotalGST      string `json:"totalGst"`
	GrandTotal    string `json:"grandTotal"`
}

// DocumentResponse is a document with its lines and totals.
type DocumentResponse struct {
	DocumentHeaderResponse
	Kind          documents.Kind                 `json:"kind"`
	Invoice       *documents.InvoiceHeader       `json:"invoice,omitempty"`
	PurchaseOrder *documents.PurchaseOrderHeader `json:"purchaseOrder,omitempty"`
	PurchaseEntry *documents.PurchaseEntryHeader `json:"purchaseEntry,omitempty"`
	PaymentStatus documents.PaymentStatus        `json:"paymentStatus,omitempty"`
	Totals        TotalsResponse                 `json:"totals"`
	Lines         []LineResponse                 `json:"lines"`
}

// FromDocument maps a document. Blank lines are left out.
func FromDocument(doc *documents.Document) DocumentResponse {
	resp := DocumentResponse{
		DocumentHeaderResponse: FromEntityDocument(doc.Document),
		Kind:                   doc.Kind,
		Invoice:                doc.Invoice,
		PurchaseOrder:          doc.PurchaseOrder,
		PurchaseEntry:          doc.PurchaseEntry,
		PaymentStatus:          doc.PaymentStatus,
		Totals: TotalsResponse{
			TotalQuantity: doc.TotalQuantity,
			SubTotal:      Money(doc.SubTotal),
			TotalDiscount: Money(doc.TotalDiscount),
			TotalGST:      Money(doc.TotalGST),
			GrandTotal:    Money(doc.GrandTotal),
		},
		Lines: make([]LineResponse, 0, len(doc.Lines)),
	}

	for i, l := range doc.Lines {
		if l.IsBlank() {
			continue
		}
		lineNo := l.LineNo
		if lineNo == 0 {
			lineNo = i + 1
		}
		resp.Lines = append(resp.Lines, LineResponse{
			LineNo:             lineNo,
			ItemID:             l.ItemID,
			ItemName:           l.ItemName,
			BatchNo:            l.BatchNo,
			ExpiryDate:         l.ExpiryDate,
			Quantity:           l.Quantity,
			UnitPrice:          Money(l.UnitPrice),
			DiscountPercentage: Money(l.DiscountPercentage),
			GSTPercentage:      Money(l.GSTPercentage),
			AmountsResponse: AmountsResponse{
				DiscountAmount: Money(l.DiscountAmount),
				NetTotal:       Money(l.NetTotal),
				GSTAmount:      Money(l.GSTAmount),
				GrossTotal:     Money(l.GrossTotal),
			},
		})
	}
	return resp
}

// DocumentSummaryResponse is a list row without lines.
type DocumentSummaryResponse struct {
	DocumentHeaderResponse
	Kind          documents.Kind          `json:"kind"`
	SupplierID    string                  `json:"supplierId,omitempty"`
	PaymentStatus documents.PaymentStatus `json:"paymentStatus,omitempty"`
	GrandTotal    string                  `json:"grandTotal"`
}

// FromDocumentSummary maps a list row.
func FromDocumentSummary(doc *documents.Document) DocumentSummaryResponse {
	return DocumentSummaryResponse{
		DocumentHeaderResponse: FromEntityDocument(doc.Document),
		Kind:                   doc.Kind,
		SupplierID:             doc.SupplierID(),
		PaymentStatus:          doc.PaymentStatus,
		GrandTotal:             Money(doc.GrandTotal),
	}
}
