package dto

import (
	"time"

	"pharmadesk/internal/domain/inventory"
)

// BatchListRequest holds batch list query parameters.
type BatchListRequest struct {
	ItemID  string `form:"itemId" binding:"required"`
	InStock bool   `form:"inStock"`
}

// BatchResponse is an inventory batch snapshot.
type BatchResponse struct {
	ItemID            string     `json:"itemId"`
	BatchNo           string     `json:"batchNo"`
	AvailableQuantity int64      `json:"availableQuantity"`
	UnitPrice         string     `json:"unitPrice"`
	GSTPercentage     string     `json:"gstPercentage"`
	ExpiryDate        *time.Time `json:"expiryDate,omitempty"`
	Expired           bool       `json:"expired"`
}

// FromBatch maps a batch, flagging it expired relative to now.
func FromBatch(b inventory.Batch, now time.Time) BatchResponse {
	return BatchResponse{
		ItemID:            b.ItemID,
		BatchNo:           b.BatchNo,
		AvailableQuantity: b.AvailableQuantity,
		UnitPrice:         Money(b.UnitPrice),
		GSTPercentage:     Money(b.GSTPercentage),
		ExpiryDate:        b.ExpiryDate,
		Expired:           b.IsExpired(now),
	}
}

// ItemSearchRequest holds catalog search parameters.
type ItemSearchRequest struct {
	Search string `form:"search"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
}
