// Package inventory provides the batch inventory index and stock allocation checks.
//
// The engine only reads batches. Stock is changed exclusively through Ledger at the
// moment a document is confirmed.
package inventory

import (
	"context"
	"strings"
	"time"

	"pharmadesk/internal/core/types"
)

// BatchKey identifies a batch of an item.
type BatchKey struct {
	ItemID  string `json:"itemId"`
	BatchNo string `json:"batchNo"`
}

// IsZero reports whether the key is blank (an empty line).
func (k BatchKey) IsZero() bool {
	return strings.TrimSpace(k.ItemID) == "" && strings.TrimSpace(k.BatchNo) == ""
}

// Normalize trims surrounding whitespace so "B001 " and "B001" match.
func (k BatchKey) Normalize() BatchKey {
	return BatchKey{ItemID: strings.TrimSpace(k.ItemID), BatchNo: strings.TrimSpace(k.BatchNo)}
}

// String renders the key as item/batch.
func (k BatchKey) String() string {
	return k.ItemID + "/" + k.BatchNo
}

// Batch is a point-in-time snapshot of one inventory batch.
type Batch struct {
	ItemID            string      `db:"item_id" json:"itemId"`
	BatchNo           string      `db:"batch_no" json:"batchNo"`
	AvailableQuantity int64       `db:"available_quantity" json:"availableQuantity"`
	UnitPrice         types.Money `db:"unit_price" json:"unitPrice"`
	GSTPercentage     types.Money `db:"gst_percentage" json:"gstPercentage"`
	ExpiryDate        *time.Time  `db:"expiry_date" json:"expiryDate,omitempty"`
}

// Key returns the batch identity.
func (b Batch) Key() BatchKey {
	return BatchKey{ItemID: b.ItemID, BatchNo: b.BatchNo}
}

// IsExpired reports whether the batch expired before the given day.
func (b Batch) IsExpired(on time.Time) bool {
	return b.ExpiryDate != nil && b.ExpiryDate.Before(on.Truncate(24*time.Hour))
}

// Index resolves batch snapshots.
// Lookup returns apperror NOT_FOUND for unknown keys and LOOKUP_FAILED when the
// backing store cannot be reached.
type Index interface {
	Lookup(ctx context.Context, key BatchKey) (Batch, error)
}
