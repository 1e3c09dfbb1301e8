package inventory

import (
	"pharmadesk/internal/core/apperror"
)

// ValidateAllocation checks a requested quantity against a batch snapshot.
// It never clamps: an over-allocation comes back as QUANTITY_EXCEEDS_STOCK with both values.
func ValidateAllocation(requested int64, batch Batch) error {
	if requested < 0 {
		return apperror.NewInvalidInput("quantity", "quantity must not be negative")
	}
	if requested > batch.AvailableQuantity {
		return apperror.NewQuantityExceedsStock(batch.ItemID, batch.BatchNo, requested, batch.AvailableQuantity)
	}
	return nil
}
