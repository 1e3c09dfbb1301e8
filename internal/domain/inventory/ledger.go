package inventory

import (
	"context"
	"time"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/types"
)

// Direction tells whether a movement takes stock out or brings it in.
type Direction string

const (
	DirectionIssue   Direction = "issue"
	DirectionReceipt Direction = "receipt"
)

// Movement is one stock change produced by confirming a document line.
type Movement struct {
	Key       BatchKey
	Direction Direction
	Quantity  int64

	// Receipt-only attributes, used to create or refresh the batch.
	UnitPrice     types.Money
	GSTPercentage types.Money
	ExpiryDate    *time.Time
}

// Ledger applies stock movements inside the caller's transaction.
//
// Issues are conditional: a batch is decremented only if it still holds enough stock,
// otherwise Apply fails with QUANTITY_EXCEEDS_STOCK carrying the current availability.
// This is the authoritative check; ValidateAllocation is advisory.
type Ledger interface {
	Apply(ctx context.Context, recorderID id.ID, recorderType string, movements []Movement) error
}

// MergeMovements folds movements on the same batch and direction together.
// Keeps first-seen order.
func MergeMovements(movements []Movement) []Movement {
	type mkey struct {
		key BatchKey
		dir Direction
	}
	pos := make(map[mkey]int, len(movements))
	out := make([]Movement, 0, len(movements))
	for _, m := range movements {
		k := mkey{m.Key.Normalize(), m.Direction}
		if i, ok := pos[k]; ok {
			out[i].Quantity += m.Quantity
			continue
		}
		pos[k] = len(out)
		out = append(out, m)
	}
	return out
}
