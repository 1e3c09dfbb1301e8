// Package catalog describes the item catalog as seen by the billing engine.
// The catalog itself is owned elsewhere; only lookups are needed here.
package catalog

import "context"

// Item is a catalog entry referenced by document lines.
type Item struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Manufacturer string `db:"manufacturer" json:"manufacturer,omitempty"`
	Unit         string `db:"unit" json:"unit,omitempty"`
}

// ItemLookup resolves items by id.
// Implementations return apperror NOT_FOUND for unknown ids.
type ItemLookup interface {
	LookupItem(ctx context.Context, itemID string) (Item, error)
}
