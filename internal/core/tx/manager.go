// Package tx defines the transaction contract domain services depend on.
// The implementation lives in infrastructure/storage/postgres.
package tx

import (
	"context"
)

// Manager runs fn inside a database transaction.
// fn returning an error rolls the transaction back; nested calls reuse the
// transaction already carried by ctx.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
