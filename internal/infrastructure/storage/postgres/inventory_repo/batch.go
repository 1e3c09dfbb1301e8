// Package inventory_repo provides the PostgreSQL batch index and stock ledger.
package inventory_repo

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain/inventory"
	"pharmadesk/internal/infrastructure/storage/postgres"
)

const (
	batchesTable   = "inv_batches"
	movementsTable = "inv_batch_movements"
)

var batchColumns = postgres.ExtractDBColumns[inventory.Batch]()

var movementColumns = []string{
	"id", "recorder_id", "recorder_type", "item_id", "batch_no", "direction", "quantity", "created_at",
}

var (
	_ inventory.Index  = (*BatchRepo)(nil)
	_ inventory.Ledger = (*BatchRepo)(nil)
)

// BatchRepo reads inv_batches and applies stock movements to it.
type BatchRepo struct {
	txManager *postgres.TxManager
	executor  *postgres.BatchExecutor
	inserter  *postgres.BatchInserter
	builder   squirrel.StatementBuilderType
}

// NewBatchRepo creates a new batch repository.
func NewBatchRepo(txManager *postgres.TxManager) *BatchRepo {
	return &BatchRepo{
		txManager: txManager,
		executor:  postgres.NewBatchExecutor(txManager),
		inserter:  postgres.NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Lookup implements inventory.Index.
func (r *BatchRepo) Lookup(ctx context.Context, key inventory.BatchKey) (inventory.Batch, error) {
	key = key.Normalize()
	sql, args, err := r.builder.
		Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"item_id": key.ItemID, "batch_no": key.BatchNo}).
		ToSql()
	if err != nil {
		return inventory.Batch{}, fmt.Errorf("build query: %w", err)
	}

	var b inventory.Batch
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return inventory.Batch{}, apperror.NewNotFound("inventory batch", key.String())
		}
		return inventory.Batch{}, apperror.NewLookupFailed("inventory batch", err)
	}
	return b, nil
}

// ListByItem returns the batches of an item, earliest expiry first.
// With inStock set, empty and expired batches are left out.
func (r *BatchRepo) ListByItem(ctx context.Context, itemID string, inStock bool) ([]inventory.Batch, error) {
	q := r.builder.
		Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"item_id": itemID}).
		OrderBy("expiry_date NULLS LAST", "batch_no")
	if inStock {
		q = q.Where(squirrel.Gt{"available_quantity": 0}).
			Where(squirrel.Or{
				squirrel.Eq{"expiry_date": nil},
				squirrel.Expr("expiry_date >= CURRENT_DATE"),
			})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batches []inventory.Batch
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &batches, sql, args...); err != nil {
		return nil, apperror.NewLookupFailed("inventory batch", err)
	}
	return batches, nil
}

// Apply implements inventory.Ledger. Must run inside the confirm transaction.
//
// Issues are sent as conditional decrements in one round-trip; a statement that
// touched no row means the batch no longer holds the requested quantity. Batches
// are locked in key order so concurrent confirms cannot deadlock each other.
func (r *BatchRepo) Apply(ctx context.Context, recorderID id.ID, recorderType string, movements []inventory.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	ordered := slices.Clone(inventory.MergeMovements(movements))
	slices.SortFunc(ordered, func(a, b inventory.Movement) int {
		return cmp.Or(
			cmp.Compare(a.Key.ItemID, b.Key.ItemID),
			cmp.Compare(a.Key.BatchNo, b.Key.BatchNo),
		)
	})

	queries := make([]postgres.BatchQuery, 0, len(ordered))
	for _, m := range ordered {
		q, err := movementQuery(m)
		if err != nil {
			return err
		}
		queries = append(queries, q)
	}

	tags, err := r.executor.ExecuteBatch(ctx, queries)
	if err != nil {
		return fmt.Errorf("apply stock movements: %w", err)
	}

	for i, m := range ordered {
		if m.Direction == inventory.DirectionIssue && tags[i].RowsAffected() == 0 {
			return r.shortage(ctx, m)
		}
	}

	return r.recordHistory(ctx, recorderID, recorderType, ordered)
}

func movementQuery(m inventory.Movement) (postgres.BatchQuery, error) {
	switch m.Direction {
	case inventory.DirectionIssue:
		return postgres.BatchQuery{
			SQL: `UPDATE inv_batches
				SET available_quantity = available_quantity - $1, updated_at = NOW()
				WHERE item_id = $2 AND batch_no = $3 AND available_quantity >= $1`,
			Args: []any{m.Quantity, m.Key.ItemID, m.Key.BatchNo},
		}, nil
	case inventory.DirectionReceipt:
		return postgres.BatchQuery{
			SQL: `INSERT INTO inv_batches (item_id, batch_no, available_quantity, unit_price, gst_percentage, expiry_date, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, NOW())
				ON CONFLICT (item_id, batch_no) DO UPDATE SET
					available_quantity = inv_batches.available_quantity + EXCLUDED.available_quantity,
					unit_price = EXCLUDED.unit_price,
					gst_percentage = EXCLUDED.gst_percentage,
					expiry_date = COALESCE(EXCLUDED.expiry_date, inv_batches.expiry_date),
					updated_at = NOW()`,
			Args: []any{m.Key.ItemID, m.Key.BatchNo, m.Quantity, m.UnitPrice, m.GSTPercentage, m.ExpiryDate},
		}, nil
	}
	return postgres.BatchQuery{}, fmt.Errorf("unknown stock direction %q", m.Direction)
}

// shortage reports the availability that made a conditional decrement miss.
func (r *BatchRepo) shortage(ctx context.Context, m inventory.Movement) error {
	var available int64
	err := r.txManager.GetQuerier(ctx).QueryRow(ctx,
		`SELECT available_quantity FROM inv_batches WHERE item_id = $1 AND batch_no = $2`,
		m.Key.ItemID, m.Key.BatchNo,
	).Scan(&available)
	if err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewNotFound("inventory batch", m.Key.String())
		}
		return fmt.Errorf("read availability: %w", err)
	}
	return apperror.NewQuantityExceedsStock(m.Key.ItemID, m.Key.BatchNo, m.Quantity, available)
}

func (r *BatchRepo) recordHistory(ctx context.Context, recorderID id.ID, recorderType string, movements []inventory.Movement) error {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(movements))
	for _, m := range movements {
		rows = append(rows, []any{
			id.New(), recorderID, recorderType, m.Key.ItemID, m.Key.BatchNo, string(m.Direction), m.Quantity, now,
		})
	}
	if _, err := r.inserter.CopyFromSlice(ctx, movementsTable, movementColumns, rows); err != nil {
		return fmt.Errorf("copy movements: %w", err)
	}
	return nil
}
