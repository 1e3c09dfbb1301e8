package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// BatchInserter bulk-inserts rows with the COPY protocol.
type BatchInserter struct {
	txManager *TxManager
}

// NewBatchInserter creates a new batch inserter.
func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{txManager: txManager}
}

// CopyFromSlice copies rows into table. Must run inside a transaction so the rows
// commit or roll back with the business change that produced them.
func (b *BatchInserter) CopyFromSlice(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	tx := b.txManager.GetTx(ctx)
	if tx == nil {
		return 0, fmt.Errorf("CopyFromSlice requires transaction context")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
}

// BatchQuery represents a query in a batch.
type BatchQuery struct {
	SQL  string
	Args []any
}

// BatchExecutor sends several statements in one round-trip.
type BatchExecutor struct {
	txManager *TxManager
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(txManager *TxManager) *BatchExecutor {
	return &BatchExecutor{txManager: txManager}
}

// ExecuteBatch runs queries inside the current transaction and returns one command
// tag per query, so callers can check affected rows of conditional updates.
func (e *BatchExecutor) ExecuteBatch(ctx context.Context, queries []BatchQuery) ([]pgconn.CommandTag, error) {
	tx := e.txManager.GetTx(ctx)
	if tx == nil {
		return nil, fmt.Errorf("ExecuteBatch requires transaction context")
	}
	if len(queries) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	for _, q := range queries {
		batch.Queue(q.SQL, q.Args...)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	tags := make([]pgconn.CommandTag, 0, len(queries))
	for i := range queries {
		tag, err := results.Exec()
		if err != nil {
			return tags, fmt.Errorf("batch query %d failed: %w", i, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}
