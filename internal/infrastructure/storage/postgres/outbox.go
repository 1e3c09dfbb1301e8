package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pharmadesk/internal/core/id"
	"pharmadesk/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// maxOutboxRetries is the attempt count after which a message is parked as failed.
const maxOutboxRetries = 5

// OutboxMessage is one row of sys_outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

// DomainEvent is an event to be written to the outbox.
type DomainEvent struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// OutboxPublisher writes events in the transaction that produced them.
type OutboxPublisher struct {
	txManager *TxManager
}

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager}
}

// Publish writes event to the outbox. Must be called inside a transaction.
func (p *OutboxPublisher) Publish(ctx context.Context, event DomainEvent) error {
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id.New(), event.AggregateType, event.AggregateID, event.EventType, payload, OutboxStatusPending, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// OutboxHandler processes outbox messages.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

// Handle calls f.
func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error {
	return f(ctx, msg)
}

// OutboxRelay drains pending messages for the background worker.
type OutboxRelay struct {
	txManager *TxManager
	batchSize int
	handler   OutboxHandler
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(txManager *TxManager, batchSize int, handler OutboxHandler) *OutboxRelay {
	return &OutboxRelay{
		txManager: txManager,
		batchSize: batchSize,
		handler:   handler,
	}
}

// ProcessBatch handles one batch of due messages and returns how many succeeded.
// Rows stay locked until the batch transaction ends, so parallel relays skip them.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	processed := 0
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		messages, err := r.fetch(ctx)
		if err != nil {
			return err
		}
		for _, msg := range messages {
			if err := r.process(ctx, msg); err != nil {
				logger.Warn(ctx, "outbox message failed",
					"id", msg.ID,
					"event_type", msg.EventType,
					"retry", msg.RetryCount+1,
					"error", err)
				continue
			}
			processed++
		}
		return nil
	})
	return processed, err
}

func (r *OutboxRelay) fetch(ctx context.Context) ([]*OutboxMessage, error) {
	rows, err := r.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
		       retry_count, last_error, next_retry_at, created_at, published_at
		FROM sys_outbox
		WHERE status = $1 AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, OutboxStatusPending, r.batchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*OutboxMessage
	for rows.Next() {
		var msg OutboxMessage
		if err := rows.Scan(
			&msg.ID, &msg.AggregateType, &msg.AggregateID, &msg.EventType,
			&msg.Payload, &msg.Status, &msg.RetryCount, &msg.LastError,
			&msg.NextRetryAt, &msg.CreatedAt, &msg.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

func (r *OutboxRelay) process(ctx context.Context, msg *OutboxMessage) error {
	q := r.txManager.GetQuerier(ctx)

	if handleErr := r.handler.Handle(ctx, msg); handleErr != nil {
		status := OutboxStatusPending
		if msg.RetryCount+1 >= maxOutboxRetries {
			status = OutboxStatusFailed
		}
		_, err := q.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = retry_count + 1, last_error = $1, next_retry_at = $2, status = $3
			WHERE id = $4`,
			handleErr.Error(), nextRetryAt(msg.RetryCount), status, msg.ID)
		if err != nil {
			return fmt.Errorf("update failed message: %w", err)
		}
		return handleErr
	}

	_, err := q.Exec(ctx,
		`UPDATE sys_outbox SET status = $1, published_at = $2 WHERE id = $3`,
		OutboxStatusPublished, time.Now().UTC(), msg.ID)
	return err
}

// nextRetryAt backs off linearly by a minute per failed attempt.
func nextRetryAt(retryCount int) time.Time {
	return time.Now().UTC().Add(time.Duration(retryCount+1) * time.Minute)
}
