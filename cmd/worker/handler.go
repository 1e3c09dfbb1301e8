package main

import (
	"context"
	"encoding/json"
	"fmt"

	"pharmadesk/internal/core/types"
	"pharmadesk/internal/domain/events"
	"pharmadesk/internal/domain/inventory"
	"pharmadesk/internal/infrastructure/storage/postgres"
	"pharmadesk/pkg/logger"
)

type batchInvalidator interface {
	Invalidate(ctx context.Context, keys ...inventory.BatchKey) error
}

// newEventHandler consumes outbox events. A returned error keeps the message
// pending for a retry. cache may be nil.
func newEventHandler(cache batchInvalidator) postgres.OutboxHandlerFunc {
	return func(ctx context.Context, msg *postgres.OutboxMessage) error {
		switch msg.EventType {
		case events.TypeDocumentConfirmed:
			var ev events.DocumentConfirmed
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				return fmt.Errorf("decode %s: %w", msg.EventType, err)
			}
			logger.Info(ctx, "document confirmed",
				"number", ev.Number,
				"kind", ev.Kind,
				"grand_total", types.FormatMoney(ev.GrandTotal),
				"batches", len(ev.Batches))
			if cache == nil || len(ev.Batches) == 0 {
				return nil
			}
			return cache.Invalidate(ctx, ev.Batches...)

		case events.TypePaymentRecorded:
			var ev events.PaymentRecorded
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				return fmt.Errorf("decode %s: %w", msg.EventType, err)
			}
			logger.Info(ctx, "payment recorded",
				"number", ev.Number,
				"supplier_id", ev.SupplierID,
				"amount_paid", types.FormatMoney(ev.AmountPaid),
				"credit_applied", types.FormatMoney(ev.CreditNoteApplied),
				"bills", len(ev.BillIDs))
			return nil
		}

		logger.Warn(ctx, "skipping unknown outbox event", "event_type", msg.EventType, "id", msg.ID)
		return nil
	}
}
