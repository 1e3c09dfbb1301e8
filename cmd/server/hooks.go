package main

import (
	"context"
	"fmt"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain"
	"pharmadesk/internal/domain/documents"
	"pharmadesk/internal/domain/events"
	"pharmadesk/internal/domain/inventory"
	"pharmadesk/internal/domain/payments"
	"pharmadesk/internal/infrastructure/http/v1/dto"
	"pharmadesk/internal/infrastructure/storage/postgres"
	"pharmadesk/pkg/logger"
)

type eventPublisher interface {
	Publish(ctx context.Context, event postgres.DomainEvent) error
}

type auditRecorder interface {
	Record(ctx context.Context, entityType string, entityID id.ID, number string, action postgres.AuditAction, snapshot any) error
}

type batchInvalidator interface {
	Invalidate(ctx context.Context, keys ...inventory.BatchKey) error
}

// registerDocumentHooks writes the confirm event inside the confirm transaction,
// then drops the cached snapshots of the batches it moved and audits the document.
// cache may be nil.
func registerDocumentHooks(h *domain.HookRegistry[*documents.Document], outbox eventPublisher, audit auditRecorder, cache batchInvalidator) {
	h.OnConfirming(func(ctx context.Context, doc *documents.Document) error {
		return outbox.Publish(ctx, postgres.DomainEvent{
			AggregateType: events.AggregateDocument,
			AggregateID:   doc.ID,
			EventType:     events.TypeDocumentConfirmed,
			Payload:       events.NewDocumentConfirmed(doc),
		})
	})

	h.OnAfterConfirm(func(ctx context.Context, doc *documents.Document) error {
		if cache != nil {
			movements := documents.Movements(doc)
			keys := make([]inventory.BatchKey, len(movements))
			for i, m := range movements {
				keys[i] = m.Key
			}
			if err := cache.Invalidate(ctx, keys...); err != nil {
				// The worker invalidates again when it relays the event.
				logger.Warn(ctx, "batch cache invalidation failed", "number", doc.Number, "error", err)
			}
		}

		if err := audit.Record(ctx, events.AggregateDocument, doc.ID, doc.Number, postgres.AuditActionConfirm, dto.FromDocument(doc)); err != nil {
			return fmt.Errorf("audit document %s: %w", doc.Number, err)
		}
		return nil
	})
}

// registerPaymentHooks mirrors registerDocumentHooks for supplier payments.
func registerPaymentHooks(h *domain.HookRegistry[*payments.Payment], outbox eventPublisher, audit auditRecorder) {
	h.OnConfirming(func(ctx context.Context, p *payments.Payment) error {
		return outbox.Publish(ctx, postgres.DomainEvent{
			AggregateType: events.AggregatePayment,
			AggregateID:   p.ID,
			EventType:     events.TypePaymentRecorded,
			Payload:       events.NewPaymentRecorded(p),
		})
	})

	h.OnAfterConfirm(func(ctx context.Context, p *payments.Payment) error {
		if err := audit.Record(ctx, events.AggregatePayment, p.ID, p.Number, postgres.AuditActionPay, dto.FromPayment(p)); err != nil {
			return fmt.Errorf("audit payment %s: %w", p.Number, err)
		}
		return nil
	})
}
