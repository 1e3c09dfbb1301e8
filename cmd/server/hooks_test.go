package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/types"
	"pharmadesk/internal/domain/documents"
	"pharmadesk/internal/domain/events"
	"pharmadesk/internal/domain/inventory"
	"pharmadesk/internal/domain/payments"
	"pharmadesk/internal/infrastructure/storage/postgres"
)

type recordingOutbox struct{ events []postgres.DomainEvent }

func (o *recordingOutbox) Publish(_ context.Context, event postgres.DomainEvent) error {
	o.events = append(o.events, event)
	return nil
}

type recordingAudit struct {
	actions []postgres.AuditAction
	err     error
}

func (a *recordingAudit) Record(_ context.Context, _ string, _ id.ID, _ string, action postgres.AuditAction, _ any) error {
	a.actions = append(a.actions, action)
	return a.err
}

type recordingCache struct {
	keys []inventory.BatchKey
	err  error
}

func (c *recordingCache) Invalidate(_ context.Context, keys ...inventory.BatchKey) error {
	c.keys = append(c.keys, keys...)
	return c.err
}

func soldInvoice(t *testing.T) *documents.Document {
	t.Helper()
	doc := documents.NewInvoice("PH1", documents.InvoiceHeader{PatientID: "P1", PaymentMode: "cash"})
	i, err := doc.AddLine()
	require.NoError(t, err)
	require.NoError(t, doc.SelectBatch(i, inventory.Batch{
		ItemID: "ITEM-1", BatchNo: "B1", AvailableQuantity: 10,
		UnitPrice: types.MustMoney("5"), GSTPercentage: types.MustMoney("12"),
	}))
	require.NoError(t, doc.SetQuantity(i, 3))
	doc.Number = "INV-2026-00001"
	return doc
}

func TestDocumentHooks(t *testing.T) {
	ctx := context.Background()

	t.Run("confirming publishes event", func(t *testing.T) {
		svc := documents.NewService(nil, nil, nil, nil, nil, nil)
		outbox := &recordingOutbox{}
		registerDocumentHooks(svc.Hooks(), outbox, &recordingAudit{}, nil)
		doc := soldInvoice(t)

		require.NoError(t, svc.Hooks().RunConfirming(ctx, doc))

		require.Len(t, outbox.events, 1)
		ev := outbox.events[0]
		assert.Equal(t, events.TypeDocumentConfirmed, ev.EventType)
		assert.Equal(t, doc.ID, ev.AggregateID)
		payload := ev.Payload.(events.DocumentConfirmed)
		assert.Equal(t, []inventory.BatchKey{{ItemID: "ITEM-1", BatchNo: "B1"}}, payload.Batches)
	})

	t.Run("after confirm audits and invalidates", func(t *testing.T) {
		svc := documents.NewService(nil, nil, nil, nil, nil, nil)
		audit := &recordingAudit{}
		cache := &recordingCache{}
		registerDocumentHooks(svc.Hooks(), &recordingOutbox{}, audit, cache)

		require.NoError(t, svc.Hooks().RunAfterConfirm(ctx, soldInvoice(t)))

		assert.Equal(t, []postgres.AuditAction{postgres.AuditActionConfirm}, audit.actions)
		assert.Equal(t, []inventory.BatchKey{{ItemID: "ITEM-1", BatchNo: "B1"}}, cache.keys)
	})

	t.Run("cache failure is not an error", func(t *testing.T) {
		svc := documents.NewService(nil, nil, nil, nil, nil, nil)
		registerDocumentHooks(svc.Hooks(), &recordingOutbox{}, &recordingAudit{}, &recordingCache{err: errors.New("redis down")})

		assert.NoError(t, svc.Hooks().RunAfterConfirm(ctx, soldInvoice(t)))
	})

	t.Run("audit failure surfaces after invalidation", func(t *testing.T) {
		svc := documents.NewService(nil, nil, nil, nil, nil, nil)
		cache := &recordingCache{}
		registerDocumentHooks(svc.Hooks(), &recordingOutbox{}, &recordingAudit{err: errors.New("disk full")}, cache)

		err := svc.Hooks().RunAfterConfirm(ctx, soldInvoice(t))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "INV-2026-00001")
		assert.Equal(t, []inventory.BatchKey{{ItemID: "ITEM-1", BatchNo: "B1"}}, cache.keys)
	})
}

func TestPaymentHooks(t *testing.T) {
	ctx := context.Background()
	svc := payments.NewService(nil, nil, nil, nil)
	outbox := &recordingOutbox{}
	audit := &recordingAudit{}
	registerPaymentHooks(svc.Hooks(), outbox, audit)

	p := &payments.Payment{SupplierID: "S1", AmountPaid: types.MustMoney("1200")}
	p.ID = id.New()
	p.Number = "PAY-2026-00001"

	require.NoError(t, svc.Hooks().RunConfirming(ctx, p))
	require.NoError(t, svc.Hooks().RunAfterConfirm(ctx, p))

	require.Len(t, outbox.events, 1)
	assert.Equal(t, events.TypePaymentRecorded, outbox.events[0].EventType)
	assert.Equal(t, events.AggregatePayment, outbox.events[0].AggregateType)
	assert.Equal(t, []postgres.AuditAction{postgres.AuditActionPay}, audit.actions)
}
