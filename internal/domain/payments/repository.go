package payments

import (
	"context"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/types"
)

// BillSource reads supplier bills and credit balances.
type BillSource interface {
	ListOutstandingBills(ctx context.Context, supplierID string, status BillStatus) ([]OutstandingBill, error)
	// GetCreditNote returns a zero amount for suppliers without credit.
	GetCreditNote(ctx context.Context, supplierID string) (CreditNote, error)
}

// Repository persists payments and their effects on bills and credit.
// All methods run inside the caller's transaction.
type Repository interface {
	// Create inserts the payment and its allocation rows.
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, paymentID id.ID) (*Payment, error)

	// MarkBillsPaid flips pending bills to paid. Fails with BILL_ALREADY_PAID when any
	// of them was paid by someone else in the meantime.
	MarkBillsPaid(ctx context.Context, supplierID string, documentIDs []id.ID) error

	// ConsumeCredit lowers the supplier credit balance. Fails with INSUFFICIENT_CREDIT
	// when the balance no longer covers amount.
	ConsumeCredit(ctx context.Context, supplierID string, amount types.Money) error
}
