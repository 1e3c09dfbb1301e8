package payments

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/numerator"
	"pharmadesk/internal/core/tx"
	"pharmadesk/internal/core/types"
	"pharmadesk/internal/domain"
	"pharmadesk/pkg/logger"
)

// NumberPrefix of payment numbers, e.g. PAY-2026-00001.
const NumberPrefix = "PAY"

var tracer = otel.Tracer("pharmadesk/payments")

// Service prepares and confirms supplier payments.
type Service struct {
	bills     BillSource
	repo      Repository
	numerator numerator.Generator
	txManager tx.Manager
	hooks     *domain.HookRegistry[*Payment]
}

// NewService creates a new payment service.
func NewService(bills BillSource, repo Repository, numerator numerator.Generator, txManager tx.Manager) *Service {
	return &Service{
		bills:     bills,
		repo:      repo,
		numerator: numerator,
		txManager: txManager,
		hooks:     domain.NewHookRegistry[*Payment](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Payment] {
	return s.hooks
}

// OutstandingBills lists a supplier's bills with the given status.
func (s *Service) OutstandingBills(ctx context.Context, supplierID string, status BillStatus) ([]OutstandingBill, error) {
	if strings.TrimSpace(supplierID) == "" {
		return nil, apperror.NewInvalidInput("supplierId", "supplier is required")
	}
	return s.bills.ListOutstandingBills(ctx, supplierID, status)
}

// CreditNote returns the supplier's credit balance.
func (s *Service) CreditNote(ctx context.Context, supplierID string) (CreditNote, error) {
	if strings.TrimSpace(supplierID) == "" {
		return CreditNote{}, apperror.NewInvalidInput("supplierId", "supplier is required")
	}
	return s.bills.GetCreditNote(ctx, supplierID)
}

// Prepare selects pending bills by number and computes the allocation on session.
func (s *Service) Prepare(ctx context.Context, session *Session, billNos []string, applyCredit bool) (Computation, error) {
	pending, err := s.OutstandingBills(ctx, session.SupplierID(), BillPending)
	if err != nil {
		return Computation{}, err
	}

	byNo := make(map[string]OutstandingBill, len(pending))
	for _, b := range pending {
		byNo[b.BillNo] = b
	}
	selected := make([]OutstandingBill, 0, len(billNos))
	for _, no := range billNos {
		b, ok := byNo[strings.TrimSpace(no)]
		if !ok {
			return Computation{}, apperror.NewNotFound("pending bill", no)
		}
		selected = append(selected, b)
	}

	if err := session.SelectBills(selected); err != nil {
		return Computation{}, err
	}

	credit, err := s.CreditNote(ctx, session.SupplierID())
	if err != nil {
		return Computation{}, err
	}
	return session.Compute(&credit, applyCredit)
}

// Confirm submits the session's allocation as a payment.
// Bills are marked paid and credit consumed in the same transaction; if another
// payment got there first the whole confirm is rolled back and the session fails.
func (s *Service) Confirm(ctx context.Context, session *Session, details Details) (_ *Payment, err error) {
	ctx, span := tracer.Start(ctx, "payments.Confirm")
	span.SetAttributes(attribute.String("supplier.id", session.SupplierID()))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	p, err := session.BeginSubmit(details)
	if err != nil {
		return nil, err
	}

	version := p.Version
	fail := func(err error) (*Payment, error) {
		p.Number = ""
		p.Confirmed = false
		p.ConfirmedAt = nil
		p.Version = version
		_ = session.MarkFailed(err)
		logger.Warn(ctx, "payment confirm failed",
			"supplier_id", session.SupplierID(),
			"payable", types.FormatMoney(p.AmountPaid),
			"error", err)
		return nil, err
	}

	if err := s.hooks.RunBeforeConfirm(ctx, p); err != nil {
		return fail(err)
	}
	if err := p.Validate(ctx); err != nil {
		return fail(err)
	}

	number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(NumberPrefix), numerator.DefaultOptions(), p.Date)
	if err != nil {
		return fail(fmt.Errorf("generate number: %w", err))
	}
	p.Number = number
	p.MarkConfirmed()

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		if err := s.repo.MarkBillsPaid(ctx, p.SupplierID, p.DocumentIDs()); err != nil {
			return err
		}
		if p.CreditNoteApplied.IsPositive() {
			if err := s.repo.ConsumeCredit(ctx, p.SupplierID, p.CreditNoteApplied); err != nil {
				return err
			}
		}
		return s.hooks.RunConfirming(ctx, p)
	})
	if err != nil {
		return fail(err)
	}

	if err := session.MarkCommitted(); err != nil {
		return nil, err
	}

	if err := s.hooks.RunAfterConfirm(ctx, p); err != nil {
		logger.Warn(ctx, "after-confirm hook failed", "id", p.ID, "error", err)
	}

	logger.Info(ctx, "payment confirmed",
		"id", p.ID,
		"number", p.Number,
		"supplier_id", p.SupplierID,
		"bills", len(p.Allocations),
		"amount_paid", types.FormatMoney(p.AmountPaid),
		"credit_applied", types.FormatMoney(p.CreditNoteApplied))

	return p, nil
}

// GetByID retrieves a payment with its allocations.
func (s *Service) GetByID(ctx context.Context, paymentID id.ID) (*Payment, error) {
	return s.repo.GetByID(ctx, paymentID)
}
