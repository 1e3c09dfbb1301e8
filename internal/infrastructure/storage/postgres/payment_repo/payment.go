// Package payment_repo stores supplier payments and reads the bills and credit
// balances they settle.
package payment_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/types"
	"pharmadesk/internal/domain/documents"
	"pharmadesk/internal/domain/payments"
	"pharmadesk/internal/infrastructure/storage/postgres"
)

const (
	paymentsTable    = "pay_payments"
	allocationsTable = "pay_payment_allocations"
	documentsTable   = "doc_documents"
)

var (
	paymentColumns    = postgres.ExtractDBColumns[payments.Payment]()
	allocationColumns = append([]string{"payment_id"}, postgres.ExtractDBColumns[payments.Allocation]()...)
)

// billColumns projects confirmed purchase entries as supplier bills.
var billColumns = []string{
	"id AS document_id",
	"number AS bill_no",
	"supplier_id",
	"date AS bill_date",
	"grand_total AS billed_amount",
	"payment_status AS status",
}

var (
	_ payments.Repository = (*PaymentRepo)(nil)
	_ payments.BillSource = (*PaymentRepo)(nil)
)

// PaymentRepo implements payments.Repository and payments.BillSource.
type PaymentRepo struct {
	txManager *postgres.TxManager
	inserter  *postgres.BatchInserter
	builder   squirrel.StatementBuilderType
}

// NewPaymentRepo creates a new payment repository.
func NewPaymentRepo(txManager *postgres.TxManager) *PaymentRepo {
	return &PaymentRepo{
		txManager: txManager,
		inserter:  postgres.NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *PaymentRepo) billsQuery(supplierID string, status payments.BillStatus) squirrel.SelectBuilder {
	return r.builder.
		Select(billColumns...).
		From(documentsTable).
		Where(squirrel.Eq{
			"kind":           documents.KindPurchaseEntry,
			"confirmed":      true,
			"supplier_id":    supplierID,
			"payment_status": status,
		}).
		OrderBy("date", "number")
}

// ListOutstandingBills implements payments.BillSource.
func (r *PaymentRepo) ListOutstandingBills(ctx context.Context, supplierID string, status payments.BillStatus) ([]payments.OutstandingBill, error) {
	sql, args, err := r.billsQuery(supplierID, status).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var bills []payments.OutstandingBill
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &bills, sql, args...); err != nil {
		return nil, apperror.NewLookupFailed("supplier bills", err)
	}
	return bills, nil
}

// GetCreditNote implements payments.BillSource.
func (r *PaymentRepo) GetCreditNote(ctx context.Context, supplierID string) (payments.CreditNote, error) {
	note := payments.CreditNote{SupplierID: supplierID, Amount: types.Zero()}

	err := r.txManager.GetQuerier(ctx).QueryRow(ctx,
		`SELECT balance FROM acc_supplier_credits WHERE supplier_id = $1`, supplierID,
	).Scan(&note.Amount)
	if err != nil {
		if pgxscan.NotFound(err) {
			return note, nil
		}
		return note, apperror.NewLookupFailed("credit note", err)
	}
	return note, nil
}

// Create inserts the payment and its allocations.
func (r *PaymentRepo) Create(ctx context.Context, p *payments.Payment) error {
	sql, args, err := r.builder.Insert(paymentsTable).SetMap(postgres.StructToMap(p)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", paymentsTable, err)
	}

	rows := make([][]any, 0, len(p.Allocations))
	for _, a := range p.Allocations {
		rows = append(rows, []any{p.ID, a.DocumentID, a.BillNo, a.ClearedAmount})
	}
	if _, err := r.inserter.CopyFromSlice(ctx, allocationsTable, allocationColumns, rows); err != nil {
		return fmt.Errorf("copy allocations: %w", err)
	}
	return nil
}

// GetByID retrieves a payment with its allocations.
func (r *PaymentRepo) GetByID(ctx context.Context, paymentID id.ID) (*payments.Payment, error) {
	querier := r.txManager.GetQuerier(ctx)

	sql, args, err := r.builder.Select(paymentColumns...).From(paymentsTable).
		Where(squirrel.Eq{"id": paymentID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p payments.Payment
	if err := pgxscan.Get(ctx, querier, &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("payment", paymentID.String())
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}

	sql, args, err = r.builder.Select(allocationColumns[1:]...).From(allocationsTable).
		Where(squirrel.Eq{"payment_id": paymentID}).OrderBy("bill_no").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &p.Allocations, sql, args...); err != nil {
		return nil, fmt.Errorf("select allocations: %w", err)
	}
	return &p, nil
}

// MarkBillsPaid implements payments.Repository. Only bills still pending are
// flipped; if any of documentIDs was not, the whole payment is rejected.
func (r *PaymentRepo) MarkBillsPaid(ctx context.Context, supplierID string, documentIDs []id.ID) error {
	if len(documentIDs) == 0 {
		return nil
	}

	sql, args, err := r.builder.Update(documentsTable).
		Set("payment_status", documents.PaymentPaid).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{
			"id":             documentIDs,
			"kind":           documents.KindPurchaseEntry,
			"supplier_id":    supplierID,
			"payment_status": documents.PaymentPending,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mark bills paid: %w", err)
	}
	if tag.RowsAffected() == int64(len(documentIDs)) {
		return nil
	}
	return r.alreadyPaid(ctx, supplierID, documentIDs)
}

func (r *PaymentRepo) alreadyPaid(ctx context.Context, supplierID string, documentIDs []id.ID) error {
	sql, args, err := r.builder.Select("number").From(documentsTable).
		Where(squirrel.Eq{"id": documentIDs}).
		Where(squirrel.NotEq{"payment_status": documents.PaymentPending}).
		OrderBy("number").ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var numbers []string
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &numbers, sql, args...); err != nil {
		return fmt.Errorf("find paid bills: %w", err)
	}

	return apperror.NewBusinessRule(apperror.CodeBillAlreadyPaid, "Bill is no longer outstanding").
		WithDetail("supplierId", supplierID).
		WithDetail("billNos", strings.Join(numbers, ","))
}

// ConsumeCredit implements payments.Repository.
func (r *PaymentRepo) ConsumeCredit(ctx context.Context, supplierID string, amount types.Money) error {
	querier := r.txManager.GetQuerier(ctx)

	tag, err := querier.Exec(ctx, `
		UPDATE acc_supplier_credits
		SET balance = balance - $1, updated_at = NOW()
		WHERE supplier_id = $2 AND balance >= $1`, amount, supplierID)
	if err != nil {
		return fmt.Errorf("consume credit: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	note, err := r.GetCreditNote(ctx, supplierID)
	if err != nil {
		return err
	}
	return apperror.NewBusinessRule(apperror.CodeInsufficientCredit, "Credit balance no longer covers the applied amount").
		WithDetail("supplierId", supplierID).
		WithDetail("requested", types.FormatMoney(amount)).
		WithDetail("available", types.FormatMoney(note.Amount))
}
