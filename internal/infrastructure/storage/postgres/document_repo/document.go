// Package document_repo stores confirmed documents in PostgreSQL.
package document_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain"
	"pharmadesk/internal/domain/documents"
	"pharmadesk/internal/domain/documents/lineitem"
	"pharmadesk/internal/infrastructure/storage/postgres"
)

const (
	documentsTable = "doc_documents"
	linesTable     = "doc_document_lines"
)

var (
	documentColumns = postgres.ExtractDBColumns[documentRow]()
	lineColumns     = postgres.ExtractDBColumns[lineRow]()
)

var _ documents.Repository = (*DocumentRepo)(nil)

// DocumentRepo implements documents.Repository.
type DocumentRepo struct {
	txManager *postgres.TxManager
	inserter  *postgres.BatchInserter
	builder   squirrel.StatementBuilderType
}

// NewDocumentRepo creates a new document repository.
func NewDocumentRepo(txManager *postgres.TxManager) *DocumentRepo {
	return &DocumentRepo{
		txManager: txManager,
		inserter:  postgres.NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts the document header.
func (r *DocumentRepo) Create(ctx context.Context, doc *documents.Document) error {
	data := postgres.StructToMap(toRow(doc))

	sql, args, err := r.builder.Insert(documentsTable).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", documentsTable, err)
	}
	return nil
}

func (r *DocumentRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(documentColumns...).From(documentsTable)
}

func (r *DocumentRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*documents.Document, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row documentRow
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("document", key)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return row.toDocument(), nil
}

// GetByID retrieves a document header by ID.
func (r *DocumentRepo) GetByID(ctx context.Context, docID id.ID) (*documents.Document, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": docID}), docID.String())
}

// GetByNumber retrieves a document header by kind and number.
func (r *DocumentRepo) GetByNumber(ctx context.Context, kind documents.Kind, number string) (*documents.Document, error) {
	q := r.baseSelect().Where(squirrel.Eq{"kind": kind, "number": number})
	return r.getOne(ctx, q, number)
}

// GetLines returns the lines of a document ordered by line number.
func (r *DocumentRepo) GetLines(ctx context.Context, docID id.ID) ([]lineitem.Line, error) {
	sql, args, err := r.builder.
		Select(lineColumns...).
		From(linesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []lineRow
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select lines: %w", err)
	}

	lines := make([]lineitem.Line, len(rows))
	for i, row := range rows {
		lines[i] = row.Line
	}
	return lines, nil
}

// SaveLines replaces the lines of a document. Runs inside the confirm transaction.
func (r *DocumentRepo) SaveLines(ctx context.Context, docID id.ID, lines []lineitem.Line) error {
	sql, args, err := r.builder.Delete(linesTable).Where(squirrel.Eq{"document_id": docID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}

	rows := make([][]any, 0, len(lines))
	for _, l := range lines {
		values := postgres.StructToMap(lineRow{DocumentID: docID, Line: l})
		row := make([]any, len(lineColumns))
		for i, col := range lineColumns {
			row[i] = values[col]
		}
		rows = append(rows, row)
	}

	if _, err := r.inserter.CopyFromSlice(ctx, linesTable, lineColumns, rows); err != nil {
		return fmt.Errorf("copy lines: %w", err)
	}
	return nil
}

// List retrieves document headers with filtering and paging.
func (r *DocumentRepo) List(ctx context.Context, filter documents.ListFilter) (domain.ListResult[*documents.Document], error) {
	result := domain.ListResult[*documents.Document]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.applyFilter(r.baseSelect(), filter)
	querier := r.txManager.GetQuerier(ctx)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	q, err = r.page(q, filter.ListFilter)
	if err != nil {
		return result, err
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	var rows []documentRow
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return result, fmt.Errorf("list: %w", err)
	}

	result.Items = make([]*documents.Document, len(rows))
	for i, row := range rows {
		result.Items[i] = row.toDocument()
	}
	return result, nil
}

func (r *DocumentRepo) applyFilter(q squirrel.SelectBuilder, f documents.ListFilter) squirrel.SelectBuilder {
	if f.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *f.Kind})
	}
	if f.SupplierID != "" {
		q = q.Where(squirrel.Eq{"supplier_id": f.SupplierID})
	}
	if f.PaymentStatus != nil {
		q = q.Where(squirrel.Eq{"payment_status": *f.PaymentStatus})
	}
	if f.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"date": *f.DateFrom})
	}
	if f.DateTo != nil {
		q = q.Where(squirrel.Lt{"date": *f.DateTo})
	}
	if f.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + f.Search + "%"})
	}
	return q
}

func (r *DocumentRepo) page(q squirrel.SelectBuilder, f domain.ListFilter) (squirrel.SelectBuilder, error) {
	orderBy, err := parseOrderBy(f.OrderBy)
	if err != nil {
		return q, err
	}
	q = q.OrderBy(orderBy)
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q, nil
}

var sortable = map[string]struct{}{
	"number":      {},
	"date":        {},
	"created_at":  {},
	"grand_total": {},
	"kind":        {},
}

func parseOrderBy(orderBy string) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return "date DESC", nil
	}

	direction := "ASC"
	field := orderBy
	switch {
	case strings.HasPrefix(orderBy, "-"):
		direction = "DESC"
		field = orderBy[1:]
	case strings.HasPrefix(orderBy, "+"):
		field = orderBy[1:]
	}

	if _, ok := sortable[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}
	return field + " " + direction, nil
}
