// Package catalog_repo resolves catalog items from PostgreSQL.
package catalog_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/domain/catalog"
	"pharmadesk/internal/infrastructure/storage/postgres"
)

const itemsTable = "cat_items"

var itemColumns = postgres.ExtractDBColumns[catalog.Item]()

var _ catalog.ItemLookup = (*ItemRepo)(nil)

// ItemRepo implements catalog.ItemLookup.
type ItemRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewItemRepo creates a new item repository.
func NewItemRepo(txManager *postgres.TxManager) *ItemRepo {
	return &ItemRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// LookupItem retrieves an active item by id.
func (r *ItemRepo) LookupItem(ctx context.Context, itemID string) (catalog.Item, error) {
	sql, args, err := r.builder.
		Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"id": strings.TrimSpace(itemID), "deletion_mark": false}).
		ToSql()
	if err != nil {
		return catalog.Item{}, fmt.Errorf("build query: %w", err)
	}

	var item catalog.Item
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return catalog.Item{}, apperror.NewNotFound("item", itemID)
		}
		return catalog.Item{}, apperror.NewLookupFailed("item", err)
	}
	return item, nil
}

// Search finds active items whose name starts with or contains query.
func (r *ItemRepo) Search(ctx context.Context, query string, limit int) ([]catalog.Item, error) {
	sql, args, err := r.searchQuery(query, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []catalog.Item
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, apperror.NewLookupFailed("item", err)
	}
	return items, nil
}

func (r *ItemRepo) searchQuery(query string, limit int) squirrel.SelectBuilder {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query = strings.TrimSpace(query)
	return r.builder.
		Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"deletion_mark": false}).
		Where(squirrel.ILike{"name": "%" + query + "%"}).
		OrderBy("name").
		Limit(uint64(limit))
}
