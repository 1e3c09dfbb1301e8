// Package dto provides Data Transfer Objects for API requests/responses.
//
// Amounts leave the API as strings with exactly two decimals ("1234.50") and are
// accepted either as JSON numbers or strings.
package dto

import (
	"strings"
	"time"

	"pharmadesk/internal/core/entity"
	"pharmadesk/internal/core/types"
	"pharmadesk/internal/domain"
)

var zeroMoney = types.Zero()

// Money renders an amount for responses.
func Money(m types.Money) string {
	return types.FormatMoney(m)
}

// --- Pagination ---

// PaginationRequest contains limit/offset query parameters.
type PaginationRequest struct {
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset  int    `form:"offset" binding:"omitempty,min=0"`
	Search  string `form:"search"`
	OrderBy string `form:"orderBy"`
}

// ToListFilter converts to the domain list filter, applying defaults.
func (p PaginationRequest) ToListFilter() domain.ListFilter {
	f := domain.DefaultListFilter()
	if p.Limit > 0 {
		f.Limit = p.Limit
	}
	f.Offset = p.Offset
	f.Search = strings.TrimSpace(p.Search)
	if p.OrderBy != "" {
		f.OrderBy = p.OrderBy
	}
	return f
}

// ListResponse wraps list results with pagination.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// NewListResponse maps a domain list result.
func NewListResponse[E, T any](r domain.ListResult[E], mapFn func(E) T) ListResponse[T] {
	items := make([]T, len(r.Items))
	for i, e := range r.Items {
		items[i] = mapFn(e)
	}
	return ListResponse[T]{
		Items:      items,
		TotalCount: r.TotalCount,
		Limit:      r.Limit,
		Offset:     r.Offset,
	}
}

// --- Base DTOs ---

// DocumentHeaderResponse contains fields shared by documents and payments.
type DocumentHeaderResponse struct {
	ID          string     `json:"id"`
	Number      string     `json:"number,omitempty"`
	Date        time.Time  `json:"date"`
	PharmacyID  string     `json:"pharmacyId"`
	Confirmed   bool       `json:"confirmed"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	Remark      string     `json:"remark,omitempty"`
	Version     int        `json:"version"`
}

// FromEntityDocument maps the common document header.
func FromEntityDocument(d entity.Document) DocumentHeaderResponse {
	return DocumentHeaderResponse{
		ID:          d.ID.String(),
		Number:      d.Number,
		Date:        d.Date,
		PharmacyID:  d.PharmacyID,
		Confirmed:   d.Confirmed,
		ConfirmedAt: d.ConfirmedAt,
		Remark:      d.Remark,
		Version:     d.Version,
	}
}

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
