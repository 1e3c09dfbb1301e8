package documents

import (
	"context"
	"time"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/domain"
	"pharmadesk/internal/domain/documents/lineitem"
)

// Repository persists confirmed documents.
type Repository interface {
	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, docID id.ID) (*Document, error)
	GetByNumber(ctx context.Context, kind Kind, number string) (*Document, error)

	// Line operations
	GetLines(ctx context.Context, docID id.ID) ([]lineitem.Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []lineitem.Line) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Document], error)
}

// ListFilter for filtering documents.
type ListFilter struct {
	domain.ListFilter

	Kind          *Kind
	SupplierID    string
	PaymentStatus *PaymentStatus
	DateFrom      *time.Time
	DateTo        *time.Time
}
