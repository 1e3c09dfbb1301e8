package documents

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/numerator"
	"pharmadesk/internal/core/tx"
	"pharmadesk/internal/core/types"
	"pharmadesk/internal/domain"
	"pharmadesk/internal/domain/catalog"
	"pharmadesk/internal/domain/inventory"
	"pharmadesk/pkg/logger"
)

var tracer = otel.Tracer("pharmadesk/documents")

// Service provides lookups-backed editing and confirmation of documents.
type Service struct {
	repo      Repository
	batches   inventory.Index
	items     catalog.ItemLookup
	ledger    inventory.Ledger
	numerator numerator.Generator
	txManager tx.Manager
	hooks     *domain.HookRegistry[*Document]
}

// NewService creates a new document service.
func NewService(
	repo Repository,
	batches inventory.Index,
	items catalog.ItemLookup,
	ledger inventory.Ledger,
	numerator numerator.Generator,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:      repo,
		batches:   batches,
		items:     items,
		ledger:    ledger,
		numerator: numerator,
		txManager: txManager,
		hooks:     domain.NewHookRegistry[*Document](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Document] {
	return s.hooks
}

// SelectBatch resolves item and batch for line i and puts them on the line.
//
// Variants that price from the batch need the batch to exist in inventory. Other
// variants fall back to a manually keyed batch when inventory does not know it yet.
// On a lookup failure the line is cleared and the error returned.
func (s *Service) SelectBatch(ctx context.Context, doc *Document, i int, key inventory.BatchKey) error {
	if _, err := doc.editableLine(i); err != nil {
		return err
	}
	key = key.Normalize()
	policy := doc.Schema().Policy

	if key.ItemID == "" {
		return withLineNo(apperror.NewInvalidInput("itemId", "item is required"), i)
	}
	if policy.BatchRequired && key.BatchNo == "" {
		return withLineNo(apperror.NewInvalidInput("batchNo", "batch is required"), i)
	}

	item, err := s.items.LookupItem(ctx, key.ItemID)
	if err != nil {
		return s.lookupFailed(ctx, doc, i, key, err)
	}

	if key.BatchNo != "" {
		batch, err := s.batches.Lookup(ctx, key)
		switch {
		case err == nil:
			if err := doc.SelectBatch(i, batch); err != nil {
				return err
			}
			return doc.SetItemName(i, item.Name)
		case policy.PriceFromBatch || !apperror.IsNotFound(err):
			return s.lookupFailed(ctx, doc, i, key, err)
		}
	}

	if err := doc.SetLineKey(i, key); err != nil {
		return err
	}
	return doc.SetItemName(i, item.Name)
}

func (s *Service) lookupFailed(ctx context.Context, doc *Document, i int, key inventory.BatchKey, err error) error {
	doc.Lines[i] = doc.Lines[i].Cleared()
	doc.Recompute()

	logger.Debug(ctx, "line lookup failed",
		"line", i,
		"item_id", key.ItemID,
		"batch_no", key.BatchNo,
		"error", err)
	return withLineNo(err, i)
}

// LineDraft is one line as entered by the user. Nil values keep the line's current value.
type LineDraft struct {
	ItemID             string
	BatchNo            string
	ExpiryDate         *time.Time
	Quantity           int64
	UnitPrice          *types.Money
	DiscountPercentage *types.Money
	GSTPercentage      *types.Money
}

// Build fills doc from line drafts, one editor operation at a time, and stops at the
// first rejected operation.
func (s *Service) Build(ctx context.Context, doc *Document, lines []LineDraft) error {
	policy := doc.Schema().Policy

	for n, draft := range lines {
		i := n
		if i >= len(doc.Lines) {
			var err error
			if i, err = doc.AddLine(); err != nil {
				return err
			}
		}

		key := inventory.BatchKey{ItemID: draft.ItemID, BatchNo: draft.BatchNo}
		if err := s.SelectBatch(ctx, doc, i, key); err != nil {
			return err
		}
		if !policy.PriceFromBatch {
			if draft.UnitPrice != nil {
				if err := doc.SetUnitPrice(i, *draft.UnitPrice); err != nil {
					return err
				}
			}
			if draft.GSTPercentage != nil {
				if err := doc.SetGST(i, *draft.GSTPercentage); err != nil {
					return err
				}
			}
		}
		if draft.DiscountPercentage != nil {
			if err := doc.SetDiscount(i, *draft.DiscountPercentage); err != nil {
				return err
			}
		}
		if policy.ExpiryEntered && draft.ExpiryDate != nil {
			if err := doc.SetExpiry(i, *draft.ExpiryDate); err != nil {
				return err
			}
		}
		if err := doc.SetQuantity(i, draft.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Confirm validates, numbers and persists doc together with its stock effect.
// On failure doc stays an editable draft with all entered values.
func (s *Service) Confirm(ctx context.Context, doc *Document) (err error) {
	ctx, span := tracer.Start(ctx, "documents.Confirm")
	span.SetAttributes(attribute.String("document.kind", string(doc.Kind)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := doc.CanModify(); err != nil {
		return err
	}
	if err := s.hooks.RunBeforeConfirm(ctx, doc); err != nil {
		return err
	}
	doc.Recompute()
	if err := doc.Validate(ctx); err != nil {
		return err
	}

	policy := doc.Schema().Policy
	number, err := s.numerator.GetNextNumber(ctx,
		numerator.DefaultConfig(policy.NumberPrefix),
		&numerator.Options{Strategy: policy.Numbering},
		doc.Date)
	if err != nil {
		return fmt.Errorf("generate number: %w", err)
	}

	draft := *doc
	lines := doc.FilledLines()
	movements := Movements(doc)

	doc.Number = number
	doc.MarkConfirmed()
	if policy.CreatesBill {
		doc.PaymentStatus = PaymentPending
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if len(movements) > 0 {
			if err := s.ledger.Apply(ctx, doc.ID, string(doc.Kind), movements); err != nil {
				return err
			}
		}
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return s.hooks.RunConfirming(ctx, doc)
	})
	if err != nil {
		*doc = draft
		logger.Warn(ctx, "document confirm failed",
			"kind", doc.Kind,
			"number", number,
			"error", err)
		return err
	}

	doc.Lines = lines
	doc.Recompute()

	if err := s.hooks.RunAfterConfirm(ctx, doc); err != nil {
		logger.Warn(ctx, "after-confirm hook failed", "id", doc.ID, "error", err)
	}

	logger.Info(ctx, "document confirmed",
		"id", doc.ID,
		"kind", doc.Kind,
		"number", doc.Number,
		"grand_total", types.FormatMoney(doc.GrandTotal))

	return nil
}

// Movements returns the stock movements confirming doc would apply.
func Movements(doc *Document) []inventory.Movement {
	dir := doc.Schema().Policy.StockEffect
	if dir == "" {
		return nil
	}

	out := make([]inventory.Movement, 0, len(doc.Lines))
	for _, l := range doc.FilledLines() {
		out = append(out, inventory.Movement{
			Key:           l.Key().Normalize(),
			Direction:     dir,
			Quantity:      l.Quantity,
			UnitPrice:     l.UnitPrice,
			GSTPercentage: l.GSTPercentage,
			ExpiryDate:    l.ExpiryDate,
		})
	}
	return inventory.MergeMovements(out)
}

// GetByID retrieves a document with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines

	return doc, nil
}

// List retrieves documents with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Document], error) {
	return s.repo.List(ctx, filter)
}
