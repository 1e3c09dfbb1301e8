package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"pharmadesk/internal/domain/catalog"
	"pharmadesk/internal/domain/inventory"
	"pharmadesk/internal/infrastructure/http/v1/dto"
)

// BatchLister is implemented by inventory_repo.BatchRepo.
type BatchLister interface {
	ListByItem(ctx context.Context, itemID string, inStock bool) ([]inventory.Batch, error)
}

// ItemSearcher is implemented by catalog_repo.ItemRepo.
type ItemSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]catalog.Item, error)
}

// InventoryHandler serves batch snapshots and catalog search for line entry.
type InventoryHandler struct {
	*BaseHandler
	index   inventory.Index
	batches BatchLister
	items   ItemSearcher
	now     func() time.Time
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(base *BaseHandler, index inventory.Index, batches BatchLister, items ItemSearcher) *InventoryHandler {
	return &InventoryHandler{
		BaseHandler: base,
		index:       index,
		batches:     batches,
		items:       items,
		now:         time.Now,
	}
}

// GetBatch returns one batch snapshot.
// GET /inventory/batches/:itemId/:batchNo
func (h *InventoryHandler) GetBatch(c *gin.Context) {
	key := inventory.BatchKey{ItemID: c.Param("itemId"), BatchNo: c.Param("batchNo")}.Normalize()
	batch, err := h.index.Lookup(c.Request.Context(), key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromBatch(batch, h.now()))
}

// ListBatches returns the batches of an item.
// GET /inventory/batches?itemId=&inStock=true
func (h *InventoryHandler) ListBatches(c *gin.Context) {
	var req dto.BatchListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	batches, err := h.batches.ListByItem(c.Request.Context(), req.ItemID, req.InStock)
	if err != nil {
		h.Error(c, err)
		return
	}

	now := h.now()
	out := make([]dto.BatchResponse, len(batches))
	for i, b := range batches {
		out[i] = dto.FromBatch(b, now)
	}
	h.OK(c, gin.H{"items": out})
}

// SearchItems searches the catalog by name.
// GET /items?search=
func (h *InventoryHandler) SearchItems(c *gin.Context) {
	var req dto.ItemSearchRequest
	if !h.BindQuery(c, &req) {
		return
	}
	items, err := h.items.Search(c.Request.Context(), req.Search, req.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	if items == nil {
		items = []catalog.Item{}
	}
	h.OK(c, gin.H{"items": items})
}
