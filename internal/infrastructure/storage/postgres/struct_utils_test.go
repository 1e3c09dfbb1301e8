package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pharmadesk/internal/core/entity"
	"pharmadesk/internal/core/types"
)

type testDocument struct {
	entity.Document
	SupplierID string      `db:"supplier_id"`
	GrandTotal types.Money `db:"grand_total"`
	Lines      []string    `db:"-"`
	scratch    int
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[testDocument]()

	for _, expected := range []string{
		"id", "version", "created_at", "number", "pharmacy_id", "confirmed", "supplier_id", "grand_total",
	} {
		assert.Contains(t, cols, expected)
	}
	assert.NotContains(t, cols, "-")
	assert.Equal(t, "id", cols[0], "embedded columns come first")
	assert.Equal(t, "grand_total", cols[len(cols)-1])
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	doc := testDocument{
		Document:   entity.NewDocument("PH1"),
		SupplierID: "S1",
		GrandTotal: types.NewMoneyFromInt(952),
		Lines:      []string{"ignored"},
		scratch:    1,
	}
	doc.ConfirmedAt = &now

	m := StructToMap(&doc)

	assert.Equal(t, doc.ID, m["id"])
	assert.Equal(t, "PH1", m["pharmacy_id"])
	assert.Equal(t, 1, m["version"])
	assert.Equal(t, &now, m["confirmed_at"])
	assert.Equal(t, "S1", m["supplier_id"])
	assert.True(t, types.NewMoneyFromInt(952).Equal(m["grand_total"].(types.Money)))
	assert.NotContains(t, m, "-")
	assert.Len(t, m, len(ExtractDBColumns[testDocument]()))
}
