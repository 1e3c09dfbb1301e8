package lineitem

import (
	"pharmadesk/internal/core/types"
)

// Totals are the document level amounts folded from its lines.
type Totals struct {
	TotalQuantity int64       `db:"total_quantity" json:"totalQuantity"`
	SubTotal      types.Money `db:"sub_total" json:"subTotal"`
	TotalDiscount types.Money `db:"total_discount" json:"totalDiscount"`
	TotalGST      types.Money `db:"total_gst" json:"totalGst"`
	GrandTotal    types.Money `db:"grand_total" json:"grandTotal"`
}

// Recompute folds lines into totals from scratch.
// totalDiscount is informational: it is already netted out of every netTotal, so
// grandTotal = subTotal + totalGst.
func Recompute(lines []Line) Totals {
	t := Totals{
		SubTotal:      types.Zero(),
		TotalDiscount: types.Zero(),
		TotalGST:      types.Zero(),
	}
	for _, l := range lines {
		t.TotalQuantity += l.Quantity
		t.SubTotal = t.SubTotal.Add(l.NetTotal)
		t.TotalDiscount = t.TotalDiscount.Add(l.DiscountAmount)
		t.TotalGST = t.TotalGST.Add(l.GSTAmount)
	}
	t.GrandTotal = t.SubTotal.Add(t.TotalGST)
	return t
}

// Equal compares totals by value.
func (t Totals) Equal(o Totals) bool {
	return t.TotalQuantity == o.TotalQuantity &&
		t.SubTotal.Equal(o.SubTotal) &&
		t.TotalDiscount.Equal(o.TotalDiscount) &&
		t.TotalGST.Equal(o.TotalGST) &&
		t.GrandTotal.Equal(o.GrandTotal)
}
