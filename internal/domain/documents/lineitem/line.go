package lineitem

import (
	"time"

	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/types"
	"pharmadesk/internal/domain/inventory"
)

// Line is one priced row of a document.
type Line struct {
	// Line identification
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	// Item and batch references
	ItemID     string     `db:"item_id" json:"itemId"`
	ItemName   string     `db:"item_name" json:"itemName,omitempty"`
	BatchNo    string     `db:"batch_no" json:"batchNo"`
	ExpiryDate *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`

	// Inputs
	Quantity           int64       `db:"quantity" json:"quantity"`
	UnitPrice          types.Money `db:"unit_price" json:"unitPrice"`
	DiscountPercentage types.Money `db:"discount_percentage" json:"discountPercentage"`
	GSTPercentage      types.Money `db:"gst_percentage" json:"gstPercentage"`

	// Derived by Calculate
	DiscountAmount types.Money `db:"discount_amount" json:"discountAmount"`
	NetTotal       types.Money `db:"net_total" json:"netTotal"`
	GSTAmount      types.Money `db:"gst_amount" json:"gstAmount"`
	GrossTotal     types.Money `db:"gross_total" json:"grossTotal"`

	// Batch is the inventory snapshot observed when the batch was selected.
	Batch *inventory.Batch `db:"-" json:"-"`
}

// NewLine returns an empty line.
func NewLine() Line {
	return Line{LineID: id.New()}
}

// Key returns the (item, batch) pair of the line.
func (l Line) Key() inventory.BatchKey {
	return inventory.BatchKey{ItemID: l.ItemID, BatchNo: l.BatchNo}
}

// IsBlank reports whether no item has been chosen yet.
func (l Line) IsBlank() bool {
	return l.Key().IsZero()
}

// Input returns the editable values of the line.
func (l Line) Input() Input {
	return Input{
		Quantity:           l.Quantity,
		UnitPrice:          l.UnitPrice,
		DiscountPercentage: l.DiscountPercentage,
		GSTPercentage:      l.GSTPercentage,
	}
}

// WithInput returns a copy of the line carrying in and its derived amounts.
// The receiver is untouched when in is invalid.
func (l Line) WithInput(in Input) (Line, error) {
	amounts, err := Calculate(in)
	if err != nil {
		return l, err
	}
	l.Quantity = in.Quantity
	l.UnitPrice = in.UnitPrice
	l.DiscountPercentage = in.DiscountPercentage
	l.GSTPercentage = in.GSTPercentage
	l.apply(amounts)
	return l, nil
}

// Cleared returns the empty state of the line, keeping its identity and position.
func (l Line) Cleared() Line {
	return Line{LineID: l.LineID, LineNo: l.LineNo}
}

func (l *Line) apply(a Amounts) {
	l.DiscountAmount = a.DiscountAmount
	l.NetTotal = a.NetTotal
	l.GSTAmount = a.GSTAmount
	l.GrossTotal = a.GrossTotal
}
