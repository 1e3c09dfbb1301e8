package documents

import (
	"strconv"
	"time"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/types"
	"pharmadesk/internal/domain/documents/lineitem"
	"pharmadesk/internal/domain/inventory"
)

// Editor operations. Each one either applies completely and recomputes totals, or
// returns a typed error and leaves the document as it was. The one exception is a
// duplicate batch selection, which resets the target line to blank.

// AddLine appends a blank line and returns its index.
func (d *Document) AddLine() (int, error) {
	if err := d.CanModify(); err != nil {
		return -1, err
	}
	d.Lines = append(d.Lines, lineitem.NewLine())
	d.Recompute()
	return len(d.Lines) - 1, nil
}

// RemoveLine deletes the line at i.
func (d *Document) RemoveLine(i int) error {
	if _, err := d.editableLine(i); err != nil {
		return err
	}
	d.Lines = append(d.Lines[:i], d.Lines[i+1:]...)
	d.Recompute()
	return nil
}

// ClearLine resets the line at i to its empty state.
func (d *Document) ClearLine(i int) error {
	line, err := d.editableLine(i)
	if err != nil {
		return err
	}
	d.Lines[i] = line.Cleared()
	d.Recompute()
	return nil
}

// SelectBatch puts an inventory batch on line i.
// Variants that price from the batch take unit price, GST and expiry from the snapshot.
func (d *Document) SelectBatch(i int, batch inventory.Batch) error {
	line, err := d.editableLine(i)
	if err != nil {
		return err
	}
	if err := d.guardDuplicate(i, batch.Key()); err != nil {
		return err
	}

	p := d.Schema().Policy
	if p.StockChecked {
		if err := validateStock(line.Quantity, batch); err != nil {
			return withLineNo(err, i)
		}
	}

	snapshot := batch
	next := line
	next.ItemID = batch.ItemID
	next.BatchNo = batch.BatchNo
	next.Batch = &snapshot

	in := line.Input()
	// Unpriced purchase lines take the batch price; a GST already entered stays.
	if p.PriceFromBatch || in.UnitPrice.IsZero() {
		in.UnitPrice = batch.UnitPrice
		if p.PriceFromBatch || in.GSTPercentage.IsZero() {
			in.GSTPercentage = batch.GSTPercentage
		}
	}
	if p.PriceFromBatch || next.ExpiryDate == nil {
		next.ExpiryDate = batch.ExpiryDate
	}
	return d.commitLine(i, next, in)
}

// SetLineKey sets item and batch typed by the user, without an inventory lookup.
// Only variants that do not price from the batch accept manual keys.
func (d *Document) SetLineKey(i int, key inventory.BatchKey) error {
	line, err := d.editableLine(i)
	if err != nil {
		return err
	}
	if d.Schema().Policy.PriceFromBatch {
		return withLineNo(apperror.NewInvalidInput("batchNo", "batch must be selected from inventory"), i)
	}
	key = key.Normalize()
	if err := d.guardDuplicate(i, key); err != nil {
		return err
	}

	next := line
	next.ItemID = key.ItemID
	next.BatchNo = key.BatchNo
	next.Batch = nil
	return d.commitLine(i, next, line.Input())
}

// SetItemName records the display name resolved from the catalog.
func (d *Document) SetItemName(i int, name string) error {
	line, err := d.editableLine(i)
	if err != nil {
		return err
	}
	line.ItemName = name
	d.Lines[i] = line
	return nil
}

// SetQuantity changes the quantity of line i, re-validating stock for stock-checked variants.
func (d *Document) SetQuantity(i int, quantity int64) error {
	line, err := d.editableLine(i)
	if err != nil {
		return err
	}
	if d.Schema().Policy.StockChecked && line.Batch != nil {
		if err := validateStock(quantity, *line.Batch); err != nil {
			return withLineNo(err, i)
		}
	}
	in := line.Input()
	in.Quantity = quantity
	return d.commitLine(i, line, in)
}

// SetUnitPrice changes the unit price of line i.
func (d *Document) SetUnitPrice(i int, price types.Money) error {
	line, err := d.editableLine(i)
	if err != nil {
		return err
	}
	if err := d.requireEditable("unitPrice", i); err != nil {
		return err
	}
	in := line.Input()
	in.UnitPrice = price
	return d.commitLine(i, line, in)
}

// SetDiscount changes the discount percentage of line i.
func (d *Document) SetDiscount(i int, pct types.Money) error {
	line, err := d.editableLine(i)
	if err != nil {
		return err
	}
	in := line.Input()
	in.DiscountPercentage = pct
	return d.commitLine(i, line, in)
}

// SetGST changes the GST percentage of line i.
func (d *Document) SetGST(i int, pct types.Money) error {
	line, err := d.editableLine(i)
	if err != nil {
		return err
	}
	if err := d.requireEditable("gstPercentage", i); err != nil {
		return err
	}
	in := line.Input()
	in.GSTPercentage = pct
	return d.commitLine(i, line, in)
}

// SetExpiry sets the expiry date of a received batch.
func (d *Document) SetExpiry(i int, expiry time.Time) error {
	line, err := d.editableLine(i)
	if err != nil {
		return err
	}
	if !d.Schema().Policy.ExpiryEntered {
		return withLineNo(apperror.NewInvalidInput("expiryDate", "expiry date is taken from the batch"), i)
	}
	e := expiry.UTC().Truncate(24 * time.Hour)
	line.ExpiryDate = &e
	d.Lines[i] = line
	return nil
}

// Recompute renumbers lines and folds them into document totals.
func (d *Document) Recompute() {
	for i := range d.Lines {
		d.Lines[i].LineNo = i + 1
	}
	d.Totals = lineitem.Recompute(d.Lines)
}

func (d *Document) editableLine(i int) (lineitem.Line, error) {
	if err := d.CanModify(); err != nil {
		return lineitem.Line{}, err
	}
	if i < 0 || i >= len(d.Lines) {
		return lineitem.Line{}, apperror.NewInvalidInput("lineIndex", "line "+strconv.Itoa(i)+" does not exist")
	}
	return d.Lines[i], nil
}

func (d *Document) requireEditable(field string, i int) error {
	f, ok := d.Schema().LineField(field)
	if !ok || !f.Editable {
		return withLineNo(apperror.NewInvalidInput(field, f.Label+" is taken from the batch"), i)
	}
	return nil
}

// guardDuplicate clears line i when key is already used by another line.
func (d *Document) guardDuplicate(i int, key inventory.BatchKey) error {
	if err := lineitem.CheckDuplicate(key, d.Lines, i); err != nil {
		d.Lines[i] = d.Lines[i].Cleared()
		d.Recompute()
		return withLineNo(err, i)
	}
	return nil
}

func (d *Document) commitLine(i int, line lineitem.Line, in lineitem.Input) error {
	next, err := line.WithInput(in)
	if err != nil {
		return withLineNo(err, i)
	}
	d.Lines[i] = next
	d.Recompute()
	return nil
}

func validateStock(quantity int64, batch inventory.Batch) error {
	return inventory.ValidateAllocation(quantity, batch)
}

func withLineNo(err error, i int) error {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.WithDetail("lineIndex", i)
	}
	return err
}
