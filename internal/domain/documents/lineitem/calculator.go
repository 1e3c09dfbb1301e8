// Package lineitem computes document line amounts, guards line uniqueness and folds
// lines into document totals. Everything here is pure and synchronous.
package lineitem

import (
	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/types"
)

// Input holds the editable values of a line.
type Input struct {
	Quantity           int64
	UnitPrice          types.Money
	DiscountPercentage types.Money
	GSTPercentage      types.Money
}

// Amounts holds the values derived from Input.
type Amounts struct {
	DiscountAmount types.Money
	NetTotal       types.Money
	GSTAmount      types.Money
	GrossTotal     types.Money
}

// Validate rejects negative quantity or price and percentages outside [0, 100].
func (in Input) Validate() error {
	if in.Quantity < 0 {
		return apperror.NewInvalidInput("quantity", "quantity must not be negative")
	}
	if in.UnitPrice.IsNegative() {
		return apperror.NewInvalidInput("unitPrice", "unit price must not be negative")
	}
	if !types.IsValidPercent(in.DiscountPercentage) {
		return apperror.NewInvalidInput("discountPercentage", "discount must be between 0 and 100")
	}
	if !types.IsValidPercent(in.GSTPercentage) {
		return apperror.NewInvalidInput("gstPercentage", "GST must be between 0 and 100")
	}
	return nil
}

// Calculate derives line amounts. The order matters: discount applies to the gross base,
// GST applies to the net amount.
//
//	base     = quantity * unitPrice
//	discount = round2(base * discount% / 100)
//	net      = round2(base - discount)
//	gst      = round2(net * gst% / 100)
//	gross    = round2(net + gst)
func Calculate(in Input) (Amounts, error) {
	if err := in.Validate(); err != nil {
		return Amounts{}, err
	}

	base := types.NewMoneyFromInt(in.Quantity).Mul(in.UnitPrice)
	discount := types.Percentage(base, in.DiscountPercentage)
	net := types.Round2(base.Sub(discount))
	gst := types.Percentage(net, in.GSTPercentage)

	return Amounts{
		DiscountAmount: discount,
		NetTotal:       net,
		GSTAmount:      gst,
		GrossTotal:     types.Round2(net.Add(gst)),
	}, nil
}
