package payments

import (
	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/types"
)

// Computation is the outcome of allocating a payment.
type Computation struct {
	TotalBilled       types.Money  `json:"totalBilled"`
	CreditNoteApplied types.Money  `json:"creditNoteApplied"`
	Payable           types.Money  `json:"payable"`
	Allocations       []Allocation `json:"allocations"`
}

// Allocate computes the cash payable for bills and one allocation per bill.
//
//	total   = Σ billed
//	payable = apply ? max(total - credit, 0) : total
//
// Every bill is cleared in full even when the credit note lowers the cash payable.
// The credit consumed is min(credit, total), so a credit larger than the bills is
// only partly used.
func Allocate(bills []OutstandingBill, credit *CreditNote, apply bool) (Computation, error) {
	seen := make(map[id.ID]struct{}, len(bills))
	total := types.Zero()
	allocations := make([]Allocation, 0, len(bills))

	for _, b := range bills {
		if _, dup := seen[b.DocumentID]; dup {
			return Computation{}, apperror.NewInvalidInput("bills", "bill "+b.BillNo+" is selected twice").
				WithDetail("billNo", b.BillNo)
		}
		seen[b.DocumentID] = struct{}{}

		if b.Status == BillPaid {
			return Computation{}, apperror.NewBusinessRule(apperror.CodeBillAlreadyPaid, "Bill "+b.BillNo+" is already paid").
				WithDetail("billNo", b.BillNo)
		}
		if b.BilledAmount.IsNegative() {
			return Computation{}, apperror.NewInvalidInput("billedAmount", "billed amount must not be negative").
				WithDetail("billNo", b.BillNo)
		}

		total = total.Add(b.BilledAmount)
		allocations = append(allocations, Allocation{
			DocumentID:    b.DocumentID,
			BillNo:        b.BillNo,
			ClearedAmount: b.BilledAmount,
		})
	}

	applied := types.Zero()
	if apply && credit != nil {
		if credit.Amount.IsNegative() {
			return Computation{}, apperror.NewInvalidInput("creditNote", "credit note must not be negative")
		}
		applied = types.MinMoney(credit.Amount, total)
	}

	return Computation{
		TotalBilled:       total,
		CreditNoteApplied: applied,
		Payable:           types.MaxZero(total.Sub(applied)),
		Allocations:       allocations,
	}, nil
}
