package payments

import (
	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/entity"
	"pharmadesk/internal/core/types"
)

// State of a payment session.
type State string

const (
	StateIdle               State = "idle"
	StateBillsSelected      State = "bills_selected"
	StateAllocationComputed State = "allocation_computed"
	StateSubmitting         State = "submitting"
	StateCommitted          State = "committed"
	StateFailed             State = "failed"
)

// Session is a caller-owned payment draft for one supplier.
//
//	Idle -> BillsSelected -> AllocationComputed -> Submitting -> Committed
//	                                 ^                  |
//	                                 +---- Failed <-----+
//
// A failed submit keeps the selection and the computed allocation so the user can retry.
type Session struct {
	supplierID  string
	pharmacyID  string
	state       State
	bills       []OutstandingBill
	creditNote  *CreditNote
	applyCredit bool
	computation *Computation
	payment     *Payment
	lastErr     error
}

// NewSession starts an idle session.
func NewSession(pharmacyID, supplierID string) *Session {
	return &Session{
		pharmacyID: pharmacyID,
		supplierID: supplierID,
		state:      StateIdle,
	}
}

func (s *Session) State() State { return s.state }
func (s *Session) SupplierID() string { return s.supplierID }
func (s *Session) Bills() []OutstandingBill { return s.bills }
func (s *Session) CreditNote() *CreditNote { return s.creditNote }
func (s *Session) ApplyCredit() bool { return s.applyCredit }
func (s *Session) Computation() *Computation { return s.computation }
func (s *Session) Payment() *Payment { return s.payment }
func (s *Session) LastError() error { return s.lastErr }

// SelectBills replaces the selection and drops any stale computation.
func (s *Session) SelectBills(bills []OutstandingBill) error {
	if err := s.expect("select bills", StateIdle, StateBillsSelected, StateAllocationComputed, StateFailed); err != nil {
		return err
	}
	if len(bills) == 0 {
		return apperror.NewValidation("select at least one bill").
			WithDetail("field", "bills")
	}
	for _, b := range bills {
		if s.supplierID != "" && b.SupplierID != "" && b.SupplierID != s.supplierID {
			return apperror.NewInvalidInput("bills", "bill "+b.BillNo+" belongs to another supplier").
				WithDetail("billNo", b.BillNo)
		}
	}

	s.bills = append([]OutstandingBill(nil), bills...)
	s.computation = nil
	s.lastErr = nil
	s.state = StateBillsSelected
	return nil
}

// Compute allocates the selection. It may be called again to toggle the credit note.
func (s *Session) Compute(credit *CreditNote, apply bool) (Computation, error) {
	if err := s.expect("compute allocation", StateBillsSelected, StateAllocationComputed); err != nil {
		return Computation{}, err
	}
	c, err := Allocate(s.bills, credit, apply)
	if err != nil {
		return Computation{}, err
	}

	s.creditNote = credit
	s.applyCredit = apply
	s.computation = &c
	s.state = StateAllocationComputed
	return c, nil
}

// BeginSubmit validates details and builds the payment draft.
// A retry after a failure reuses the draft identity.
func (s *Session) BeginSubmit(details Details) (*Payment, error) {
	if err := s.expect("submit", StateAllocationComputed, StateFailed); err != nil {
		return nil, err
	}
	if err := details.Validate(); err != nil {
		return nil, err
	}
	c := s.computation
	if !c.Payable.IsPositive() {
		return nil, apperror.NewBusinessRule(apperror.CodePayableNotPositive, "Payable amount must be greater than zero").
			WithDetail("payable", types.FormatMoney(c.Payable))
	}

	p := s.payment
	if p == nil {
		p = &Payment{Document: entity.NewDocument(s.pharmacyID)}
	}
	if !details.Date.IsZero() {
		p.Date = details.Date
	}
	p.SupplierID = s.supplierID
	p.PaymentMode = details.PaymentMode
	p.ReferenceNo = details.ReferenceNo
	p.Remark = details.Remark
	p.AmountPaid = c.Payable
	p.TotalBilled = c.TotalBilled
	p.CreditNoteApplied = c.CreditNoteApplied
	p.Allocations = append([]Allocation(nil), c.Allocations...)

	s.payment = p
	s.lastErr = nil
	s.state = StateSubmitting
	return p, nil
}

// MarkCommitted finishes the session and clears the selection.
func (s *Session) MarkCommitted() error {
	if err := s.expect("commit", StateSubmitting); err != nil {
		return err
	}
	s.bills = nil
	s.creditNote = nil
	s.applyCredit = false
	s.computation = nil
	s.state = StateCommitted
	return nil
}

// MarkFailed records a persistence failure; the draft is kept.
func (s *Session) MarkFailed(cause error) error {
	if err := s.expect("fail", StateSubmitting); err != nil {
		return err
	}
	s.lastErr = cause
	s.state = StateFailed
	return nil
}

// Retry returns a failed session to AllocationComputed.
func (s *Session) Retry() error {
	if err := s.expect("retry", StateFailed); err != nil {
		return err
	}
	s.state = StateAllocationComputed
	return nil
}

// Reset discards everything and returns to Idle.
func (s *Session) Reset() {
	*s = Session{pharmacyID: s.pharmacyID, supplierID: s.supplierID, state: StateIdle}
}

func (s *Session) expect(action string, allowed ...State) error {
	for _, st := range allowed {
		if s.state == st {
			return nil
		}
	}
	return apperror.NewInvalidSessionState(string(s.state), action)
}
