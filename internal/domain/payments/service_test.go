package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pharmadesk/internal/core/apperror"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/numerator"
	"pharmadesk/internal/core/types"
)

type MockBillSource struct {
	mock.Mock
}

func (m *MockBillSource) ListOutstandingBills(ctx context.Context, supplierID string, status BillStatus) ([]OutstandingBill, error) {
	args := m.Called(ctx, supplierID, status)
	return args.Get(0).([]OutstandingBill), args.Error(1)
}

func (m *MockBillSource) GetCreditNote(ctx context.Context, supplierID string) (CreditNote, error) {
	args := m.Called(ctx, supplierID)
	return args.Get(0).(CreditNote), args.Error(1)
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, p *Payment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, paymentID id.ID) (*Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Payment), args.Error(1)
}

func (m *MockRepository) MarkBillsPaid(ctx context.Context, supplierID string, documentIDs []id.ID) error {
	return m.Called(ctx, supplierID, documentIDs).Error(0)
}

func (m *MockRepository) ConsumeCredit(ctx context.Context, supplierID string, amount types.Money) error {
	return m.Called(ctx, supplierID, amount).Error(0)
}

type passthroughTx struct{ calls int }

func (p *passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}

type paymentFixture struct {
	svc   *Service
	bills *MockBillSource
	repo  *MockRepository
	a, b  OutstandingBill
}

func newPaymentFixture(t *testing.T, credit string) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		bills: &MockBillSource{},
		repo:  &MockRepository{},
		a:     bill("A", "5000"),
		b:     bill("B", "3200"),
	}
	f.bills.On("ListOutstandingBills", mock.Anything, "S1", BillPending).
		Return([]OutstandingBill{f.a, f.b, bill("C", "99")}, nil)
	f.bills.On("GetCreditNote", mock.Anything, "S1").
		Return(CreditNote{SupplierID: "S1", Amount: money(credit)}, nil)
	f.svc = NewService(f.bills, f.repo, &numerator.MockGenerator{}, &passthroughTx{})
	return f
}

func TestService_Prepare(t *testing.T) {
	ctx := context.Background()

	t.Run("selects requested bills", func(t *testing.T) {
		f := newPaymentFixture(t, "2000")
		s := NewSession("PH1", "S1")

		got, err := f.svc.Prepare(ctx, s, []string{"A", "B"}, true)

		require.NoError(t, err)
		assert.Equal(t, "6200.00", types.FormatMoney(got.Payable))
		assert.Equal(t, map[string]string{"A": "5000.00", "B": "3200.00"}, clearedByBill(got))
		assert.True(t, s.ApplyCredit())
		assert.Equal(t, StateAllocationComputed, s.State())
	})

	t.Run("unknown bill", func(t *testing.T) {
		f := newPaymentFixture(t, "0")
		s := NewSession("PH1", "S1")

		_, err := f.svc.Prepare(ctx, s, []string{"A", "Z"}, false)

		assert.True(t, apperror.IsNotFound(err))
		assert.Equal(t, StateIdle, s.State())
	})

	t.Run("supplier required", func(t *testing.T) {
		f := newPaymentFixture(t, "0")

		_, err := f.svc.Prepare(ctx, NewSession("PH1", ""), []string{"A"}, false)

		assert.True(t, apperror.IsCode(err, apperror.CodeInvalidInput))
	})
}

func TestService_Confirm(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t, "2000")
	s := NewSession("PH1", "S1")
	_, err := f.svc.Prepare(ctx, s, []string{"A", "B"}, true)
	require.NoError(t, err)

	var hooked *Payment
	f.svc.Hooks().OnAfterConfirm(func(_ context.Context, p *Payment) error {
		hooked = p
		return nil
	})
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*payments.Payment")).Return(nil).Once()
	f.repo.On("MarkBillsPaid", mock.Anything, "S1", []id.ID{f.a.DocumentID, f.b.DocumentID}).Return(nil).Once()
	f.repo.On("ConsumeCredit", mock.Anything, "S1", mock.MatchedBy(func(m types.Money) bool {
		return m.Equal(money("2000"))
	})).Return(nil).Once()

	p, err := f.svc.Confirm(ctx, s, validDetails)

	require.NoError(t, err)
	assert.Regexp(t, `^PAY-\d{4}-00001$`, p.Number)
	assert.True(t, p.Confirmed)
	assert.Equal(t, "6200.00", types.FormatMoney(p.AmountPaid))
	assert.Equal(t, StateCommitted, s.State())
	assert.Same(t, p, hooked)
	f.repo.AssertExpectations(t)
}

func TestService_Confirm_NoCreditSkipsConsume(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t, "2000")
	s := NewSession("PH1", "S1")
	_, err := f.svc.Prepare(ctx, s, []string{"A"}, false)
	require.NoError(t, err)

	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	f.repo.On("MarkBillsPaid", mock.Anything, "S1", []id.ID{f.a.DocumentID}).Return(nil).Once()

	p, err := f.svc.Confirm(ctx, s, validDetails)

	require.NoError(t, err)
	assert.Equal(t, "5000.00", types.FormatMoney(p.AmountPaid))
	f.repo.AssertNotCalled(t, "ConsumeCredit", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Confirm_PersistenceFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t, "0")
	s := NewSession("PH1", "S1")
	_, err := f.svc.Prepare(ctx, s, []string{"A", "B"}, false)
	require.NoError(t, err)

	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil).Twice()
	f.repo.On("MarkBillsPaid", mock.Anything, "S1", mock.Anything).
		Return(apperror.NewBusinessRule(apperror.CodeBillAlreadyPaid, "Bill A is already paid")).Once()

	_, err = f.svc.Confirm(ctx, s, validDetails)

	assert.True(t, apperror.IsCode(err, apperror.CodeBillAlreadyPaid))
	assert.Equal(t, StateFailed, s.State())
	draft := s.Payment()
	require.NotNil(t, draft)
	assert.False(t, draft.Confirmed)
	assert.Empty(t, draft.Number)

	f.repo.On("MarkBillsPaid", mock.Anything, "S1", mock.Anything).Return(nil).Once()
	require.NoError(t, s.Retry())

	p, err := f.svc.Confirm(ctx, s, validDetails)

	require.NoError(t, err)
	assert.Equal(t, draft.ID, p.ID)
	assert.Equal(t, StateCommitted, s.State())
}

func TestService_Confirm_ZeroPayable(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t, "9000")
	s := NewSession("PH1", "S1")
	got, err := f.svc.Prepare(ctx, s, []string{"A", "B"}, true)
	require.NoError(t, err)
	assert.True(t, got.Payable.IsZero())

	_, err = f.svc.Confirm(ctx, s, validDetails)

	assert.True(t, apperror.IsCode(err, apperror.CodePayableNotPositive))
	assert.Equal(t, StateAllocationComputed, s.State())
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_Confirm_NumberingFailure(t *testing.T) {
	ctx := context.Background()
	f := newPaymentFixture(t, "0")
	f.svc.numerator = &numerator.MockGenerator{
		GetNextNumberFunc: func(context.Context, numerator.Config, *numerator.Options, time.Time) (string, error) {
			return "", errors.New("sequence table locked")
		},
	}
	s := NewSession("PH1", "S1")
	_, err := f.svc.Prepare(ctx, s, []string{"A"}, false)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, s, validDetails)

	assert.ErrorContains(t, err, "generate number")
	assert.Equal(t, StateFailed, s.State())
}
