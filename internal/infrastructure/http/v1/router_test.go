package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pharmadesk/internal/core/apperror"
	appctx "pharmadesk/internal/core/context"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/numerator"
	"pharmadesk/internal/core/types"
	"pharmadesk/internal/domain"
	"pharmadesk/internal/domain/catalog"
	"pharmadesk/internal/domain/documents"
	"pharmadesk/internal/domain/inventory"
	"pharmadesk/internal/domain/payments"
	"pharmadesk/internal/infrastructure/http/v1/handlers"
	"pharmadesk/internal/infrastructure/http/v1/middleware"
	"pharmadesk/internal/infrastructure/storage/postgres"
	"pharmadesk/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- fakes ---

type tokenValidator struct{}

func (tokenValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	switch token {
	case "clerk":
		return &appctx.UserContext{UserID: "u-1", PharmacyID: "PH1", Roles: []string{"pharmacist"}}, nil
	case "accounts":
		return &appctx.UserContext{UserID: "u-2", PharmacyID: "PH1", Roles: []string{"accounts"}}, nil
	}
	return nil, errors.New("invalid token")
}

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Build(ctx context.Context, doc *documents.Document, lines []documents.LineDraft) error {
	return m.Called(ctx, doc, lines).Error(0)
}

func (m *MockDocumentService) Confirm(ctx context.Context, doc *documents.Document) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *MockDocumentService) GetByID(ctx context.Context, docID id.ID) (*documents.Document, error) {
	args := m.Called(ctx, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*documents.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, filter documents.ListFilter) (domain.ListResult[*documents.Document], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(domain.ListResult[*documents.Document]), args.Error(1)
}

type MockBillSource struct {
	mock.Mock
}

func (m *MockBillSource) ListOutstandingBills(ctx context.Context, supplierID string, status payments.BillStatus) ([]payments.OutstandingBill, error) {
	args := m.Called(ctx, supplierID, status)
	return args.Get(0).([]payments.OutstandingBill), args.Error(1)
}

func (m *MockBillSource) GetCreditNote(ctx context.Context, supplierID string) (payments.CreditNote, error) {
	args := m.Called(ctx, supplierID)
	return args.Get(0).(payments.CreditNote), args.Error(1)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *payments.Payment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, paymentID id.ID) (*payments.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.Payment), args.Error(1)
}

func (m *MockPaymentRepository) MarkBillsPaid(ctx context.Context, supplierID string, documentIDs []id.ID) error {
	return m.Called(ctx, supplierID, documentIDs).Error(0)
}

func (m *MockPaymentRepository) ConsumeCredit(ctx context.Context, supplierID string, amount types.Money) error {
	return m.Called(ctx, supplierID, amount).Error(0)
}

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type auditStub struct {
	entries []postgres.AuditEntry
}

func (a auditStub) History(context.Context, string, id.ID, int) ([]postgres.AuditEntry, error) {
	return a.entries, nil
}

type batchStub []inventory.Batch

func (b batchStub) ListByItem(_ context.Context, itemID string, _ bool) ([]inventory.Batch, error) {
	var out []inventory.Batch
	for _, batch := range b {
		if batch.ItemID == itemID {
			out = append(out, batch)
		}
	}
	return out, nil
}

type itemStub struct{}

func (itemStub) Search(context.Context, string, int) ([]catalog.Item, error) {
	return nil, nil
}

type replayStore struct {
	mu      sync.Mutex
	entries map[string]*postgres.IdempotencyReplay
}

func (s *replayStore) Acquire(_ context.Context, key, _, _, _ string) (*postgres.IdempotencyReplay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.entries[key]; ok {
		if r == nil {
			return nil, apperror.NewIdempotencyConflict(key)
		}
		return r, nil
	}
	s.entries[key] = nil
	return nil, nil
}

func (s *replayStore) Complete(_ context.Context, key string, status int, contentType string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &postgres.IdempotencyReplay{StatusCode: status, ContentType: contentType, Body: body}
	return nil
}

func (s *replayStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// --- fixture ---

type apiFixture struct {
	router *gin.Engine
	docs   *MockDocumentService
	bills  *MockBillSource
	repo   *MockPaymentRepository
	billA  payments.OutstandingBill
	billB  payments.OutstandingBill
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	f := &apiFixture{
		docs:  &MockDocumentService{},
		bills: &MockBillSource{},
		repo:  &MockPaymentRepository{},
		billA: payments.OutstandingBill{DocumentID: id.New(), BillNo: "PE-1", SupplierID: "S1", BilledAmount: types.MustMoney("1000"), Status: payments.BillPending},
		billB: payments.OutstandingBill{DocumentID: id.New(), BillNo: "PE-2", SupplierID: "S1", BilledAmount: types.MustMoney("500"), Status: payments.BillPending},
	}
	f.bills.On("ListOutstandingBills", mock.Anything, "S1", payments.BillPending).
		Return([]payments.OutstandingBill{f.billA, f.billB}, nil)
	f.bills.On("GetCreditNote", mock.Anything, "S1").
		Return(payments.CreditNote{SupplierID: "S1", Amount: types.MustMoney("300")}, nil)

	expiry := time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC)
	batch := inventory.Batch{
		ItemID:            "ITEM-1",
		BatchNo:           "B1",
		AvailableQuantity: 40,
		UnitPrice:         types.MustMoney("12.5"),
		GSTPercentage:     types.MustMoney("12"),
		ExpiryDate:        &expiry,
	}

	health := handlers.NewHealthHandler("test")
	health.AddCheck("database", func(context.Context) error { return nil })

	f.router = NewRouter(RouterConfig{
		Logger:       logger.Nop(),
		JWTValidator: tokenValidator{},
		Documents:    f.docs,
		Payments:     payments.NewService(f.bills, f.repo, &numerator.MockGenerator{}, passthroughTx{}),
		Audit:        auditStub{},
		BatchIndex:   inventory.NewSnapshotIndex(batch),
		Batches:      batchStub{batch},
		Items:        itemStub{},
		Health:       health,
		Idempotency:  &replayStore{entries: map[string]*postgres.IdempotencyReplay{}},
		PaymentRoles: []string{"accounts"},
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

// priceFirstLine mimics the document service: one batch-priced line at 5% discount.
func priceFirstLine(args mock.Arguments) {
	doc := args.Get(1).(*documents.Document)
	drafts := args.Get(2).([]documents.LineDraft)
	expiry := time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC)

	i, _ := doc.AddLine()
	_ = doc.SelectBatch(i, inventory.Batch{
		ItemID:            drafts[0].ItemID,
		BatchNo:           drafts[0].BatchNo,
		AvailableQuantity: 40,
		UnitPrice:         types.MustMoney("10"),
		GSTPercentage:     types.MustMoney("12"),
		ExpiryDate:        &expiry,
	})
	_ = doc.SetDiscount(i, types.MustMoney("5"))
	_ = doc.SetQuantity(i, drafts[0].Quantity)
}

// --- tests ---

func TestRouter_Health(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	w = f.do(t, http.MethodGet, "/health/info", "", nil)
	assert.Equal(t, "pharmadesk", decode(t, w)["app"])
}

func TestRouter_RequiresToken(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/documents/schema/invoice", "", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeUnauthorized, decode(t, w)["code"])
}

func TestDocumentRoutes(t *testing.T) {
	t.Run("schema", func(t *testing.T) {
		f := newAPIFixture(t)

		w := f.do(t, http.MethodGet, "/api/v1/documents/schema/purchase-entry", "clerk", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	})

	t.Run("unknown kind", func(t *testing.T) {
		f := newAPIFixture(t)

		w := f.do(t, http.MethodGet, "/api/v1/documents/schema/credit-memo", "clerk", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperror.CodeInvalidInput, decode(t, w)["code"])
	})

	t.Run("calculate line", func(t *testing.T) {
		f := newAPIFixture(t)
		req := map[string]any{
			"quantity":           10,
			"unitPrice":          "12.50",
			"discountPercentage": "10",
			"gstPercentage":      "12",
		}

		w := f.do(t, http.MethodPost, "/api/v1/documents/lines/calculate", "clerk", req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Equal(t, "12.50", body["discountAmount"])
		assert.Equal(t, "112.50", body["netTotal"])
		assert.Equal(t, "13.50", body["gstAmount"])
		assert.Equal(t, "126.00", body["grossTotal"])
	})

	t.Run("draft", func(t *testing.T) {
		f := newAPIFixture(t)
		f.docs.On("Build", mock.Anything, mock.AnythingOfType("*documents.Document"), mock.Anything).
			Run(priceFirstLine).Return(nil)
		req := map[string]any{
			"patientId":   "P1",
			"paymentMode": "cash",
			"lines":       []map[string]any{{"itemId": "ITEM-1", "batchNo": "B1", "quantity": 2}},
		}

		w := f.do(t, http.MethodPost, "/api/v1/documents/invoice/draft", "clerk", req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decode(t, w)
		totals := body["totals"].(map[string]any)
		assert.Equal(t, "19.00", totals["subTotal"])
		assert.Equal(t, "1.00", totals["totalDiscount"])
		assert.Equal(t, "2.28", totals["totalGst"])
		assert.Equal(t, "21.28", totals["grandTotal"])
		assert.Equal(t, false, body["confirmed"])
		f.docs.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
	})

	t.Run("create confirms", func(t *testing.T) {
		f := newAPIFixture(t)
		f.docs.On("Build", mock.Anything, mock.Anything, mock.Anything).Run(priceFirstLine).Return(nil)
		f.docs.On("Confirm", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			doc := args.Get(1).(*documents.Document)
			doc.Number = "INV-2026-00001"
			doc.Confirmed = true
		}).Return(nil)
		req := map[string]any{
			"patientId":   "P1",
			"paymentMode": "cash",
			"lines":       []map[string]any{{"itemId": "ITEM-1", "batchNo": "B1", "quantity": 2}},
		}

		w := f.do(t, http.MethodPost, "/api/v1/documents/invoice", "clerk", req)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Equal(t, "INV-2026-00001", body["number"])
		assert.Equal(t, true, body["confirmed"])
	})

	t.Run("confirm rejected", func(t *testing.T) {
		f := newAPIFixture(t)
		f.docs.On("Build", mock.Anything, mock.Anything, mock.Anything).Run(priceFirstLine).Return(nil)
		f.docs.On("Confirm", mock.Anything, mock.Anything).
			Return(apperror.NewQuantityExceedsStock("ITEM-1", "B1", 2, 1))
		req := map[string]any{
			"patientId":   "P1",
			"paymentMode": "cash",
			"lines":       []map[string]any{{"itemId": "ITEM-1", "batchNo": "B1", "quantity": 2}},
		}

		w := f.do(t, http.MethodPost, "/api/v1/documents/invoice", "clerk", req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, apperror.CodeQuantityExceedsStock, decode(t, w)["code"])
	})

	t.Run("lines required", func(t *testing.T) {
		f := newAPIFixture(t)

		w := f.do(t, http.MethodPost, "/api/v1/documents/invoice/draft", "clerk", map[string]any{"patientId": "P1"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.docs.AssertNotCalled(t, "Build", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("get with malformed id", func(t *testing.T) {
		f := newAPIFixture(t)

		w := f.do(t, http.MethodGet, "/api/v1/documents/not-a-uuid", "clerk", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get missing", func(t *testing.T) {
		f := newAPIFixture(t)
		docID := id.New()
		f.docs.On("GetByID", mock.Anything, docID).Return(nil, apperror.NewNotFound("document", docID))

		w := f.do(t, http.MethodGet, "/api/v1/documents/"+docID.String(), "clerk", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("empty history", func(t *testing.T) {
		f := newAPIFixture(t)

		w := f.do(t, http.MethodGet, "/api/v1/documents/"+id.New().String()+"/history", "clerk", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []any{}, decode(t, w)["items"])
	})
}

func TestInventoryRoutes(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("batch lookup", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/inventory/batches/ITEM-1/B1", "clerk", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Equal(t, "12.50", body["unitPrice"])
		assert.Equal(t, float64(40), body["availableQuantity"])
		assert.Equal(t, false, body["expired"])
	})

	t.Run("unknown batch", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/inventory/batches/ITEM-1/ZZ", "clerk", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list requires item", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/inventory/batches", "clerk", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("list by item", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/inventory/batches?itemId=ITEM-1", "clerk", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode(t, w)["items"], 1)
	})

	t.Run("empty search", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/v1/items?search=para", "clerk", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []any{}, decode(t, w)["items"])
	})
}

func TestPaymentRoutes(t *testing.T) {
	selection := map[string]any{
		"supplierId":      "S1",
		"billNos":         []string{"PE-1", "PE-2"},
		"applyCreditNote": true,
	}

	t.Run("role required", func(t *testing.T) {
		f := newAPIFixture(t)

		w := f.do(t, http.MethodPost, "/api/v1/payments/preview", "clerk", selection)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("pending bills", func(t *testing.T) {
		f := newAPIFixture(t)

		w := f.do(t, http.MethodGet, "/api/v1/suppliers/S1/bills?status=pending", "accounts", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		items := decode(t, w)["items"].([]any)
		require.Len(t, items, 2)
		assert.Equal(t, "1000.00", items[0].(map[string]any)["billedAmount"])
	})

	t.Run("bad status", func(t *testing.T) {
		f := newAPIFixture(t)

		w := f.do(t, http.MethodGet, "/api/v1/suppliers/S1/bills?status=void", "accounts", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("credit note", func(t *testing.T) {
		f := newAPIFixture(t)

		w := f.do(t, http.MethodGet, "/api/v1/suppliers/S1/credit-note", "accounts", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "300.00", decode(t, w)["amount"])
	})

	t.Run("preview applies credit", func(t *testing.T) {
		f := newAPIFixture(t)

		w := f.do(t, http.MethodPost, "/api/v1/payments/preview", "accounts", selection)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Equal(t, "1500.00", body["totalBilled"])
		assert.Equal(t, "300.00", body["creditNoteApplied"])
		assert.Equal(t, "1200.00", body["payable"])
		assert.Len(t, body["allocations"], 2)
		f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("unknown bill", func(t *testing.T) {
		f := newAPIFixture(t)
		req := map[string]any{"supplierId": "S1", "billNos": []string{"PE-9"}}

		w := f.do(t, http.MethodPost, "/api/v1/payments/preview", "accounts", req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("create records payment once", func(t *testing.T) {
		f := newAPIFixture(t)
		f.repo.On("MarkBillsPaid", mock.Anything, "S1", []id.ID{f.billA.DocumentID, f.billB.DocumentID}).Return(nil).Once()
		f.repo.On("ConsumeCredit", mock.Anything, "S1", mock.MatchedBy(func(m types.Money) bool {
			return m.Equal(types.MustMoney("300"))
		})).Return(nil).Once()
		f.repo.On("Create", mock.Anything, mock.AnythingOfType("*payments.Payment")).Return(nil).Once()

		req := map[string]any{
			"supplierId":      "S1",
			"billNos":         []string{"PE-1", "PE-2"},
			"applyCreditNote": true,
			"paymentMode":     "bank_transfer",
			"referenceNo":     "UTR-881",
		}

		w := f.do(t, http.MethodPost, "/api/v1/payments", "accounts", req, middleware.HeaderIdempotencyKey, "k-1")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		first := decode(t, w)
		assert.Equal(t, "1200.00", first["amountPaid"])
		assert.NotEmpty(t, first["number"])

		again := f.do(t, http.MethodPost, "/api/v1/payments", "accounts", req, middleware.HeaderIdempotencyKey, "k-1")
		assert.Equal(t, http.StatusCreated, again.Code)
		assert.Equal(t, "true", again.Header().Get("Idempotent-Replayed"))
		assert.JSONEq(t, w.Body.String(), again.Body.String())

		f.repo.AssertExpectations(t)
	})

	t.Run("details required", func(t *testing.T) {
		f := newAPIFixture(t)
		req := map[string]any{"supplierId": "S1", "billNos": []string{"PE-1"}, "paymentMode": "cash"}

		w := f.do(t, http.MethodPost, "/api/v1/payments", "accounts", req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperror.CodeValidation, decode(t, w)["code"])
	})

	t.Run("bill paid concurrently", func(t *testing.T) {
		f := newAPIFixture(t)
		f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.repo.On("MarkBillsPaid", mock.Anything, "S1", mock.Anything).
			Return(apperror.NewBusinessRule(apperror.CodeBillAlreadyPaid, "Bill is already paid"))
		req := map[string]any{"supplierId": "S1", "billNos": []string{"PE-1"}, "paymentMode": "cash", "referenceNo": "R-1"}

		w := f.do(t, http.MethodPost, "/api/v1/payments", "accounts", req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, apperror.CodeBillAlreadyPaid, decode(t, w)["code"])
		f.repo.AssertNotCalled(t, "ConsumeCredit", mock.Anything, mock.Anything, mock.Anything)
	})
}
