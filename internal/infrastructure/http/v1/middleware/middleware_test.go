package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmadesk/internal/core/apperror"
	appctx "pharmadesk/internal/core/context"
	"pharmadesk/internal/infrastructure/storage/postgres"
	"pharmadesk/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeValidator struct{}

func (fakeValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &appctx.UserContext{UserID: "u-1", PharmacyID: "ph-1", Roles: []string{"billing"}}, nil
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuth(t *testing.T) {
	newRouter := func() *gin.Engine {
		r := gin.New()
		r.Use(ErrorHandler(), Auth(fakeValidator{}))
		r.GET("/me", func(c *gin.Context) {
			c.String(http.StatusOK, appctx.GetPharmacyID(c.Request.Context()))
		})
		return r
	}

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"no token", "Bearer ", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
		{"scheme is case insensitive", "bearer good", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newRouter().ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "ph-1", w.Body.String())
			} else {
				assert.Equal(t, apperror.CodeUnauthorized, decodeError(t, w)["code"])
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(), Auth(fakeValidator{}))
	r.GET("/billing", RequireRole("billing"), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/admin", RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for path, status := range map[string]int{"/billing": http.StatusNoContent, "/admin": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer good")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, status, w.Code, path)
	}
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "business rule",
			err:    apperror.NewQuantityExceedsStock("item-1", "B1", 12, 10),
			status: http.StatusUnprocessableEntity,
			code:   apperror.CodeQuantityExceedsStock,
		},
		{
			name:   "not found",
			err:    apperror.NewNotFound("document", "x"),
			status: http.StatusNotFound,
			code:   apperror.CodeNotFound,
		},
		{
			name:   "wrapped app error",
			err:    fmt.Errorf("confirm: %w", apperror.NewValidation("date is required")),
			status: http.StatusBadRequest,
			code:   apperror.CodeValidation,
		},
		{
			name:   "plain error is hidden",
			err:    errors.New("connection reset"),
			status: http.StatusInternalServerError,
			code:   apperror.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(ErrorHandler())
			r.GET("/", func(c *gin.Context) { _ = c.Error(tt.err) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.status, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, tt.code, body["code"])
			assert.NotContains(t, w.Body.String(), "connection reset")
		})
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(), Recovery())
	r.GET("/", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, decodeError(t, w)["code"])
}

func TestRecovery_ReportsTraceIDs(t *testing.T) {
	r := gin.New()
	r.Use(Trace(logger.Nop()), ErrorHandler(), Recovery())
	r.GET("/", func(*gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-7")
	req.Header.Set(HeaderTraceID, "trace-7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	details, ok := decodeError(t, w)["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "req-7", details["request_id"])
	assert.Equal(t, w.Header().Get(HeaderTraceID), details["trace_id"])
}

func TestTrace(t *testing.T) {
	r := gin.New()
	r.Use(Trace(logger.Nop()))
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, appctx.GetRequestID(c.Request.Context()))
	})

	t.Run("keeps incoming request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "req-42")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "req-42", w.Body.String())
		assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
		assert.NotEmpty(t, w.Header().Get(HeaderTraceID))
	})

	t.Run("generates request id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, w.Body.String())
		assert.Equal(t, w.Body.String(), w.Header().Get(HeaderRequestID))
	})
}

// memoryStore keeps idempotency keys in a map.
type memoryStore struct {
	mu       sync.Mutex
	entries  map[string]*memoryEntry
	released []string
}

type memoryEntry struct {
	hash   string
	done   bool
	replay postgres.IdempotencyReplay
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: map[string]*memoryEntry{}}
}

func (s *memoryStore) Acquire(_ context.Context, key, _, _, hash string) (*postgres.IdempotencyReplay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		s.entries[key] = &memoryEntry{hash: hash}
		return nil, nil
	}
	if e.hash != hash {
		return nil, apperror.NewIdempotencyMismatch(key)
	}
	if !e.done {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	r := e.replay
	return &r, nil
}

func (s *memoryStore) Complete(_ context.Context, key string, status int, contentType string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[key]
	e.done = true
	e.replay = postgres.IdempotencyReplay{StatusCode: status, ContentType: contentType, Body: body}
	return nil
}

func (s *memoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	s.released = append(s.released, key)
	return nil
}

func TestIdempotency(t *testing.T) {
	newRouter := func(store *memoryStore, calls *int, fail bool) *gin.Engine {
		r := gin.New()
		r.Use(ErrorHandler(), Idempotency(store))
		r.POST("/payments", func(c *gin.Context) {
			*calls++
			if fail {
				_ = c.Error(apperror.NewBusinessRule(apperror.CodeBillAlreadyPaid, "Bill is already paid"))
				return
			}
			body, _ := io.ReadAll(c.Request.Body)
			out := []byte(`{"echo":` + string(body) + `}`)
			CompleteIdempotency(c, http.StatusCreated, "application/json", out)
			c.Data(http.StatusCreated, "application/json", out)
		})
		return r
	}
	post := func(r *gin.Engine, key, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(body))
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("replays the first response", func(t *testing.T) {
		store, calls := newMemoryStore(), 0
		r := newRouter(store, &calls, false)

		first := post(r, "k1", `1`)
		second := post(r, "k1", `1`)

		assert.Equal(t, http.StatusCreated, first.Code)
		assert.Equal(t, http.StatusCreated, second.Code)
		assert.Equal(t, first.Body.String(), second.Body.String())
		assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
		assert.Equal(t, 1, calls)
	})

	t.Run("different body with same key is rejected", func(t *testing.T) {
		store, calls := newMemoryStore(), 0
		r := newRouter(store, &calls, false)

		post(r, "k1", `1`)
		w := post(r, "k1", `2`)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, 1, calls)
	})

	t.Run("failed request releases its key", func(t *testing.T) {
		store, calls := newMemoryStore(), 0
		r := newRouter(store, &calls, true)

		w := post(r, "k1", `1`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, []string{"k1"}, store.released)

		post(r, "k1", `1`)
		assert.Equal(t, 2, calls)
	})

	t.Run("no key passes through", func(t *testing.T) {
		store, calls := newMemoryStore(), 0
		r := newRouter(store, &calls, false)

		post(r, "", `1`)
		post(r, "", `1`)

		assert.Equal(t, 2, calls)
		assert.Empty(t, store.entries)
	})
}
