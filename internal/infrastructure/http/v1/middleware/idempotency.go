package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmadesk/internal/core/apperror"
	appctx "pharmadesk/internal/core/context"
	"pharmadesk/internal/infrastructure/storage/postgres"
	"pharmadesk/pkg/logger"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"
const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

const (
	ctxIdempotencyKey   = "idempotency_key"
	ctxIdempotencyStore = "idempotency_store"
)

// IdempotencyStore is implemented by postgres.IdempotencyStore.
type IdempotencyStore interface {
	Acquire(ctx context.Context, key, userID, operation, requestHash string) (*postgres.IdempotencyReplay, error)
	Complete(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
	Release(ctx context.Context, key string) error
}

// Idempotency makes POST requests carrying X-Idempotency-Key safe to retry.
// A repeated request with the same key and body gets the first response back.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, err := io.ReadAll(limited)
		if err != nil {
			_ = c.Error(apperror.NewValidation("cannot read request body").WithCause(err))
			c.Abort()
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		operation := c.Request.Method + " " + c.FullPath()
		replay, err := store.Acquire(ctx, key, appctx.GetUserID(ctx), operation, postgres.Fingerprint(body))
		if err != nil {
			if _, ok := apperror.AsAppError(err); !ok {
				err = apperror.NewInternal(err).WithDetail("component", "idempotency")
			}
			_ = c.Error(err)
			c.Abort()
			return
		}

		if replay != nil {
			c.Header("Idempotent-Replayed", "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		c.Set(ctxIdempotencyKey, key)
		c.Set(ctxIdempotencyStore, store)

		c.Next()
	}
}

// CompleteIdempotency stores the response for replay when the request holds a key.
func CompleteIdempotency(c *gin.Context, statusCode int, contentType string, body []byte) {
	key, store, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	if err := store.Complete(c.Request.Context(), key, statusCode, contentType, body); err != nil {
		logger.Warn(c.Request.Context(), "complete idempotency key", "key", key, "error", err)
	}
}

// ReleaseIdempotency frees the key of a failed request so the client can retry it.
func ReleaseIdempotency(c *gin.Context) {
	key, store, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	if err := store.Release(c.Request.Context(), key); err != nil {
		logger.Warn(c.Request.Context(), "release idempotency key", "key", key, "error", err)
	}
}

func idempotencyFrom(c *gin.Context) (string, IdempotencyStore, bool) {
	key := c.GetString(ctxIdempotencyKey)
	if key == "" {
		return "", nil, false
	}
	v, exists := c.Get(ctxIdempotencyStore)
	if !exists {
		return "", nil, false
	}
	store, ok := v.(IdempotencyStore)
	return key, store, ok
}
