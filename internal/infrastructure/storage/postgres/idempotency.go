package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"pharmadesk/internal/core/apperror"
)

// IdempotencyStatus represents the state of an idempotent operation.
type IdempotencyStatus string

const (
	IdempotencyStatusPending   IdempotencyStatus = "pending"
	IdempotencyStatusCompleted IdempotencyStatus = "completed"
)

// staleAfter is how long a pending key may sit before another request reclaims it.
const staleAfter = time.Minute

// IdempotencyReplay is a stored response returned to a repeated confirm request.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore guards confirm endpoints against double submission. A
// retried payment confirm with the same key gets the first response back
// instead of clearing the bills a second time.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
}

// NewIdempotencyStore creates a new idempotency store.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{txManager: txManager, ttl: ttl}
}

// Fingerprint hashes a request body for mismatch detection.
func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Acquire claims key for the caller. A nil replay with nil error means the
// caller owns the key and must call Complete or Release.
func (s *IdempotencyStore) Acquire(ctx context.Context, key, userID, operation, requestHash string) (*IdempotencyReplay, error) {
	now := time.Now().UTC()

	var (
		inserted    bool
		storedUser  string
		storedOp    string
		storedHash  string
		status      IdempotencyStatus
		body        []byte
		statusCode  int
		contentType string
		updatedAt   time.Time
	)
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO sys_idempotency (idempotency_key, user_id, operation, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (idempotency_key) DO UPDATE SET idempotency_key = EXCLUDED.idempotency_key
		RETURNING (xmax = 0), user_id, operation, request_hash, status,
		          response, COALESCE(response_status, 0), COALESCE(response_content_type, ''), updated_at`,
		key, userID, operation, IdempotencyStatusPending, requestHash, now, now.Add(s.ttl),
	).Scan(&inserted, &storedUser, &storedOp, &storedHash, &status, &body, &statusCode, &contentType, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if inserted {
		return nil, nil
	}

	if storedUser != userID || storedOp != operation || storedHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("operation", storedOp)
	}

	if status == IdempotencyStatusCompleted {
		if statusCode == 0 {
			statusCode = http.StatusOK
		}
		if contentType == "" {
			contentType = "application/json"
		}
		return &IdempotencyReplay{StatusCode: statusCode, ContentType: contentType, Body: body}, nil
	}

	if now.Sub(updatedAt) < staleAfter {
		return nil, apperror.NewIdempotencyConflict(key)
	}

	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency SET updated_at = $1
		WHERE idempotency_key = $2 AND status = $3 AND updated_at = $4`,
		now, key, IdempotencyStatusPending, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("reclaim stale key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	return nil, nil
}

// Complete stores the response to replay for later requests with the same key.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1, response = $2, response_status = $3, response_content_type = $4, updated_at = $5
		WHERE idempotency_key = $6`,
		IdempotencyStatusCompleted, body, statusCode, contentType, time.Now().UTC(), key)
	return err
}

// Release drops a key whose request failed, so the client may retry it.
// Failed confirms are retryable; replaying the failure would pin the error.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_idempotency WHERE idempotency_key = $1 AND status = $2`,
		key, IdempotencyStatusPending)
	return err
}

// CleanupExpired removes expired idempotency records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_idempotency WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
