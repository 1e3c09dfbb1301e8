// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes following domain-driven design
const (
	// Infrastructure errors (5xx)
	CodeInternal     = "INTERNAL_ERROR"
	CodeDatabase     = "DATABASE_ERROR"
	CodeLookupFailed = "LOOKUP_FAILED"

	// Validation errors (400)
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// Business rule violations (422)
	CodeBusinessRule           = "BUSINESS_RULE_VIOLATION"
	CodeDuplicateLine          = "DUPLICATE_LINE"
	CodeQuantityExceedsStock   = "QUANTITY_EXCEEDS_STOCK"
	CodePayableNotPositive     = "PAYABLE_NOT_POSITIVE"
	CodeInvalidSessionState    = "INVALID_SESSION_STATE"
	CodeDocumentConfirmed      = "DOCUMENT_ALREADY_CONFIRMED"
	CodeBillAlreadyPaid        = "BILL_ALREADY_PAID"
	CodeInsufficientCredit     = "INSUFFICIENT_CREDIT"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict    = "CONFLICT"
	CodeIdempotency = "IDEMPOTENCY_CONFLICT"
)

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// Detail returns a detail value or nil.
func (e *AppError) Detail(key string) any {
	if e.Details == nil {
		return nil
	}
	return e.Details[key]
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidInput creates an input error for a single field (400).
func NewInvalidInput(field, message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"field": field},
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewLookupFailed wraps a collaborator failure during a catalog or inventory lookup (502).
func NewLookupFailed(entity string, err error) *AppError {
	return &AppError{
		Code:       CodeLookupFailed,
		Message:    fmt.Sprintf("%s lookup failed", entity),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"entity": entity},
		Err:        err,
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewDuplicateLine is returned when an (item, batch) pair is already used by another line.
func NewDuplicateLine(itemID, batchNo string, conflictingIndex int) *AppError {
	return &AppError{
		Code:       CodeDuplicateLine,
		Message:    "Batch is already selected in another line",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"itemId":           itemID,
			"batchNo":          batchNo,
			"conflictingIndex": conflictingIndex,
		},
	}
}

// NewQuantityExceedsStock creates a stock shortage error carrying both quantities.
func NewQuantityExceedsStock(itemID, batchNo string, requested, available int64) *AppError {
	return &AppError{
		Code:       CodeQuantityExceedsStock,
		Message:    fmt.Sprintf("Requested quantity %d exceeds available stock %d", requested, available),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"itemId":    itemID,
			"batchNo":   batchNo,
			"requested": requested,
			"available": available,
		},
	}
}

// NewInvalidSessionState is returned when a payment session transition is not allowed.
func NewInvalidSessionState(from, action string) *AppError {
	return &AppError{
		Code:       CodeInvalidSessionState,
		Message:    fmt.Sprintf("Cannot %s from state %s", action, from),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"state": from, "action": action},
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another user. Please refresh and try again.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewDatabase wraps a persistence failure (500).
func NewDatabase(operation string, err error) *AppError {
	return &AppError{
		Code:       CodeDatabase,
		Message:    "Database operation failed",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"operation": operation},
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewIdempotencyConflict creates error when operation is already in progress
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Operation already in progress or completed",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewIdempotencyMismatch is returned when the same idempotency key is reused for
// a different request (different user/operation/body hash).
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Idempotency key mismatch",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsCode checks whether the error chain carries an AppError with the given code.
func IsCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool {
	return IsCode(err, CodeConcurrentModification)
}
