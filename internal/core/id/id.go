// Package id provides UUIDv7 identifiers for documents, lines and payments.
package id

import (
	"github.com/google/uuid"
)

// ID is the identifier type shared by all entities.
type ID = uuid.UUID

// New returns a time-ordered UUIDv7, falling back to v4.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse panics on malformed input. Tests and constants only.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// Nil returns zero-value UUID.
func Nil() ID {
	return uuid.Nil
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
