// Package context provides request-scoped values extraction.
package context

import (
	"context"
	"slices"
)

// UserContext contains authenticated user information.
// Tokens are issued by the external identity service; this is the validated view of them.
type UserContext struct {
	UserID     string
	PharmacyID string
	Email      string
	Roles      []string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// GetPharmacyID returns the pharmacy the user acts for, or empty string.
func GetPharmacyID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.PharmacyID
	}
	return ""
}

// HasRole checks if user has specific role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	return slices.Contains(u.Roles, role)
}
