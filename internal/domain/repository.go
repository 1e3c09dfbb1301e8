// Package domain provides core business logic interfaces and types.
package domain

import (
	"context"
	"sync"
)

// --- Filter & Pagination ---

// ListFilter contains common filtering options for list operations.
type ListFilter struct {
	// Search matches document numbers
	Search string

	// OrderBy specifies sorting (e.g., "date", "-number")
	OrderBy string

	// Pagination
	Limit  int
	Offset int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:   50,
		OrderBy: "-date",
	}
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// --- Hooks ---

// HookEvent represents lifecycle event type.
type HookEvent string

const (
	// BeforeConfirm runs before numbering and the confirm transaction; an error aborts the confirm.
	BeforeConfirm HookEvent = "before_confirm"
	// Confirming runs inside the confirm transaction after persistence; an error rolls it back.
	Confirming HookEvent = "confirming"
	// AfterConfirm runs once the transaction committed; errors are logged, not returned.
	AfterConfirm HookEvent = "after_confirm"
)

// Hook is a function that runs at specific lifecycle points.
type Hook[T any] func(ctx context.Context, entity T) error

// HookRegistry stores lifecycle hooks for an entity type.
type HookRegistry[T any] struct {
	mu    sync.RWMutex
	hooks map[HookEvent][]Hook[T]
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry[T any]() *HookRegistry[T] {
	return &HookRegistry[T]{
		hooks: make(map[HookEvent][]Hook[T]),
	}
}

// On registers a hook for the specified event.
func (r *HookRegistry[T]) On(event HookEvent, hook Hook[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[event] = append(r.hooks[event], hook)
}

// Run executes all hooks for the specified event and stops at the first error.
func (r *HookRegistry[T]) Run(ctx context.Context, event HookEvent, entity T) error {
	r.mu.RLock()
	hooks := r.hooks[event]
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

// OnBeforeConfirm registers a hook to run before confirm.
func (r *HookRegistry[T]) OnBeforeConfirm(hook Hook[T]) {
	r.On(BeforeConfirm, hook)
}

// OnConfirming registers a hook that commits or rolls back with the confirm.
func (r *HookRegistry[T]) OnConfirming(hook Hook[T]) {
	r.On(Confirming, hook)
}

// OnAfterConfirm registers a hook to run after a successful confirm.
func (r *HookRegistry[T]) OnAfterConfirm(hook Hook[T]) {
	r.On(AfterConfirm, hook)
}

// RunBeforeConfirm executes all before-confirm hooks.
func (r *HookRegistry[T]) RunBeforeConfirm(ctx context.Context, entity T) error {
	return r.Run(ctx, BeforeConfirm, entity)
}

// RunConfirming executes all in-transaction hooks.
func (r *HookRegistry[T]) RunConfirming(ctx context.Context, entity T) error {
	return r.Run(ctx, Confirming, entity)
}

// RunAfterConfirm executes all after-confirm hooks.
func (r *HookRegistry[T]) RunAfterConfirm(ctx context.Context, entity T) error {
	return r.Run(ctx, AfterConfirm, entity)
}
