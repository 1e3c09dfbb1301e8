package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHookRegistry_RunsInOrderAndStopsOnError(t *testing.T) {
	reg := NewHookRegistry[*[]string]()
	boom := errors.New("boom")

	reg.OnBeforeConfirm(func(ctx context.Context, calls *[]string) error {
		*calls = append(*calls, "first")
		return nil
	})
	reg.OnBeforeConfirm(func(ctx context.Context, calls *[]string) error {
		*calls = append(*calls, "second")
		return boom
	})
	reg.OnBeforeConfirm(func(ctx context.Context, calls *[]string) error {
		*calls = append(*calls, "third")
		return nil
	})

	var calls []string
	err := reg.RunBeforeConfirm(context.Background(), &calls)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestHookRegistry_EventsAreSeparate(t *testing.T) {
	reg := NewHookRegistry[*int]()
	reg.OnAfterConfirm(func(ctx context.Context, n *int) error {
		*n++
		return nil
	})

	n := 0
	assert.NoError(t, reg.RunBeforeConfirm(context.Background(), &n))
	assert.Equal(t, 0, n)
	assert.NoError(t, reg.RunAfterConfirm(context.Background(), &n))
	assert.Equal(t, 1, n)
}

func TestDefaultListFilter(t *testing.T) {
	f := DefaultListFilter()
	assert.Equal(t, 50, f.Limit)
	assert.Equal(t, "-date", f.OrderBy)
}

func TestHookRegistry_Confirming(t *testing.T) {
	reg := NewHookRegistry[*int]()
	boom := errors.New("outbox insert failed")
	reg.OnConfirming(func(ctx context.Context, n *int) error {
		*n++
		return boom
	})

	n := 0
	assert.NoError(t, reg.RunAfterConfirm(context.Background(), &n))
	assert.ErrorIs(t, reg.RunConfirming(context.Background(), &n), boom)
	assert.Equal(t, 1, n)
}
