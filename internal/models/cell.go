// Package models holds process-wide model backends that are loaded once and
// then shared read-only by every pipeline run.
package models

import (
	"context"
	"errors"
	"sync"
)

// Cell is a single-assignment slot. The first successful Get runs load; every
// later Get, from any goroutine, returns the same value and error. A failed
// load is not retried, so a missing credential fails every run the same way
// until the process restarts with a fixed configuration. Context errors are
// the exception: they belong to one caller and leave the cell empty.
type Cell[T any] struct {
	mu   sync.Mutex
	done bool
	load func(context.Context) (T, error)
	val  T
	err  error
}

func NewCell[T any](load func(context.Context) (T, error)) *Cell[T] {
	return &Cell[T]{load: load}
}

// Get loads the value on first use. The load keeps ctx's values but not its
// cancellation, since the result outlives the caller.
func (c *Cell[T]) Get(ctx context.Context) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return c.val, c.err
	}

	val, err := c.load(context.WithoutCancel(ctx))
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		var zero T
		return zero, err
	}
	c.val, c.err, c.done = val, err, true
	c.load = nil
	return c.val, c.err
}
