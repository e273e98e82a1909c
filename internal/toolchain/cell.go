package toolchain

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State is the lifecycle position of a Cell.
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Cell lazily runs an initializer exactly once and shares its outcome with
// every caller. Callers arriving while initialization is in flight wait for
// the same result. A failed initialization is final.
type Cell[T any] struct {
	init func(context.Context) (T, error)

	mu    sync.Mutex
	state State
	done  chan struct{}
	value T
	err   error
}

// NewCell returns an uninitialized cell around init.
func NewCell[T any](init func(context.Context) (T, error)) *Cell[T] {
	return &Cell[T]{init: init}
}

// State reports where the cell is in its lifecycle.
func (c *Cell[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Get returns the initialized value, starting initialization on first use.
// The initializer runs detached from ctx's cancellation; ctx only bounds how
// long this caller waits.
func (c *Cell[T]) Get(ctx context.Context) (T, error) {
	var zero T

	c.mu.Lock()
	switch c.state {
	case Ready:
		v := c.value
		c.mu.Unlock()
		return v, nil
	case Failed:
		err := c.err
		c.mu.Unlock()
		return zero, err
	case Uninitialized:
		c.state = Initializing
		c.done = make(chan struct{})
		go c.run(context.WithoutCancel(ctx))
	}
	done := c.done
	c.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Failed {
		return zero, c.err
	}
	return c.value, nil
}

func (c *Cell[T]) run(ctx context.Context) {
	var (
		v   T
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		v, err = c.init(ctx)
	}()

	c.mu.Lock()
	if err != nil {
		var ie *InitializationError
		if !errors.As(err, &ie) {
			ie = &InitializationError{Err: err}
		}
		c.state = Failed
		c.err = ie
	} else {
		c.state = Ready
		c.value = v
	}
	c.mu.Unlock()
	close(c.done)
}
