package linker

import (
	"context"
	"sync"

	"github.com/wippyai/wasm-trampoline/errors"
)

// Cell holds a session's host context and grants exclusive borrows of it.
type Cell[C any] struct {
	value *C

	mu   sync.Mutex
	held bool
	// idle is closed whenever the cell is not held
	idle chan struct{}
}

// NewCell wraps value.
func NewCell[C any](value *C) *Cell[C] {
	idle := make(chan struct{})
	close(idle)
	return &Cell[C]{value: value, idle: idle}
}

// Guard is an acquired borrow. Release is idempotent.
type Guard[C any] struct {
	cell *Cell[C]
	once sync.Once
}

// Value returns the borrowed host context.
func (g *Guard[C]) Value() *C {
	return g.cell.value
}

// Release returns the borrow.
func (g *Guard[C]) Release() {
	g.once.Do(g.cell.release)
}

// TryAcquire takes the borrow if it is free. Otherwise it returns a channel
// closed the next time the cell becomes free.
func (c *Cell[C]) TryAcquire() (*Guard[C], <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held {
		return nil, c.idle
	}
	c.held = true
	c.idle = make(chan struct{})
	return &Guard[C]{cell: c}, nil
}

// Acquire blocks until the borrow is free or ctx is done. It fails fast
// with ReentrantAccess when ctx already holds this cell.
func (c *Cell[C]) Acquire(ctx context.Context) (*Guard[C], error) {
	if c.HeldBy(ctx) {
		return nil, errors.Reentrant("")
	}
	for {
		g, wait := c.TryAcquire()
		if g != nil {
			return g, nil
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, errors.Canceled(errors.PhaseDispatch, ctx.Err())
		}
	}
}

// With runs body with exclusive access to the host context. The borrow is
// released on every exit path, including a panic in body.
func (c *Cell[C]) With(ctx context.Context, body func(ctx context.Context, value *C) error) error {
	g, err := c.Acquire(ctx)
	if err != nil {
		return err
	}
	defer g.Release()
	return body(c.markHeld(ctx), g.Value())
}

// Held reports whether a borrow is outstanding.
func (c *Cell[C]) Held() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held
}

func (c *Cell[C]) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held = false
	close(c.idle)
}

type heldKey struct{}

// heldCells is the chain of cells borrowed by a call and its callers.
type heldCells struct {
	cell any
	next *heldCells
}

// HeldBy reports whether the call chain carried by ctx holds this cell.
func (c *Cell[C]) HeldBy(ctx context.Context) bool {
	h, _ := ctx.Value(heldKey{}).(*heldCells)
	for ; h != nil; h = h.next {
		if h.cell == any(c) {
			return true
		}
	}
	return false
}

func (c *Cell[C]) markHeld(ctx context.Context) context.Context {
	h, _ := ctx.Value(heldKey{}).(*heldCells)
	return context.WithValue(ctx, heldKey{}, &heldCells{cell: c, next: h})
}
