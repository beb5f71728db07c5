package linker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-trampoline/engine"
	"github.com/wippyai/wasm-trampoline/errors"
)

// State is the lifecycle state of an Instance.
type State int32

const (
	// StateCreated: bindings resolved, no call made yet.
	StateCreated State = iota
	// StateActive: at least one call has been made.
	StateActive
	// StateTornDown: released; every further call fails.
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// Instance is an instantiated component together with its host context.
// It is safe for concurrent use; calls that reach the host context are
// serialized by its Cell.
type Instance[C any] struct {
	id       uuid.UUID
	guest    engine.Guest
	cell     *Cell[C]
	bindings []*Binding[C]
	exports  []engine.Export

	state    atomic.Int32
	inflight atomic.Int32

	mu       sync.Mutex
	sessions map[*CallSession]struct{}
}

func newInstance[C any](id uuid.UUID, cell *Cell[C], bindings []*Binding[C], exports []engine.Export) *Instance[C] {
	return &Instance[C]{
		id:       id,
		cell:     cell,
		bindings: bindings,
		exports:  exports,
		sessions: make(map[*CallSession]struct{}),
	}
}

// ID returns the session identifier.
func (i *Instance[C]) ID() uuid.UUID {
	return i.id
}

// State returns the lifecycle state.
func (i *Instance[C]) State() State {
	return State(i.state.Load())
}

// InFlight returns the number of export calls currently running.
func (i *Instance[C]) InFlight() int {
	return int(i.inflight.Load())
}

// Bindings returns the binding table in slot order.
func (i *Instance[C]) Bindings() []*Binding[C] {
	out := make([]*Binding[C], len(i.bindings))
	copy(out, i.bindings)
	return out
}

// Exports returns the component's exports.
func (i *Instance[C]) Exports() []engine.Export {
	out := make([]engine.Export, len(i.exports))
	copy(out, i.exports)
	return out
}

// WithContext runs body with exclusive access to the host context, under
// the same borrow rule as mediated calls.
func (i *Instance[C]) WithContext(ctx context.Context, body func(ctx context.Context, hc *C) error) error {
	if i.State() == StateTornDown {
		return errors.TornDown("instance")
	}
	return i.cell.With(ctx, body)
}

// Invoke calls export synchronously. Host implementations that suspend are
// driven inline on the calling goroutine.
func (i *Instance[C]) Invoke(ctx context.Context, export string, args ...any) ([]any, error) {
	return i.call(withTask(ctx, nil), export, args)
}

// StartCall prepares an asynchronous call of export. Nothing runs until the
// first Step.
func (i *Instance[C]) StartCall(ctx context.Context, export string, args ...any) (*CallSession, error) {
	if i.State() == StateTornDown {
		return nil, errors.TornDown("instance")
	}
	cs := newCallSession(ctx, export, func(ctx context.Context) ([]any, error) {
		return i.call(ctx, export, args)
	}, i.forget)

	i.mu.Lock()
	i.sessions[cs] = struct{}{}
	i.mu.Unlock()
	return cs, nil
}

func (i *Instance[C]) forget(cs *CallSession) {
	i.mu.Lock()
	delete(i.sessions, cs)
	i.mu.Unlock()
}

func (i *Instance[C]) call(ctx context.Context, export string, args []any) ([]any, error) {
	if !i.enter() {
		return nil, errors.TornDown("instance")
	}
	defer i.inflight.Add(-1)

	Logger().Debug("invoke", zap.Stringer("session", i.id), zap.String("export", export))
	return i.guest.Call(ctx, export, args)
}

// enter records a call, moving Created to Active. It fails once torn down.
func (i *Instance[C]) enter() bool {
	for {
		s := State(i.state.Load())
		switch s {
		case StateTornDown:
			return false
		case StateCreated:
			if !i.state.CompareAndSwap(int32(StateCreated), int32(StateActive)) {
				continue
			}
		}
		i.inflight.Add(1)
		return true
	}
}

// Close tears the instance down: pending sessions are canceled and the
// guest is released. Close is idempotent.
func (i *Instance[C]) Close(ctx context.Context) error {
	if State(i.state.Swap(int32(StateTornDown))) == StateTornDown {
		return nil
	}

	i.mu.Lock()
	sessions := make([]*CallSession, 0, len(i.sessions))
	for cs := range i.sessions {
		sessions = append(sessions, cs)
	}
	i.mu.Unlock()

	var err error
	for _, cs := range sessions {
		err = multierr.Append(err, cs.Cancel(ctx))
	}
	err = multierr.Append(err, i.guest.Close(ctx))

	Logger().Debug("instance torn down", zap.Stringer("session", i.id), zap.Int("canceled", len(sessions)))
	return err
}
