package linker

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-trampoline/engine"
	"github.com/wippyai/wasm-trampoline/errors"
)

// Binding is the resolved target of one import slot. It is immutable for
// the lifetime of the instance.
type Binding[C any] struct {
	Slot         int
	Import       ImportRequest
	Signature    engine.Signature
	Registration *Registration[C]
}

// Skipped reports whether the import filter left the slot unbound.
func (b *Binding[C]) Skipped() bool {
	return b.Registration == nil
}

// Key returns the bound registration key, or the zero key when skipped.
func (b *Binding[C]) Key() InterfaceKey {
	if b.Registration == nil {
		return InterfaceKey{}
	}
	return b.Registration.Key
}

func (b *Binding[C]) String() string {
	if b.Skipped() {
		return b.Import.String() + " -> (skipped)"
	}
	return b.Import.String() + " -> " + b.Registration.Key.String()
}

// DomainError carries a typed error payload. Returned from an implementation
// bound to a result<T, E> slot, Value becomes the err case.
type DomainError struct {
	Value any
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("domain error: %v", e.Value)
}

// ErrorResult returns a DomainError carrying v.
func ErrorResult(v any) error {
	return &DomainError{Value: v}
}

// dispatcher mediates every call from one instance's import slots.
type dispatcher[C any] struct {
	session  uuid.UUID
	cell     *Cell[C]
	bindings []*Binding[C]
	observer Observer
	clock    clock.Clock
}

func (d *dispatcher[C]) callback(slot int) engine.Callback {
	return func(ctx context.Context, args []any) ([]any, error) {
		return d.dispatch(ctx, slot, args)
	}
}

func (d *dispatcher[C]) dispatch(ctx context.Context, slot int, args []any) (results []any, err error) {
	b := d.bindings[slot]
	key := b.Registration.Key.String()
	t := taskFrom(ctx)
	frame := &CallFrame{
		Session: d.session,
		Slot:    slot,
		Import:  b.Import,
		Key:     b.Registration.Key,
		Async:   t != nil,
	}

	start := d.clock.Now()
	outcome := OutcomeOK
	defer func() {
		d.observe(frame, outcome, d.clock.Since(start))
	}()

	call := &Call[C]{Args: args, Frame: frame}
	if !b.Registration.guest {
		if d.cell.HeldBy(ctx) {
			outcome = OutcomeReentrant
			Logger().Debug("reentrant call rejected", zap.String("key", key))
			return nil, &Trap{Key: key, Reason: "reentrant call", Cause: errors.Reentrant(key)}
		}

		g, err := d.acquire(ctx, t)
		if err != nil {
			outcome = OutcomeCanceled
			return nil, &Trap{Key: key, Reason: "waiting for host context", Cause: err}
		}
		defer g.Release()

		ctx = d.cell.markHeld(ctx)
		call.Context = g.Value()
	}
	ctx = context.WithValue(ctx, frameKey{}, frame)
	impl := b.Registration.impl

	step := d.run(key, func() Step { return impl(ctx, call) })
	for step.suspended() {
		frame.suspensions++
		value, opErr, ok := d.suspend(ctx, t, step.Pending)
		if !ok {
			outcome = OutcomeCanceled
			Logger().Debug("suspended call canceled", zap.String("key", key))
			return nil, &Trap{Key: key, Reason: "call canceled", Cause: errors.Canceled(errors.PhaseSession, nil)}
		}
		prev := step
		step = d.run(key, func() Step { return prev.resume(ctx, value, opErr) })
	}

	results, outcome, err = translate(b, key, step)
	return results, err
}

// acquire blocks in sync mode; in async mode it hands a wait operation to
// the session driver until the borrow is free.
func (d *dispatcher[C]) acquire(ctx context.Context, t *task) (*Guard[C], error) {
	if t == nil {
		return d.cell.Acquire(ctx)
	}
	for {
		g, wait := d.cell.TryAcquire()
		if g != nil {
			return g, nil
		}
		yr, ok := t.yield(waitFor(wait))
		if !ok {
			return nil, errors.Canceled(errors.PhaseSession, nil)
		}
		if yr.Error != nil {
			return nil, errors.Canceled(errors.PhaseSession, yr.Error)
		}
	}
}

// suspend waits for op. ok is false when the owning session was canceled.
func (d *dispatcher[C]) suspend(ctx context.Context, t *task, op PendingOp) (value any, err error, ok bool) {
	if t == nil {
		value, err = op.Execute(ctx)
		return value, err, true
	}
	yr, ok := t.yield(op)
	return yr.Value, yr.Error, ok
}

// run invokes fn, converting a panic into a trap.
func (d *dispatcher[C]) run(key string, fn func() Step) (step Step) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Warn("host implementation panicked", zap.String("key", key), zap.Any("panic", r))
			step = Fail(&Trap{Key: key, Reason: fmt.Sprintf("host implementation panicked: %v", r)})
		}
	}()
	return fn()
}

func (d *dispatcher[C]) observe(frame *CallFrame, outcome Outcome, elapsed time.Duration) {
	if d.observer == nil {
		return
	}
	d.observer.OnCall(CallEvent{
		Session:     frame.Session,
		Key:         frame.Key,
		Import:      frame.Import,
		Async:       frame.Async,
		Outcome:     outcome,
		Suspensions: frame.suspensions,
		Duration:    elapsed,
	})
}

// translate maps the final step onto the calling convention.
func translate[C any](b *Binding[C], key string, step Step) ([]any, Outcome, error) {
	_, typed := b.Signature.ResultType()

	if step.Err == nil {
		if typed {
			return wrapResult(len(b.Signature.Results), step.Results), OutcomeOK, nil
		}
		return step.Results, OutcomeOK, nil
	}

	var trap *Trap
	if stderrors.As(step.Err, &trap) {
		if trap.Key == "" {
			trap = &Trap{Key: key, Reason: trap.Reason, Cause: trap.Cause}
		}
		return nil, OutcomeTrap, trap
	}

	if typed {
		var payload any = step.Err.Error()
		var de *DomainError
		if stderrors.As(step.Err, &de) {
			payload = de.Value
		}
		res := make([]any, 0, len(b.Signature.Results))
		res = append(res, step.Results...)
		if len(res) >= len(b.Signature.Results) {
			res = res[:len(b.Signature.Results)-1]
		}
		for len(res) < len(b.Signature.Results)-1 {
			res = append(res, nil)
		}
		return append(res, engine.Result{Err: payload, IsErr: true}), OutcomeErrorResult, nil
	}

	hostErr := errors.New(errors.PhaseDispatch, errors.KindHostImplementation).
		Key(key).
		Cause(step.Err).
		Build()
	return nil, OutcomeTrap, &Trap{Key: key, Reason: "unhandled host error", Cause: hostErr}
}

// wrapResult places the ok payload into the trailing result<T, E> slot.
func wrapResult(n int, results []any) []any {
	switch {
	case n == 0:
		return results
	case len(results) == n-1:
		out := make([]any, 0, n)
		out = append(out, results...)
		return append(out, engine.Result{})
	case len(results) == n:
		if _, ok := results[n-1].(engine.Result); ok {
			return results
		}
		out := make([]any, n)
		copy(out, results)
		out[n-1] = engine.Result{OK: results[n-1]}
		return out
	}
	return results
}

// borrowWait completes when a borrowed host context becomes free.
type borrowWait <-chan struct{}

func waitFor(ch <-chan struct{}) PendingOp {
	return borrowWait(ch)
}

// Execute implements PendingOp.
func (w borrowWait) Execute(ctx context.Context) (any, error) {
	select {
	case <-w:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
