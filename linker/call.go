package linker

import (
	"context"

	"github.com/google/uuid"
)

// Call is what a host implementation sees of one in-flight call. Context is
// exclusively borrowed until the implementation returns its final Step. It
// is nil for calls between packages of a Graph.
type Call[C any] struct {
	Context *C
	Args    []any
	Frame   *CallFrame
}

// Func is a synchronous host implementation.
type Func[C any] func(ctx context.Context, call *Call[C]) ([]any, error)

// AsyncFunc is a host implementation that may suspend by returning a Step
// with a pending operation.
type AsyncFunc[C any] func(ctx context.Context, call *Call[C]) Step

func (f Func[C]) toAsync() AsyncFunc[C] {
	return func(ctx context.Context, call *Call[C]) Step {
		results, err := f(ctx, call)
		return Step{Results: results, Err: err}
	}
}

// PendingOp is external work a suspended call waits on.
type PendingOp interface {
	Execute(ctx context.Context) (any, error)
}

// PendingFunc adapts a function to PendingOp.
type PendingFunc func(ctx context.Context) (any, error)

// Execute implements PendingOp.
func (f PendingFunc) Execute(ctx context.Context) (any, error) {
	return f(ctx)
}

// Continuation receives the outcome of a pending operation.
type Continuation func(ctx context.Context, value any, err error) Step

// Step is the outcome of running an implementation up to its next
// suspension point. A Step with Pending set suspends the call; otherwise
// Results and Err are final.
type Step struct {
	Results []any
	Err     error
	Pending PendingOp
	// Then runs when Pending completes. A nil Then finishes the call with
	// the operation's value as the single result.
	Then Continuation
}

// Done finishes a call with results.
func Done(results ...any) Step {
	return Step{Results: results}
}

// Fail finishes a call with an error.
func Fail(err error) Step {
	return Step{Err: err}
}

// Await suspends until op completes, then continues with then.
func Await(op PendingOp, then Continuation) Step {
	return Step{Pending: op, Then: then}
}

func (s Step) suspended() bool {
	return s.Pending != nil
}

func (s Step) resume(ctx context.Context, value any, err error) Step {
	if s.Then != nil {
		return s.Then(ctx, value, err)
	}
	if err != nil {
		return Fail(err)
	}
	if value == nil {
		return Done()
	}
	return Done(value)
}

// observeStep calls fn with the final step of a possibly suspended chain.
func observeStep(s Step, fn func(Step)) Step {
	if !s.suspended() {
		fn(s)
		return s
	}
	prev := s
	s.Then = func(ctx context.Context, value any, err error) Step {
		return observeStep(prev.resume(ctx, value, err), fn)
	}
	return s
}

// CallFrame is the bookkeeping of one in-flight call.
type CallFrame struct {
	Session     uuid.UUID
	Slot        int
	Import      ImportRequest
	Key         InterfaceKey
	Async       bool
	suspensions int
}

// Suspensions returns how many times the call has suspended so far.
func (f *CallFrame) Suspensions() int {
	return f.suspensions
}

type frameKey struct{}

// FrameFromContext returns the innermost call frame carried by ctx.
func FrameFromContext(ctx context.Context) (*CallFrame, bool) {
	f, ok := ctx.Value(frameKey{}).(*CallFrame)
	return f, ok && f != nil
}

// Middleware wraps the implementation registered under key. Middleware is
// applied once, when the Linker is built.
type Middleware[C any] func(key InterfaceKey, next AsyncFunc[C]) AsyncFunc[C]
