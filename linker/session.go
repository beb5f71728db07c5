package linker

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-trampoline/errors"
)

type StepStatus int

const (
	StepContinue StepStatus = iota // yielded an operation, expects resume
	StepDone                       // execution complete
)

func (s StepStatus) String() string {
	if s == StepDone {
		return "done"
	}
	return "continue"
}

type StepResult struct {
	PendingOp PendingOp
	Error     error
	Results   []any
	Status    StepStatus
}

// YieldResult is the outcome of a PendingOp, fed back through Step.
type YieldResult struct {
	Error error
	Value any
}

type ctxKeyTask struct{}

// task is the goroutine running one asynchronous guest call. The parked
// goroutine is the continuation of the suspended call site.
type task struct {
	events   chan PendingOp
	resume   chan YieldResult
	canceled chan struct{}
	done     chan struct{}
	results  []any
	err      error
}

func newTask() *task {
	return &task{
		events:   make(chan PendingOp),
		resume:   make(chan YieldResult, 1),
		canceled: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// yield hands op to the driver and parks until resumed. ok is false when
// the session was canceled.
func (t *task) yield(op PendingOp) (yr YieldResult, ok bool) {
	select {
	case t.events <- op:
	case <-t.canceled:
		return YieldResult{}, false
	}
	select {
	case yr = <-t.resume:
		return yr, true
	case <-t.canceled:
		return YieldResult{}, false
	}
}

func withTask(ctx context.Context, t *task) context.Context {
	return context.WithValue(ctx, ctxKeyTask{}, t)
}

func taskFrom(ctx context.Context) *task {
	t, _ := ctx.Value(ctxKeyTask{}).(*task)
	return t
}

type sessionState int

const (
	sessionIdle sessionState = iota
	sessionRunning
	sessionSuspended
	sessionDone
	sessionCanceled
)

// CallSession is one asynchronous export call. Host implementations that
// suspend hand their pending operation out through Step; the caller executes
// it and resumes the session with its outcome, exactly once.
//
// A CallSession is driven by one goroutine at a time.
type CallSession struct {
	id     uuid.UUID
	export string
	call   func(ctx context.Context) ([]any, error)
	finish func(*CallSession)

	ctx    context.Context
	cancel context.CancelFunc
	task   *task

	mu         sync.Mutex
	state      sessionState
	cancelOnce sync.Once
}

func newCallSession(ctx context.Context, export string, call func(ctx context.Context) ([]any, error), finish func(*CallSession)) *CallSession {
	t := newTask()
	taskCtx, cancel := context.WithCancel(withTask(ctx, t))
	return &CallSession{
		id:     uuid.New(),
		export: export,
		call:   call,
		finish: finish,
		ctx:    taskCtx,
		cancel: cancel,
		task:   t,
	}
}

// ID identifies the session in logs and events.
func (cs *CallSession) ID() uuid.UUID {
	return cs.id
}

// Export returns the export being called.
func (cs *CallSession) Export() string {
	return cs.export
}

// Step advances execution. Pass nil on the first call and after a Step that
// returned an error from ctx; pass the pending operation's outcome to resume.
func (cs *CallSession) Step(ctx context.Context, yr *YieldResult) (StepResult, error) {
	cs.mu.Lock()
	switch cs.state {
	case sessionIdle:
		if yr != nil {
			cs.mu.Unlock()
			return invalidStep("first step takes no yield result")
		}
		cs.state = sessionRunning
		cs.start()
	case sessionSuspended:
		if yr == nil {
			cs.mu.Unlock()
			return invalidStep("suspended session must be resumed with a yield result")
		}
		cs.state = sessionRunning
		cs.task.resume <- *yr
	case sessionRunning:
		if yr != nil {
			cs.mu.Unlock()
			return invalidStep("session is not suspended")
		}
	case sessionDone, sessionCanceled:
		res := cs.final()
		cs.mu.Unlock()
		return res, res.Error
	}
	cs.mu.Unlock()

	select {
	case op := <-cs.task.events:
		cs.setState(sessionSuspended)
		Logger().Debug("call suspended", zap.Stringer("session", cs.id), zap.String("export", cs.export))
		return StepResult{Status: StepContinue, PendingOp: op}, nil
	case <-cs.task.done:
		cs.mu.Lock()
		if cs.state == sessionRunning {
			cs.state = sessionDone
		}
		res := cs.final()
		cs.mu.Unlock()
		return res, res.Error
	case <-ctx.Done():
		err := errors.Canceled(errors.PhaseSession, ctx.Err())
		return StepResult{Error: err}, err
	}
}

// Run drives the session to completion, executing pending operations
// inline.
func (cs *CallSession) Run(ctx context.Context) ([]any, error) {
	var yr *YieldResult
	for {
		sr, err := cs.Step(ctx, yr)
		if err != nil {
			if ctx.Err() != nil {
				_ = cs.Cancel(context.WithoutCancel(ctx))
			}
			return nil, err
		}

		switch sr.Status {
		case StepDone:
			return sr.Results, nil
		case StepContinue:
			val, opErr := sr.PendingOp.Execute(ctx)
			yr = &YieldResult{Value: val, Error: opErr}
		}
	}
}

// Cancel abandons the call. The suspended call site observes a trap, its
// host context borrow is released, and Cancel returns once the guest call
// has unwound. Canceling a finished session is a no-op.
func (cs *CallSession) Cancel(ctx context.Context) error {
	cs.mu.Lock()
	prev := cs.state
	if prev == sessionDone || prev == sessionCanceled {
		cs.mu.Unlock()
		return nil
	}
	cs.state = sessionCanceled
	cs.mu.Unlock()

	cs.cancelOnce.Do(func() {
		close(cs.task.canceled)
		cs.cancel()
	})

	if prev == sessionIdle {
		if cs.finish != nil {
			cs.finish(cs)
		}
		close(cs.task.done)
		return nil
	}

	select {
	case <-cs.task.done:
		Logger().Debug("call canceled", zap.Stringer("session", cs.id), zap.String("export", cs.export))
		return nil
	case <-ctx.Done():
		return errors.Canceled(errors.PhaseSession, ctx.Err())
	}
}

// Done is closed when the guest call has returned.
func (cs *CallSession) Done() <-chan struct{} {
	return cs.task.done
}

func (cs *CallSession) start() {
	go func() {
		defer func() {
			if cs.finish != nil {
				cs.finish(cs)
			}
			close(cs.task.done)
		}()
		defer func() {
			if r := recover(); r != nil {
				cs.task.results = nil
				cs.task.err = Abort("guest panicked: %v", r)
			}
		}()
		cs.task.results, cs.task.err = cs.call(cs.ctx)
	}()
}

func (cs *CallSession) setState(s sessionState) {
	cs.mu.Lock()
	if cs.state == sessionRunning {
		cs.state = s
	}
	cs.mu.Unlock()
}

// final must be called with mu held.
func (cs *CallSession) final() StepResult {
	if cs.state == sessionCanceled {
		return StepResult{Status: StepDone, Error: errors.Canceled(errors.PhaseSession, nil)}
	}
	return StepResult{Status: StepDone, Results: cs.task.results, Error: cs.task.err}
}

func invalidStep(detail string) (StepResult, error) {
	err := errors.InvalidInput(errors.PhaseSession, nil, detail)
	return StepResult{Error: err}, err
}
