package linker

import (
	"fmt"

	"github.com/wippyai/wasm-trampoline/errors"
)

// Trap aborts the guest call that reached a host implementation. It is
// distinct from a typed error result, which the guest receives as a value.
type Trap struct {
	Key    string
	Reason string
	Cause  error
}

func (t *Trap) Error() string {
	msg := "trap"
	if t.Key != "" {
		msg += " in " + t.Key
	}
	if t.Reason != "" {
		msg += ": " + t.Reason
	}
	if t.Cause != nil {
		msg += ": " + t.Cause.Error()
	}
	return msg
}

func (t *Trap) Unwrap() error {
	return t.Cause
}

// Is matches errors.ErrTrap.
func (t *Trap) Is(target error) bool {
	e, ok := target.(*errors.Error)
	return ok && e.Kind == errors.KindTrap && (e.Phase == "" || e.Phase == errors.PhaseDispatch)
}

// Abort returns an error that makes the dispatcher trap instead of
// delivering a typed error result. Implementations use it for contract
// violations.
func Abort(format string, args ...any) error {
	return &Trap{Reason: fmt.Sprintf(format, args...)}
}
