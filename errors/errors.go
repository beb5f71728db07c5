package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in the link lifecycle the error occurred
type Phase string

const (
	PhaseBuild       Phase = "build"       // registration
	PhaseResolve     Phase = "resolve"     // import resolution
	PhaseInstantiate Phase = "instantiate" // binding and guest instantiation
	PhaseDispatch    Phase = "dispatch"    // call mediation
	PhaseSession     Phase = "session"     // async call sessions
	PhaseEngine      Phase = "engine"      // engine adapters
	PhaseParse       Phase = "parse"       // versions and interface paths
	PhaseConfig      Phase = "config"      // configuration loading
	PhaseCompose     Phase = "compose"     // composition graphs
)

// Kind categorizes the error
type Kind string

const (
	KindDuplicateRegistration Kind = "duplicate_registration"
	KindImportUnsatisfied     Kind = "import_unsatisfied"
	KindVersionIncompatible   Kind = "version_incompatible"
	KindReentrantAccess       Kind = "reentrant_access"
	KindHostImplementation    Kind = "host_implementation"
	KindEngineFailure         Kind = "engine_failure"
	KindTrap                  Kind = "trap"
	KindCanceled              Kind = "canceled"
	KindTornDown              Kind = "torn_down"
	KindFrozen                Kind = "frozen"
	KindInvalidInput          Kind = "invalid_input"
	KindNotFound              Kind = "not_found"
	KindTypeMismatch          Kind = "type_mismatch"
	KindDependencyCycle       Kind = "dependency_cycle"
)

// Kind sentinels. They carry no phase and therefore match errors of the same
// kind raised in any phase.
var (
	ErrDuplicateRegistration = &Error{Kind: KindDuplicateRegistration}
	ErrImportUnsatisfied     = &Error{Kind: KindImportUnsatisfied}
	ErrVersionIncompatible   = &Error{Kind: KindVersionIncompatible}
	ErrReentrantAccess       = &Error{Kind: KindReentrantAccess}
	ErrHostImplementation    = &Error{Kind: KindHostImplementation}
	ErrEngineFailure         = &Error{Kind: KindEngineFailure}
	ErrTrap                  = &Error{Kind: KindTrap}
	ErrCanceled              = &Error{Kind: KindCanceled}
	ErrTornDown              = &Error{Kind: KindTornDown}
	ErrFrozen                = &Error{Kind: KindFrozen}
	ErrInvalidInput          = &Error{Kind: KindInvalidInput}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrTypeMismatch          = &Error{Kind: KindTypeMismatch}
	ErrDependencyCycle       = &Error{Kind: KindDependencyCycle}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Key    string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Key != "" {
		b.WriteString(" ")
		b.WriteString(e.Key)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Kinds must be equal; the
// phase is compared only when the target names one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Phase == "" || e.Phase == t.Phase
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Key sets the interface key or import path the error concerns
func (b *Builder) Key(key string) *Builder {
	b.err.Key = key
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Duplicate creates a duplicate registration error
func Duplicate(key string) *Error {
	return &Error{
		Phase:  PhaseBuild,
		Kind:   KindDuplicateRegistration,
		Key:    key,
		Detail: "an implementation is already registered under this key",
	}
}

// Frozen creates an error for a mutation attempted after the build phase
func Frozen(op string) *Error {
	return &Error{
		Phase:  PhaseBuild,
		Kind:   KindFrozen,
		Detail: op + " after build",
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, value any, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Value:  value,
		Detail: detail,
	}
}

// NotFound creates a not found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Key:    name,
		Detail: what + " not found",
	}
}

// Reentrant creates a reentrant access error for key
func Reentrant(key string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindReentrantAccess,
		Key:    key,
		Detail: "host context is already borrowed by this call chain",
	}
}

// Canceled creates a cancellation error
func Canceled(phase Phase, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindCanceled,
		Cause: cause,
	}
}

// TornDown creates an error for use of a released instance
func TornDown(what string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindTornDown,
		Detail: what + " has been torn down",
	}
}

// TypeMismatch creates a value conversion error
func TypeMismatch(phase Phase, value any, want string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Value:  value,
		Detail: fmt.Sprintf("cannot use %T as %s", value, want),
	}
}

// Cycle creates an error for packages that import each other. path lists
// the package names along the cycle, starting and ending with the same one.
func Cycle(path []string) *Error {
	return &Error{
		Phase:  PhaseCompose,
		Kind:   KindDependencyCycle,
		Key:    strings.Join(path, " -> "),
		Detail: "package import cycle",
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}
