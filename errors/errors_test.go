package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseBuild,
				Kind:   KindDuplicateRegistration,
				Key:    "demo:counter/counter@1.0.0#increment",
				Detail: "already registered",
			},
			contains: []string{"[build]", "duplicate_registration", "demo:counter/counter@1.0.0#increment", "already registered"},
		},
		{
			name:     "minimal error",
			err:      &Error{Phase: PhaseResolve, Kind: KindImportUnsatisfied},
			contains: []string{"[resolve]", "import_unsatisfied"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseDispatch,
				Kind:   KindTrap,
				Detail: "host panic",
				Cause:  stderrors.New("underlying error"),
			},
			contains: []string{"[dispatch]", "trap", "host panic", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				assert.Contains(t, msg, s)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	err := Wrap(PhaseEngine, KindEngineFailure, cause, "compile")
	assert.Same(t, cause, stderrors.Unwrap(err))
	assert.ErrorIs(t, err, cause)
}

func TestError_Is(t *testing.T) {
	err := Duplicate("store@1.0.0#get")

	assert.ErrorIs(t, err, ErrDuplicateRegistration)
	assert.ErrorIs(t, err, &Error{Phase: PhaseBuild, Kind: KindDuplicateRegistration})
	assert.NotErrorIs(t, err, &Error{Phase: PhaseResolve, Kind: KindDuplicateRegistration})
	assert.NotErrorIs(t, err, ErrImportUnsatisfied)

	wrapped := fmt.Errorf("register: %w", err)
	assert.ErrorIs(t, wrapped, ErrDuplicateRegistration)
}

func TestBuilder(t *testing.T) {
	cause := stderrors.New("boom")
	err := New(PhaseSession, KindCanceled).
		Key("demo@1.0.0#wait").
		Value(42).
		Detail("abandoned after %d steps", 3).
		Cause(cause).
		Build()

	require.Equal(t, PhaseSession, err.Phase)
	assert.Equal(t, KindCanceled, err.Kind)
	assert.Equal(t, "demo@1.0.0#wait", err.Key)
	assert.Equal(t, 42, err.Value)
	assert.Equal(t, "abandoned after 3 steps", err.Detail)
	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindTornDown, KindOf(fmt.Errorf("call: %w", TornDown("instance"))))
	assert.Equal(t, KindReentrantAccess, KindOf(Reentrant("k")))
	assert.Equal(t, Kind(""), KindOf(stderrors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name  string
		err   *Error
		phase Phase
		kind  Kind
	}{
		{"frozen", Frozen("register"), PhaseBuild, KindFrozen},
		{"invalid input", InvalidInput(PhaseParse, "x.y", "bad version"), PhaseParse, KindInvalidInput},
		{"not found", NotFound(PhaseDispatch, "export", "run"), PhaseDispatch, KindNotFound},
		{"canceled", Canceled(PhaseSession, nil), PhaseSession, KindCanceled},
		{"type mismatch", TypeMismatch(PhaseEngine, "s", "i32"), PhaseEngine, KindTypeMismatch},
		{"cycle", Cycle([]string{"a", "b", "a"}), PhaseCompose, KindDependencyCycle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.phase, tt.err.Phase)
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}
