package engine

import (
	"context"
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"
)

// Callback is the native function bound to one import slot.
type Callback func(ctx context.Context, args []any) ([]any, error)

// Signature describes the call shape of an import or export.
type Signature struct {
	Params  []wit.Type
	Results []wit.Type
}

// ResultType returns the result<T, E> definition when the last result of the
// signature is one. Implementations bound to such a slot report domain
// failures as Result values instead of traps.
func (s Signature) ResultType() (*wit.Result, bool) {
	if len(s.Results) == 0 {
		return nil, false
	}
	td, ok := s.Results[len(s.Results)-1].(*wit.TypeDef)
	if !ok {
		return nil, false
	}
	r, ok := td.Kind.(*wit.Result)
	return r, ok
}

// String renders the signature as "(s32, string) -> result<u32, string>".
func (s Signature) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(TypeName(p))
	}
	b.WriteByte(')')
	switch len(s.Results) {
	case 0:
	case 1:
		b.WriteString(" -> ")
		b.WriteString(TypeName(s.Results[0]))
	default:
		b.WriteString(" -> (")
		for i, r := range s.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(TypeName(r))
		}
		b.WriteByte(')')
	}
	return b.String()
}

// Import is one import slot declared by a component.
type Import struct {
	Namespace string
	Name      string
	// Requirement is the raw version requirement ("^1.2.0", "=1.0.0", "").
	Requirement string
	Signature   Signature
}

// Path returns "namespace@requirement#name", or "namespace#name" when the
// import is unconstrained.
func (i Import) Path() string {
	if i.Requirement == "" {
		return i.Namespace + "#" + i.Name
	}
	return i.Namespace + "@" + i.Requirement + "#" + i.Name
}

// Export is one callable export of a component.
type Export struct {
	Name      string
	Signature Signature
}

// Component is a compiled guest that has not been instantiated yet.
type Component interface {
	// Imports lists the declared import slots in slot order.
	Imports() []Import
	// Exports lists the callable exports.
	Exports() []Export
	// Instantiate binds callbacks[i] to Imports()[i] and starts a guest.
	// A nil callback leaves the slot unbound.
	Instantiate(ctx context.Context, callbacks []Callback) (Guest, error)
}

// Guest is an instantiated component.
type Guest interface {
	Call(ctx context.Context, export string, args []any) ([]any, error)
	Close(ctx context.Context) error
}

// Result is the Go value of a WIT result<T, E>.
type Result struct {
	OK    any
	Err   any
	IsErr bool
}

// String renders "ok(v)" or "err(v)".
func (r Result) String() string {
	if r.IsErr {
		return fmt.Sprintf("err(%v)", r.Err)
	}
	if r.OK == nil {
		return "ok"
	}
	return fmt.Sprintf("ok(%v)", r.OK)
}

// TypeName renders a WIT type for diagnostics.
func TypeName(t wit.Type) string {
	switch v := t.(type) {
	case nil:
		return "_"
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		switch k := v.Kind.(type) {
		case *wit.Result:
			return "result<" + TypeName(k.OK) + ", " + TypeName(k.Err) + ">"
		case *wit.Option:
			return "option<" + TypeName(k.Type) + ">"
		case *wit.List:
			return "list<" + TypeName(k.Type) + ">"
		}
		return "typedef"
	default:
		return fmt.Sprintf("%T", t)
	}
}

// ResultOf returns a result<ok, err> type definition.
func ResultOf(ok, err wit.Type) *wit.TypeDef {
	return &wit.TypeDef{Kind: &wit.Result{OK: ok, Err: err}}
}
