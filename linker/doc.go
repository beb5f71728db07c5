// Package linker binds component imports to versioned host implementations
// and mediates every call across the host boundary.
//
// # Main Types
//
//   - Builder: accumulates registrations keyed by (namespace, name, version)
//   - Linker: frozen registrations; resolves imports and instantiates
//   - Instance: an instantiated component with its host context
//   - CallSession: one asynchronous export call, advanced step by step
//   - Driver: runs many CallSessions cooperatively
//
// # Resolution
//
// Import requirements use caret semantics: "^1.2.0" (or "1.2.0") matches the
// same major at or above 1.2.0, "=1.2.0" matches exactly and an unversioned
// import matches the highest registered version. The highest matching
// version wins. Resolution is eager: an instance is either fully bound or
// not created.
//
// # Host Context
//
// Each Instance owns one host context value of type C, wrapped in a Cell.
// At most one call holds it at a time. A call that re-enters the same
// instance while its caller still holds the context fails with a trap
// wrapping errors.ErrReentrantAccess instead of deadlocking.
//
// # Outcomes
//
// An implementation returning an error produces a typed error result when
// the import's last result is result<T, E>, and a trap otherwise. Errors
// built with Abort, and panics, always trap.
//
// # Thread Safety
//
// Builder, Linker and Instance are safe for concurrent use.
// CallSession is driven by one goroutine at a time.
//
// # Example
//
//	b := linker.NewBuilderWithDefaults[State]()
//	b.Define("demo:counter/counter@1.0.0#increment", func(ctx context.Context, c *linker.Call[State]) ([]any, error) {
//		c.Context.Count++
//		return []any{c.Context.Count}, nil
//	})
//	l := b.Build()
//	inst, _ := l.Instantiate(ctx, component, &State{})
//	defer inst.Close(ctx)
//	results, _ := inst.Invoke(ctx, "increment")
package linker
