// Package trampoline links sandboxed guests to versioned host interfaces.
//
// A guest declares imports as "namespace@requirement#name". The linker
// resolves each one against a frozen registry of host implementations,
// picking the highest registered version that satisfies the requirement,
// and binds a dispatcher to every import slot. Calls from the guest borrow
// the instance's host context for their duration, translate the
// implementation's outcome into results, typed errors or traps, and may
// suspend on asynchronous work driven from outside the guest.
//
// # Architecture Overview
//
//	trampoline/
//	├── linker/      Registry, resolver, linker, instances, dispatch, sessions
//	├── engine/      Guest engines: wazero core modules and native Go guests
//	├── hosts/       Built-in host interfaces (counter, kvstore, logger, timer)
//	├── config/      CLI configuration (viper, validator)
//	├── metrics/     Prometheus observer for linker events
//	├── errors/      Structured error types for debugging
//	└── cmd/         The trampoline CLI
//
// # Quick Start
//
// Register host functions and instantiate a module:
//
//	b := linker.NewBuilderWithDefaults[State]()
//	b.Define("demo:counter/counter@1.0.0#increment",
//	    func(ctx context.Context, c *linker.Call[State]) ([]any, error) {
//	        c.Context.Count++
//	        return []any{c.Context.Count}, nil
//	    })
//	l := b.Build()
//
//	eng, _ := engine.NewWazeroEngine(ctx)
//	defer eng.Close(ctx)
//
//	comp, err := eng.LoadModule(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := l.Instantiate(ctx, comp, &State{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	result, err := inst.Invoke(ctx, "run")
//
// # Asynchronous Calls
//
// Implementations registered with DefineAsync return a Step that may await
// a PendingOp. StartCall returns a CallSession that yields those operations
// to the caller; a Driver executes them concurrently and resumes sessions
// in completion order. Invoke drives a session inline.
//
// # Thread Safety
//
// Linker is immutable and safe for concurrent use. Instance methods are safe
// for concurrent use; calls into one instance serialize on its host context.
package trampoline
