// Package engine abstracts the component execution engine the linker drives.
//
// The linker never executes guest code itself. It asks a Component which
// import slots it declares, binds one Callback per slot, and receives a Guest
// whose exports it can call:
//
//	Component.Imports()            - declared slots with version requirements
//	Component.Instantiate(ctx, cb) - bind callbacks[i] to Imports()[i]
//	Guest.Call(ctx, export, args)  - run an export
//
// Two implementations are provided:
//
//	GoComponent    - guests written in Go, used for embedding and testing
//	WazeroEngine   - core WebAssembly modules executed by wazero
//
// # Import Naming
//
// Core modules declare imports with the module name "namespace@requirement"
// and the field name of the function:
//
//	(import "demo:counter/counter@^1.0.0" "increment" (func (result i32)))
//
// A module name without "@" declares an unconstrained requirement.
//
// # Value Mapping
//
// Core value types map to WIT primitives:
//
//	Core Type   WIT Type   Go Value
//	───────────────────────────────
//	i32         s32        int32
//	i64         s64        int64
//	f32         f32        float32
//	f64         f64        float64
//
// Host callbacks may return any Go integer or float type; values are
// converted to the declared core type on the way back into the guest.
//
// # Isolation
//
// WazeroEngine compiles a module once into a shared compilation cache and
// creates a fresh wazero runtime for every instantiation, so guest state is
// never shared between sessions.
//
// # Thread Safety
//
// WazeroEngine, WazeroComponent and GoComponent are safe for concurrent use.
// A Guest is driven by one call at a time.
package engine
