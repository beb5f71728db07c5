// Package hosts provides the built-in host implementations used by the
// trampoline CLI and examples, together with the greeter application, a
// native guest that exercises them.
//
// All hosts share one host context type, State. Register adds them to a
// linker.Builder under these interface keys:
//
//	demo:counter/counter@1.0.0   increment, get
//	demo:counter/counter@1.1.0   increment, get, add
//	test:kvstore/store@2.1.6     get, set
//	test:logging/logger@1.1.1    log
//	demo:timer/timer@1.0.0       sleep (suspends)
//
// Values cross the boundary as plain Go values, so the same implementations
// serve native guests (strings) and core wasm guests (i32 keys and values).
package hosts
