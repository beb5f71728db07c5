package hosts

import (
	"context"
	"fmt"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-trampoline/engine"
	"github.com/wippyai/wasm-trampoline/errors"
)

var (
	kvGetSig = engine.Signature{
		Params:  []wit.Type{wit.String{}},
		Results: []wit.Type{engine.ResultOf(wit.String{}, wit.String{})},
	}
	kvSetSig = engine.Signature{Params: []wit.Type{wit.String{}, wit.String{}}}
	logSig   = engine.Signature{Params: []wit.Type{wit.String{}}}
	helloSig = engine.Signature{Results: []wit.Type{wit.String{}}}
	nameSig  = engine.Signature{Params: []wit.Type{wit.String{}}}
)

// Greeter returns the greeter application: a native guest that stores a
// name in the key-value store, logs it, and greets it.
//
//	set-name(name: string)
//	hello() -> string      "Hello <name>!", or "Hello World!" if unset
func Greeter() *engine.GoComponent {
	return engine.NewGoComponent().
		Import("test:kvstore/store", "get", "^2.0.0", kvGetSig).
		Import("test:kvstore/store", "set", "^2.0.0", kvSetSig).
		Import("test:logging/logger", "log", "^1.0.0", logSig).
		Export("set-name", nameSig, setName).
		Export("hello", helloSig, hello)
}

func setName(ctx context.Context, im *engine.Imports, args []any) ([]any, error) {
	if len(args) != 1 {
		return nil, errors.InvalidInput(errors.PhaseEngine, args, "set-name takes a name")
	}
	if _, err := im.Call(ctx, "test:logging/logger#log", fmt.Sprintf("setting name to %v", args[0])); err != nil {
		return nil, err
	}
	_, err := im.Call(ctx, "test:kvstore/store#set", "name", args[0])
	return nil, err
}

func hello(ctx context.Context, im *engine.Imports, _ []any) ([]any, error) {
	res, err := im.Call(ctx, "test:kvstore/store#get", "name")
	if err != nil {
		return nil, err
	}
	name := "World"
	if r, ok := res[0].(engine.Result); ok && !r.IsErr {
		name = fmt.Sprint(r.OK)
	}
	return []any{"Hello " + name + "!"}, nil
}
