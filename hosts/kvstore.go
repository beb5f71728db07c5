package hosts

import (
	"context"

	"go.uber.org/multierr"

	"github.com/wippyai/wasm-trampoline/linker"
)

// KVStore is the key-value store interface version.
const KVStore = "test:kvstore/store@2.1.6"

// ErrNotFound is the error payload of a get for a missing key.
const ErrNotFound = "not found"

// RegisterKVStore adds the key-value store. A get for a missing key yields
// an err("not found") result where the import declares result<T, E>, and a
// trap otherwise.
func RegisterKVStore(b *linker.Builder[State]) error {
	return multierr.Combine(
		b.Define(KVStore+"#get", kvGet),
		b.Define(KVStore+"#set", kvSet),
	)
}

func kvGet(_ context.Context, c *linker.Call[State]) ([]any, error) {
	if len(c.Args) != 1 {
		return nil, linker.Abort("get takes 1 argument, got %d", len(c.Args))
	}
	v, ok := c.Context.KV[keyOf(c.Args[0])]
	if !ok {
		return nil, linker.ErrorResult(ErrNotFound)
	}
	return []any{v}, nil
}

func kvSet(_ context.Context, c *linker.Call[State]) ([]any, error) {
	if len(c.Args) != 2 {
		return nil, linker.Abort("set takes 2 arguments, got %d", len(c.Args))
	}
	if c.Context.KV == nil {
		c.Context.KV = make(map[string]any)
	}
	c.Context.KV[keyOf(c.Args[0])] = c.Args[1]
	return nil, nil
}
