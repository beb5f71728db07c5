package hosts

import (
	"context"

	"go.uber.org/multierr"

	"github.com/wippyai/wasm-trampoline/linker"
)

// Counter interface versions.
const (
	CounterV1  = "demo:counter/counter@1.0.0"
	CounterV11 = "demo:counter/counter@1.1.0"
)

// RegisterCounter adds counter 1.0.0 (increment, get) and 1.1.0, which
// adds add(n).
func RegisterCounter(b *linker.Builder[State]) error {
	return multierr.Combine(
		b.Define(CounterV1+"#increment", increment),
		b.Define(CounterV1+"#get", get),
		b.Define(CounterV11+"#increment", increment),
		b.Define(CounterV11+"#get", get),
		b.Define(CounterV11+"#add", add),
	)
}

func increment(_ context.Context, c *linker.Call[State]) ([]any, error) {
	c.Context.Count++
	return []any{c.Context.Count}, nil
}

func get(_ context.Context, c *linker.Call[State]) ([]any, error) {
	return []any{c.Context.Count}, nil
}

func add(_ context.Context, c *linker.Call[State]) ([]any, error) {
	if len(c.Args) != 1 {
		return nil, linker.Abort("add takes 1 argument, got %d", len(c.Args))
	}
	n, ok := toInt32(c.Args[0])
	if !ok {
		return nil, linker.Abort("add: %T is not an integer", c.Args[0])
	}
	c.Context.Count += n
	return []any{c.Context.Count}, nil
}
