package hosts

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/wippyai/wasm-trampoline/linker"
)

// Timer is the timer interface version.
const Timer = "demo:timer/timer@1.0.0"

// RegisterTimer adds sleep(ms), which suspends the calling session for ms
// milliseconds of clk time and returns ms. A nil clk uses the wall clock.
func RegisterTimer(b *linker.Builder[State], clk clock.Clock) error {
	if clk == nil {
		clk = clock.New()
	}

	return b.DefineAsync(Timer+"#sleep", func(ctx context.Context, c *linker.Call[State]) linker.Step {
		if len(c.Args) != 1 {
			return linker.Fail(linker.Abort("sleep takes 1 argument, got %d", len(c.Args)))
		}
		ms, ok := toInt32(c.Args[0])
		if !ok || ms < 0 {
			return linker.Fail(linker.Abort("sleep: invalid duration %v", c.Args[0]))
		}

		wait := linker.PendingFunc(func(ctx context.Context) (any, error) {
			t := clk.Timer(time.Duration(ms) * time.Millisecond)
			defer t.Stop()
			select {
			case <-t.C:
				return ms, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})
		return linker.Await(wait, func(_ context.Context, v any, err error) linker.Step {
			if err != nil {
				return linker.Fail(linker.Abort("sleep interrupted: %v", err))
			}
			c.Context.Slept += int64(ms)
			return linker.Done(v)
		})
	})
}
