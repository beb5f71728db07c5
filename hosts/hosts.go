package hosts

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-trampoline/linker"
)

// Options configures Register.
type Options struct {
	// Logger receives guest log lines. Nil discards them.
	Logger *zap.Logger
	// Clock drives timer.sleep. Nil uses the wall clock.
	Clock clock.Clock
}

// Register adds every built-in host to b.
func Register(b *linker.Builder[State], opts Options) error {
	return multierr.Combine(
		RegisterCounter(b),
		RegisterKVStore(b),
		RegisterLogger(b, opts.Logger),
		RegisterTimer(b, opts.Clock),
	)
}

// NewLinker builds a Linker with every built-in host registered.
func NewLinker(lopts linker.Options, opts Options) (*linker.Linker[State], error) {
	b := linker.NewBuilder[State](lopts)
	if err := Register(b, opts); err != nil {
		return nil, err
	}
	return b.Build(), nil
}
