package linker

import (
	"github.com/benbjohnson/clock"
)

// DefaultResolveCacheSize bounds the per-Linker resolution cache.
const DefaultResolveCacheSize = 256

// Options configures linker behavior
type Options struct {
	// Observer receives instantiation and call events. Nil disables them.
	Observer Observer

	// Filter decides per import whether the linker mediates it.
	Filter ImportFilter

	// Clock times calls for the Observer.
	Clock clock.Clock

	// ResolveCacheSize bounds memoized resolutions. 0 disables the cache.
	ResolveCacheSize int

	// SemverMatching enables compatible-range resolution. When false, every
	// versioned requirement must match exactly.
	SemverMatching bool
}

// DefaultOptions returns the default linker options
func DefaultOptions() Options {
	return Options{
		Clock:            clock.New(),
		ResolveCacheSize: DefaultResolveCacheSize,
		SemverMatching:   true,
	}
}
