package linker

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-trampoline/errors"
)

// Registration is one host implementation bound to an interface key.
type Registration[C any] struct {
	Key   InterfaceKey
	impl  AsyncFunc[C]
	async bool
	// guest marks an export of another package in a Graph. Calls to it do
	// not borrow the host context; the callee's own host imports do.
	guest bool
}

// Async reports whether the implementation was registered as AsyncFunc.
func (r *Registration[C]) Async() bool {
	return r.async
}

// Guest reports whether the registration forwards to another package's
// export rather than to host code.
func (r *Registration[C]) Guest() bool {
	return r.guest
}

// String returns the registration key.
func (r *Registration[C]) String() string {
	return r.Key.String()
}

type ifaceID struct {
	namespace string
	name      string
}

// Registry accumulates registrations during the build phase.
type Registry[C any] struct {
	mu     sync.Mutex
	sets   map[ifaceID][]*Registration[C]
	count  int
	frozen bool
}

// NewRegistry creates an empty registry.
func NewRegistry[C any]() *Registry[C] {
	return &Registry[C]{sets: make(map[ifaceID][]*Registration[C])}
}

// Register adds reg. It fails with DuplicateRegistration if the key is
// present and with Frozen after Freeze; the registry is unchanged on error.
func (r *Registry[C]) Register(reg *Registration[C]) error {
	if reg == nil || reg.impl == nil {
		return errors.InvalidInput(errors.PhaseBuild, reg, "registration has no implementation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.Frozen("register " + reg.Key.String())
	}

	id := ifaceID{reg.Key.Namespace, reg.Key.Name}
	set := r.sets[id]
	i := sort.Search(len(set), func(i int) bool {
		return set[i].Key.Version.Compare(reg.Key.Version) >= 0
	})
	if i < len(set) && set[i].Key.Version == reg.Key.Version {
		return errors.Duplicate(reg.Key.String())
	}

	set = append(set, nil)
	copy(set[i+1:], set[i:])
	set[i] = reg
	r.sets[id] = set
	r.count++

	Logger().Debug("registered", zap.Stringer("key", reg.Key), zap.Bool("async", reg.async))
	return nil
}

// Freeze ends the build phase and returns an immutable view.
func (r *Registry[C]) Freeze() *Snapshot[C] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true

	s := &Snapshot[C]{
		sets: make(map[ifaceID][]*Registration[C], len(r.sets)),
		keys: make([]InterfaceKey, 0, r.count),
	}
	for id, set := range r.sets {
		cp := make([]*Registration[C], len(set))
		copy(cp, set)
		s.sets[id] = cp
		for _, reg := range set {
			s.keys = append(s.keys, reg.Key)
		}
	}
	sort.Slice(s.keys, func(i, j int) bool {
		a, b := s.keys[i], s.keys[j]
		if a.Namespace != b.Namespace {
			return a.Namespace < b.Namespace
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Version.Compare(b.Version) < 0
	})
	return s
}

// Snapshot is a frozen registry. It is safe for concurrent use.
type Snapshot[C any] struct {
	sets map[ifaceID][]*Registration[C]
	keys []InterfaceKey
}

// LookupExact returns the registration for key.
func (s *Snapshot[C]) LookupExact(key InterfaceKey) (*Registration[C], bool) {
	set := s.sets[ifaceID{key.Namespace, key.Name}]
	i := sort.Search(len(set), func(i int) bool {
		return set[i].Key.Version.Compare(key.Version) >= 0
	})
	if i < len(set) && set[i].Key.Version == key.Version {
		return set[i], true
	}
	return nil, false
}

// Candidates returns every registration under namespace/name in ascending
// version order. The returned slice must not be modified.
func (s *Snapshot[C]) Candidates(namespace, name string) []*Registration[C] {
	return s.sets[ifaceID{namespace, name}]
}

// Latest returns the highest registered version under namespace/name.
func (s *Snapshot[C]) Latest(namespace, name string) (*Registration[C], bool) {
	set := s.sets[ifaceID{namespace, name}]
	if len(set) == 0 {
		return nil, false
	}
	return set[len(set)-1], true
}

// Keys returns all registered keys sorted by namespace, name and version.
func (s *Snapshot[C]) Keys() []InterfaceKey {
	out := make([]InterfaceKey, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of registrations.
func (s *Snapshot[C]) Len() int {
	return len(s.keys)
}
