package engine

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-trampoline/errors"
)

// GoFunc implements an export of a GoComponent.
type GoFunc func(ctx context.Context, imports *Imports, args []any) ([]any, error)

type goExport struct {
	sig Signature
	fn  GoFunc
}

// GoComponent is a Component whose guest code is written in Go. It is used by
// embedders that compose native logic with the linker and by tests.
type GoComponent struct {
	mu          sync.RWMutex
	imports     []Import
	exports     map[string]goExport
	instantiate func(ctx context.Context) error
}

// NewGoComponent creates an empty GoComponent.
func NewGoComponent() *GoComponent {
	return &GoComponent{exports: make(map[string]goExport)}
}

// Import declares an import slot. Slots are numbered in declaration order.
func (c *GoComponent) Import(namespace, name, requirement string, sig Signature) *GoComponent {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.imports = append(c.imports, Import{
		Namespace:   namespace,
		Name:        name,
		Requirement: requirement,
		Signature:   sig,
	})
	return c
}

// Export declares an export.
func (c *GoComponent) Export(name string, sig Signature, fn GoFunc) *GoComponent {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exports[name] = goExport{sig: sig, fn: fn}
	return c
}

// OnInstantiate installs a hook run before each instantiation. A non-nil
// error aborts instantiation and is returned as is.
func (c *GoComponent) OnInstantiate(fn func(ctx context.Context) error) *GoComponent {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instantiate = fn
	return c
}

// Imports implements Component.
func (c *GoComponent) Imports() []Import {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Import, len(c.imports))
	copy(out, c.imports)
	return out
}

// Exports implements Component.
func (c *GoComponent) Exports() []Export {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Export, 0, len(c.exports))
	for name, e := range c.exports {
		out = append(out, Export{Name: name, Signature: e.sig})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Instantiate implements Component.
func (c *GoComponent) Instantiate(ctx context.Context, callbacks []Callback) (Guest, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(callbacks) != len(c.imports) {
		return nil, errors.New(errors.PhaseEngine, errors.KindEngineFailure).
			Detail("got %d callbacks for %d imports", len(callbacks), len(c.imports)).
			Build()
	}
	if c.instantiate != nil {
		if err := c.instantiate(ctx); err != nil {
			return nil, err
		}
	}

	imports := &Imports{
		slots:     make([]Import, len(c.imports)),
		callbacks: make([]Callback, len(callbacks)),
		index:     make(map[string]int, len(c.imports)),
	}
	copy(imports.slots, c.imports)
	copy(imports.callbacks, callbacks)
	for i, imp := range c.imports {
		imports.index[imp.Namespace+"#"+imp.Name] = i
	}

	exports := make(map[string]goExport, len(c.exports))
	for k, v := range c.exports {
		exports[k] = v
	}

	Logger().Debug("go component instantiated",
		zap.Int("imports", len(imports.slots)),
		zap.Int("exports", len(exports)))

	return &goGuest{imports: imports, exports: exports}, nil
}

// Imports gives a Go guest access to its bound import slots.
type Imports struct {
	slots     []Import
	callbacks []Callback
	index     map[string]int
}

// Call invokes the import declared as namespace#name.
func (im *Imports) Call(ctx context.Context, path string, args ...any) ([]any, error) {
	i, ok := im.index[path]
	if !ok {
		return nil, errors.NotFound(errors.PhaseEngine, "import", path)
	}
	return im.CallSlot(ctx, i, args...)
}

// CallSlot invokes the import at slot index i.
func (im *Imports) CallSlot(ctx context.Context, i int, args ...any) ([]any, error) {
	if i < 0 || i >= len(im.callbacks) {
		return nil, errors.InvalidInput(errors.PhaseEngine, i, "import slot out of range")
	}
	cb := im.callbacks[i]
	if cb == nil {
		return nil, errors.New(errors.PhaseEngine, errors.KindImportUnsatisfied).
			Key(im.slots[i].Path()).
			Detail("import slot is not bound").
			Build()
	}
	return cb(ctx, args)
}

type goGuest struct {
	mu      sync.Mutex
	imports *Imports
	exports map[string]goExport
	closed  bool
}

func (g *goGuest) Call(ctx context.Context, export string, args []any) ([]any, error) {
	g.mu.Lock()
	closed := g.closed
	e, ok := g.exports[export]
	g.mu.Unlock()

	if closed {
		return nil, errors.TornDown("guest")
	}
	if !ok {
		return nil, errors.NotFound(errors.PhaseEngine, "export", export)
	}
	return e.fn(ctx, g.imports, args)
}

func (g *goGuest) Close(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}
