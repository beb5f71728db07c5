package linker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-trampoline/engine"
	"github.com/wippyai/wasm-trampoline/errors"
)

// Builder accumulates registrations. Build consumes it into a Linker.
// Thread-safe.
type Builder[C any] struct {
	registry   *Registry[C]
	regs       []*Registration[C]
	middleware []Middleware[C]
	options    Options
	mu         sync.Mutex
	built      bool
}

// NewBuilder creates a Builder with the given options.
func NewBuilder[C any](opts Options) *Builder[C] {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Builder[C]{
		registry: NewRegistry[C](),
		options:  opts,
	}
}

// NewBuilderWithDefaults creates a Builder with default options.
func NewBuilderWithDefaults[C any]() *Builder[C] {
	return NewBuilder[C](DefaultOptions())
}

// Register adds a synchronous implementation under key.
func (b *Builder[C]) Register(key InterfaceKey, fn Func[C]) error {
	if fn == nil {
		return errors.InvalidInput(errors.PhaseBuild, key.String(), "nil implementation")
	}
	return b.add(&Registration[C]{Key: key, impl: fn.toAsync()})
}

// RegisterAsync adds an implementation that may suspend.
func (b *Builder[C]) RegisterAsync(key InterfaceKey, fn AsyncFunc[C]) error {
	if fn == nil {
		return errors.InvalidInput(errors.PhaseBuild, key.String(), "nil implementation")
	}
	return b.add(&Registration[C]{Key: key, impl: fn, async: true})
}

// Define registers fn at a full path.
// Define uses path format: "demo:counter/counter@1.0.0#increment"
func (b *Builder[C]) Define(path string, fn Func[C]) error {
	key, err := ParseKey(path)
	if err != nil {
		return fmt.Errorf("linker: define %q: %w", path, err)
	}
	return b.Register(key, fn)
}

// DefineAsync registers an async fn at a full path.
func (b *Builder[C]) DefineAsync(path string, fn AsyncFunc[C]) error {
	key, err := ParseKey(path)
	if err != nil {
		return fmt.Errorf("linker: define %q: %w", path, err)
	}
	return b.RegisterAsync(key, fn)
}

// Use appends middleware applied to every registration at Build. The first
// middleware is the outermost.
func (b *Builder[C]) Use(mw ...Middleware[C]) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built {
		return errors.Frozen("use middleware")
	}
	b.middleware = append(b.middleware, mw...)
	return nil
}

func (b *Builder[C]) add(reg *Registration[C]) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built {
		return errors.Frozen("register " + reg.Key.String())
	}
	if err := b.registry.Register(reg); err != nil {
		return err
	}
	b.regs = append(b.regs, reg)
	return nil
}

// Build freezes the registrations into a Linker. Further use of the
// Builder fails with Frozen.
func (b *Builder[C]) Build() *Linker[C] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.built {
		for _, reg := range b.regs {
			for i := len(b.middleware) - 1; i >= 0; i-- {
				reg.impl = b.middleware[i](reg.Key, reg.impl)
			}
		}
		b.built = true
	}

	l := &Linker[C]{
		snapshot: b.registry.Freeze(),
		options:  b.options,
	}
	if b.options.ResolveCacheSize > 0 {
		// only fails for a non-positive size
		l.cache, _ = lru.New[string, resolution[C]](b.options.ResolveCacheSize)
	}

	Logger().Debug("linker built", zap.Int("registrations", l.snapshot.Len()))
	return l
}

type resolution[C any] struct {
	reg *Registration[C]
	err error
}

// Linker instantiates components against a frozen registry. Safe for
// concurrent use.
type Linker[C any] struct {
	snapshot *Snapshot[C]
	cache    *lru.Cache[string, resolution[C]]
	options  Options
}

// Registry returns the frozen registry.
func (l *Linker[C]) Registry() *Snapshot[C] {
	return l.snapshot
}

// Options returns the configuration.
func (l *Linker[C]) Options() Options {
	return l.options
}

// Resolve binds one request, honouring SemverMatching. Results are
// memoized since resolution is pure over the frozen registry.
func (l *Linker[C]) Resolve(req ImportRequest) (*Registration[C], error) {
	if !l.options.SemverMatching {
		req.Requirement = req.Requirement.Strict()
	}
	if l.cache == nil {
		return Resolve(req, l.snapshot)
	}

	k := req.String()
	if r, ok := l.cache.Get(k); ok {
		return r.reg, r.err
	}
	reg, err := Resolve(req, l.snapshot)
	l.cache.Add(k, resolution[C]{reg: reg, err: err})
	return reg, err
}

// bindSlot resolves import slot i, honouring the import filter.
func (l *Linker[C]) bindSlot(i int, imp engine.Import) (*Binding[C], error) {
	req, err := NewImportRequest(imp.Namespace, imp.Name, imp.Requirement)
	if err != nil {
		return nil, slotError(errors.PhaseParse, i, imp.Path(), "invalid import", err)
	}

	b := &Binding[C]{Slot: i, Import: req, Signature: imp.Signature}
	if l.options.Filter != nil && l.options.Filter.Rule(req) == Skip {
		Logger().Debug("import skipped", zap.Stringer("import", req))
		return b, nil
	}

	reg, err := l.Resolve(req)
	if err != nil {
		return nil, slotError(errors.PhaseResolve, i, req.String(), "", err)
	}
	b.Registration = reg
	return b, nil
}

// PlanEntry is the dry-run resolution of one import slot.
type PlanEntry[C any] struct {
	Import  engine.Import
	Binding *Binding[C]
	Err     error
}

// Plan is a dry-run of Instantiate's resolution step.
type Plan[C any] struct {
	Entries []PlanEntry[C]
}

// Err combines the errors of every unresolved entry.
func (p *Plan[C]) Err() error {
	var err error
	for _, e := range p.Entries {
		err = multierr.Append(err, e.Err)
	}
	return err
}

// Plan resolves every import of comp without instantiating it. Unlike
// Instantiate it reports all failures, not only the first.
func (l *Linker[C]) Plan(comp engine.Component) *Plan[C] {
	imports := comp.Imports()
	p := &Plan[C]{Entries: make([]PlanEntry[C], len(imports))}
	for i, imp := range imports {
		b, err := l.bindSlot(i, imp)
		p.Entries[i] = PlanEntry[C]{Import: imp, Binding: b, Err: err}
	}
	return p
}

// Instantiate resolves every import of comp, binds the dispatcher to each
// slot and instantiates the guest with hostContext as its session state.
// A nil hostContext starts from the zero value of C.
//
// The first unresolved import fails the whole instantiation with an
// *InstantiationError; engine failures are returned unchanged.
func (l *Linker[C]) Instantiate(ctx context.Context, comp engine.Component, hostContext *C) (*Instance[C], error) {
	if hostContext == nil {
		hostContext = new(C)
	}
	return l.instantiate(ctx, comp, NewCell(hostContext))
}

// instantiate binds comp to cell. Instances sharing a cell share one borrow.
func (l *Linker[C]) instantiate(ctx context.Context, comp engine.Component, cell *Cell[C]) (*Instance[C], error) {
	start := l.options.Clock.Now()
	id := uuid.New()

	imports := comp.Imports()
	bindings := make([]*Binding[C], len(imports))
	skipped := 0
	for i, imp := range imports {
		b, err := l.bindSlot(i, imp)
		if err != nil {
			Logger().Debug("instantiation failed", zap.Stringer("session", id), zap.Error(err))
			l.observeInstantiate(id, len(imports), skipped, start, err)
			return nil, err
		}
		if b.Skipped() {
			skipped++
		}
		bindings[i] = b
	}

	inst := newInstance(id, cell, bindings, comp.Exports())

	d := &dispatcher[C]{
		session:  id,
		cell:     cell,
		bindings: bindings,
		observer: l.options.Observer,
		clock:    l.options.Clock,
	}
	callbacks := make([]engine.Callback, len(bindings))
	for i, b := range bindings {
		if !b.Skipped() {
			callbacks[i] = d.callback(i)
		}
	}

	guest, err := comp.Instantiate(ctx, callbacks)
	if err != nil {
		l.observeInstantiate(id, len(imports), skipped, start, err)
		return nil, err
	}
	inst.guest = guest

	Logger().Debug("instantiated",
		zap.Stringer("session", id),
		zap.Int("imports", len(imports)),
		zap.Int("skipped", skipped))
	l.observeInstantiate(id, len(imports), skipped, start, nil)
	return inst, nil
}

func (l *Linker[C]) observeInstantiate(id uuid.UUID, imports, skipped int, start time.Time, err error) {
	if l.options.Observer == nil {
		return
	}
	l.options.Observer.OnInstantiate(InstantiateEvent{
		Session:  id,
		Imports:  imports,
		Skipped:  skipped,
		Err:      err,
		Duration: l.options.Clock.Since(start),
	})
}
