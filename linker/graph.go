package linker

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-trampoline/engine"
	"github.com/wippyai/wasm-trampoline/errors"
)

// PackageID identifies a package added to a Graph.
type PackageID int

// GuestCall is one call from a package into an interface exported by
// another package, as seen by that package's Trampoline.
type GuestCall struct {
	// Key is the callee, e.g. "test:kvstore/store@2.1.6#get".
	Key InterfaceKey
	// Package and Interface split Key.Namespace at its last '/'.
	Package   string
	Interface string
	Args      []any
	// Context is the trampoline context configured for Interface.
	Context any
	Frame   *CallFrame

	forward func(ctx context.Context, args []any) ([]any, error)
}

// Forward runs the callee export with args.
func (g *GuestCall) Forward(ctx context.Context, args ...any) ([]any, error) {
	return g.forward(ctx, args)
}

// Trampoline intercepts every call into a package. It may inspect or
// rewrite the arguments and results, or answer without forwarding.
type Trampoline func(ctx context.Context, call *GuestCall) ([]any, error)

// Passthrough forwards every call unchanged.
func Passthrough(ctx context.Context, call *GuestCall) ([]any, error) {
	return call.Forward(ctx, call.Args...)
}

// PackageTrampoline is the Trampoline of one package together with the
// context it is handed: a default, overridable per exported interface.
type PackageTrampoline struct {
	trampoline Trampoline

	mu             sync.RWMutex
	defaultContext any
	overrides      map[string]any
}

// NewPackageTrampoline creates a PackageTrampoline. A nil t forwards every
// call unchanged.
func NewPackageTrampoline(t Trampoline, defaultContext any) *PackageTrampoline {
	if t == nil {
		t = Passthrough
	}
	return &PackageTrampoline{
		trampoline:     t,
		defaultContext: defaultContext,
		overrides:      make(map[string]any),
	}
}

// Trampoline returns the intercepting function.
func (p *PackageTrampoline) Trampoline() Trampoline {
	return p.trampoline
}

// DefaultContext returns the context of interfaces without an override.
func (p *PackageTrampoline) DefaultContext() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.defaultContext
}

// SetDefaultContext replaces the default context.
func (p *PackageTrampoline) SetDefaultContext(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaultContext = v
}

// InterfaceContext returns the override for iface, if any.
func (p *PackageTrampoline) InterfaceContext(iface string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.overrides[iface]
	return v, ok
}

// SetInterfaceContext overrides the context handed to calls into iface.
func (p *PackageTrampoline) SetInterfaceContext(iface string, v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overrides[iface] = v
}

// RemoveInterfaceContext drops the override for iface.
func (p *PackageTrampoline) RemoveInterfaceContext(iface string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.overrides, iface)
}

func (p *PackageTrampoline) contextFor(iface string) any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.overrides[iface]; ok {
		return v
	}
	return p.defaultContext
}

// packageExport is a component export named "interface#func".
type packageExport struct {
	iface  string
	fn     string
	export string
}

type graphPackage struct {
	id         PackageID
	name       string
	version    Version
	comp       engine.Component
	trampoline *PackageTrampoline
	exports    []packageExport
}

func (p *graphPackage) String() string {
	return p.name + "@" + p.version.String()
}

func (p *graphPackage) key(e packageExport) InterfaceKey {
	return InterfaceKey{Namespace: p.name + "/" + e.iface, Name: e.fn, Version: p.version}
}

// Graph composes packages. Each package is a component identified by a
// name and version; its exports named "interface#func" are offered to the
// other packages as "name/interface@version#func". Instantiating a package
// first instantiates, in dependency order, every package it imports from,
// and binds its imports to their exports.
//
// Imports naming a package absent from the graph are left to the host
// registrations installed with Host. All instances of one composition share
// a single host context.
type Graph[C any] struct {
	options Options

	mu         sync.Mutex
	hosts      []func(b *Builder[C]) error
	middleware []Middleware[C]
	packages   []*graphPackage
	versions   map[string]map[Version]PackageID
}

// NewGraph creates an empty Graph. Every package is linked with opts.
func NewGraph[C any](opts Options) *Graph[C] {
	return &Graph[C]{
		options:  opts,
		versions: make(map[string]map[Version]PackageID),
	}
}

// Host adds a function that registers host implementations. It runs once
// per package linked, against a fresh Builder.
func (g *Graph[C]) Host(register func(b *Builder[C]) error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hosts = append(g.hosts, register)
}

// Use appends middleware applied to host and package registrations alike.
func (g *Graph[C]) Use(mw ...Middleware[C]) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.middleware = append(g.middleware, mw...)
}

// AddPackage adds comp as package name at version. A nil trampoline
// forwards calls unchanged. Packages may be added in any order; their
// dependencies are resolved when one is instantiated.
func (g *Graph[C]) AddPackage(name, version string, comp engine.Component, t *PackageTrampoline) (PackageID, error) {
	if name == "" || strings.ContainsAny(name, "@#/") {
		return 0, errors.InvalidInput(errors.PhaseCompose, name, "package name must be non-empty and contain no '@', '#' or '/'")
	}
	v, ok := ParseVersion(version)
	if !ok {
		return 0, errors.InvalidInput(errors.PhaseCompose, version, "invalid package version")
	}
	if comp == nil {
		return 0, errors.InvalidInput(errors.PhaseCompose, name, "nil component")
	}
	if t == nil {
		t = NewPackageTrampoline(nil, nil)
	}

	var exports []packageExport
	for _, e := range comp.Exports() {
		iface, fn, ok := strings.Cut(e.Name, "#")
		if !ok {
			continue
		}
		if iface == "" || fn == "" {
			return 0, errors.InvalidInput(errors.PhaseCompose, e.Name, "export must be named interface#func")
		}
		exports = append(exports, packageExport{iface: iface, fn: fn, export: e.Name})
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	set := g.versions[name]
	if _, dup := set[v]; dup {
		return 0, errors.New(errors.PhaseCompose, errors.KindDuplicateRegistration).
			Key(name + "@" + v.String()).
			Detail("package already added").
			Build()
	}
	if set == nil {
		set = make(map[Version]PackageID)
		g.versions[name] = set
	}

	id := PackageID(len(g.packages))
	set[v] = id
	g.packages = append(g.packages, &graphPackage{
		id:         id,
		name:       name,
		version:    v,
		comp:       comp,
		trampoline: t,
		exports:    exports,
	})

	Logger().Debug("package added",
		zap.String("package", name),
		zap.Stringer("version", v),
		zap.Int("exports", len(exports)))
	return id, nil
}

// Lookup returns the package name at the highest version matching
// requirement, chosen the way imports are resolved.
func (g *Graph[C]) Lookup(name, requirement string) (PackageID, error) {
	req, err := ParseRequirement(requirement)
	if err != nil {
		return 0, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	best, found := PackageID(0), false
	for v, id := range g.versions[name] {
		if !req.Matches(v) {
			continue
		}
		if !found || v.Compare(g.packages[best].version) > 0 {
			best, found = id, true
		}
	}
	if !found {
		return 0, errors.NotFound(errors.PhaseCompose, "package", name+"@"+req.String())
	}
	return best, nil
}

// graphView is a consistent copy of the graph taken for one instantiation.
type graphView[C any] struct {
	options    Options
	hosts      []func(b *Builder[C]) error
	middleware []Middleware[C]
	packages   []*graphPackage
	versions   map[string]map[Version]PackageID
	index      *Snapshot[C]
}

func (g *Graph[C]) view() (*graphView[C], error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	v := &graphView[C]{
		options:    g.options,
		hosts:      append([]func(b *Builder[C]) error(nil), g.hosts...),
		middleware: append([]Middleware[C](nil), g.middleware...),
		packages:   append([]*graphPackage(nil), g.packages...),
		versions:   make(map[string]map[Version]PackageID, len(g.versions)),
	}
	for name, set := range g.versions {
		cp := make(map[Version]PackageID, len(set))
		for ver, id := range set {
			cp[ver] = id
		}
		v.versions[name] = cp
	}

	// the index answers "which package version serves this import" with
	// the same resolution rules as host registrations
	reg := NewRegistry[C]()
	for _, p := range v.packages {
		for _, e := range p.exports {
			err := reg.Register(&Registration[C]{Key: p.key(e), impl: notInstantiated[C], guest: true})
			if err != nil {
				return nil, err
			}
		}
	}
	v.index = reg.Freeze()
	return v, nil
}

func notInstantiated[C any](context.Context, *Call[C]) Step {
	return Fail(errors.New(errors.PhaseCompose, errors.KindImportUnsatisfied).
		Detail("package is not instantiated").
		Build())
}

// dependencies resolves the packages p imports from, in import order.
func (v *graphView[C]) dependencies(p *graphPackage) ([]PackageID, error) {
	var deps []PackageID
	seen := make(map[PackageID]bool)
	for _, imp := range p.comp.Imports() {
		i := strings.LastIndexByte(imp.Namespace, '/')
		if i < 0 {
			continue
		}
		set, ok := v.versions[imp.Namespace[:i]]
		if !ok {
			continue
		}

		req, err := NewImportRequest(imp.Namespace, imp.Name, imp.Requirement)
		if err != nil {
			return nil, fmt.Errorf("linker: package %s: %w", p, err)
		}
		if !v.options.SemverMatching {
			req.Requirement = req.Requirement.Strict()
		}
		reg, err := Resolve(req, v.index)
		if err != nil {
			return nil, fmt.Errorf("linker: package %s: %w", p, err)
		}

		id := set[reg.Key.Version]
		if !seen[id] {
			seen[id] = true
			deps = append(deps, id)
		}
	}
	return deps, nil
}

// loadOrder returns root and its transitive dependencies, every package
// after the packages it imports from.
func (v *graphView[C]) loadOrder(root PackageID) ([]PackageID, map[PackageID][]PackageID, error) {
	const (
		visiting = 1
		done     = 2
	)
	var (
		order []PackageID
		stack []PackageID
		state = make(map[PackageID]int)
		deps  = make(map[PackageID][]PackageID)
	)

	var visit func(id PackageID) error
	visit = func(id PackageID) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			var path []string
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i] == id {
					for _, s := range stack[i:] {
						path = append(path, v.packages[s].String())
					}
					break
				}
			}
			return errors.Cycle(append(path, v.packages[id].String()))
		}

		state[id] = visiting
		stack = append(stack, id)

		ds, err := v.dependencies(v.packages[id])
		if err != nil {
			return err
		}
		deps[id] = ds
		for _, d := range ds {
			if err := visit(d); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done
		order = append(order, id)
		return nil
	}

	if err := visit(root); err != nil {
		return nil, nil, err
	}
	return order, deps, nil
}

// linker builds the Linker for p: host registrations plus the exports of
// the already instantiated packages p imports from.
func (v *graphView[C]) linker(p *graphPackage, deps []PackageID, instances map[PackageID]*Instance[C]) (*Linker[C], error) {
	b := NewBuilder[C](v.options)
	for _, register := range v.hosts {
		if err := register(b); err != nil {
			return nil, err
		}
	}
	if err := b.Use(v.middleware...); err != nil {
		return nil, err
	}

	for _, id := range deps {
		dp := v.packages[id]
		inst := instances[id]
		for _, e := range dp.exports {
			reg := &Registration[C]{
				Key:   dp.key(e),
				impl:  guestFunc(inst, dp, e).toAsync(),
				guest: true,
			}
			if err := b.add(reg); err != nil {
				return nil, fmt.Errorf("linker: package %s: %w", p, err)
			}
		}
	}
	return b.Build(), nil
}

// guestFunc forwards a call to export e of inst through the package's
// trampoline. The trampoline context is fixed when the package is linked.
func guestFunc[C any](inst *Instance[C], p *graphPackage, e packageExport) Func[C] {
	tramp := p.trampoline.Trampoline()
	tctx := p.trampoline.contextFor(e.iface)
	key := p.key(e)

	return func(ctx context.Context, c *Call[C]) ([]any, error) {
		gc := &GuestCall{
			Key:       key,
			Package:   p.name,
			Interface: e.iface,
			Args:      c.Args,
			Context:   tctx,
			Frame:     c.Frame,
			forward: func(ctx context.Context, args []any) ([]any, error) {
				return inst.call(ctx, e.export, args)
			},
		}
		results, err := tramp(ctx, gc)
		if err == nil {
			return results, nil
		}

		var trap *Trap
		var de *DomainError
		if stderrors.As(err, &trap) || stderrors.As(err, &de) {
			return results, err
		}
		return nil, &Trap{Key: key.String(), Reason: "guest call failed", Cause: err}
	}
}

// Instantiate instantiates root together with the packages it depends on.
// hostContext is shared by every instance; nil starts from the zero value
// of C. On failure every instance created so far is closed.
func (g *Graph[C]) Instantiate(ctx context.Context, root PackageID, hostContext *C) (*Composition[C], error) {
	v, err := g.view()
	if err != nil {
		return nil, err
	}
	if root < 0 || int(root) >= len(v.packages) {
		return nil, errors.NotFound(errors.PhaseCompose, "package", fmt.Sprint(root))
	}

	order, deps, err := v.loadOrder(root)
	if err != nil {
		return nil, err
	}

	if hostContext == nil {
		hostContext = new(C)
	}
	comp := &Composition[C]{
		cell:      NewCell(hostContext),
		instances: make(map[PackageID]*Instance[C], len(order)),
	}

	for _, id := range order {
		p := v.packages[id]
		l, err := v.linker(p, deps[id], comp.instances)
		if err != nil {
			return nil, multierr.Append(err, comp.Close(ctx))
		}
		inst, err := l.instantiate(ctx, p.comp, comp.cell)
		if err != nil {
			err = fmt.Errorf("linker: instantiate package %s: %w", p, err)
			return nil, multierr.Append(err, comp.Close(ctx))
		}
		comp.instances[id] = inst
		comp.order = append(comp.order, id)
	}
	comp.root = comp.instances[root]

	Logger().Debug("composition instantiated",
		zap.String("root", v.packages[root].String()),
		zap.Int("packages", len(order)))
	return comp, nil
}

// Composition is an instantiated root package with its dependencies.
type Composition[C any] struct {
	root      *Instance[C]
	cell      *Cell[C]
	order     []PackageID
	instances map[PackageID]*Instance[C]
}

// Root returns the instance of the package Instantiate was called with.
func (c *Composition[C]) Root() *Instance[C] {
	return c.root
}

// Instance returns the instance of package id, if it was instantiated.
func (c *Composition[C]) Instance(id PackageID) (*Instance[C], bool) {
	inst, ok := c.instances[id]
	return inst, ok
}

// Order returns the packages in the order they were instantiated.
func (c *Composition[C]) Order() []PackageID {
	out := make([]PackageID, len(c.order))
	copy(out, c.order)
	return out
}

// Invoke calls an export of the root instance.
func (c *Composition[C]) Invoke(ctx context.Context, export string, args ...any) ([]any, error) {
	return c.root.Invoke(ctx, export, args...)
}

// StartCall prepares an asynchronous call of a root export.
func (c *Composition[C]) StartCall(ctx context.Context, export string, args ...any) (*CallSession, error) {
	return c.root.StartCall(ctx, export, args...)
}

// WithContext runs body with exclusive access to the shared host context.
func (c *Composition[C]) WithContext(ctx context.Context, body func(ctx context.Context, hc *C) error) error {
	return c.cell.With(ctx, body)
}

// Close tears down every instance, dependents before their dependencies.
func (c *Composition[C]) Close(ctx context.Context) error {
	var err error
	for i := len(c.order) - 1; i >= 0; i-- {
		err = multierr.Append(err, c.instances[c.order[i]].Close(ctx))
	}
	return err
}
