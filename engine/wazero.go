package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-trampoline/errors"
)

// WazeroEngine loads core WebAssembly modules as Components.
type WazeroEngine struct {
	cache    wazero.CompilationCache
	compiler wazero.Runtime
	cfg      Config
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// CloseOnContextDone aborts guest execution when the call context is
	// canceled, so cancelled sessions cannot keep a guest spinning.
	CloseOnContextDone bool
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	e := &WazeroEngine{cache: wazero.NewCompilationCache()}
	if cfg != nil {
		e.cfg = *cfg
	}
	e.compiler = wazero.NewRuntimeWithConfig(ctx, e.runtimeConfig())
	return e, nil
}

func (e *WazeroEngine) runtimeConfig() wazero.RuntimeConfig {
	rc := wazero.NewRuntimeConfig().WithCompilationCache(e.cache)
	if e.cfg.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(e.cfg.MemoryLimitPages)
	}
	if e.cfg.CloseOnContextDone {
		rc = rc.WithCloseOnContextDone(true)
	}
	return rc
}

// LoadModule compiles a core module and reads its import and export
// declarations.
func (e *WazeroEngine) LoadModule(ctx context.Context, wasm []byte) (*WazeroComponent, error) {
	compiled, err := e.compiler.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindEngineFailure, err, "compile module")
	}

	c := &WazeroComponent{engine: e, wasm: wasm}

	for _, def := range compiled.ImportedFunctions() {
		moduleName, name, _ := def.Import()
		ns, req := splitModuleName(moduleName)
		c.imports = append(c.imports, coreImport{
			module:  moduleName,
			params:  def.ParamTypes(),
			results: def.ResultTypes(),
			decl: Import{
				Namespace:   ns,
				Name:        name,
				Requirement: req,
				Signature:   signatureOf(def.ParamTypes(), def.ResultTypes()),
			},
		})
	}

	for name, def := range compiled.ExportedFunctions() {
		c.exports = append(c.exports, Export{
			Name:      name,
			Signature: signatureOf(def.ParamTypes(), def.ResultTypes()),
		})
	}
	sort.Slice(c.exports, func(i, j int) bool { return c.exports[i].Name < c.exports[j].Name })

	Logger().Debug("module loaded",
		zap.Int("imports", len(c.imports)),
		zap.Int("exports", len(c.exports)))

	return c, nil
}

// Close releases the engine and its compilation cache.
func (e *WazeroEngine) Close(ctx context.Context) error {
	return multierr.Combine(e.compiler.Close(ctx), e.cache.Close(ctx))
}

// splitModuleName splits "namespace@requirement" at the last '@'.
func splitModuleName(module string) (namespace, requirement string) {
	idx := strings.LastIndexByte(module, '@')
	if idx < 0 {
		return module, ""
	}
	return module[:idx], module[idx+1:]
}

type coreImport struct {
	module  string
	params  []api.ValueType
	results []api.ValueType
	decl    Import
}

// WazeroComponent is a compiled core module.
type WazeroComponent struct {
	engine  *WazeroEngine
	wasm    []byte
	imports []coreImport
	exports []Export
}

// Imports implements Component.
func (c *WazeroComponent) Imports() []Import {
	out := make([]Import, len(c.imports))
	for i, imp := range c.imports {
		out[i] = imp.decl
	}
	return out
}

// Exports implements Component.
func (c *WazeroComponent) Exports() []Export {
	out := make([]Export, len(c.exports))
	copy(out, c.exports)
	return out
}

// Instantiate implements Component. Each call creates a fresh runtime.
func (c *WazeroComponent) Instantiate(ctx context.Context, callbacks []Callback) (Guest, error) {
	if len(callbacks) != len(c.imports) {
		return nil, errors.New(errors.PhaseEngine, errors.KindEngineFailure).
			Detail("got %d callbacks for %d imports", len(callbacks), len(c.imports)).
			Build()
	}

	rt := wazero.NewRuntimeWithConfig(ctx, c.engine.runtimeConfig())

	if err := c.defineHostModules(ctx, rt, callbacks); err != nil {
		rt.Close(ctx)
		return nil, err
	}

	compiled, err := rt.CompileModule(ctx, c.wasm)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}

	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}

	return &wazeroGuest{rt: rt, mod: mod}, nil
}

func (c *WazeroComponent) defineHostModules(ctx context.Context, rt wazero.Runtime, callbacks []Callback) error {
	var order []string
	byModule := make(map[string][]int)
	for i, imp := range c.imports {
		if _, ok := byModule[imp.module]; !ok {
			order = append(order, imp.module)
		}
		byModule[imp.module] = append(byModule[imp.module], i)
	}

	for _, moduleName := range order {
		b := rt.NewHostModuleBuilder(moduleName)
		seen := make(map[string]bool)
		for _, i := range byModule[moduleName] {
			imp := c.imports[i]
			if seen[imp.decl.Name] {
				continue
			}
			seen[imp.decl.Name] = true
			b.NewFunctionBuilder().
				WithGoModuleFunction(hostFunc(imp, callbacks[i]), imp.params, imp.results).
				Export(imp.decl.Name)
		}
		if _, err := b.Instantiate(ctx); err != nil {
			return errors.Wrap(errors.PhaseEngine, errors.KindEngineFailure, err, "define host module "+moduleName)
		}
	}
	return nil
}

type trapKey struct{}

// trapSlot records the error a callback failed with, so the guest call can
// return it instead of the runtime's recovered panic.
type trapSlot struct {
	err error
}

func hostFunc(imp coreImport, cb Callback) api.GoModuleFunc {
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		fail := func(err error) {
			if slot, ok := ctx.Value(trapKey{}).(*trapSlot); ok && slot.err == nil {
				slot.err = err
			}
			panic(err)
		}

		if cb == nil {
			fail(errors.New(errors.PhaseEngine, errors.KindImportUnsatisfied).
				Key(imp.decl.Path()).
				Detail("import slot is not bound").
				Build())
		}

		args := make([]any, len(imp.params))
		for i, vt := range imp.params {
			args[i] = decodeValue(vt, stack[i])
		}

		results, err := cb(ctx, args)
		if err != nil {
			fail(err)
		}
		if len(results) != len(imp.results) {
			fail(errors.New(errors.PhaseEngine, errors.KindTypeMismatch).
				Key(imp.decl.Path()).
				Detail("callback returned %d results, want %d", len(results), len(imp.results)).
				Build())
		}
		for i, vt := range imp.results {
			raw, err := encodeValue(vt, results[i])
			if err != nil {
				fail(err)
			}
			stack[i] = raw
		}
	}
}

type wazeroGuest struct {
	rt  wazero.Runtime
	mod api.Module
}

func (g *wazeroGuest) Call(ctx context.Context, export string, args []any) ([]any, error) {
	fn := g.mod.ExportedFunction(export)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseEngine, "export", export)
	}

	def := fn.Definition()
	params := def.ParamTypes()
	if len(args) != len(params) {
		return nil, errors.New(errors.PhaseEngine, errors.KindInvalidInput).
			Key(export).
			Detail("got %d arguments, want %d", len(args), len(params)).
			Build()
	}

	raw := make([]uint64, len(params))
	for i, vt := range params {
		v, err := encodeValue(vt, args[i])
		if err != nil {
			return nil, err
		}
		raw[i] = v
	}

	slot := &trapSlot{}
	out, err := fn.Call(context.WithValue(ctx, trapKey{}, slot), raw...)
	if err != nil {
		if slot.err != nil {
			return nil, slot.err
		}
		return nil, err
	}

	resultTypes := def.ResultTypes()
	results := make([]any, len(out))
	for i, v := range out {
		results[i] = decodeValue(resultTypes[i], v)
	}
	return results, nil
}

func (g *wazeroGuest) Close(ctx context.Context) error {
	return multierr.Combine(g.mod.Close(ctx), g.rt.Close(ctx))
}
