package engine

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/wippyai/wasm-trampoline/errors"
	"github.com/wippyai/wasm-trampoline/wasm"
)

var i32 = []wasm.ValType{wasm.ValI32}

// adderModule imports math.add (i32, i32) -> i32 twice under different
// requirements and exports a caller for each.
func adderModule() []byte {
	binary := wasm.FuncType{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}, Results: i32}
	void := wasm.FuncType{}

	m := &wasm.Module{}
	add := m.AddImportFunc("math@^1.0.0", "add", binary)
	tick := m.AddImportFunc("clock", "tick", void)

	m.ExportFunc("add", m.AddFunc(binary, nil, wasm.Body(wasm.LocalGet(0), wasm.LocalGet(1), wasm.Call(add))))
	m.ExportFunc("tick", m.AddFunc(void, nil, wasm.Body(wasm.Call(tick))))
	m.ExportFunc("answer", m.AddFunc(wasm.FuncType{Results: i32}, nil,
		wasm.Body(wasm.I32Const(40), wasm.I32Const(2), wasm.Op(wasm.OpI32Add))))
	return m.Encode()
}

func TestNewWazeroEngineWithConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		cfg  *Config
		name string
	}{
		{nil, "nil config"},
		{&Config{}, "default config"},
		{&Config{MemoryLimitPages: 256}, "16MB limit"},
		{&Config{CloseOnContextDone: true}, "close on done"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine, err := NewWazeroEngineWithConfig(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("NewWazeroEngineWithConfig failed: %v", err)
			}
			if engine.compiler == nil {
				t.Error("engine runtime should not be nil")
			}
			if err := engine.Close(ctx); err != nil {
				t.Errorf("Close failed: %v", err)
			}
		})
	}
}

func TestWazeroEngine_LoadModule(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatalf("NewWazeroEngine failed: %v", err)
	}
	defer engine.Close(ctx)

	comp, err := engine.LoadModule(ctx, adderModule())
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}

	imports := comp.Imports()
	if len(imports) != 2 {
		t.Fatalf("expected 2 imports, got %d", len(imports))
	}
	if got := imports[0].Path(); got != "math@^1.0.0#add" {
		t.Errorf("import 0 = %q", got)
	}
	if got := imports[0].Signature.String(); got != "(s32, s32) -> s32" {
		t.Errorf("import 0 signature = %q", got)
	}
	if got := imports[1].Path(); got != "clock#tick" {
		t.Errorf("import 1 = %q", got)
	}

	var names []string
	for _, e := range comp.Exports() {
		names = append(names, e.Name)
	}
	if len(names) != 3 || names[0] != "add" || names[1] != "answer" || names[2] != "tick" {
		t.Errorf("exports = %v", names)
	}
}

func TestWazeroEngine_LoadInvalid(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatalf("NewWazeroEngine failed: %v", err)
	}
	defer engine.Close(ctx)

	_, err = engine.LoadModule(ctx, []byte("not wasm"))
	if !stderrors.Is(err, errors.ErrEngineFailure) {
		t.Errorf("expected engine failure, got %v", err)
	}
}

func TestWazeroEngine_MemoryLimit(t *testing.T) {
	ctx := context.Background()

	engine, err := NewWazeroEngineWithConfig(ctx, &Config{MemoryLimitPages: 1})
	if err != nil {
		t.Fatalf("NewWazeroEngineWithConfig failed: %v", err)
	}
	defer engine.Close(ctx)

	// (module (memory 2))
	wasmWith2Pages := (&wasm.Module{
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 2}}},
	}).Encode()

	if _, err := engine.LoadModule(ctx, wasmWith2Pages); err == nil {
		t.Fatal("expected module over the memory limit to be rejected")
	}
}

func TestWazeroComponent_Call(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatalf("NewWazeroEngine failed: %v", err)
	}
	defer engine.Close(ctx)

	comp, err := engine.LoadModule(ctx, adderModule())
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}

	ticks := 0
	guest, err := comp.Instantiate(ctx, []Callback{
		func(_ context.Context, args []any) ([]any, error) {
			return []any{args[0].(int32) + args[1].(int32)}, nil
		},
		func(context.Context, []any) ([]any, error) {
			ticks++
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	defer guest.Close(ctx)

	res, err := guest.Call(ctx, "add", []any{int32(2), int32(3)})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(res) != 1 || res[0] != int32(5) {
		t.Errorf("add = %v, want [5]", res)
	}

	if _, err := guest.Call(ctx, "tick", nil); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if ticks != 1 {
		t.Errorf("ticks = %d, want 1", ticks)
	}

	res, err = guest.Call(ctx, "answer", nil)
	if err != nil || res[0] != int32(42) {
		t.Errorf("answer = %v, %v", res, err)
	}

	if _, err := guest.Call(ctx, "add", []any{int32(1)}); !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("expected invalid input for wrong arity, got %v", err)
	}
	if _, err := guest.Call(ctx, "nope", nil); !stderrors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestWazeroComponent_CallbackErrors(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatalf("NewWazeroEngine failed: %v", err)
	}
	defer engine.Close(ctx)

	comp, err := engine.LoadModule(ctx, adderModule())
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}

	hostErr := stderrors.New("host failed")
	guest, err := comp.Instantiate(ctx, []Callback{
		func(context.Context, []any) ([]any, error) { return nil, hostErr },
		nil,
	})
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	defer guest.Close(ctx)

	// the callback error surfaces unchanged, not as the runtime's panic
	if _, err := guest.Call(ctx, "add", []any{int32(1), int32(2)}); err != hostErr {
		t.Errorf("expected host error, got %v", err)
	}

	if _, err := guest.Call(ctx, "tick", nil); !stderrors.Is(err, errors.ErrImportUnsatisfied) {
		t.Errorf("expected unbound slot to trap with import_unsatisfied, got %v", err)
	}
}

func TestWazeroComponent_ResultMismatch(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatalf("NewWazeroEngine failed: %v", err)
	}
	defer engine.Close(ctx)

	comp, err := engine.LoadModule(ctx, adderModule())
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}

	guest, err := comp.Instantiate(ctx, []Callback{
		func(context.Context, []any) ([]any, error) { return []any{"five"}, nil },
		func(context.Context, []any) ([]any, error) { return []any{1}, nil },
	})
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	defer guest.Close(ctx)

	if _, err := guest.Call(ctx, "add", []any{int32(1), int32(2)}); !stderrors.Is(err, errors.ErrTypeMismatch) {
		t.Errorf("expected type mismatch, got %v", err)
	}
	if _, err := guest.Call(ctx, "tick", nil); !stderrors.Is(err, errors.ErrTypeMismatch) {
		t.Errorf("expected result count mismatch, got %v", err)
	}
}

func TestWazeroComponent_Isolation(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatalf("NewWazeroEngine failed: %v", err)
	}
	defer engine.Close(ctx)

	comp, err := engine.LoadModule(ctx, adderModule())
	if err != nil {
		t.Fatalf("LoadModule failed: %v", err)
	}

	counts := make([]int, 2)
	for i := range counts {
		guest, err := comp.Instantiate(ctx, []Callback{nil, func(context.Context, []any) ([]any, error) {
			counts[i]++
			return nil, nil
		}})
		if err != nil {
			t.Fatalf("Instantiate %d failed: %v", i, err)
		}
		for j := 0; j <= i; j++ {
			if _, err := guest.Call(ctx, "tick", nil); err != nil {
				t.Fatalf("tick failed: %v", err)
			}
		}
		if err := guest.Close(ctx); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	}

	if counts[0] != 1 || counts[1] != 2 {
		t.Errorf("counts = %v, want [1 2]", counts)
	}

	if _, err := comp.Instantiate(ctx, nil); !stderrors.Is(err, errors.ErrEngineFailure) {
		t.Errorf("expected callback count mismatch, got %v", err)
	}
}
