package hosts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm-trampoline/engine"
	"github.com/wippyai/wasm-trampoline/errors"
	"github.com/wippyai/wasm-trampoline/linker"
)

var (
	s32Sig    = engine.Signature{Results: []wit.Type{wit.S32{}}}
	addSig    = engine.Signature{Params: []wit.Type{wit.S32{}}, Results: []wit.Type{wit.S32{}}}
	i32KVSig  = engine.Signature{Params: []wit.Type{wit.S32{}}, Results: []wit.Type{wit.S32{}}}
	i32SetSig = engine.Signature{Params: []wit.Type{wit.S32{}, wit.S32{}}}
)

func forward(path string) engine.GoFunc {
	return func(ctx context.Context, im *engine.Imports, args []any) ([]any, error) {
		return im.Call(ctx, path, args...)
	}
}

func newLinker(t *testing.T, opts Options) *linker.Linker[State] {
	t.Helper()
	l, err := NewLinker(linker.DefaultOptions(), opts)
	require.NoError(t, err)
	return l
}

func TestRegisterKeys(t *testing.T) {
	l := newLinker(t, Options{})

	var keys []string
	for _, k := range l.Registry().Keys() {
		keys = append(keys, k.String())
	}
	assert.Equal(t, []string{
		"demo:counter/counter@1.1.0#add",
		"demo:counter/counter@1.0.0#get",
		"demo:counter/counter@1.1.0#get",
		"demo:counter/counter@1.0.0#increment",
		"demo:counter/counter@1.1.0#increment",
		"demo:timer/timer@1.0.0#sleep",
		"test:kvstore/store@2.1.6#get",
		"test:kvstore/store@2.1.6#set",
		"test:logging/logger@1.1.1#log",
	}, keys)

	b := linker.NewBuilderWithDefaults[State]()
	require.NoError(t, Register(b, Options{}))
	assert.ErrorIs(t, Register(b, Options{}), errors.ErrDuplicateRegistration)
}

func TestGreeter(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.InfoLevel)
	l := newLinker(t, Options{Logger: zap.New(core)})

	inst, err := l.Instantiate(ctx, Greeter(), NewState())
	require.NoError(t, err)
	defer inst.Close(ctx)

	res, err := inst.Invoke(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, []any{"Hello World!"}, res)

	_, err = inst.Invoke(ctx, "set-name", "Dave")
	require.NoError(t, err)

	res, err = inst.Invoke(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, []any{"Hello Dave!"}, res)

	require.NoError(t, inst.WithContext(ctx, func(_ context.Context, s *State) error {
		assert.Equal(t, "Dave", s.KV["name"])
		require.Len(t, s.Log, 1)
		assert.Equal(t, "[INFO]: setting name to Dave", s.Log[0].String())
		return nil
	}))

	entries := logs.FilterMessage("setting name to Dave").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "guest", entries[0].LoggerName)
}

func TestGreeterBindings(t *testing.T) {
	plan := newLinker(t, Options{}).Plan(Greeter())
	require.NoError(t, plan.Err())

	var got []string
	for _, e := range plan.Entries {
		got = append(got, e.Binding.String())
	}
	assert.Equal(t, []string{
		"test:kvstore/store@^2.0.0#get -> test:kvstore/store@2.1.6#get",
		"test:kvstore/store@^2.0.0#set -> test:kvstore/store@2.1.6#set",
		"test:logging/logger@^1.0.0#log -> test:logging/logger@1.1.1#log",
	}, got)
}

func TestCounterVersions(t *testing.T) {
	ctx := context.Background()
	l := newLinker(t, Options{})

	comp := engine.NewGoComponent().
		Import("demo:counter/counter", "increment", "=1.0.0", s32Sig).
		Import("demo:counter/counter", "add", "^1.1.0", addSig).
		Import("demo:counter/counter", "get", "", s32Sig).
		Export("increment", s32Sig, forward("demo:counter/counter#increment")).
		Export("add", addSig, forward("demo:counter/counter#add")).
		Export("get", s32Sig, forward("demo:counter/counter#get"))

	inst, err := l.Instantiate(ctx, comp, nil)
	require.NoError(t, err)
	defer inst.Close(ctx)

	bindings := inst.Bindings()
	assert.Equal(t, "demo:counter/counter@1.0.0#increment", bindings[0].Key().String())
	assert.Equal(t, "demo:counter/counter@1.1.0#add", bindings[1].Key().String())
	assert.Equal(t, "demo:counter/counter@1.1.0#get", bindings[2].Key().String())

	for want := int32(1); want <= 2; want++ {
		res, err := inst.Invoke(ctx, "increment")
		require.NoError(t, err)
		assert.Equal(t, []any{want}, res)
	}
	res, err := inst.Invoke(ctx, "add", int32(40))
	require.NoError(t, err)
	assert.Equal(t, []any{int32(42)}, res)

	res, err = inst.Invoke(ctx, "get")
	require.NoError(t, err)
	assert.Equal(t, []any{int32(42)}, res)

	_, err = inst.Invoke(ctx, "add", "forty")
	assert.ErrorIs(t, err, errors.ErrTrap)
}

func TestCounterMissingVersion(t *testing.T) {
	comp := engine.NewGoComponent().Import("demo:counter/counter", "add", "=1.0.0", addSig)
	_, err := newLinker(t, Options{}).Instantiate(context.Background(), comp, nil)
	assert.ErrorIs(t, err, errors.ErrVersionIncompatible)
	assert.Contains(t, err.Error(), "demo:counter/counter.add")
}

func TestKVStoreUntyped(t *testing.T) {
	ctx := context.Background()
	comp := engine.NewGoComponent().
		Import("test:kvstore/store", "get", "^2.0.0", i32KVSig).
		Import("test:kvstore/store", "set", "^2.0.0", i32SetSig).
		Export("get", i32KVSig, forward("test:kvstore/store#get")).
		Export("set", i32SetSig, forward("test:kvstore/store#set"))

	inst, err := newLinker(t, Options{}).Instantiate(ctx, comp, nil)
	require.NoError(t, err)
	defer inst.Close(ctx)

	_, err = inst.Invoke(ctx, "set", int32(1), int32(100))
	require.NoError(t, err)

	res, err := inst.Invoke(ctx, "get", int32(1))
	require.NoError(t, err)
	assert.Equal(t, []any{int32(100)}, res)

	// without a result<T, E> slot a missing key traps
	_, err = inst.Invoke(ctx, "get", int32(2))
	assert.ErrorIs(t, err, errors.ErrTrap)
	assert.Contains(t, err.Error(), ErrNotFound)
}

func TestLoggerLevels(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	l := newLinker(t, Options{Logger: zap.New(core)})

	comp := engine.NewGoComponent().
		Import("test:logging/logger", "log", "", engine.Signature{}).
		Export("log", engine.Signature{}, forward("test:logging/logger#log"))
	inst, err := l.Instantiate(ctx, comp, nil)
	require.NoError(t, err)
	defer inst.Close(ctx)

	_, err = inst.Invoke(ctx, "log", "error", "disk full")
	require.NoError(t, err)
	_, err = inst.Invoke(ctx, "log", int32(0), int32(7))
	require.NoError(t, err)
	_, err = inst.Invoke(ctx, "log", "loud", "x")
	assert.ErrorIs(t, err, errors.ErrTrap)
	_, err = inst.Invoke(ctx, "log")
	assert.ErrorIs(t, err, errors.ErrTrap)

	require.NoError(t, inst.WithContext(ctx, func(_ context.Context, s *State) error {
		assert.Equal(t, []Entry{
			{Level: LevelError, Message: "disk full"},
			{Level: LevelDebug, Message: "7"},
		}, s.Log)
		return nil
	}))

	all := logs.All()
	require.Len(t, all, 2)
	assert.Equal(t, zapcore.ErrorLevel, all[0].Level)
	assert.Equal(t, zapcore.DebugLevel, all[1].Level)
}

func TestTimerSleep(t *testing.T) {
	ctx := context.Background()
	l := newLinker(t, Options{})

	comp := engine.NewGoComponent().
		Import("demo:timer/timer", "sleep", "^1.0.0", addSig).
		Export("sleep", addSig, forward("demo:timer/timer#sleep"))
	inst, err := l.Instantiate(ctx, comp, nil)
	require.NoError(t, err)
	defer inst.Close(ctx)

	var sessions []*linker.CallSession
	for _, ms := range []int32{30, 10, 20} {
		cs, err := inst.StartCall(ctx, "sleep", ms)
		require.NoError(t, err)
		sessions = append(sessions, cs)
	}

	start := time.Now()
	outcomes, err := (&linker.Driver{}).Run(ctx, sessions...)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)

	for i, ms := range []int32{30, 10, 20} {
		assert.Equal(t, []any{ms}, outcomes[i].Results)
	}
	require.NoError(t, inst.WithContext(ctx, func(_ context.Context, s *State) error {
		assert.Equal(t, int64(60), s.Slept)
		return nil
	}))

	// synchronous invocation drives the wait inline
	res, err := inst.Invoke(ctx, "sleep", int32(1))
	require.NoError(t, err)
	assert.Equal(t, []any{int32(1)}, res)

	_, err = inst.Invoke(ctx, "sleep", int32(-1))
	assert.ErrorIs(t, err, errors.ErrTrap)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "LEVEL(9)", Level(9).String())

	lvl, ok := parseLevel("Info")
	assert.True(t, ok)
	assert.Equal(t, LevelInfo, lvl)
	_, ok = parseLevel(int32(5))
	assert.False(t, ok)
	_, ok = parseLevel(1.5)
	assert.False(t, ok)
}
