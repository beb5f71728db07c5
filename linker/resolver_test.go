package linker

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-trampoline/errors"
)

func snapshotOf(t *testing.T, paths ...string) *Snapshot[testState] {
	t.Helper()
	r := NewRegistry[testState]()
	for _, p := range paths {
		require.NoError(t, r.Register(reg(p, p)))
	}
	return r.Freeze()
}

func mustImport(t *testing.T, path string) ImportRequest {
	t.Helper()
	req, err := ParseImport(path)
	require.NoError(t, err)
	return req
}

func TestResolveHighestCompatible(t *testing.T) {
	snap := snapshotOf(t,
		"store@1.1.0#get",
		"store@1.2.0#get",
		"store@1.3.0#get",
		"store@2.0.0#get",
	)

	tests := []struct {
		request string
		want    string
	}{
		{"store@^1.2.0#get", "1.3.0"},
		{"store@1.2.0#get", "1.3.0"},
		{"store@^1.0.0#get", "1.3.0"},
		{"store@=1.2.0#get", "1.2.0"},
		{"store@^2.0.0#get", "2.0.0"},
		{"store#get", "2.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.request, func(t *testing.T) {
			got, err := Resolve(mustImport(t, tt.request), snap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Key.Version.String())
		})
	}
}

func TestResolveUnsatisfied(t *testing.T) {
	snap := snapshotOf(t, "store@0.9.0#get", "store@2.0.0#get")

	_, err := Resolve(mustImport(t, "store@^1.2.0#get"), snap)
	require.ErrorIs(t, err, errors.ErrImportUnsatisfied)
	assert.ErrorIs(t, err, errors.ErrVersionIncompatible)

	var ue *UnresolvedError
	require.True(t, stderrors.As(err, &ue))
	assert.Equal(t, "store.get", ue.Request.Target())
	assert.Equal(t, []Version{ver(0, 9, 0), ver(2, 0, 0)}, ue.Available)
	assert.Equal(t, []Version{ver(0, 9, 0), ver(2, 0, 0)}, ue.Nearest)
	assert.True(t, ue.VersionIncompatible())
	assert.Contains(t, err.Error(), "nearest: 0.9.0 2.0.0")
}

func TestResolveNoCandidates(t *testing.T) {
	snap := snapshotOf(t, "store@1.0.0#set")

	_, err := Resolve(mustImport(t, "store@^1.0.0#get"), snap)
	require.ErrorIs(t, err, errors.ErrImportUnsatisfied)
	assert.NotErrorIs(t, err, errors.ErrVersionIncompatible)
	assert.Contains(t, err.Error(), "no implementation registered")

	_, err = Resolve(mustImport(t, "store#get"), snap)
	assert.ErrorIs(t, err, errors.ErrImportUnsatisfied)
}

func TestResolveNearest(t *testing.T) {
	tests := []struct {
		name      string
		available []string
		request   string
		nearest   []Version
	}{
		{"only above", []string{"2.0.0", "3.0.0"}, "x@^1.0.0#f", []Version{ver(2, 0, 0)}},
		{"only below", []string{"0.1.0", "0.5.0"}, "x@^1.0.0#f", []Version{ver(0, 5, 0)}},
		{"exact miss", []string{"1.2.1"}, "x@=1.2.0#f", []Version{ver(1, 2, 1)}},
		{"bracketed", []string{"0.1.0", "0.9.0", "3.0.0", "4.0.0"}, "x@^2.0.0#f", []Version{ver(0, 9, 0), ver(3, 0, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var paths []string
			for _, v := range tt.available {
				paths = append(paths, "x@"+v+"#f")
			}
			_, err := Resolve(mustImport(t, tt.request), snapshotOf(t, paths...))
			var ue *UnresolvedError
			require.True(t, stderrors.As(err, &ue))
			assert.Equal(t, tt.nearest, ue.Nearest)
		})
	}
}

func TestResolvePreRelease(t *testing.T) {
	snap := snapshotOf(t, "x@1.0.0#f", "x@1.1.0-rc.1#f")

	got, err := Resolve(mustImport(t, "x@^1.0.0#f"), snap)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", got.Key.Version.String())

	got, err = Resolve(mustImport(t, "x@=1.1.0-rc.1#f"), snap)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0-rc.1", got.Key.Version.String())
}

func TestResolveDeterministic(t *testing.T) {
	snap := snapshotOf(t, "x@1.0.0#f", "x@1.4.0#f", "x@1.2.0#f")
	req := mustImport(t, "x@^1.1.0#f")

	first, err := Resolve(req, snap)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Resolve(req, snap)
		require.NoError(t, err)
		assert.Same(t, first, again)
	}
}

func TestLinkerResolveStrictAndCached(t *testing.T) {
	build := func(opts Options) *Linker[testState] {
		b := NewBuilder[testState](opts)
		require.NoError(t, b.registry.Register(reg("x@1.0.0#f", 1)))
		require.NoError(t, b.registry.Register(reg("x@1.3.0#f", 2)))
		return b.Build()
	}

	l := build(DefaultOptions())
	got, err := l.Resolve(mustImport(t, "x@^1.0.0#f"))
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", got.Key.Version.String())
	assert.Equal(t, 1, l.cache.Len())

	again, err := l.Resolve(mustImport(t, "x@^1.0.0#f"))
	require.NoError(t, err)
	assert.Same(t, got, again)

	_, err = l.Resolve(mustImport(t, "x@^2.0.0#f"))
	require.ErrorIs(t, err, errors.ErrImportUnsatisfied)
	_, err = l.Resolve(mustImport(t, "x@^2.0.0#f"))
	require.ErrorIs(t, err, errors.ErrImportUnsatisfied)
	assert.Equal(t, 2, l.cache.Len())

	opts := DefaultOptions()
	opts.SemverMatching = false
	opts.ResolveCacheSize = 0
	strict := build(opts)
	assert.Nil(t, strict.cache)

	got, err = strict.Resolve(mustImport(t, "x@^1.0.0#f"))
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", got.Key.Version.String())

	_, err = strict.Resolve(mustImport(t, "x@^1.1.0#f"))
	assert.ErrorIs(t, err, errors.ErrImportUnsatisfied)
}
