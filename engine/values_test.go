package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-trampoline/errors"
)

func TestValueRoundTrip(t *testing.T) {
	tests := []struct {
		vt   api.ValueType
		in   any
		want any
	}{
		{api.ValueTypeI32, int32(-7), int32(-7)},
		{api.ValueTypeI32, 42, int32(42)},
		{api.ValueTypeI32, uint32(math.MaxUint32), int32(-1)},
		{api.ValueTypeI32, true, int32(1)},
		{api.ValueTypeI64, int64(math.MinInt64), int64(math.MinInt64)},
		{api.ValueTypeF32, float32(1.5), float32(1.5)},
		{api.ValueTypeF64, 2.25, 2.25},
		{api.ValueTypeF64, 3, float64(3)},
	}
	for _, tt := range tests {
		raw, err := encodeValue(tt.vt, tt.in)
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, decodeValue(tt.vt, raw), "%v", tt.in)
	}
}

func TestEncodeValueErrors(t *testing.T) {
	_, err := encodeValue(api.ValueTypeI32, "seven")
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)

	_, err = encodeValue(api.ValueTypeI32, int64(math.MaxUint32)+1)
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)
	assert.Contains(t, err.Error(), "overflows i32")

	_, err = encodeValue(api.ValueTypeF64, struct{}{})
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)
}

func TestSignatureOf(t *testing.T) {
	sig := signatureOf([]api.ValueType{api.ValueTypeI32, api.ValueTypeF64}, []api.ValueType{api.ValueTypeI64})
	assert.Equal(t, []wit.Type{wit.S32{}, wit.F64{}}, sig.Params)
	assert.Equal(t, []wit.Type{wit.S64{}}, sig.Results)
	assert.Equal(t, "(s32, f64) -> s64", sig.String())
}

func TestSplitModuleName(t *testing.T) {
	tests := []struct {
		in, ns, req string
	}{
		{"counter@^1.0.0", "counter", "^1.0.0"},
		{"demo:kv/store@=2.0.0", "demo:kv/store", "=2.0.0"},
		{"env", "env", ""},
		{"a@b@1.0.0", "a@b", "1.0.0"},
	}
	for _, tt := range tests {
		ns, req := splitModuleName(tt.in)
		assert.Equal(t, tt.ns, ns, tt.in)
		assert.Equal(t, tt.req, req, tt.in)
	}
}
