package engine

import (
	"math"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-trampoline/errors"
)

// witType maps a core value type to its WIT primitive.
func witType(vt api.ValueType) wit.Type {
	switch vt {
	case api.ValueTypeI32:
		return wit.S32{}
	case api.ValueTypeI64:
		return wit.S64{}
	case api.ValueTypeF32:
		return wit.F32{}
	case api.ValueTypeF64:
		return wit.F64{}
	default:
		return nil
	}
}

func signatureOf(params, results []api.ValueType) Signature {
	sig := Signature{
		Params:  make([]wit.Type, len(params)),
		Results: make([]wit.Type, len(results)),
	}
	for i, vt := range params {
		sig.Params[i] = witType(vt)
	}
	for i, vt := range results {
		sig.Results[i] = witType(vt)
	}
	return sig
}

func decodeValue(vt api.ValueType, raw uint64) any {
	switch vt {
	case api.ValueTypeI32:
		return api.DecodeI32(raw)
	case api.ValueTypeI64:
		return int64(raw)
	case api.ValueTypeF32:
		return api.DecodeF32(raw)
	case api.ValueTypeF64:
		return api.DecodeF64(raw)
	default:
		return raw
	}
}

func encodeValue(vt api.ValueType, v any) (uint64, error) {
	switch vt {
	case api.ValueTypeI32:
		n, ok := toInt64(v)
		if !ok {
			return 0, errors.TypeMismatch(errors.PhaseEngine, v, "i32")
		}
		if n < math.MinInt32 || n > math.MaxUint32 {
			return 0, errors.New(errors.PhaseEngine, errors.KindTypeMismatch).
				Value(v).
				Detail("value %d overflows i32", n).
				Build()
		}
		return api.EncodeI32(int32(n)), nil
	case api.ValueTypeI64:
		n, ok := toInt64(v)
		if !ok {
			return 0, errors.TypeMismatch(errors.PhaseEngine, v, "i64")
		}
		return api.EncodeI64(n), nil
	case api.ValueTypeF32:
		f, ok := toFloat64(v)
		if !ok {
			return 0, errors.TypeMismatch(errors.PhaseEngine, v, "f32")
		}
		return api.EncodeF32(float32(f)), nil
	case api.ValueTypeF64:
		f, ok := toFloat64(v)
		if !ok {
			return 0, errors.TypeMismatch(errors.PhaseEngine, v, "f64")
		}
		return api.EncodeF64(f), nil
	default:
		return 0, errors.TypeMismatch(errors.PhaseEngine, v, api.ValueTypeName(vt))
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		i, ok := toInt64(v)
		return float64(i), ok
	}
}
