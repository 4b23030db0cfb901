package payload

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrType is returned when a value cannot be coerced to the requested shape.
var ErrType = errors.New("unexpected value type")

// ToFloat64 converts any decoded numeric value to float64.
func ToFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%w: %T is not a number", ErrType, v)
	}
}

// ToInt converts an integral key or value to int. Floats must have no fractional part.
func ToInt(v any) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows int", ErrType, n)
		}

		return int(n), nil
	case int:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %v is not integral", ErrType, n)
		}

		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrType, n)
		}

		return i, nil
	default:
		f, err := ToFloat64(v)
		if err != nil {
			return 0, err
		}

		return ToInt(f)
	}
}

// ToFloat64Slice converts a decoded array to []float64. A nil value yields an empty slice.
func ToFloat64Slice(v any) ([]float64, error) {
	switch s := v.(type) {
	case nil:
		return []float64{}, nil
	case []float64:
		out := make([]float64, len(s))
		copy(out, s)

		return out, nil
	case []any:
		out := make([]float64, len(s))
		for i, item := range s {
			f, err := ToFloat64(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = f
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T is not an array", ErrType, v)
	}
}

// ToIntFloatMap converts a decoded map with integral keys and numeric values.
// A nil value yields an empty map.
func ToIntFloatMap(v any) (map[int]float64, error) {
	switch m := v.(type) {
	case nil:
		return map[int]float64{}, nil
	case map[int]float64:
		out := make(map[int]float64, len(m))
		for k, f := range m {
			out[k] = f
		}

		return out, nil
	case Map:
		out := make(map[int]float64, len(m))
		for _, e := range m {
			k, err := ToInt(e.Key)
			if err != nil {
				return nil, fmt.Errorf("key %v: %w", e.Key, err)
			}
			f, err := ToFloat64(e.Value)
			if err != nil {
				return nil, fmt.Errorf("value of %d: %w", k, err)
			}
			out[k] = f
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T is not a map", ErrType, v)
	}
}

// ToString converts a decoded string or binary value. A nil value yields "".
func ToString(v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("%w: %T is not a string", ErrType, v)
	}
}

// ToMap asserts a decoded nested map.
func ToMap(v any) (Map, error) {
	m, ok := v.(Map)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a map", ErrType, v)
	}

	return m, nil
}
