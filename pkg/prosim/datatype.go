package prosim

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DataType is the host type a dataref value maps to.
type DataType int

const (
	TypeUnknown DataType = iota
	TypeBool
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeString
)

var dataTypeNames = map[DataType]string{
	TypeUnknown: "unknown",
	TypeBool:    "bool",
	TypeInt32:   "int32",
	TypeInt64:   "int64",
	TypeFloat32: "float32",
	TypeFloat64: "float64",
	TypeString:  "string",
}

// dataTypeTags maps lower-cased vendor tags (CLR names and C# aliases) to host types.
var dataTypeTags = map[string]DataType{
	"bool":    TypeBool,
	"boolean": TypeBool,
	"int":     TypeInt32,
	"int32":   TypeInt32,
	"integer": TypeInt32,
	"long":    TypeInt64,
	"int64":   TypeInt64,
	"float":   TypeFloat32,
	"single":  TypeFloat32,
	"float32": TypeFloat32,
	"double":  TypeFloat64,
	"float64": TypeFloat64,
	"string":  TypeString,
}

// ParseDataType maps a vendor type tag such as "System.Double" to a DataType.
// Unrecognised tags yield TypeUnknown.
func ParseDataType(tag string) DataType {
	t := strings.ToLower(strings.TrimSpace(tag))
	t = strings.TrimPrefix(t, "system.")
	if dt, ok := dataTypeTags[t]; ok {
		return dt
	}
	return TypeUnknown
}

func (t DataType) String() string {
	if n, ok := dataTypeNames[t]; ok {
		return n
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (t DataType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *DataType) UnmarshalText(b []byte) error {
	*t = ParseDataType(string(b))
	return nil
}

// Coerce converts v to the Go type backing t.
// Bool yields bool, Int32 int32, Int64 int64, Float32 float32, Float64 float64
// and String string. TypeUnknown keeps bools, numbers and strings as they are,
// turning json.Number into int64 or float64.
func (t DataType) Coerce(v any) (any, error) {
	switch t {
	case TypeUnknown:
		if out, ok := scalar(v); ok {
			return out, nil
		}
	case TypeBool:
		if b, ok := toBool(v); ok {
			return b, nil
		}
	case TypeInt32:
		if n, ok := toInt(v, math.MinInt32, math.MaxInt32); ok {
			return int32(n), nil
		}
	case TypeInt64:
		if n, ok := toInt(v, math.MinInt64, math.MaxInt64); ok {
			return n, nil
		}
	case TypeFloat32:
		if f, ok := toFloat(v); ok && math.Abs(f) <= math.MaxFloat32 {
			return float32(f), nil
		}
	case TypeFloat64:
		if f, ok := exactFloat(v); ok {
			return f, nil
		}
	case TypeString:
		switch s := v.(type) {
		case string:
			return s, nil
		case fmt.Stringer:
			return s.String(), nil
		}
	}
	return nil, fmt.Errorf("%w: cannot use %v (%T) as %s", ErrTypeCoercion, v, v, t)
}

// scalar accepts the value kinds a variant can carry.
func scalar(v any) (any, bool) {
	switch x := v.(type) {
	case bool, string, float32, float64,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return x, true
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		f, err := x.Float64()
		return f, err == nil
	}
	return nil, false
}

// maxExactInt is the largest integer magnitude a float64 holds exactly.
const maxExactInt = 1 << 53

// exactFloat is toFloat restricted to integers that survive the conversion.
func exactFloat(v any) (float64, bool) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int64:
		n = x
	case uint:
		if uint64(x) > maxExactInt {
			return 0, false
		}
		n = int64(x)
	case uint64:
		if x > maxExactInt {
			return 0, false
		}
		n = int64(x)
	case json.Number:
		i, err := x.Int64()
		if errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		if err != nil {
			return toFloat(v)
		}
		n = i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		if err != nil {
			return toFloat(v)
		}
		n = i
	default:
		return toFloat(v)
	}
	if n < -maxExactInt || n > maxExactInt {
		return 0, false
	}
	return float64(n), true
}

// number returns the float value of numeric kinds. Strings and bools are not numbers.
func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return number(v)
}

func toInt(v any, lo, hi int64) (int64, bool) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, false
		}
		n = int64(x)
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		n = int64(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return integral(x, lo, hi)
		}
		n = i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return integral(x, lo, hi)
		}
		n = i
	default:
		return integral(v, lo, hi)
	}
	if n < lo || n > hi {
		return 0, false
	}
	return n, true
}

// integral accepts float-like values that carry no fractional part.
func integral(v any, lo, hi int64) (int64, bool) {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f {
		return 0, false
	}
	if f < float64(lo) || f >= float64(hi)+1 {
		return 0, false
	}
	return int64(f), true
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, err == nil
	}
	f, ok := number(v)
	if !ok {
		return false, false
	}
	switch f {
	case 0:
		return false, true
	case 1:
		return true, true
	}
	return false, false
}
