package prosim

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDataType(t *testing.T) {
	tests := []struct {
		tag  string
		want DataType
	}{
		{"System.Double", TypeFloat64},
		{"double", TypeFloat64},
		{"System.Single", TypeFloat32},
		{"float", TypeFloat32},
		{"System.Int32", TypeInt32},
		{"int", TypeInt32},
		{"System.Int64", TypeInt64},
		{"long", TypeInt64},
		{"System.Boolean", TypeBool},
		{"BOOL", TypeBool},
		{"System.String", TypeString},
		{"  string ", TypeString},
		{"System.DateTime", TypeUnknown},
		{"", TypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDataType(tt.tag))
		})
	}
}

func TestDataType_TextRoundTrip(t *testing.T) {
	for dt := TypeUnknown; dt <= TypeString; dt++ {
		b, err := dt.MarshalText()
		assert.NoError(t, err)

		var back DataType
		assert.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, dt, back, "type %s", dt)
	}
}

type label string

func (l label) String() string { return string(l) }

func TestDataType_Coerce(t *testing.T) {
	tests := []struct {
		name    string
		dt      DataType
		in      any
		want    any
		wantErr bool
	}{
		{"BoolFromBool", TypeBool, true, true, false},
		{"BoolFromOne", TypeBool, 1, true, false},
		{"BoolFromZeroFloat", TypeBool, 0.0, false, false},
		{"BoolFromString", TypeBool, "true", true, false},
		{"BoolFromTwo", TypeBool, 2, nil, true},
		{"BoolFromWord", TypeBool, "yes please", nil, true},

		{"Int32FromInt", TypeInt32, 1, int32(1), false},
		{"Int32FromJSONFloat", TypeInt32, 42.0, int32(42), false},
		{"Int32FromJSONNumber", TypeInt32, json.Number("7"), int32(7), false},
		{"Int32FromString", TypeInt32, " 12 ", int32(12), false},
		{"Int32FromFractional", TypeInt32, 1.5, nil, true},
		{"Int32Overflow", TypeInt32, int64(math.MaxInt32) + 1, nil, true},
		{"Int32FromBool", TypeInt32, true, nil, true},

		{"Int64FromFloatString", TypeInt64, "3e3", int64(3000), false},
		{"Int64FromUint64Overflow", TypeInt64, uint64(math.MaxUint64), nil, true},

		{"Float32FromInt", TypeFloat32, 3, float32(3), false},
		{"Float32Overflow", TypeFloat32, math.MaxFloat64, nil, true},
		{"Float64FromString", TypeFloat64, "2.5", 2.5, false},
		{"Float64FromBool", TypeFloat64, false, nil, true},
		{"Float64FromNil", TypeFloat64, nil, nil, true},
		{"Float64FromLargestExactInt", TypeFloat64, int64(1 << 53), float64(1 << 53), false},
		{"Float64FromInexactInt", TypeFloat64, int64(1<<53 + 1), nil, true},
		{"Float64FromInexactJSONNumber", TypeFloat64, json.Number("-9007199254740993"), nil, true},
		{"Float64FromHugeUint", TypeFloat64, uint64(math.MaxUint64), nil, true},
		{"Float64FromJSONFraction", TypeFloat64, json.Number("0.25"), 0.25, false},

		{"StringFromString", TypeString, "N737PS", "N737PS", false},
		{"StringFromStringer", TypeString, label("abc"), "abc", false},
		{"StringFromNumber", TypeString, 12, nil, true},

		{"UnknownKeepsInt32", TypeUnknown, int32(4), int32(4), false},
		{"UnknownKeepsString", TypeUnknown, "abc", "abc", false},
		{"UnknownFromJSONInt", TypeUnknown, json.Number("3"), int64(3), false},
		{"UnknownFromJSONFloat", TypeUnknown, json.Number("2.5"), 2.5, false},
		{"UnknownRejectsObject", TypeUnknown, map[string]any{}, nil, true},
		{"UnknownRejectsArray", TypeUnknown, []any{1.0, 2.0}, nil, true},
		{"UnknownRejectsNil", TypeUnknown, nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.dt.Coerce(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, ErrTypeCoercion), "error should wrap ErrTypeCoercion: %v", err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
