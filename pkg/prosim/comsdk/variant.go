package comsdk

import (
	"fmt"
	"math"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// goValue converts a VARIANT into one of the Go types the binding coerces:
// bool, int32, int64, float32, float64 or string.
func goValue(v *ole.VARIANT) any {
	if v == nil {
		return nil
	}
	switch x := v.Value().(type) {
	case nil:
		return nil
	case bool, int32, int64, float32, float64, string:
		return x
	case int8:
		return int32(x)
	case int16:
		return int32(x)
	case uint8:
		return int32(x)
	case uint16:
		return int32(x)
	case uint32:
		return int64(x)
	case int:
		return int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return float64(x)
		}
		return int64(x)
	case *ole.IDispatch:
		return nil
	default:
		return fmt.Sprint(x)
	}
}

func getProp(d *ole.IDispatch, name string) (any, error) {
	v, err := oleutil.GetProperty(d, name)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	defer func() { _ = v.Clear() }()
	return goValue(v), nil
}

func getString(d *ole.IDispatch, name string) string {
	v, err := getProp(d, name)
	if err != nil || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func getBool(d *ole.IDispatch, name string) bool {
	v, err := getProp(d, name)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

// forEach walks a COM collection, handing each element as IDispatch.
func forEach(coll *ole.IDispatch, fn func(item *ole.IDispatch)) error {
	return oleutil.ForEach(coll, func(v *ole.VARIANT) error {
		item := v.ToIDispatch()
		if item == nil {
			return nil
		}
		defer item.Release()
		fn(item)
		return nil
	})
}

// forEachValue walks a COM collection of scalar values.
func forEachValue(coll *ole.IDispatch, fn func(v any)) error {
	return oleutil.ForEach(coll, func(v *ole.VARIANT) error {
		fn(goValue(v))
		return nil
	})
}
