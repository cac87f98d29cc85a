package field

import (
	"math"
	"reflect"
	"slices"
)

// Cloner is implemented by values that know how to deep-copy themselves.
type Cloner interface {
	CloneValue() any
}

// Clone returns a copy of v that shares no mutable memory with it. Slices,
// arrays, maps, pointers and exported struct fields are copied recursively.
// Unexported struct fields are copied by value. Values implementing Cloner
// copy themselves.
func Clone(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64, float32, int, int64, bool, string:
		return x
	case []float64:
		if x == nil {
			return x
		}
		return slices.Clone(x)
	case Cloner:
		return x.CloneValue()
	}
	c := copier{seen: make(map[uintptr]reflect.Value)}
	return c.copy(reflect.ValueOf(v)).Interface()
}

// copier remembers the pointers it has already copied so that shared and
// cyclic references come out shared and cyclic in the copy.
type copier struct {
	seen map[uintptr]reflect.Value
}

func (c copier) copy(rv reflect.Value) reflect.Value {
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return rv
	}
	if rv.CanInterface() {
		if cl, ok := rv.Interface().(Cloner); ok {
			if out := reflect.ValueOf(cl.CloneValue()); out.IsValid() && out.Type().AssignableTo(rv.Type()) {
				return out
			}
		}
	}

	switch rv.Kind() {
	case reflect.Pointer:
		if out, ok := c.seen[rv.Pointer()]; ok {
			return out
		}
		out := reflect.New(rv.Type().Elem())
		c.seen[rv.Pointer()] = out
		out.Elem().Set(c.copy(rv.Elem()))
		return out
	case reflect.Struct:
		out := reflect.New(rv.Type()).Elem()
		out.Set(rv)
		for i := 0; i < rv.NumField(); i++ {
			if !rv.Type().Field(i).IsExported() {
				continue
			}
			out.Field(i).Set(c.copy(rv.Field(i)))
		}
		return out
	case reflect.Slice:
		if rv.IsNil() {
			return rv
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(c.copy(rv.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(rv.Type()).Elem()
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(c.copy(rv.Index(i)))
		}
		return out
	case reflect.Map:
		if rv.IsNil() {
			return rv
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), c.copy(iter.Value()))
		}
		return out
	case reflect.Interface:
		if rv.IsNil() {
			return rv
		}
		out := reflect.New(rv.Type()).Elem()
		out.Set(c.copy(rv.Elem()))
		return out
	}
	return rv
}

// Distance returns the largest absolute difference between two numeric
// values of the same shape. ok is false when the values are not comparable
// numerically.
func Distance(a, b any) (d float64, ok bool) {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		return absDiff(x, y), true
	case []float64:
		y, ok := b.([]float64)
		if !ok || len(x) != len(y) {
			return 0, false
		}
		for i := range x {
			d = math.Max(d, absDiff(x[i], y[i]))
		}
		return d, true
	}
	return 0, false
}

func absDiff(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		if math.IsNaN(a) && math.IsNaN(b) {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(a - b)
}
