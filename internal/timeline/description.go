package timeline

import (
	"reflect"
	"slices"
)

// Description is a user-authored node description. Values may be plain data,
// zero-argument functions evaluated lazily, or Variable references.
type Description map[string]any

// Func is a lazily evaluated parameter value.
type Func = func() any

// Variable refers to a timeline variable by name.
type Variable struct {
	Name string
}

// Var returns a reference to the timeline variable name.
func Var(name string) Variable {
	return Variable{Name: name}
}

// StructuralKeys describe a timeline's own structure. A Trial never inherits
// them from its parent.
var StructuralKeys = []string{
	"timeline",
	"timeline_variables",
	"name",
	"repetitions",
	"loop_function",
	"conditional_function",
	"randomize_order",
	"sample",
	"on_timeline_start",
	"on_timeline_finish",
}

// IsStructuralKey reports whether key is one of StructuralKeys.
func IsStructuralKey(key string) bool {
	return slices.Contains(StructuralKeys, key)
}

// IsTimelineDescription reports whether d describes a Timeline: a list of
// child descriptions, or a mapping with a non-nil "timeline" key.
func IsTimelineDescription(d any) bool {
	switch v := d.(type) {
	case []any, []Description, []map[string]any:
		return true
	case Description:
		return v["timeline"] != nil
	case map[string]any:
		return v["timeline"] != nil
	default:
		return false
	}
}

// copyDescription deep-copies a description into plain maps and lists.
// Mappings become map[string]any and lists of descriptions become []any, so
// the rest of the package deals with one shape. Functions, Variables and
// other values are shared.
func copyDescription(v any) any {
	switch val := v.(type) {
	case Description:
		return copyDescription(map[string]any(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = copyDescription(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = copyDescription(elem)
		}
		return out
	case []Description:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = copyDescription(elem)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = copyDescription(elem)
		}
		return out
	default:
		return v
	}
}

// asList returns v as []any when it is any kind of slice or array.
func asList(v any) ([]any, bool) {
	if l, ok := v.([]any); ok {
		return l, true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// asInt converts the numeric shapes produced by Go literals and the YAML, CUE
// and HCL loaders to an int. Fractional floats are not integers.
func asInt(v any) (int, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return 0, false
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != float64(int(f)) {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}

// asFloat converts any numeric value to float64.
func asFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return 0, false
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

// isCallable reports whether v is a function taking no arguments and
// returning exactly one value.
func isCallable(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.(Func); ok {
		return true
	}
	t := reflect.TypeOf(v)
	return t.Kind() == reflect.Func && t.NumIn() == 0 && t.NumOut() == 1
}

func isFunc(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}

func call(v any) any {
	if fn, ok := v.(Func); ok {
		return fn()
	}
	out := reflect.ValueOf(v).Call(nil)
	return out[0].Interface()
}

func asVariable(v any) (Variable, bool) {
	switch val := v.(type) {
	case Variable:
		return val, true
	case *Variable:
		if val != nil {
			return *val, true
		}
	}
	return Variable{}, false
}
