package data

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Record is the data produced by one trial.
type Record map[string]any

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return cloneValue(map[string]any(r)).(map[string]any)
}

// Keys returns the record's keys in canonical order.
func (r Record) Keys() []string {
	keys := slices.Collect(maps.Keys(r))
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// Merge copies every key of other into r, overwriting existing keys.
func (r Record) Merge(other map[string]any) {
	for k, v := range other {
		r[k] = v
	}
}

// Matches reports whether r holds every key of filter with an equal value.
func (r Record) Matches(filter map[string]any) bool {
	for k, want := range filter {
		got, ok := r[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// NormalizeRecord converts m to a Record holding only JSON-native values.
func NormalizeRecord(m map[string]any) (Record, error) {
	if m == nil {
		return Record{}, nil
	}
	v, err := Normalize(m)
	if err != nil {
		return nil, err
	}
	return Record(v.(map[string]any)), nil
}

// Normalize converts v to JSON-native Go values. Integers become int64, floats
// float64, string-keyed maps map[string]any and slices []any. Values of other
// kinds (structs, time values) go through encoding/json. Functions and
// channels cannot be represented and return an error.
func Normalize(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string, bool, int64, float64:
		return val, nil
	case Record:
		return Normalize(map[string]any(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			n, err := Normalize(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			n, err := Normalize(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		if _, ok := v.(json.Marshaler); !ok {
			return Normalize(rv.Elem().Interface())
		}
	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Type().Key().Kind() == reflect.String {
			out := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				n, err := Normalize(iter.Value().Interface())
				if err != nil {
					return nil, fmt.Errorf("[%q]: %w", iter.Key().String(), err)
				}
				out[iter.Key().String()] = n
			}
			return out, nil
		}
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			n, err := Normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return nil, fmt.Errorf("unsupported record value of type %T", v)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode %T: %w", v, err)
	}
	return Normalize(decoded)
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = cloneValue(elem)
		}
		return out
	case Record:
		return Record(cloneValue(map[string]any(val)).(map[string]any))
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return v
	}
}
