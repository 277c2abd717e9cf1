package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/roach88/trialrun/internal/timeline"
)

// varKey marks a variable reference in loaded data.
const varKey = "$var"

// normalize lowers decoder output to maps keyed by string, []any and
// int64/float64 numbers.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			n, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("mapping key %v is not a string", k)
			}
			n, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			n, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		return val.Float64()
	case int:
		return int64(val), nil
	case uint64:
		return int64(val), nil
	default:
		return v, nil
	}
}

// jsonValue converts normalized data to the form the schema validator
// expects.
func jsonValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decodeJSON(b)
}

func decodeJSON(b []byte) (any, error) {
	var out any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// resolveVariables replaces {"$var": name} mappings with timeline.Var(name).
// path tracks the location for error messages.
func resolveVariables(v any, path string) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		if ref, ok := val[varKey]; ok {
			name, isString := ref.(string)
			if !isString || name == "" || len(val) != 1 {
				return nil, &CompileError{Field: path, Message: `variable reference must be {"$var": "<name>"} with no other keys`}
			}
			return timeline.Var(name), nil
		}
		out := make(map[string]any, len(val))
		for k, elem := range val {
			r, err := resolveVariables(elem, joinPath(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			r, err := resolveVariables(elem, path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
