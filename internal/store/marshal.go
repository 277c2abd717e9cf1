package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/trialrun/internal/data"
)

// marshalRecord converts a record to canonical JSON TEXT for storage.
func marshalRecord(rec data.Record) (string, error) {
	b, err := data.MarshalCanonical(map[string]any(rec))
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(b), nil
}

// unmarshalRecord parses stored JSON TEXT back into a record. Numbers are
// decoded via json.Number so integers come back as int64, matching the shapes
// data.Normalize produces, without float64 precision loss above 2^53.
func unmarshalRecord(text string) (data.Record, error) {
	if text == "" || text == "{}" {
		return data.Record{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return data.Record(fromJSONNumbers(m).(map[string]any)), nil
}

func fromJSONNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, elem := range val {
			val[k] = fromJSONNumbers(elem)
		}
		return val
	case []any:
		for i, elem := range val {
			val[i] = fromJSONNumbers(elem)
		}
		return val
	default:
		return v
	}
}
