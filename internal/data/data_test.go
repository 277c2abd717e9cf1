package data

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"int", 42, "42"},
		{"negative int", int64(-100), "-100"},
		{"float", 512.25, "512.25"},
		{"whole float", 300.0, "300"},
		{"tiny float", 1e-7, "1e-7"},
		{"huge float", 1e21, "1e+21"},
		{"null", nil, "null"},
		{"bool", true, "true"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"typed slice", []int{1, 2, 3}, "[1,2,3]"},
		{"sorted keys", map[string]any{"zebra": 1, "alpha": 2}, `{"alpha":2,"zebra":1}`},
		{"no html escape", "<b>&</b>", `"<b>&</b>"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalRejects(t *testing.T) {
	_, err := MarshalCanonical(math.NaN())
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"fn": func() {}})
	assert.Error(t, err)
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(result))

	result, err = MarshalCanonical(`a\u2028b`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	decomposed := "e\u0301"
	result, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestNormalize(t *testing.T) {
	type response struct {
		Key string `json:"key"`
	}

	got, err := Normalize(map[string]any{
		"rt":       int32(512),
		"choices":  []string{"f", "j"},
		"response": response{Key: "f"},
		"nested":   map[string]int{"a": 1},
		"ptr":      (*int)(nil),
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"rt":       int64(512),
		"choices":  []any{"f", "j"},
		"response": map[string]any{"key": "f"},
		"nested":   map[string]any{"a": int64(1)},
		"ptr":      nil,
	}, got)
}

func TestNormalize_Time(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got, err := Normalize(at)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-02T03:04:05Z", got)
}

func TestRecordIDDeterminism(t *testing.T) {
	rec := Record{"rt": int64(300), "response": "f"}

	id1, err := RecordID("run-1", 1, rec)
	require.NoError(t, err)
	id2, err := RecordID("run-1", 1, rec)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestRecordIDChangesWithInput(t *testing.T) {
	rec := Record{"rt": int64(300)}

	id1 := MustRecordID("run-1", 1, rec)
	id2 := MustRecordID("run-2", 1, rec)
	id3 := MustRecordID("run-1", 2, rec)
	id4 := MustRecordID("run-1", 1, Record{"rt": int64(301)})

	assert.NotEqual(t, id1, id2, "different runs")
	assert.NotEqual(t, id1, id3, "different seq")
	assert.NotEqual(t, id1, id4, "different record")
}

func TestRecord_CloneIsDeep(t *testing.T) {
	rec := Record{"stimulus": map[string]any{"color": "red"}, "tags": []any{"a"}}

	cp := rec.Clone()
	cp["stimulus"].(map[string]any)["color"] = "blue"
	cp["tags"].([]any)[0] = "b"

	assert.Equal(t, "red", rec["stimulus"].(map[string]any)["color"])
	assert.Equal(t, "a", rec["tags"].([]any)[0])
}

func TestRecord_Matches(t *testing.T) {
	rec := Record{"trial_type": "text", "block": int64(2)}

	assert.True(t, rec.Matches(map[string]any{"trial_type": "text"}))
	assert.True(t, rec.Matches(nil))
	assert.False(t, rec.Matches(map[string]any{"block": int64(3)}))
	assert.False(t, rec.Matches(map[string]any{"missing": nil}))
}

func testCollection() *Collection {
	return NewCollection(
		Record{"trial_index": int64(0), "trial_type": "text", "rt": int64(100)},
		Record{"trial_index": int64(1), "trial_type": "call-function"},
		Record{"trial_index": int64(2), "trial_type": "text", "rt": int64(250)},
	)
}

func TestCollection_Queries(t *testing.T) {
	c := testCollection()

	assert.Equal(t, 3, c.Count())
	assert.Equal(t, 2, c.Filter(map[string]any{"trial_type": "text"}).Count())
	assert.Equal(t, []any{int64(100), int64(250)}, c.Values("rt"))
	assert.Equal(t, int64(2), c.Last(1).Records()[0]["trial_index"])
	assert.Equal(t, int64(0), c.First(1).Records()[0]["trial_index"])
	assert.Equal(t, 3, c.Last(10).Count())
	assert.Equal(t, []string{"rt", "trial_index", "trial_type"}, c.Columns())

	ignored := c.Ignore("rt")
	assert.Empty(t, ignored.Values("rt"))
	assert.Equal(t, []any{int64(100), int64(250)}, c.Values("rt"), "source untouched")
}

func TestCollection_NilIsEmpty(t *testing.T) {
	var c *Collection
	assert.Equal(t, 0, c.Count())
	assert.Empty(t, c.Records())
}

func TestCollection_MarshalJSON(t *testing.T) {
	c := NewCollection(Record{"b": int64(1), "a": "x"})

	out, err := c.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `[{"a":"x","b":1}]`, string(out))
}

func TestCollection_WriteCSV(t *testing.T) {
	c := NewCollection(
		Record{"rt": 512.5, "response": "f"},
		Record{"response": []any{"a", "b"}},
	)

	var buf bytes.Buffer
	require.NoError(t, c.WriteCSV(&buf))

	assert.Equal(t, "response,rt\nf,512.5\n\"[\"\"a\"\",\"\"b\"\"]\",\n", buf.String())
}
