package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
)

// Collection is an ordered list of records.
//
// A Collection handed out by the engine is a snapshot; adding to it does not
// affect the run.
type Collection struct {
	records []Record
}

// NewCollection wraps records without copying them.
func NewCollection(records ...Record) *Collection {
	return &Collection{records: records}
}

// Add appends a record.
func (c *Collection) Add(r Record) {
	c.records = append(c.records, r)
}

// Records returns the records in order.
func (c *Collection) Records() []Record {
	if c == nil {
		return nil
	}
	return c.records
}

// Count returns the number of records.
func (c *Collection) Count() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// First returns the first n records as a new collection.
func (c *Collection) First(n int) *Collection {
	n = min(max(n, 0), c.Count())
	return NewCollection(slices.Clone(c.Records()[:n])...)
}

// Last returns the last n records as a new collection.
func (c *Collection) Last(n int) *Collection {
	n = min(max(n, 0), c.Count())
	return NewCollection(slices.Clone(c.Records()[c.Count()-n:])...)
}

// Filter returns the records that hold every key of filter with an equal value.
func (c *Collection) Filter(filter map[string]any) *Collection {
	return c.FilterFunc(func(r Record) bool { return r.Matches(filter) })
}

// FilterFunc returns the records for which keep returns true.
func (c *Collection) FilterFunc(keep func(Record) bool) *Collection {
	out := NewCollection()
	for _, r := range c.Records() {
		if keep(r) {
			out.Add(r)
		}
	}
	return out
}

// Values returns the value of column for every record that has it.
func (c *Collection) Values(column string) []any {
	var out []any
	for _, r := range c.Records() {
		if v, ok := r[column]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Ignore returns copies of the records without the named columns.
func (c *Collection) Ignore(columns ...string) *Collection {
	out := NewCollection()
	for _, r := range c.Records() {
		cp := r.Clone()
		for _, col := range columns {
			delete(cp, col)
		}
		out.Add(cp)
	}
	return out
}

// Columns returns the union of all record keys in canonical order.
func (c *Collection) Columns() []string {
	seen := map[string]bool{}
	var cols []string
	for _, r := range c.Records() {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	slices.SortFunc(cols, compareKeysRFC8785)
	return cols
}

// MarshalJSON encodes the collection as a canonical JSON array.
func (c *Collection) MarshalJSON() ([]byte, error) {
	arr := make([]any, 0, c.Count())
	for _, r := range c.Records() {
		arr = append(arr, map[string]any(r))
	}
	return MarshalCanonical(arr)
}

// WriteCSV writes one row per record with a header of all columns. Scalar
// cells are written verbatim; containers are written as canonical JSON.
func (c *Collection) WriteCSV(w io.Writer) error {
	cols := c.Columns()
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	for i, r := range c.Records() {
		row := make([]string, len(cols))
		for j, col := range cols {
			cell, err := csvCell(r[col])
			if err != nil {
				return fmt.Errorf("record %d column %q: %w", i, col, err)
			}
			row[j] = cell
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvCell(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return formatNumber(val)
	default:
		b, err := MarshalCanonical(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
