package query

import (
	"fmt"
	"slices"
	"strings"
)

// Predicate is a condition on record fields.
type Predicate interface {
	predicate()
}

// Equals matches records whose Field holds Value.
//
// Value must be JSON-native: string, bool, int64, float64 or nil. Integers
// and floats compare numerically, so 1 matches 1.0. A nil Value matches an
// explicit JSON null, not a missing field.
type Equals struct {
	Field string
	Value any
}

// And matches records that satisfy every predicate. An empty And matches
// every record.
type And struct {
	Predicates []Predicate
}

func (Equals) predicate() {}
func (And) predicate()    {}

// Select reads the records of one run.
type Select struct {
	RunID  string
	Filter Predicate // nil matches every record
}

// Where builds an And of Equals predicates from a field/value map. Fields
// are sorted so the compiled SQL is deterministic.
func Where(fields map[string]any) Predicate {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	and := And{Predicates: make([]Predicate, 0, len(keys))}
	for _, k := range keys {
		and.Predicates = append(and.Predicates, Equals{Field: k, Value: fields[k]})
	}
	return and
}

// validateField rejects field names that cannot be addressed as a single
// JSON object member.
func validateField(field string) error {
	if field == "" {
		return fmt.Errorf("field name is empty")
	}
	if strings.ContainsAny(field, "\"\\") {
		return fmt.Errorf("field name %q contains a quote or backslash", field)
	}
	return nil
}

// jsonPath addresses a top-level member of the record object.
func jsonPath(field string) string {
	return `$."` + field + `"`
}
