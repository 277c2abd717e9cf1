package query

import (
	"fmt"
	"strings"
)

const selectTrials = `SELECT id, run_id, seq, trial_index, trial_type, data FROM trial_records`

// stableOrder is appended to every query.
const stableOrder = ` ORDER BY seq ASC, id COLLATE BINARY ASC`

// Compile converts q to SQL and its parameters.
func Compile(q Select) (string, []any, error) {
	where := []string{"run_id = ?"}
	params := []any{q.RunID}

	if q.Filter != nil {
		sql, p, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where = append(where, sql)
		params = append(params, p...)
	}

	return selectTrials + " WHERE " + strings.Join(where, " AND ") + stableOrder, params, nil
}

func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case Equals:
		return compileEquals(pred)
	case *Equals:
		return compileEquals(*pred)
	case And:
		return compileAnd(pred)
	case *And:
		return compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEquals reads the field with json_extract. Booleans and null are
// matched on json_type because json_extract maps true to 1 and null to SQL
// NULL.
func compileEquals(eq Equals) (string, []any, error) {
	if err := validateField(eq.Field); err != nil {
		return "", nil, err
	}
	path := jsonPath(eq.Field)

	switch v := eq.Value.(type) {
	case nil:
		return "json_type(data, ?) = 'null'", []any{path}, nil
	case bool:
		want := "false"
		if v {
			want = "true"
		}
		return "json_type(data, ?) = ?", []any{path, want}, nil
	case string:
		return "json_type(data, ?) = 'text' AND json_extract(data, ?) = ?", []any{path, path, v}, nil
	case int64, float64:
		return "json_type(data, ?) IN ('integer', 'real') AND json_extract(data, ?) = ?", []any{path, path, v}, nil
	default:
		return "", nil, fmt.Errorf("field %s: unsupported value type %T", eq.Field, eq.Value)
	}
}

func compileAnd(and And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, p, err := compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		params = append(params, p...)
	}
	return strings.Join(parts, " AND "), params, nil
}
