package harness

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/trialrun/internal/data"
	"github.com/roach88/trialrun/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s", ev.Seq, eventLabel(ev))
			if ev.Record != nil {
				fmt.Fprintf(&buf, " %v", map[string]any(ev.Record))
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// eventLabel renders an event as "type" or "type:trial_type".
func eventLabel(ev TraceEvent) string {
	if ev.TrialType == "" {
		return ev.Type
	}
	return ev.Type + ":" + ev.TrialType
}

// matchesLabel reports whether ev matches want, written "type" or
// "type:trial_type".
func matchesLabel(ev TraceEvent, want string) bool {
	typ, trialType, hasTrialType := strings.Cut(want, ":")
	if ev.Type != typ {
		return false
	}
	return !hasTrialType || ev.TrialType == trialType
}

// assertTraceContains checks for an event of the given type whose record
// contains the expected fields.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if matchesLabel(ev, a.Event) && matchFields(ev.Record, a.Record) {
			return nil
		}
	}
	expected := a.Event
	if len(a.Record) > 0 {
		expected = fmt.Sprintf("%s with record %v", a.Event, a.Record)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "no matching event",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the listed events occur in order. Other
// events may occur in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Events) && matchesLabel(ev, a.Events[next]) {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: strings.Join(a.Events, " -> "),
		Actual:   fmt.Sprintf("stopped matching at %q", a.Events[next]),
		Trace:    trace,
	}
}

// assertTraceCount checks that an event occurs exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, ev := range trace {
		if matchesLabel(ev, a.Event) {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%s x%d", a.Event, a.Count),
		Actual:   fmt.Sprintf("%s x%d", a.Event, n),
		Trace:    trace,
	}
}

// assertColumnValues checks the values of one column across all records.
func assertColumnValues(records []data.Record, a Assertion) error {
	got := data.NewCollection(records...).Values(a.Column)
	want, err := data.Normalize(nonNilList(a.Values))
	if err != nil {
		return fmt.Errorf("column_values: %w", err)
	}
	if reflect.DeepEqual(nonNilList(got), want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertColumnValues,
		Expected: fmt.Sprintf("%s = %v", a.Column, want),
		Actual:   fmt.Sprintf("%s = %v", a.Column, got),
	}
}

func nonNilList(v []any) []any {
	if v == nil {
		return []any{}
	}
	return v
}

// assertWarning checks that a warning with the given code was raised.
func assertWarning(trace []TraceEvent, a Assertion) error {
	var codes []string
	for _, ev := range trace {
		if ev.Warning == "" {
			continue
		}
		if ev.Warning == a.Code {
			return nil
		}
		codes = append(codes, ev.Warning)
	}
	return &AssertionError{
		Type:     AssertWarning,
		Expected: a.Code,
		Actual:   fmt.Sprintf("warnings %v", codes),
	}
}

// assertFinalState checks the persisted run row or the first trial row that
// matches Where.
func assertFinalState(ctx context.Context, st *store.Store, runID string, a Assertion) error {
	var rows []map[string]any
	switch a.Table {
	case "runs":
		run, err := st.ReadRun(ctx, runID)
		if err != nil {
			return fmt.Errorf("final_state: read run %s: %w", runID, err)
		}
		rows = append(rows, map[string]any{
			"id":             run.ID,
			"subject_id":     run.SubjectID,
			"seed":           run.Seed,
			"mode":           run.Mode,
			"status":         run.Status,
			"end_message":    run.EndMessage,
			"engine_version": run.EngineVersion,
			"schema_version": run.SchemaVersion,
		})
	case "trials":
		trials, err := st.ReadTrials(ctx, runID)
		if err != nil {
			return fmt.Errorf("final_state: read trials of %s: %w", runID, err)
		}
		for _, tr := range trials {
			row := tr.Data.Clone()
			if row == nil {
				row = data.Record{}
			}
			row["seq"] = tr.Seq
			rows = append(rows, row)
		}
	}

	for _, row := range rows {
		if !matchFields(row, a.Where) {
			continue
		}
		if matchFields(row, a.Expect) {
			return nil
		}
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s row matching %v to contain %v", a.Table, a.Where, a.Expect),
			Actual:   fmt.Sprintf("%v", row),
		}
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: fmt.Sprintf("%s row matching %v", a.Table, a.Where),
		Actual:   fmt.Sprintf("none of %d rows match", len(rows)),
	}
}

// matchFields checks that actual contains every expected field. Expected
// values are normalized first so YAML ints compare equal to int64 record
// values.
func matchFields[M ~map[string]any](actual M, expected map[string]any) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok {
			return false
		}
		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares a record value with an expected value.
func valuesEqual(actual, expected any) bool {
	want, err := data.Normalize(expected)
	if err != nil {
		return false
	}
	got, err := data.Normalize(actual)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(got, want)
}

// AssertionContext provides the store for final_state assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
	RunID string
}

// EvaluateAssertions evaluates all assertions against the result and
// returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertColumnValues:
			err = assertColumnValues(result.Records, a)
		case AssertWarning:
			err = assertWarning(result.Trace, a)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, actx.RunID, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
