package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/trialrun/internal/data"
)

// TraceSnapshot captures the complete trace of a scenario execution.
type TraceSnapshot struct {
	ScenarioName string
	RunID        string
	Status       string
	Trace        []TraceEvent
}

// canonicalHeader returns the first line of a snapshot.
func (s *TraceSnapshot) canonicalHeader() map[string]any {
	return map[string]any{
		"scenario": s.ScenarioName,
		"run_id":   s.RunID,
		"status":   s.Status,
	}
}

// canonicalEvent converts a trace event to a map for canonical JSON.
func canonicalEvent(ev TraceEvent) map[string]any {
	m := map[string]any{
		"seq":  ev.Seq,
		"type": ev.Type,
	}
	if ev.isTrialEvent() {
		m["trial_index"] = int64(ev.TrialIndex)
	}
	if ev.TrialType != "" {
		m["trial_type"] = ev.TrialType
	}
	if ev.Record != nil {
		m["record"] = map[string]any(ev.Record)
	}
	if ev.Warning != "" {
		m["warning"] = ev.Warning
	}
	if ev.Status != "" {
		m["status"] = ev.Status
	}
	return m
}

// Marshal renders the snapshot as canonical JSON lines: a header line, then
// one line per event.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	line, err := data.MarshalCanonical(s.canonicalHeader())
	if err != nil {
		return nil, err
	}
	buf.Write(line)
	buf.WriteByte('\n')

	for _, ev := range s.Trace {
		line, err := data.MarshalCanonical(canonicalEvent(ev))
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.Seq, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario, fails the test if it does not pass and
// compares its trace with testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if !result.Pass {
		t.Errorf("scenario %s failed:\n%v", scenario.Name, result.Errors)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the result's trace with a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		RunID:        result.RunID,
		Status:       result.Status,
		Trace:        result.Trace,
	}
	out, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, out)
	return nil
}
