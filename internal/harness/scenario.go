package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/trialrun/internal/compiler"
	"github.com/roach88/trialrun/internal/plugin"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Experiment is an inline experiment description. Exactly one of
	// Experiment and File must be set.
	Experiment any `yaml:"experiment,omitempty"`

	// File is an experiment file (YAML, CUE or HCL). Relative paths are
	// resolved against the scenario's directory by LoadScenario.
	File string `yaml:"file,omitempty"`

	// Seed seeds the run's random generator. Defaults to DefaultSeed.
	Seed string `yaml:"seed,omitempty"`

	// RunID is the fixed run id. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Mode simulates the run in the given mode instead of running it.
	Mode string `yaml:"mode,omitempty"`

	// Responses are returned in order by the "scripted" plugin.
	Responses []map[string]any `yaml:"responses,omitempty"`

	// Input lines answer the text and survey-text plugins in order.
	Input []string `yaml:"input,omitempty"`

	// MaxTrials overrides the engine's trial limit when positive.
	MaxTrials int `yaml:"max_trials,omitempty"`

	// Expect checks the overall outcome of the run.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Assertions validate the trace, the data and the stored run.
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultSeed seeds scenarios that do not set one.
const DefaultSeed = "harness-seed"

// ExpectClause specifies the expected outcome of a run.
type ExpectClause struct {
	// Status is the expected run status (completed, aborted or failed).
	Status string `yaml:"status,omitempty"`

	// Error is a substring of the expected run error. Empty means the run
	// must not fail.
	Error string `yaml:"error,omitempty"`

	// Records is the expected number of records, when set.
	Records *int `yaml:"records,omitempty"`
}

// Assertion validates trace, data or stored state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Event is an event type such as "trial_finished" (trace_contains,
	// trace_count).
	Event string `yaml:"event,omitempty"`

	// Record holds fields the event's record must contain (trace_contains).
	Record map[string]any `yaml:"record,omitempty"`

	// Events is the expected event order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Column and Values check one record column (column_values).
	Column string `yaml:"column,omitempty"`
	Values []any  `yaml:"values,omitempty"`

	// Code is an advisory warning code (warning).
	Code string `yaml:"code,omitempty"`

	// Table is "runs" or "trials" (final_state).
	Table string `yaml:"table,omitempty"`

	// Where selects the first matching trial row (final_state, trials).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertColumnValues  = "column_values"
	AssertWarning       = "warning"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos surface as errors. A relative File is resolved against
// the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.File != "" && !filepath.IsAbs(scenario.File) {
		scenario.File = filepath.Join(filepath.Dir(path), scenario.File)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// description compiles the scenario's experiment.
func (s *Scenario) description() (any, error) {
	if s.File != "" {
		return compiler.Load(s.File)
	}
	return compiler.CompileValue(s.Experiment)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if (s.Experiment == nil) == (s.File == "") {
		return fmt.Errorf("exactly one of experiment and file is required")
	}
	if s.Mode != "" && !plugin.SimulationMode(s.Mode).Valid() {
		return fmt.Errorf("mode %q is not a simulation mode", s.Mode)
	}
	if s.MaxTrials < 0 {
		return fmt.Errorf("max_trials must not be negative")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion checks that an assertion has the fields its type needs.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertion[%d]: trace_contains requires event", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertion[%d]: trace_order requires events", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertion[%d]: trace_count requires event", index)
		}
	case AssertColumnValues:
		if a.Column == "" {
			return fmt.Errorf("assertion[%d]: column_values requires column", index)
		}
	case AssertWarning:
		if a.Code == "" {
			return fmt.Errorf("assertion[%d]: warning requires code", index)
		}
	case AssertFinalState:
		if a.Table != "runs" && a.Table != "trials" {
			return fmt.Errorf("assertion[%d]: final_state table must be runs or trials, got %q", index, a.Table)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertion[%d]: final_state requires expect", index)
		}
	case "":
		return fmt.Errorf("assertion[%d]: type is required", index)
	default:
		return fmt.Errorf("assertion[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
