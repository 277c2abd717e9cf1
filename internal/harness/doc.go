// Package harness runs conformance scenarios against the engine.
//
// A scenario is a YAML file that embeds (or points to) an experiment, scripts
// the participant's responses, and asserts on the resulting event trace, the
// recorded data and the persisted run.
//
// # Scenario Format
//
//	name: nested_variables
//	description: "Variables resolve through nested timelines"
//	seed: fixed-seed                 # optional
//	mode: data-only                  # optional; simulate instead of run
//	experiment:                      # inline description, or
//	  - type: scripted
//	    stimulus: hello
//	file: experiment.cue             # an experiment file relative to the scenario
//	responses:                       # data returned by the "scripted" plugin, in order
//	  - {response: a}
//	input: [r, b]                    # lines answered to the text plugins, in order
//	expect:
//	  status: completed
//	  records: 1
//	assertions:
//	  - type: trace_contains
//	    event: trial_finished
//	    record: {response: a}
//	  - type: final_state
//	    table: runs
//	    expect: {status: completed}
//
// # Assertion Types
//
//   - trace_contains: an event of the given type whose record contains the fields
//   - trace_order: event types (optionally "type:trial_type") appear in order
//   - trace_count: an event type occurs exactly N times
//   - column_values: the run's values of one record column, in order
//   - warning: an advisory warning with the given code was raised
//   - final_state: the persisted run row, or the first matching trial row
//
// # Deterministic Testing
//
// Scenarios run with a fixed run id, a manual clock that never advances and a
// fixed seed, against an in-memory SQLite store. The event trace of a run is
// therefore identical from one execution to the next and can be compared
// with a golden file (see RunWithGolden).
package harness
