// Package plugin defines the contract between the timeline core and the
// executors that run individual trials.
//
// A Plugin declares its parameters through Info and runs one trial per call to
// Trial. It completes the trial in one of two ways:
//
//   - return a Deferred and resolve it with the trial's data, or
//   - return a nil Deferred and call API.FinishTrial with the data.
//
// The core races the two sources; see the timeline package for the tie-break.
// When Trial returns a Deferred the plugin is responsible for calling
// Call.OnLoad once its content is in place. When it returns nil the core calls
// OnLoad itself.
package plugin

import (
	"context"
	"math/rand/v2"
	"time"
)

// Plugin executes trials of one type.
type Plugin interface {
	Info() Info
	Trial(ctx context.Context, call *Call) (*Deferred, error)
}

// Simulator is implemented by plugins that can produce plausible data without
// a participant.
type Simulator interface {
	Simulate(ctx context.Context, call *Call, opts SimulationOptions) (*Deferred, error)
}

// Call carries everything one trial invocation needs.
type Call struct {
	// Display is the surface the trial renders to.
	Display Display

	// Params is the trial description with every declared parameter resolved.
	Params map[string]any

	// OnLoad must be invoked once the trial's content is shown.
	OnLoad func()

	// API exposes run-wide services.
	API API
}

// API is the run-wide surface available to a running trial.
type API interface {
	// FinishTrial ends the current trial with data.
	FinishTrial(data map[string]any)

	// SetTimeout runs fn after d unless ClearAllTimeouts is called first.
	// Pending timeouts are cleared when the trial ends.
	SetTimeout(d time.Duration, fn func())

	// ClearAllTimeouts cancels every pending timeout.
	ClearAllTimeouts()

	// TotalTime reports the time elapsed since the run started.
	TotalTime() time.Duration

	// Rand returns the run's random generator. It may only be used
	// synchronously from within Trial or Simulate.
	Rand() *rand.Rand
}

// SimulationMode selects how a simulated trial behaves.
type SimulationMode string

const (
	// DataOnly produces data immediately without rendering anything.
	DataOnly SimulationMode = "data-only"

	// Visual renders the trial and responds after a simulated delay.
	Visual SimulationMode = "visual"
)

// Valid reports whether m is a known simulation mode.
func (m SimulationMode) Valid() bool {
	return m == DataOnly || m == Visual
}

// SimulationOptions control how one trial is simulated.
type SimulationOptions struct {
	// Simulate false runs the trial for real even in a simulated run.
	Simulate bool

	// Mode is the effective simulation mode for this trial.
	Mode SimulationMode

	// Data overrides simulated data fields.
	Data map[string]any
}
