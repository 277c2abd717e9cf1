package timeline

import (
	"math/rand/v2"
	"time"

	"github.com/roach88/trialrun/internal/plugin"
)

// Dependencies connects a timeline tree to the driver that runs it.
//
// Hooks are called on the run goroutine with no locks held; they may call
// back into the tree (Pause, Abort, Index) freely.
type Dependencies interface {
	// OnTrialStart is called after a trial's parameters are resolved and
	// before the plugin runs.
	OnTrialStart(t *Trial)

	// OnTrialResultAvailable is called once a trial's result record exists,
	// before its on_finish callback.
	OnTrialResultAvailable(t *Trial)

	// OnTrialFinished is called after the trial's on_finish callback.
	OnTrialFinished(t *Trial)

	// Warn reports an advisory warning.
	Warn(w Warning)

	// ResolvePlugin returns the plugin for a trial type name.
	ResolvePlugin(name string) (plugin.Plugin, bool)

	// Rand returns the run's random generator.
	Rand() *rand.Rand

	// FinishSignal returns the run-wide "finish the current trial" handle.
	// A new handle is installed every time the current one resolves.
	FinishSignal() *plugin.Deferred

	// DefaultITI is the gap after a trial that sets no post_trial_gap.
	DefaultITI() time.Duration

	// SimulationMode is empty for a normal run.
	SimulationMode() plugin.SimulationMode

	// GlobalSimulationOptions maps option set names to option mappings.
	GlobalSimulationOptions() map[string]any

	Display() plugin.Display
	API() plugin.API
}
