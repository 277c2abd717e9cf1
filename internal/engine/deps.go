package engine

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/roach88/trialrun/internal/plugin"
	"github.com/roach88/trialrun/internal/store"
	"github.com/roach88/trialrun/internal/timeline"
)

// runDeps connects the timeline tree of the current run to the engine.
type runDeps struct {
	e *Engine
}

var _ timeline.Dependencies = runDeps{}

func (d runDeps) OnTrialStart(t *timeline.Trial) {
	e := d.e
	runID := e.RunID()
	e.logger.Debug("trial starting",
		"run_id", runID,
		"trial_index", t.Index(),
		"trial_type", t.PluginInfo().Name)

	if e.onTrialStart != nil {
		e.onTrialStart(t)
	}
	e.publish(Event{
		Type:       EventTrialStarted,
		RunID:      runID,
		TrialIndex: t.Index(),
		TrialType:  t.PluginInfo().Name,
	})
}

// OnTrialResultAvailable stamps time_elapsed and appends the record to the
// run's data. Trials with record_data: false have no record.
func (d runDeps) OnTrialResultAvailable(t *timeline.Trial) {
	e := d.e
	rec := t.Result()
	if rec == nil {
		return
	}
	rec["time_elapsed"] = e.TotalTime().Milliseconds()

	e.mu.Lock()
	e.records = append(e.records, rec)
	e.mu.Unlock()
}

// OnTrialFinished persists the record, runs the engine-level callbacks and
// enforces the trial quota.
func (d runDeps) OnTrialFinished(t *timeline.Trial) {
	e := d.e
	rec := t.Result()
	typ := t.PluginInfo().Name

	e.mu.Lock()
	runID, ctx, root := e.runID, e.runCtx, e.root
	e.mu.Unlock()
	logger := e.logger.With("run_id", runID, "trial_index", t.Index(), "trial_type", typ)

	if rec != nil {
		err := e.sink.WriteTrial(context.WithoutCancel(ctx), store.TrialRecord{
			RunID:      runID,
			Seq:        e.clock.Next(),
			TrialIndex: int64(t.Index()),
			TrialType:  typ,
			Data:       rec,
		})
		if err != nil {
			logger.Error("failed to write trial record", "error", err)
			d.fail(newSinkError(runID, "write trial", err), root)
		}
	}

	if e.onTrialFinish != nil {
		e.onTrialFinish(rec)
	}
	if rec != nil && e.onDataUpdate != nil {
		e.onDataUpdate(rec)
	}
	e.publish(Event{
		Type:       EventTrialFinished,
		RunID:      runID,
		TrialIndex: t.Index(),
		TrialType:  typ,
		Record:     rec,
	})
	logger.Debug("trial finished", "recorded", rec != nil)

	if err := e.quota.Check(runID); err != nil {
		logger.Warn("trial limit reached, aborting run", "limit", e.quota.Max())
		d.fail(err, root)
	}
}

// fail keeps the first run-level error and stops the run after the current
// trial.
func (d runDeps) fail(err error, root *timeline.Timeline) {
	e := d.e
	e.mu.Lock()
	if e.runErr == nil {
		e.runErr = err
	}
	e.mu.Unlock()
	root.Abort()
}

func (d runDeps) Warn(w timeline.Warning) {
	e := d.e
	runID := e.RunID()
	e.logger.Warn(w.Message,
		"run_id", runID,
		"code", string(w.Code),
		"trial_index", w.TrialIndex)

	e.mu.Lock()
	e.warnings = append(e.warnings, w)
	e.mu.Unlock()
	e.publish(Event{Type: EventWarning, RunID: runID, TrialIndex: w.TrialIndex, Warning: &w})
}

func (d runDeps) ResolvePlugin(name string) (plugin.Plugin, bool) {
	return d.e.plugins.Lookup(name)
}

func (d runDeps) Rand() *rand.Rand {
	return d.e.Rand()
}

func (d runDeps) FinishSignal() *plugin.Deferred {
	d.e.mu.Lock()
	defer d.e.mu.Unlock()
	return d.e.finish
}

func (d runDeps) DefaultITI() time.Duration {
	return d.e.defaultITI
}

func (d runDeps) SimulationMode() plugin.SimulationMode {
	d.e.mu.Lock()
	defer d.e.mu.Unlock()
	return d.e.mode
}

func (d runDeps) GlobalSimulationOptions() map[string]any {
	d.e.mu.Lock()
	defer d.e.mu.Unlock()
	return d.e.simOptions
}

func (d runDeps) Display() plugin.Display { return d.e.display }
func (d runDeps) API() plugin.API { return d.e }
