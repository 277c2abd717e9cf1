package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/trialrun/internal/engine"
	"github.com/roach88/trialrun/internal/plugin"
	"github.com/roach88/trialrun/internal/plugins"
	"github.com/roach88/trialrun/internal/store"
	"github.com/roach88/trialrun/internal/testutil"
)

// Run executes a scenario and returns its result.
//
// Each scenario runs in a fresh in-memory database. The error return is for
// scenarios that cannot be executed at all; a failing run or assertion is
// reported through Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is like Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	desc, err := scenario.description()
	if err != nil {
		return nil, fmt.Errorf("failed to compile experiment: %w", err)
	}

	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	registry := plugins.Builtins(plugins.NewScriptResponder(scenario.Input...))
	if err := registry.Register(testutil.NewScriptedPlugin("scripted", scenario.Responses...)); err != nil {
		return nil, err
	}

	seed := scenario.Seed
	if seed == "" {
		seed = DefaultSeed
	}
	clock := testutil.NewManualClock(time.Time{})
	opts := []engine.EngineOption{
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithPlugins(registry),
		engine.WithSink(st),
		engine.WithRunIDGenerator(testutil.NewFixedID(scenario.RunID)),
		engine.WithSubjectIDGenerator(testutil.NewFixedID("test-subject")),
		engine.WithSeed(seed),
		engine.WithClock(clock.Now),
	}
	if scenario.MaxTrials > 0 {
		opts = append(opts, engine.WithMaxTrials(scenario.MaxTrials))
	}
	eng := engine.New(opts...)

	sub := eng.Subscribe()
	defer sub.Close()

	if scenario.Mode != "" {
		_, err = eng.Simulate(ctx, desc, plugin.SimulationMode(scenario.Mode), nil)
	} else {
		_, err = eng.Run(ctx, desc)
	}

	result := NewResult()
	result.RunID = eng.RunID()
	if err != nil {
		result.Error = err.Error()
	}
	for {
		ev, ok := sub.TryNext()
		if !ok {
			break
		}
		result.AddEvent(ev)
	}
	result.Records = append(result.Records, eng.Data().Records()...)
	if run, rerr := st.ReadRun(ctx, result.RunID); rerr == nil {
		result.Status = run.Status
	}

	for _, msg := range checkExpect(scenario.Expect, result) {
		result.AddError(msg)
	}
	actx := &AssertionContext{Store: st, Ctx: ctx, RunID: result.RunID}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// checkExpect compares the run outcome with the expect clause. Without a
// clause the run must not fail.
func checkExpect(expect *ExpectClause, result *Result) []string {
	if expect == nil {
		expect = &ExpectClause{}
	}
	var errs []string
	switch {
	case expect.Error == "" && result.Error != "":
		errs = append(errs, fmt.Sprintf("run failed: %s", result.Error))
	case expect.Error != "" && !strings.Contains(result.Error, expect.Error):
		errs = append(errs, fmt.Sprintf("expected run error containing %q, got %q", expect.Error, result.Error))
	}
	if expect.Status != "" && expect.Status != result.Status {
		errs = append(errs, fmt.Sprintf("expected status %q, got %q", expect.Status, result.Status))
	}
	if expect.Records != nil && *expect.Records != len(result.Records) {
		errs = append(errs, fmt.Sprintf("expected %d records, got %d", *expect.Records, len(result.Records)))
	}
	return errs
}
