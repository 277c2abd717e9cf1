package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/roach88/trialrun/internal/data"
	"github.com/roach88/trialrun/internal/plugin"
	"github.com/roach88/trialrun/internal/sampling"
	"github.com/roach88/trialrun/internal/store"
	"github.com/roach88/trialrun/internal/timeline"
)

// Engine drives one timeline at a time.
//
// Run builds the root timeline from a description and advances it on the
// calling goroutine. Every other method is safe to call from any goroutine
// while a run is in progress; that is how an operator or a plugin steers the
// run (Pause, Resume, FinishTrial, the Abort family).
//
// The engine owns the run-wide finish signal. A plugin that returns no
// Deferred waits for FinishTrial; each call resolves the current signal and
// installs a fresh one for the next trial.
//
// Randomness flows from a single seeded sampling.Source. Setting the same
// seed and running the same description with the same responses reproduces
// the same order and the same records.
type Engine struct {
	logger     *slog.Logger
	display    plugin.Display
	plugins    *plugin.Registry
	defaultITI time.Duration
	seed       string
	source     *sampling.Source
	sink       Sink
	runIDs     IDGenerator
	subjectIDs IDGenerator
	now        func() time.Time

	onFinish      func(*data.Collection)
	onTrialStart  func(*timeline.Trial)
	onTrialFinish func(data.Record)
	onDataUpdate  func(data.Record)

	clock    *Clock
	quota    *TrialQuota
	timeouts *timeouts

	mu         sync.Mutex
	runCtx     context.Context
	root       *timeline.Timeline
	finish     *plugin.Deferred
	records    []data.Record
	warnings   []timeline.Warning
	runID      string
	subjectID  string
	mode       plugin.SimulationMode
	simOptions map[string]any
	startedAt  time.Time
	running    bool
	endMessage string
	runErr     error
	subs       map[*Subscription]struct{}
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithDisplay sets the surface trials render to. Default: a display that
// discards output.
func WithDisplay(d plugin.Display) EngineOption {
	return func(e *Engine) {
		e.display = d
	}
}

// WithPlugins sets the registry trial types are resolved against.
func WithPlugins(r *plugin.Registry) EngineOption {
	return func(e *Engine) {
		e.plugins = r
	}
}

// WithDefaultITI sets the gap after trials that set no post_trial_gap.
func WithDefaultITI(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.defaultITI = d
	}
}

// WithSeed seeds the run's random generator. An empty seed picks a random
// one; Seed reports it either way.
func WithSeed(seed string) EngineOption {
	return func(e *Engine) {
		e.seed = seed
	}
}

// WithSink sets where runs and records are written. *store.Store is the
// usual choice. Default: records are kept in memory only.
func WithSink(s Sink) EngineOption {
	return func(e *Engine) {
		e.sink = s
	}
}

// WithRunIDGenerator sets the run id generator. Default: UUIDv7Generator.
func WithRunIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithSubjectIDGenerator sets the subject id generator. Default: ULIDGenerator.
func WithSubjectIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.subjectIDs = g
	}
}

// WithClock sets the wall clock used for time_elapsed and TotalTime.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMaxTrials sets the trial quota per run.
//
// Default: DefaultMaxTrials. Zero disables the quota.
func WithMaxTrials(n int) EngineOption {
	return func(e *Engine) {
		e.quota = NewTrialQuota(n)
	}
}

// WithOnFinish is called with the run's data after a run completes without
// error.
func WithOnFinish(fn func(*data.Collection)) EngineOption {
	return func(e *Engine) {
		e.onFinish = fn
	}
}

// WithOnTrialStart is called before each trial's on_start callback.
func WithOnTrialStart(fn func(*timeline.Trial)) EngineOption {
	return func(e *Engine) {
		e.onTrialStart = fn
	}
}

// WithOnTrialFinish is called after each trial's on_finish callback. The
// record is nil for trials with record_data set to false.
func WithOnTrialFinish(fn func(data.Record)) EngineOption {
	return func(e *Engine) {
		e.onTrialFinish = fn
	}
}

// WithOnDataUpdate is called for every record added to the run's data.
func WithOnDataUpdate(fn func(data.Record)) EngineOption {
	return func(e *Engine) {
		e.onDataUpdate = fn
	}
}

// New creates an Engine.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		logger:     slog.Default(),
		display:    plugin.NewWriterDisplay(io.Discard),
		plugins:    plugin.NewRegistry(),
		sink:       discardSink{},
		runIDs:     UUIDv7Generator{},
		subjectIDs: ULIDGenerator{},
		now:        time.Now,
		clock:      NewClock(),
		quota:      NewTrialQuota(DefaultMaxTrials),
		timeouts:   newTimeouts(),
		finish:     plugin.NewDeferred(),
		subs:       make(map[*Subscription]struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.source = sampling.NewSource(e.seed)
	return e
}

// Run executes description to completion and returns the recorded data.
//
// description is a timeline description (a mapping with a "timeline" key) or
// a list of child descriptions, which is wrapped in an implicit root
// timeline. Run returns when the root timeline completes or is aborted.
//
// Configuration errors and plugin failures end the run and are returned
// together with the data recorded so far.
func (e *Engine) Run(ctx context.Context, description any) (*data.Collection, error) {
	return e.run(ctx, description, "", nil)
}

// Simulate executes description with simulated responses.
//
// Trials whose plugin implements plugin.Simulator produce data without a
// participant. In data-only mode nothing is rendered and post-trial gaps are
// skipped. options maps option set names to simulation options; trials select
// one with simulation_options, and the "default" set applies to all.
func (e *Engine) Simulate(ctx context.Context, description any, mode plugin.SimulationMode, options map[string]any) (*data.Collection, error) {
	if mode == "" {
		mode = plugin.DataOnly
	}
	if !mode.Valid() {
		return nil, &RuntimeError{Code: ErrCodeInvalidMode, Message: fmt.Sprintf("unknown simulation mode %q", mode)}
	}
	return e.run(ctx, description, mode, options)
}

func (e *Engine) run(ctx context.Context, description any, mode plugin.SimulationMode, simOptions map[string]any) (*data.Collection, error) {
	e.mu.Lock()
	if e.running {
		runID := e.runID
		e.mu.Unlock()
		return nil, &RuntimeError{Code: ErrCodeAlreadyRunning, Message: "a run is already in progress", RunID: runID}
	}
	e.running = true
	e.runCtx = ctx
	e.runID = e.runIDs.Generate()
	e.subjectID = e.subjectIDs.Generate()
	e.mode = mode
	e.simOptions = simOptions
	e.root = nil
	e.records = nil
	e.warnings = nil
	e.endMessage = ""
	e.runErr = nil
	e.startedAt = e.now()
	runID, subjectID := e.runID, e.subjectID
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	e.clock.Reset()
	e.quota.Reset()
	logger := e.logger.With("run_id", runID)

	root, err := timeline.New(runDeps{e}, description)
	if err != nil {
		return data.NewCollection(), err
	}
	e.mu.Lock()
	e.root = root
	e.mu.Unlock()

	err = e.sink.BeginRun(ctx, store.Run{
		ID:        runID,
		SubjectID: subjectID,
		Seed:      e.source.Seed(),
		Mode:      string(mode),
	})
	if err != nil {
		return data.NewCollection(), newSinkError(runID, "begin run", err)
	}

	logger.Info("run starting",
		"subject_id", subjectID,
		"seed", e.source.Seed(),
		"mode", string(mode),
		"trials", root.NaiveTrialCount())
	e.publish(Event{Type: EventRunStarted, RunID: runID})

	runErr := root.Run(ctx)
	e.timeouts.clearAll()

	e.mu.Lock()
	if runErr == nil {
		runErr = e.runErr
	}
	endMessage := e.endMessage
	collection := data.NewCollection(slices.Clone(e.records)...)
	e.mu.Unlock()

	status := store.RunCompleted
	switch {
	case runErr != nil && !IsTrialLimitError(runErr):
		status = store.RunFailed
	case root.Status() == timeline.StatusAborted || runErr != nil:
		status = store.RunAborted
	}

	if err := e.sink.FinishRun(context.WithoutCancel(ctx), runID, status, endMessage); err != nil && runErr == nil {
		runErr = newSinkError(runID, "finish run", err)
	}
	e.publish(Event{Type: EventRunFinished, RunID: runID, Status: status})

	if runErr != nil {
		logger.Error("run failed", "status", status, "error", runErr)
		return collection, runErr
	}

	logger.Info("run finished", "status", status, "records", collection.Count())
	if e.onFinish != nil {
		e.onFinish(collection)
	}
	return collection, nil
}

// FinishTrial ends the current trial with values. It may be called from any
// goroutine. Only a trial that is already waiting observes the call; the next
// trial waits on a fresh signal.
func (e *Engine) FinishTrial(values map[string]any) {
	e.mu.Lock()
	current := e.finish
	e.finish = plugin.NewDeferred()
	e.mu.Unlock()

	current.Resolve(values)
}

// Pause holds the run at the next trial boundary.
func (e *Engine) Pause() error {
	root, err := e.activeRoot("Pause")
	if err != nil {
		return err
	}
	root.Pause()
	e.logger.Info("run paused", "run_id", e.RunID())
	return nil
}

// Resume continues a paused run.
func (e *Engine) Resume() error {
	root, err := e.activeRoot("Resume")
	if err != nil {
		return err
	}
	root.Resume()
	e.logger.Info("run resumed", "run_id", e.RunID())
	return nil
}

// AbortExperiment ends the run. The current trial is finished with values and
// recorded; no further trials start. endMessage is stored with the run.
func (e *Engine) AbortExperiment(endMessage string, values map[string]any) error {
	root, err := e.activeRoot("AbortExperiment")
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.endMessage = endMessage
	e.mu.Unlock()

	root.Abort()
	e.timeouts.clearAll()
	e.FinishTrial(values)
	e.logger.Info("run aborted", "run_id", e.RunID(), "end_message", endMessage)
	return nil
}

// AbortCurrentTimeline aborts the innermost running timeline. Its parent
// carries on with the next child once the current trial ends.
func (e *Engine) AbortCurrentTimeline() error {
	root, err := e.activeRoot("AbortCurrentTimeline")
	if err != nil {
		return err
	}

	var current *timeline.Timeline
	switch n := root.LatestNode().(type) {
	case *timeline.Trial:
		current = n.Parent()
	case *timeline.Timeline:
		current = n
	}
	if current != nil {
		current.Abort()
	}
	return nil
}

// AbortTimelineByName aborts the running timeline whose name parameter is
// name.
func (e *Engine) AbortTimelineByName(name string) error {
	root, err := e.activeRoot("AbortTimelineByName")
	if err != nil {
		return err
	}

	tl := root.ActiveTimelineByName(name)
	if tl == nil {
		return &RuntimeError{
			Code:    ErrCodeTimelineNotFound,
			Message: fmt.Sprintf("no running timeline named %q", name),
			RunID:   e.RunID(),
		}
	}
	tl.Abort()
	return nil
}

// Progress summarizes how far the run has come.
type Progress struct {
	// TotalTrials is the naive trial count of the root timeline.
	TotalTrials int `json:"total_trials"`

	// CurrentTrialGlobal is the index of the latest trial.
	CurrentTrialGlobal int `json:"current_trial_global"`

	// PercentComplete is the naive progress in percent.
	PercentComplete float64 `json:"percent_complete"`
}

// Progress returns the progress of the current or last run. The figures
// ignore loops and conditions; see timeline.NaiveTrialCount.
func (e *Engine) Progress() Progress {
	e.mu.Lock()
	root := e.root
	e.mu.Unlock()
	if root == nil {
		return Progress{}
	}
	return Progress{
		TotalTrials:        root.NaiveTrialCount(),
		CurrentTrialGlobal: root.LatestNode().Index(),
		PercentComplete:    root.NaiveProgress() * 100,
	}
}

// CurrentTrial returns the latest trial of the current or last run, or nil.
func (e *Engine) CurrentTrial() *timeline.Trial {
	e.mu.Lock()
	root := e.root
	e.mu.Unlock()
	if root == nil {
		return nil
	}
	tr, _ := root.LatestNode().(*timeline.Trial)
	return tr
}

type variableEvaluator interface {
	EvaluateVariable(v timeline.Variable) (any, error)
}

// EvaluateVariable resolves a timeline variable as seen by the latest node.
func (e *Engine) EvaluateVariable(name string) (any, error) {
	e.mu.Lock()
	root := e.root
	e.mu.Unlock()
	if root == nil {
		return nil, errNotRunning("EvaluateVariable")
	}
	ev, ok := root.LatestNode().(variableEvaluator)
	if !ok {
		return nil, errNotRunning("EvaluateVariable")
	}
	return ev.EvaluateVariable(timeline.Var(name))
}

// TotalTime returns the time elapsed since the current run started.
func (e *Engine) TotalTime() time.Duration {
	e.mu.Lock()
	started := e.startedAt
	e.mu.Unlock()
	if started.IsZero() {
		return 0
	}
	return e.now().Sub(started)
}

// Data returns a snapshot of the records of the current or last run.
func (e *Engine) Data() *data.Collection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return data.NewCollection(slices.Clone(e.records)...)
}

// Warnings returns the advisory warnings raised by the current or last run.
func (e *Engine) Warnings() []timeline.Warning {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.warnings)
}

// RunID returns the id of the current or last run.
func (e *Engine) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}

// SubjectID returns the subject id of the current or last run.
func (e *Engine) SubjectID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.subjectID
}

// Running reports whether a run is in progress.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Seed returns the seed of the run's random generator.
func (e *Engine) Seed() string {
	return e.source.Seed()
}

// SetSeed reseeds the random generator and returns the seed in use. An empty
// seed picks a random one. The generator cannot be reseeded during a run.
func (e *Engine) SetSeed(seed string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return "", &RuntimeError{Code: ErrCodeAlreadyRunning, Message: "cannot reseed during a run", RunID: e.runID}
	}
	return e.source.Reseed(seed), nil
}

// Subscribe returns a subscription to the engine's events. Close it when
// done.
func (e *Engine) Subscribe() *Subscription {
	sub := newSubscription(func(s *Subscription) {
		e.mu.Lock()
		delete(e.subs, s)
		e.mu.Unlock()
	})
	e.mu.Lock()
	e.subs[sub] = struct{}{}
	e.mu.Unlock()
	return sub
}

func (e *Engine) publish(ev Event) {
	e.mu.Lock()
	subs := make([]*Subscription, 0, len(e.subs))
	for s := range e.subs {
		subs = append(subs, s)
	}
	e.mu.Unlock()

	for _, s := range subs {
		s.publish(ev)
	}
}

func (e *Engine) activeRoot(op string) (*timeline.Timeline, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || e.root == nil {
		return nil, errNotRunning(op)
	}
	return e.root, nil
}

// plugin.API

var _ plugin.API = (*Engine)(nil)

// SetTimeout runs fn after d unless the trial ends first.
func (e *Engine) SetTimeout(d time.Duration, fn func()) {
	e.timeouts.set(d, fn)
}

// ClearAllTimeouts cancels every pending timeout.
func (e *Engine) ClearAllTimeouts() {
	e.timeouts.clearAll()
}

// Rand returns the run's random generator. Only the run goroutine may use it.
func (e *Engine) Rand() *rand.Rand {
	return e.source.Rand()
}
