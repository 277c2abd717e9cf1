// Package engine drives a timeline run from start to finish.
//
// The engine is the only place that knows about a whole run: it builds the
// root timeline, owns the random source, the finish signal and the timeout
// table, and hands every finished trial's record to a Sink.
//
// ARCHITECTURE:
//
// Single run goroutine:
// Engine.Run advances the timeline tree on the caller's goroutine. Trials run
// one at a time; hooks from the tree (runDeps) execute on that goroutine too.
// Control calls (Pause, Resume, FinishTrial, AbortExperiment, the timeline
// aborts) may arrive from any goroutine and only flip state that the run
// goroutine observes at trial boundaries.
//
// Record flow:
//  1. A trial's plugin completes (its own Deferred or FinishTrial)
//  2. The tree builds the record; OnTrialResultAvailable stamps time_elapsed
//  3. The trial's on_finish callback runs
//  4. OnTrialFinished stamps a seq from Clock and writes the record to the Sink
//  5. Subscribers receive EventTrialFinished
//
// ORDERING:
// Records are ordered by Clock seq, never by wall-clock time. Run ids are
// UUIDv7 and subject ids ULIDs, both sortable by creation time.
//
// TERMINATION:
// TrialQuota bounds the trials of a run. A run over its quota is aborted
// after the trial that crossed the limit and Run returns TrialLimitError.
package engine
