package harness

import (
	"github.com/roach88/trialrun/internal/data"
	"github.com/roach88/trialrun/internal/engine"
)

// TraceEvent is one engine event as seen by the harness.
type TraceEvent struct {
	Seq        int64       `json:"seq"`
	Type       string      `json:"type"`
	TrialIndex int         `json:"trial_index,omitempty"`
	TrialType  string      `json:"trial_type,omitempty"`
	Record     data.Record `json:"record,omitempty"`
	Warning    string      `json:"warning,omitempty"`
	Status     string      `json:"status,omitempty"`
}

// isTrialEvent reports whether the event carries a trial index.
func (ev TraceEvent) isTrialEvent() bool {
	switch ev.Type {
	case engine.EventTrialStarted.String(), engine.EventTrialFinished.String(), engine.EventWarning.String():
		return true
	}
	return false
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when the expect clause and every assertion hold.
	Pass bool `json:"pass"`

	RunID  string `json:"run_id"`
	Status string `json:"status"`

	// Error is the error returned by the run, if any.
	Error string `json:"error,omitempty"`

	// Trace holds the run's events in publication order.
	Trace []TraceEvent `json:"trace"`

	// Records are the run's trial records.
	Records []data.Record `json:"records"`

	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Records: []data.Record{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends an engine event to the trace.
func (r *Result) AddEvent(ev engine.Event) {
	te := TraceEvent{
		Seq:        int64(len(r.Trace) + 1),
		Type:       ev.Type.String(),
		TrialIndex: ev.TrialIndex,
		TrialType:  ev.TrialType,
		Record:     ev.Record,
		Status:     ev.Status,
	}
	if ev.Warning != nil {
		te.Warning = string(ev.Warning.Code)
	}
	r.Trace = append(r.Trace, te)
}
