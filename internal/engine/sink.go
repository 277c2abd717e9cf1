package engine

import (
	"context"
	"sync"

	"github.com/roach88/trialrun/internal/store"
)

// Sink receives the runs and trial records an engine produces.
// *store.Store implements it.
type Sink interface {
	BeginRun(ctx context.Context, run store.Run) error
	WriteTrial(ctx context.Context, rec store.TrialRecord) error
	FinishRun(ctx context.Context, runID, status, endMessage string) error
}

var _ Sink = (*store.Store)(nil)

// discardSink drops everything. It is the default when no sink is configured.
type discardSink struct{}

func (discardSink) BeginRun(context.Context, store.Run) error { return nil }
func (discardSink) WriteTrial(context.Context, store.TrialRecord) error { return nil }
func (discardSink) FinishRun(context.Context, string, string, string) error { return nil }

// MemorySink keeps runs and records in memory. Useful in tests and for
// one-shot runs whose data is written elsewhere.
type MemorySink struct {
	mu      sync.Mutex
	runs    map[string]store.Run
	records map[string][]store.TrialRecord
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		runs:    make(map[string]store.Run),
		records: make(map[string][]store.TrialRecord),
	}
}

func (m *MemorySink) BeginRun(_ context.Context, run store.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; ok {
		return nil
	}
	if run.Status == "" {
		run.Status = store.RunRunning
	}
	m.runs[run.ID] = run
	return nil
}

func (m *MemorySink) WriteTrial(_ context.Context, rec store.TrialRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.RunID] = append(m.records[rec.RunID], rec)
	return nil
}

func (m *MemorySink) FinishRun(_ context.Context, runID, status, endMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := m.runs[runID]
	run.Status = status
	run.EndMessage = endMessage
	m.runs[runID] = run
	return nil
}

// Run returns the stored run and whether it exists.
func (m *MemorySink) Run(id string) (store.Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	return run, ok
}

// Records returns the records written for a run in write order.
func (m *MemorySink) Records(runID string) []store.TrialRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.TrialRecord(nil), m.records[runID]...)
}
