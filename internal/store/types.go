package store

import "github.com/roach88/trialrun/internal/data"

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunAborted   = "aborted"
	RunFailed    = "failed"
)

// Run is one execution of a timeline.
type Run struct {
	ID        string
	SubjectID string
	Seed      string

	// Mode is the simulation mode, or "" for a live run.
	Mode string

	Status     string
	EndMessage string

	EngineVersion string
	SchemaVersion string
}

// TrialRecord is one persisted trial result.
type TrialRecord struct {
	// ID is content-addressed; WriteTrial fills it in when empty.
	ID    string
	RunID string

	// Seq orders records within a run.
	Seq int64

	TrialIndex int64
	TrialType  string
	Data       data.Record
}
