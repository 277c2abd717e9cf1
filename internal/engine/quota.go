package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxTrials bounds the number of trials one run may execute, so a
// loop_function that never returns false ends instead of spinning.
const DefaultMaxTrials = 10000

// TrialQuota counts finished trials for one run and enforces a limit.
// A limit of zero or less disables the check.
//
// Not safe for concurrent use; the run goroutine owns it.
type TrialQuota struct {
	max     int
	current int
}

// NewTrialQuota creates a quota with the given limit.
func NewTrialQuota(max int) *TrialQuota {
	return &TrialQuota{max: max}
}

// Check counts one more trial and reports TrialLimitError once the limit is
// exceeded.
func (q *TrialQuota) Check(runID string) error {
	q.current++
	if q.max > 0 && q.current > q.max {
		return &TrialLimitError{RunID: runID, Trials: q.current, Limit: q.max}
	}
	return nil
}

// Reset sets the count back to zero.
func (q *TrialQuota) Reset() {
	q.current = 0
}

// Current returns the number of trials counted so far.
func (q *TrialQuota) Current() int {
	return q.current
}

// Max returns the configured limit.
func (q *TrialQuota) Max() int {
	return q.max
}

// TrialLimitError is returned by Run when a run exceeds its trial quota. The
// run is aborted after the trial that crossed the limit; its records are kept.
type TrialLimitError struct {
	RunID  string
	Trials int
	Limit  int
}

func (e *TrialLimitError) Error() string {
	return fmt.Sprintf("run %s exceeded trial limit: %d trials > %d limit", e.RunID, e.Trials, e.Limit)
}

// RuntimeError converts the limit error into the engine's general error type.
func (e *TrialLimitError) RuntimeError() *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeTrialLimit,
		Message: fmt.Sprintf("run exceeded %d trials", e.Limit),
		RunID:   e.RunID,
		Details: map[string]string{
			"trials": fmt.Sprintf("%d", e.Trials),
			"limit":  fmt.Sprintf("%d", e.Limit),
		},
	}
}

// IsTrialLimitError returns true if err is or wraps a TrialLimitError.
func IsTrialLimitError(err error) bool {
	var le *TrialLimitError
	return errors.As(err, &le)
}
