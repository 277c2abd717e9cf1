package engine

import (
	"errors"
	"fmt"
)

// RuntimeError reports misuse of the engine's control surface or a failure
// of one of its collaborators. Configuration errors in a description are
// timeline.ConfigError values and pass through unchanged.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run, if any.
	RunID string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeNotRunning indicates a control call with no run in progress.
	ErrCodeNotRunning RuntimeErrorCode = "NOT_RUNNING"

	// ErrCodeAlreadyRunning indicates Run was called during another run.
	ErrCodeAlreadyRunning RuntimeErrorCode = "ALREADY_RUNNING"

	// ErrCodeTimelineNotFound indicates no active timeline has the given name.
	ErrCodeTimelineNotFound RuntimeErrorCode = "TIMELINE_NOT_FOUND"

	// ErrCodeTrialLimit indicates the run exceeded its trial quota.
	ErrCodeTrialLimit RuntimeErrorCode = "TRIAL_LIMIT"

	// ErrCodeSinkFailed indicates the record sink rejected a write.
	ErrCodeSinkFailed RuntimeErrorCode = "SINK_FAILED"

	// ErrCodeInvalidMode indicates an unknown simulation mode.
	ErrCodeInvalidMode RuntimeErrorCode = "INVALID_MODE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, e.Message, e.RunID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotRunning returns true if err reports a control call without a run.
func IsNotRunning(err error) bool {
	return runtimeCode(err) == ErrCodeNotRunning
}

// IsAlreadyRunning returns true if err reports a concurrent Run call.
func IsAlreadyRunning(err error) bool {
	return runtimeCode(err) == ErrCodeAlreadyRunning
}

// IsTimelineNotFound returns true if err reports an unknown timeline name.
func IsTimelineNotFound(err error) bool {
	return runtimeCode(err) == ErrCodeTimelineNotFound
}

// IsSinkError returns true if err reports a failed record write.
func IsSinkError(err error) bool {
	return runtimeCode(err) == ErrCodeSinkFailed
}

func runtimeCode(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func errNotRunning(op string) *RuntimeError {
	return &RuntimeError{Code: ErrCodeNotRunning, Message: op + " called with no run in progress"}
}

// sinkError wraps a sink failure. Unwrap exposes the cause.
type sinkError struct {
	*RuntimeError
	cause error
}

func newSinkError(runID, op string, cause error) *sinkError {
	return &sinkError{
		RuntimeError: &RuntimeError{
			Code:    ErrCodeSinkFailed,
			Message: fmt.Sprintf("%s: %v", op, cause),
			RunID:   runID,
		},
		cause: cause,
	}
}

func (e *sinkError) Unwrap() []error { return []error{e.RuntimeError, e.cause} }
