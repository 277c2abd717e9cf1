package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *RuntimeError
		want string
	}{
		{
			name: "with run",
			err:  &RuntimeError{Code: ErrCodeAlreadyRunning, Message: "a run is already in progress", RunID: "run-1"},
			want: "ALREADY_RUNNING: a run is already in progress (run=run-1)",
		},
		{
			name: "without run",
			err:  errNotRunning("Pause"),
			want: "NOT_RUNNING: Pause called with no run in progress",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorHelpers_Wrapped(t *testing.T) {
	wrap := func(err error) error { return fmt.Errorf("control: %w", err) }

	assert.True(t, IsNotRunning(wrap(errNotRunning("Resume"))))
	assert.True(t, IsAlreadyRunning(wrap(&RuntimeError{Code: ErrCodeAlreadyRunning})))
	assert.True(t, IsTimelineNotFound(wrap(&RuntimeError{Code: ErrCodeTimelineNotFound})))
	assert.False(t, IsNotRunning(errors.New("plain")))
}

func TestSinkError_UnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := error(newSinkError("run-1", "write trial", cause))

	assert.True(t, IsSinkError(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "SINK_FAILED: write trial: disk full (run=run-1)", err.Error())
}
