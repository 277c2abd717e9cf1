package timeline

import (
	"errors"
	"fmt"
)

// ConfigError is a fatal configuration error. It ends the run: continuing with
// a malformed description would produce meaningless results.
type ConfigError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the offending parameter path, if any.
	Path string

	// TrialType is the plugin name of the trial that failed, if any.
	TrialType string
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeMissingParameter indicates a required parameter has no value.
	ErrCodeMissingParameter ConfigErrorCode = "MISSING_PARAMETER"

	// ErrCodeNotAnArray indicates an array parameter resolved to a non-list.
	ErrCodeNotAnArray ConfigErrorCode = "NOT_AN_ARRAY"

	// ErrCodeUnresolvedVariable indicates no enclosing timeline binds a variable.
	ErrCodeUnresolvedVariable ConfigErrorCode = "UNRESOLVED_VARIABLE"

	// ErrCodeInvalidSample indicates a malformed sample setting.
	ErrCodeInvalidSample ConfigErrorCode = "INVALID_SAMPLE"

	// ErrCodeInvalidDescription indicates a structurally malformed description.
	ErrCodeInvalidDescription ConfigErrorCode = "INVALID_DESCRIPTION"

	// ErrCodeUnknownPlugin indicates a trial type with no registered plugin.
	ErrCodeUnknownPlugin ConfigErrorCode = "UNKNOWN_PLUGIN"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	switch {
	case e.Path != "" && e.TrialType != "":
		return fmt.Sprintf("%s: %s (parameter=%s, type=%s)", e.Code, e.Message, e.Path, e.TrialType)
	case e.Path != "":
		return fmt.Sprintf("%s: %s (parameter=%s)", e.Code, e.Message, e.Path)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsConfigError returns true if err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsUnresolvedVariable returns true if err reports an unbound variable.
func IsUnresolvedVariable(err error) bool {
	return ConfigErrorCodeOf(err) == ErrCodeUnresolvedVariable
}

// ConfigErrorCodeOf returns the code of the ConfigError wrapped by err, or "".
func ConfigErrorCodeOf(err error) ConfigErrorCode {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func configErrorf(code ConfigErrorCode, format string, args ...any) *ConfigError {
	return &ConfigError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WarningCode categorizes advisory warnings.
type WarningCode string

const (
	// WarnUnknownSaveParameter: save_trial_parameters names an undeclared parameter.
	WarnUnknownSaveParameter WarningCode = "UNKNOWN_SAVE_PARAMETER"

	// WarnAmbiguousRepetitions: repetitions is not a non-negative integer.
	WarnAmbiguousRepetitions WarningCode = "AMBIGUOUS_REPETITIONS"

	// WarnSingleGroup: alternate-groups sampling was given one group.
	WarnSingleGroup WarningCode = "SINGLE_GROUP"

	// WarnRepeatShape: repetition counts do not match the items.
	WarnRepeatShape WarningCode = "REPEAT_SHAPE"

	// WarnPluginInfoIncomplete: a plugin's Info lacks a version or data fields.
	WarnPluginInfoIncomplete WarningCode = "PLUGIN_INFO_INCOMPLETE"
)

// Warning reports malformed input that was tolerated with a fallback.
type Warning struct {
	Code    WarningCode
	Message string

	// TrialIndex is the index of the node that raised the warning.
	TrialIndex int
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s (index=%d)", w.Code, w.Message, w.TrialIndex)
}
