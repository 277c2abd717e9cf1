// Package plugins provides the built-in trial types.
//
//   - "text" shows a stimulus and records one typed response
//   - "survey-text" asks a list of free-text questions
//   - "call-function" runs a Go function and records its return value
//   - "external" waits until something outside the run calls FinishTrial
//
// Participant input comes from a Responder: a LineResponder over stdin for
// live runs, a ScriptResponder in tests and conformance scenarios.
package plugins

import "github.com/roach88/trialrun/internal/plugin"

// Builtins returns a registry holding every built-in plugin, reading
// participant input from r.
func Builtins(r Responder) *plugin.Registry {
	return plugin.NewRegistry(
		NewText(r),
		NewSurveyText(r),
		CallFunction{},
		External{},
	)
}
