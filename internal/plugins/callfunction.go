package plugins

import (
	"context"
	"fmt"

	"github.com/roach88/trialrun/internal/plugin"
)

// CallFunction runs a function and records its return value under "value".
//
// func may be func(), func() any, or, with async set, func(done func(any))
// which ends the trial when done is called.
type CallFunction struct{}

var _ plugin.Plugin = CallFunction{}

func (CallFunction) Info() plugin.Info {
	return plugin.Info{
		Name:    "call-function",
		Version: "1.0.0",
		Parameters: []plugin.Parameter{
			{Name: "func", Type: plugin.Function, Required: true},
			{Name: "async", Type: plugin.Bool, Default: false},
		},
		Data: []plugin.Parameter{
			{Name: "value", Type: plugin.Object},
		},
	}
}

func (CallFunction) Trial(_ context.Context, call *plugin.Call) (*plugin.Deferred, error) {
	fn := call.Params["func"]
	call.OnLoad()

	if boolParam(call.Params["async"], false) {
		async, ok := fn.(func(done func(any)))
		if !ok {
			return nil, fmt.Errorf("call-function: async func must be func(done func(any)), got %T", fn)
		}
		d := plugin.NewDeferred()
		async(func(v any) {
			d.Resolve(map[string]any{"value": v})
		})
		return d, nil
	}

	switch f := fn.(type) {
	case func() any:
		return plugin.Resolved(map[string]any{"value": f()}), nil
	case func():
		f()
		return plugin.Resolved(map[string]any{"value": nil}), nil
	default:
		return nil, fmt.Errorf("call-function: func must be func() or func() any, got %T", fn)
	}
}
