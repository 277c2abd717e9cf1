package plugins

import (
	"context"
	"fmt"
	"maps"

	"github.com/roach88/trialrun/internal/plugin"
)

// External waits until something outside the run ends the trial, for example
// a POST to the control server's finish endpoint. The data passed to
// FinishTrial becomes the trial's data.
type External struct{}

var (
	_ plugin.Plugin    = External{}
	_ plugin.Simulator = External{}
)

func (External) Info() plugin.Info {
	return plugin.Info{
		Name:    "external",
		Version: "1.0.0",
		Parameters: []plugin.Parameter{
			{Name: "message", Type: plugin.HTMLString, Default: ""},
		},
		Data: []plugin.Parameter{},
	}
}

func (External) Trial(_ context.Context, call *plugin.Call) (*plugin.Deferred, error) {
	if msg, _ := call.Params["message"].(string); msg != "" {
		fmt.Fprintln(call.Display, msg)
	}
	return nil, nil
}

// Simulate ends the trial at once with the simulation data.
func (External) Simulate(_ context.Context, call *plugin.Call, opts plugin.SimulationOptions) (*plugin.Deferred, error) {
	if opts.Mode == plugin.Visual {
		call.OnLoad()
	}
	data := make(map[string]any, len(opts.Data))
	maps.Copy(data, opts.Data)
	return plugin.Resolved(data), nil
}
