package testutil

import (
	"context"
	"maps"
	"sync"

	"github.com/roach88/trialrun/internal/plugin"
)

// ScriptedPlugin answers trials from a fixed list of responses.
//
// Each trial's data is {"stimulus": <param>} merged with the next scripted
// response. Once the script is exhausted trials record a nil response.
// Simulated trials record response "simulated" merged with the simulation
// data overrides.
type ScriptedPlugin struct {
	name string

	mu        sync.Mutex
	responses []map[string]any
	next      int
	calls     []map[string]any
}

var (
	_ plugin.Plugin    = (*ScriptedPlugin)(nil)
	_ plugin.Simulator = (*ScriptedPlugin)(nil)
)

// NewScriptedPlugin creates a plugin registered under name.
func NewScriptedPlugin(name string, responses ...map[string]any) *ScriptedPlugin {
	return &ScriptedPlugin{name: name, responses: responses}
}

func (p *ScriptedPlugin) Info() plugin.Info {
	return plugin.Info{
		Name:    p.name,
		Version: "1.0.0",
		Parameters: []plugin.Parameter{
			{Name: "stimulus", Type: plugin.String},
		},
		Data: []plugin.Parameter{
			{Name: "stimulus", Type: plugin.String},
			{Name: "response", Type: plugin.String},
		},
	}
}

func (p *ScriptedPlugin) Trial(_ context.Context, call *plugin.Call) (*plugin.Deferred, error) {
	p.mu.Lock()
	p.calls = append(p.calls, maps.Clone(call.Params))
	result := map[string]any{"stimulus": call.Params["stimulus"], "response": nil}
	if p.next < len(p.responses) {
		maps.Copy(result, p.responses[p.next])
		p.next++
	}
	p.mu.Unlock()

	call.OnLoad()
	return plugin.Resolved(result), nil
}

func (p *ScriptedPlugin) Simulate(_ context.Context, call *plugin.Call, opts plugin.SimulationOptions) (*plugin.Deferred, error) {
	p.mu.Lock()
	p.calls = append(p.calls, maps.Clone(call.Params))
	p.mu.Unlock()

	result := map[string]any{"stimulus": call.Params["stimulus"], "response": "simulated"}
	maps.Copy(result, opts.Data)
	if opts.Mode == plugin.Visual {
		call.OnLoad()
	}
	return plugin.Resolved(result), nil
}

// Calls returns the resolved parameters of every trial run so far.
func (p *ScriptedPlugin) Calls() []map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]map[string]any(nil), p.calls...)
}

// Stimuli returns the stimulus parameter of every trial run so far.
func (p *ScriptedPlugin) Stimuli() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]any, len(p.calls))
	for i, c := range p.calls {
		out[i] = c["stimulus"]
	}
	return out
}
