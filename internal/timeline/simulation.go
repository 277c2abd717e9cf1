package timeline

import (
	"fmt"

	"github.com/roach88/trialrun/internal/paramcache"
	"github.com/roach88/trialrun/internal/plugin"
)

// simulationOptions resolves the trial's simulation_options. The parameter is
// either a mapping or the name of a global option set; either way it is
// merged over the global "default" set. Fields inside the merged mapping are
// resolved like any other parameter, so they may hold functions or variables.
func (tr *Trial) simulationOptions(mode plugin.SimulationMode) (plugin.SimulationOptions, error) {
	global := tr.deps().GlobalSimulationOptions()
	opts := plugin.SimulationOptions{Simulate: true, Mode: mode}

	_, err := tr.GetParameterValue(paramcache.Path{"simulation_options"}, ReplaceResult(func(v any) (any, error) {
		if name, ok := v.(string); ok {
			v = global[name]
			if v == nil {
				v = global["default"]
			}
		}
		base, _ := copyDescription(global["default"]).(map[string]any)
		own, _ := copyDescription(v).(map[string]any)
		return deepMerge(base, own), nil
	}))
	if err != nil {
		return opts, err
	}

	m, err := tr.GetParameterValue(paramcache.Path{"simulation_options", "mode"})
	if err != nil {
		return opts, err
	}
	if m != nil {
		s, ok := m.(string)
		if !ok || !plugin.SimulationMode(s).Valid() {
			return opts, &ConfigError{
				Code:      ErrCodeInvalidDescription,
				Message:   fmt.Sprintf("unknown simulation mode %v", m),
				Path:      "simulation_options.mode",
				TrialType: tr.info.Name,
			}
		}
		opts.Mode = plugin.SimulationMode(s)
	}

	sim, err := tr.GetParameterValue(paramcache.Path{"simulation_options", "simulate"})
	if err != nil {
		return opts, err
	}
	if sim == false {
		opts.Simulate = false
	}

	d, err := tr.GetParameterValue(paramcache.Path{"simulation_options", "data"})
	if err != nil {
		return opts, err
	}
	if dm, ok := d.(map[string]any); ok {
		opts.Data = make(map[string]any, len(dm))
		for k := range dm {
			v, err := tr.GetParameterValue(paramcache.Path{"simulation_options", "data", k})
			if err != nil {
				return opts, err
			}
			opts.Data[k] = v
		}
	}
	return opts, nil
}

// deepMerge merges src into dst, recursing into nested mappings. dst may be
// nil.
func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		sm, srcIsMap := v.(map[string]any)
		dm, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = deepMerge(dm, sm)
			continue
		}
		dst[k] = v
	}
	return dst
}
