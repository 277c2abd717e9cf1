package timeline

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/roach88/trialrun/internal/data"
	"github.com/roach88/trialrun/internal/paramcache"
	"github.com/roach88/trialrun/internal/plugin"
)

// Trial is a leaf node that runs one plugin invocation.
type Trial struct {
	node

	plugin plugin.Plugin
	info   plugin.Info

	// params is the description with every declared parameter resolved.
	// Only the run goroutine touches it.
	params   map[string]any
	onLoadFn func()

	// Guarded by tree.mu.
	result   data.Record
	recorded bool
}

var _ Node = (*Trial)(nil)

func newTrial(t *tree, description map[string]any, parent *Timeline) (*Trial, error) {
	tr := &Trial{node: newNode(t, description, parent)}

	typ, err := tr.GetParameterValue(paramcache.Path{"type"}, WithoutFunctionEvaluation())
	if err != nil {
		return nil, err
	}
	switch v := typ.(type) {
	case nil:
		return nil, &ConfigError{Code: ErrCodeMissingParameter, Message: "trial has no type", Path: "type"}
	case plugin.Plugin:
		tr.plugin = v
	case string:
		p, ok := t.deps.ResolvePlugin(v)
		if !ok {
			return nil, &ConfigError{Code: ErrCodeUnknownPlugin, Message: fmt.Sprintf("no plugin registered for type %q", v), Path: "type", TrialType: v}
		}
		tr.plugin = p
	default:
		return nil, &ConfigError{Code: ErrCodeUnknownPlugin, Message: fmt.Sprintf("type must be a plugin name, got %T", typ), Path: "type"}
	}

	tr.info = tr.plugin.Info()
	tr.params = copyDescription(description).(map[string]any)
	return tr, nil
}

// GetParameterValue resolves path for this trial. Structural keys are looked
// up in the trial's own description only.
func (tr *Trial) GetParameterValue(path paramcache.Path, opts ...ParamOption) (any, error) {
	o := buildParamOptions(opts)
	if IsStructuralKey(path.Head()) {
		o.recursive = false
	}
	return tr.resolveParameter(path, o, tr.EvaluateVariable)
}

// EvaluateVariable binds v in the enclosing timeline.
func (tr *Trial) EvaluateVariable(v Variable) (any, error) {
	if tr.parent == nil {
		return nil, &ConfigError{Code: ErrCodeUnresolvedVariable, Message: fmt.Sprintf("timeline variable %q not found", v.Name)}
	}
	return tr.parent.EvaluateVariable(v)
}

// PluginInfo returns the trial's plugin description.
func (tr *Trial) PluginInfo() plugin.Info {
	return tr.info
}

// Params returns the resolved parameter set. Only valid once the trial has
// started.
func (tr *Trial) Params() map[string]any {
	return tr.params
}

// Result returns the trial's record, or nil if the trial has not finished or
// opted out with record_data: false.
func (tr *Trial) Result() data.Record {
	tr.tree.mu.Lock()
	defer tr.tree.mu.Unlock()
	if !tr.recorded {
		return nil
	}
	return tr.result
}

func (tr *Trial) Results() []data.Record {
	if r := tr.Result(); r != nil {
		return []data.Record{r}
	}
	return nil
}

func (tr *Trial) LatestNode() Node { return tr }

func (tr *Trial) latestLocked() Node { return tr }

func (tr *Trial) activeTimelineByNameLocked(string) *Timeline { return nil }

// Run executes the trial. Configuration errors and plugin failures are
// returned unchanged or wrapped with the trial's index.
func (tr *Trial) Run(ctx context.Context) error {
	tr.setStatus(StatusRunning)
	deps := tr.deps()

	if missing := tr.info.Missing(); len(missing) > 0 {
		deps.Warn(Warning{
			Code:       WarnPluginInfoIncomplete,
			Message:    fmt.Sprintf("plugin %q is missing the %s field(s)", tr.info.Name, strings.Join(missing, " and ")),
			TrialIndex: tr.Index(),
		})
	}

	if err := tr.processParameters(); err != nil {
		return err
	}
	onLoad, err := tr.GetParameterValue(paramcache.Path{"on_load"}, WithoutFunctionEvaluation())
	if err != nil {
		return err
	}
	switch fn := onLoad.(type) {
	case nil:
		tr.onLoadFn = func() {}
	case func():
		tr.onLoadFn = fn
	default:
		return &ConfigError{
			Code:      ErrCodeInvalidDescription,
			Message:   fmt.Sprintf("on_load must be a function without arguments, got %T", onLoad),
			Path:      "on_load",
			TrialType: tr.info.Name,
		}
	}

	deps.OnTrialStart(tr)
	if err := tr.runCallback("on_start", tr.params); err != nil {
		return err
	}

	classes, err := tr.GetParameterValue(paramcache.Path{"css_classes"})
	if err != nil {
		return err
	}
	deps.Display().AddClasses(stringList(classes)...)

	raw, err := tr.execute(ctx)
	if err != nil {
		return err
	}

	if err := tr.processResult(raw); err != nil {
		return err
	}
	deps.OnTrialResultAvailable(tr)
	tr.setStatus(StatusCompleted)

	if err := tr.runCallback("on_finish", tr.Result()); err != nil {
		return err
	}
	deps.OnTrialFinished(tr)

	deps.Display().RemoveClasses(stringList(classes)...)

	gap, err := tr.postTrialGap()
	if err != nil {
		return err
	}
	if gap > 0 && deps.SimulationMode() != plugin.DataOnly {
		timer := time.NewTimer(gap)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	tr.ResetParameterValueCache()
	return nil
}

// execute invokes the plugin and races its completion against the run-wide
// finish signal.
//
// Tie-break: once the plugin's own Deferred is observed complete, the finish
// signal is checked once without blocking. If it has resolved by then, its
// data replaces the plugin's. An explicit FinishTrial therefore wins over a
// plugin value that was not yet read.
func (tr *Trial) execute(ctx context.Context) (map[string]any, error) {
	deps := tr.deps()
	finish := deps.FinishSignal()

	c := &plugin.Call{
		Display: deps.Display(),
		Params:  tr.params,
		OnLoad:  tr.onLoad,
		API:     deps.API(),
	}
	d, simulated, err := tr.invoke(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("trial %d (%s): %w", tr.Index(), tr.info.Name, err)
	}

	var result map[string]any
	if d != nil {
		select {
		case <-d.Done():
			res, err := d.Result()
			if err != nil {
				return nil, fmt.Errorf("trial %d (%s): %w", tr.Index(), tr.info.Name, err)
			}
			result = res
			if finish.IsDone() {
				result, _ = finish.Result()
			}
		case <-finish.Done():
			result, _ = finish.Result()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else {
		if !simulated {
			tr.onLoad()
		}
		select {
		case <-finish.Done():
			result, _ = finish.Result()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	deps.API().ClearAllTimeouts()
	deps.Display().Clear()
	return result, nil
}

func (tr *Trial) invoke(ctx context.Context, c *plugin.Call) (*plugin.Deferred, bool, error) {
	mode := tr.deps().SimulationMode()
	if sim, ok := tr.plugin.(plugin.Simulator); ok && mode != "" {
		opts, err := tr.simulationOptions(mode)
		if err != nil {
			return nil, false, err
		}
		if opts.Simulate {
			d, err := sim.Simulate(ctx, c, opts)
			return d, true, err
		}
	}
	d, err := tr.plugin.Trial(ctx, c)
	return d, false, err
}

// onLoad may be called from a plugin goroutine, so it only runs the callback
// resolved before the plugin started.
func (tr *Trial) onLoad() {
	tr.onLoadFn()
}

// runCallback invokes the function stored under name, if any. arg is passed
// to callbacks that accept one argument.
func (tr *Trial) runCallback(name string, arg any) error {
	cb, err := tr.GetParameterValue(paramcache.Path{name}, WithoutFunctionEvaluation())
	if err != nil || cb == nil {
		return err
	}
	switch fn := cb.(type) {
	case func():
		fn()
	case func(map[string]any):
		m, _ := arg.(map[string]any)
		if r, ok := arg.(data.Record); ok {
			m = r
		}
		fn(m)
	case func(data.Record):
		r, _ := arg.(data.Record)
		if m, ok := arg.(map[string]any); ok {
			r = m
		}
		fn(r)
	default:
		return &ConfigError{
			Code:      ErrCodeInvalidDescription,
			Message:   fmt.Sprintf("%s must be a function, got %T", name, cb),
			Path:      name,
			TrialType: tr.info.Name,
		}
	}
	return nil
}

// processParameters resolves every declared parameter in declaration order,
// applying defaults and checking required and array parameters. Complex
// parameters with a nested schema are resolved field by field.
func (tr *Trial) processParameters() error {
	params := copyDescription(tr.description).(map[string]any)
	if err := tr.assignParameters(params, tr.info.Parameters, paramcache.Path{}); err != nil {
		return err
	}
	tr.params = params
	return nil
}

func (tr *Trial) assignParameters(target map[string]any, decls []plugin.Parameter, parent paramcache.Path) error {
	for _, decl := range decls {
		path := parent.Child(decl.Name)

		var opts []ParamOption
		if decl.Type == plugin.Function {
			opts = append(opts, WithoutFunctionEvaluation())
		}
		opts = append(opts, ReplaceResult(func(v any) (any, error) {
			if v != nil {
				return v, nil
			}
			if decl.Required {
				return nil, &ConfigError{
					Code:      ErrCodeMissingParameter,
					Message:   fmt.Sprintf("you must specify a value for the %q parameter in the %q plugin", path.String(), tr.info.Name),
					Path:      path.String(),
					TrialType: tr.info.Name,
				}
			}
			return copyDescription(decl.Default), nil
		}))

		value, err := tr.GetParameterValue(path, opts...)
		if err != nil {
			return err
		}

		if decl.Array && value != nil {
			if _, ok := asList(value); !ok {
				return &ConfigError{
					Code:      ErrCodeNotAnArray,
					Message:   fmt.Sprintf("a non-array value (%v) was provided for the array parameter %q in the %q plugin", value, path.String(), tr.info.Name),
					Path:      path.String(),
					TrialType: tr.info.Name,
				}
			}
		}

		if decl.Type == plugin.Complex && len(decl.Nested) > 0 && value != nil {
			value, err = tr.assignNested(value, decl, path)
			if err != nil {
				return err
			}
		}

		target[decl.Name] = value
	}
	return nil
}

func (tr *Trial) assignNested(value any, decl plugin.Parameter, path paramcache.Path) (any, error) {
	if !decl.Array {
		m, ok := value.(map[string]any)
		if !ok {
			return nil, tr.nestedShapeError(path, value)
		}
		out := maps.Clone(m)
		return out, tr.assignParameters(out, decl.Nested, path)
	}

	list, _ := asList(value)
	out := make([]any, len(list))
	for i := range list {
		elemPath := path.Child(fmt.Sprint(i))
		elem, err := tr.GetParameterValue(elemPath)
		if err != nil {
			return nil, err
		}
		m, ok := elem.(map[string]any)
		if !ok {
			return nil, tr.nestedShapeError(elemPath, elem)
		}
		cp := maps.Clone(m)
		if err := tr.assignParameters(cp, decl.Nested, elemPath); err != nil {
			return nil, err
		}
		out[i] = cp
	}
	return out, nil
}

func (tr *Trial) nestedShapeError(path paramcache.Path, got any) error {
	return &ConfigError{
		Code:      ErrCodeInvalidDescription,
		Message:   fmt.Sprintf("expected an object, got %T", got),
		Path:      path.String(),
		TrialType: tr.info.Name,
	}
}

// processResult builds the stored record from the plugin's data.
func (tr *Trial) processResult(raw map[string]any) error {
	result := make(map[string]any, len(raw))
	for k, v := range raw {
		result[k] = v
	}

	if err := tr.applySaveParameters(result); err != nil {
		return err
	}

	merged, err := collectData(tr, tr.parent)
	if err != nil {
		return err
	}
	for k, v := range result {
		merged[k] = v
	}
	merged["trial_type"] = tr.info.Name
	merged["trial_index"] = tr.Index()
	if tr.info.Version != "" {
		merged["plugin_version"] = tr.info.Version
	} else {
		merged["plugin_version"] = nil
	}

	save, err := tr.GetParameterValue(paramcache.Path{"save_timeline_variables"})
	if err != nil {
		return err
	}
	if save != nil && tr.parent != nil {
		vars := tr.parent.AllVariables()
		switch v := save.(type) {
		case bool:
			if v {
				merged["timeline_variables"] = vars
			}
		default:
			if names, ok := asList(v); ok {
				selected := make(map[string]any)
				for _, n := range names {
					if name, ok := n.(string); ok {
						if val, ok := vars[name]; ok {
							selected[name] = val
						}
					}
				}
				merged["timeline_variables"] = selected
			}
		}
	}

	record, err := data.NormalizeRecord(merged)
	if err != nil {
		return fmt.Errorf("trial %d (%s): record: %w", tr.Index(), tr.info.Name, err)
	}

	recordData, err := tr.GetParameterValue(paramcache.Path{"record_data"})
	if err != nil {
		return err
	}

	tr.tree.mu.Lock()
	tr.result = record
	tr.recorded = recordData != false
	tr.tree.mu.Unlock()
	return nil
}

// applySaveParameters copies declared parameters into result or removes them,
// as directed by save_trial_parameters. Applying it twice is a no-op.
func (tr *Trial) applySaveParameters(result map[string]any) error {
	raw, err := tr.GetParameterValue(paramcache.Path{"save_trial_parameters"})
	if err != nil || raw == nil {
		return err
	}
	directives, ok := raw.(map[string]any)
	if !ok {
		return &ConfigError{
			Code:      ErrCodeInvalidDescription,
			Message:   fmt.Sprintf("save_trial_parameters must be a mapping, got %T", raw),
			Path:      "save_trial_parameters",
			TrialType: tr.info.Name,
		}
	}

	for _, name := range slices.Sorted(maps.Keys(directives)) {
		include, _ := directives[name].(bool)
		if _, declared := tr.info.Parameter(name); !declared {
			tr.deps().Warn(Warning{
				Code:       WarnUnknownSaveParameter,
				Message:    fmt.Sprintf("non-existent parameter %q specified in save_trial_parameters", name),
				TrialIndex: tr.Index(),
			})
			continue
		}
		_, present := result[name]
		switch {
		case include && !present:
			v := tr.params[name]
			if v != nil && isFunc(v) {
				v = fmt.Sprintf("%T", v)
			}
			result[name] = v
		case !include && present:
			delete(result, name)
		}
	}
	return nil
}

func (tr *Trial) postTrialGap() (time.Duration, error) {
	v, err := tr.GetParameterValue(paramcache.Path{"post_trial_gap"})
	if err != nil {
		return 0, err
	}
	if v == nil {
		return tr.deps().DefaultITI(), nil
	}
	if d, ok := v.(time.Duration); ok {
		return d, nil
	}
	ms, ok := asFloat(v)
	if !ok {
		return 0, &ConfigError{
			Code:      ErrCodeInvalidDescription,
			Message:   fmt.Sprintf("post_trial_gap must be a number of milliseconds, got %T", v),
			Path:      "post_trial_gap",
			TrialType: tr.info.Name,
		}
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}
