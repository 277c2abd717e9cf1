package timeline

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/roach88/trialrun/internal/data"
	"github.com/roach88/trialrun/internal/paramcache"
)

// Timeline is a composite node that runs its child descriptions in order,
// once per timeline variable binding, repetition and loop pass.
type Timeline struct {
	node

	// Guarded by tree.mu.
	children    []Node
	current     Node
	vars        map[string]any
	shouldAbort bool
	resume      chan struct{}
}

var _ Node = (*Timeline)(nil)

// New builds the root timeline of a run. description is either a list of
// child descriptions or a timeline description.
func New(deps Dependencies, description any) (*Timeline, error) {
	if deps == nil {
		return nil, fmt.Errorf("timeline: nil dependencies")
	}
	var root map[string]any
	switch d := copyDescription(description).(type) {
	case []any:
		root = map[string]any{"timeline": d}
	case map[string]any:
		root = d
	}
	if root == nil || !IsTimelineDescription(root) {
		return nil, configErrorf(ErrCodeInvalidDescription, "root must be a list of nodes or a mapping with a timeline key, got %T", description)
	}
	return newTimeline(&tree{deps: deps}, root, nil), nil
}

func newTimeline(t *tree, description map[string]any, parent *Timeline) *Timeline {
	return &Timeline{
		node:   newNode(t, description, parent),
		resume: make(chan struct{}),
	}
}

// newChild instantiates the node for one child description. The node kind is
// decided here, once, from the description's shape.
func (t *Timeline) newChild(desc any) (Node, error) {
	switch d := desc.(type) {
	case []any:
		return newTimeline(t.tree, map[string]any{"timeline": d}, t), nil
	case map[string]any:
		if IsTimelineDescription(d) {
			return newTimeline(t.tree, d, t), nil
		}
		return newTrial(t.tree, d, t)
	default:
		return nil, configErrorf(ErrCodeInvalidDescription, "timeline entries must be mappings or lists, got %T", desc)
	}
}

// GetParameterValue resolves path for this timeline. Structural keys are never
// inherited.
func (t *Timeline) GetParameterValue(path paramcache.Path, opts ...ParamOption) (any, error) {
	return t.getParameterValue(path, buildParamOptions(opts))
}

func (t *Timeline) getParameterValue(path paramcache.Path, o paramOptions) (any, error) {
	if IsStructuralKey(path.Head()) {
		o.recursive = false
	}
	return t.resolveParameter(path, o, t.EvaluateVariable)
}

// EvaluateVariable returns the value v is bound to in the current iteration,
// searching enclosing timelines when this one does not bind it.
func (t *Timeline) EvaluateVariable(v Variable) (any, error) {
	t.tree.mu.Lock()
	val, ok := t.vars[v.Name]
	t.tree.mu.Unlock()
	if ok {
		return val, nil
	}
	if t.parent != nil {
		return t.parent.EvaluateVariable(v)
	}
	return nil, &ConfigError{
		Code:    ErrCodeUnresolvedVariable,
		Message: fmt.Sprintf("timeline variable %q not found", v.Name),
	}
}

// AllVariables returns the bindings visible from this timeline. Inner
// bindings shadow outer ones.
func (t *Timeline) AllVariables() map[string]any {
	out := make(map[string]any)
	if t.parent != nil {
		out = t.parent.AllVariables()
	}
	t.tree.mu.Lock()
	maps.Copy(out, t.vars)
	t.tree.mu.Unlock()
	return out
}

// Name returns the timeline's name parameter, or "".
func (t *Timeline) Name() string {
	name, _ := t.description["name"].(string)
	return name
}

func (t *Timeline) dataParameter() (map[string]any, error) {
	return collectData(t, t.parent)
}

// Run executes the timeline. It returns nil when the timeline completes or is
// aborted; the final status tells the two apart.
func (t *Timeline) Run(ctx context.Context) error {
	t.start()

	variables, err := t.timelineVariables()
	if err != nil {
		return err
	}
	// The first variable set is bound before conditional_function so the
	// condition can read it.
	order, err := t.variableOrder(len(variables))
	if err != nil {
		return err
	}
	if len(order) > 0 {
		t.bindVariables(variables, order[0])
	}

	ok, err := t.evaluateCondition()
	if err != nil {
		return err
	}
	if !ok {
		t.setStatus(StatusCompleted)
		return nil
	}

	repetitions, err := t.repetitions()
	if err != nil {
		return err
	}
	loop, err := t.loopFunction()
	if err != nil {
		return err
	}
	children, ok := asList(t.description["timeline"])
	if !ok {
		return configErrorf(ErrCodeInvalidDescription, "timeline must be a list, got %T", t.description["timeline"])
	}
	if err := t.runHook("on_timeline_start"); err != nil {
		return err
	}

	first := true
	for range repetitions {
		for {
			if !first {
				if order, err = t.variableOrder(len(variables)); err != nil {
					return err
				}
			}
			first = false

			t.tree.mu.Lock()
			passStart := len(t.children)
			t.tree.mu.Unlock()

			for _, idx := range order {
				t.bindVariables(variables, idx)
				for _, desc := range children {
					aborted, err := t.runChild(ctx, desc)
					if err != nil {
						return err
					}
					if aborted {
						return nil
					}
				}
			}

			if loop == nil {
				break
			}
			again, err := loop(data.NewCollection(t.resultsSince(passStart)...))
			if err != nil {
				return err
			}
			if !again {
				break
			}
		}
	}

	if err := t.runHook("on_timeline_finish"); err != nil {
		return err
	}
	t.setStatus(StatusCompleted)
	return nil
}

// runChild instantiates and runs one child, then honors pending pause and
// abort requests. It reports whether the timeline was aborted.
func (t *Timeline) runChild(ctx context.Context, desc any) (bool, error) {
	child, err := t.newChild(desc)
	if err != nil {
		return false, err
	}

	t.tree.mu.Lock()
	idx := t.index
	if n := len(t.children); n > 0 {
		idx = t.children[n-1].latestLocked().indexLocked() + 1
	}
	child.setIndex(idx)
	// A child timeline is running as soon as it is current, so a pause or
	// abort arriving before its Run starts still reaches it.
	if tl, ok := child.(*Timeline); ok {
		tl.status = StatusRunning
	}
	t.children = append(t.children, child)
	t.current = child
	t.tree.mu.Unlock()

	if err := child.Run(ctx); err != nil {
		return false, err
	}
	if err := t.waitIfPaused(ctx); err != nil {
		return false, err
	}

	t.tree.mu.Lock()
	defer t.tree.mu.Unlock()
	if t.shouldAbort {
		t.status = StatusAborted
		return true, nil
	}
	return false, nil
}

// start marks a pending timeline as running. A child timeline is already
// running (or paused, or aborting) when its parent hands it over.
func (t *Timeline) start() {
	t.tree.mu.Lock()
	defer t.tree.mu.Unlock()
	if t.status == StatusPending {
		t.status = StatusRunning
	}
}

func (t *Timeline) waitIfPaused(ctx context.Context) error {
	t.tree.mu.Lock()
	for t.status == StatusPaused {
		ch := t.resume
		t.tree.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		t.tree.mu.Lock()
	}
	t.tree.mu.Unlock()
	return nil
}

func (t *Timeline) bindVariables(variables []map[string]any, idx int) {
	t.tree.mu.Lock()
	defer t.tree.mu.Unlock()
	if idx == noVariables {
		t.vars = nil
		return
	}
	t.vars = maps.Clone(variables[idx])
}

func (t *Timeline) resultsSince(start int) []data.Record {
	t.tree.mu.Lock()
	children := slices.Clone(t.children[start:])
	t.tree.mu.Unlock()

	var out []data.Record
	for _, c := range children {
		out = append(out, c.Results()...)
	}
	return out
}

func (t *Timeline) evaluateCondition() (bool, error) {
	v, err := t.GetParameterValue(paramcache.Path{"conditional_function"}, WithoutFunctionEvaluation())
	if err != nil || v == nil {
		return true, err
	}
	switch fn := v.(type) {
	case func() bool:
		return fn(), nil
	case bool:
		return fn, nil
	default:
		return false, configErrorf(ErrCodeInvalidDescription, "conditional_function must be a func() bool, got %T", v)
	}
}

func (t *Timeline) loopFunction() (func(*data.Collection) (bool, error), error) {
	v, err := t.GetParameterValue(paramcache.Path{"loop_function"}, WithoutFunctionEvaluation())
	if err != nil || v == nil {
		return nil, err
	}
	switch fn := v.(type) {
	case func(*data.Collection) bool:
		return func(c *data.Collection) (bool, error) { return fn(c), nil }, nil
	case func([]data.Record) bool:
		return func(c *data.Collection) (bool, error) { return fn(c.Records()), nil }, nil
	default:
		return nil, configErrorf(ErrCodeInvalidDescription, "loop_function must be a func(*data.Collection) bool, got %T", v)
	}
}

// repetitions resolves the repetition count. Values that are not
// non-negative integers are tolerated with a warning.
func (t *Timeline) repetitions() (int, error) {
	v, err := t.GetParameterValue(paramcache.Path{"repetitions"})
	if err != nil || v == nil {
		return 1, err
	}
	n, isInt := asInt(v)
	if !isInt {
		f, ok := asFloat(v)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, configErrorf(ErrCodeInvalidDescription, "repetitions must be a number, got %T", v)
		}
		n = int(math.Floor(f))
	}
	if !isInt || n < 0 {
		n = max(n, 0)
		t.deps().Warn(Warning{
			Code:       WarnAmbiguousRepetitions,
			Message:    fmt.Sprintf("repetitions should be a non-negative integer, got %v; using %d", v, n),
			TrialIndex: t.Index(),
		})
	}
	return n, nil
}

func (t *Timeline) runHook(name string) error {
	v, err := t.GetParameterValue(paramcache.Path{name}, WithoutFunctionEvaluation())
	if err != nil || v == nil {
		return err
	}
	fn, ok := v.(func())
	if !ok {
		return configErrorf(ErrCodeInvalidDescription, "%s must be a func(), got %T", name, v)
	}
	fn()
	return nil
}

// Pause stops the timeline at the next child boundary. Pausing propagates to
// the running child timeline.
func (t *Timeline) Pause() {
	t.tree.mu.Lock()
	defer t.tree.mu.Unlock()
	t.pauseLocked()
}

func (t *Timeline) pauseLocked() {
	if child, ok := t.current.(*Timeline); ok {
		child.pauseLocked()
	}
	if t.status == StatusRunning {
		t.status = StatusPaused
	}
}

// Resume continues a paused timeline and its paused descendants.
func (t *Timeline) Resume() {
	t.tree.mu.Lock()
	defer t.tree.mu.Unlock()
	t.resumeLocked()
}

func (t *Timeline) resumeLocked() {
	if t.status != StatusPaused {
		return
	}
	if child, ok := t.current.(*Timeline); ok {
		child.resumeLocked()
	}
	t.status = StatusRunning
	close(t.resume)
	t.resume = make(chan struct{})
}

// Abort stops the timeline after the running child finishes. A paused
// timeline is resumed so it can observe the request.
func (t *Timeline) Abort() {
	t.tree.mu.Lock()
	defer t.tree.mu.Unlock()
	t.abortLocked()
}

func (t *Timeline) abortLocked() {
	if t.status != StatusRunning && t.status != StatusPaused {
		return
	}
	if child, ok := t.current.(*Timeline); ok {
		child.abortLocked()
	}
	t.shouldAbort = true
	t.resumeLocked()
}

// Results returns the records of every child in completion order.
func (t *Timeline) Results() []data.Record {
	return t.resultsSince(0)
}

func (t *Timeline) LatestNode() Node {
	t.tree.mu.Lock()
	defer t.tree.mu.Unlock()
	return t.latestLocked()
}

func (t *Timeline) latestLocked() Node {
	if t.current != nil {
		return t.current.latestLocked()
	}
	return t
}

// ActiveTimelineByName returns the timeline named name on the live path at
// or below t, or nil.
func (t *Timeline) ActiveTimelineByName(name string) *Timeline {
	t.tree.mu.Lock()
	defer t.tree.mu.Unlock()
	return t.activeTimelineByNameLocked(name)
}

func (t *Timeline) activeTimelineByNameLocked(name string) *Timeline {
	if name != "" && t.Name() == name {
		return t
	}
	if t.current != nil {
		return t.current.activeTimelineByNameLocked(name)
	}
	return nil
}
