package timeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/trialrun/internal/data"
	"github.com/roach88/trialrun/internal/paramcache"
)

// Status is the lifecycle state of a node.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusPaused
	StatusCompleted
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusCompleted:
		return "completed"
	case StatusAborted:
		return "aborted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Node is either a *Trial or a *Timeline.
type Node interface {
	Run(ctx context.Context) error
	Status() Status
	Index() int

	// LatestNode returns the deepest node on the live path below this one,
	// or the node itself.
	LatestNode() Node

	// Results returns the recorded results of this node and its descendants
	// in completion order.
	Results() []data.Record

	GetParameterValue(path paramcache.Path, opts ...ParamOption) (any, error)
	ResetParameterValueCache()

	setIndex(i int)
	latestLocked() Node
	indexLocked() int
	statusLocked() Status
	activeTimelineByNameLocked(name string) *Timeline
}

// tree is shared by every node of one run.
type tree struct {
	mu   sync.Mutex
	deps Dependencies
}

// node holds the state shared by trials and timelines.
type node struct {
	tree        *tree
	description map[string]any
	parent      *Timeline
	cache       *paramcache.Cache

	// Guarded by tree.mu.
	status Status
	index  int
}

func newNode(t *tree, description map[string]any, parent *Timeline) node {
	return node{
		tree:        t,
		description: description,
		parent:      parent,
		cache:       paramcache.New(description),
	}
}

func (n *node) Status() Status {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	return n.status
}

func (n *node) statusLocked() Status { return n.status }

func (n *node) Index() int {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	return n.index
}

func (n *node) indexLocked() int { return n.index }

func (n *node) setIndex(i int) { n.index = i }

func (n *node) setStatus(s Status) {
	n.tree.mu.Lock()
	n.status = s
	n.tree.mu.Unlock()
}

// Description returns a copy of the node's description.
func (n *node) Description() Description {
	return Description(copyDescription(n.description).(map[string]any))
}

// Parent returns the enclosing timeline, or nil for the root.
func (n *node) Parent() *Timeline {
	return n.parent
}

// ResetParameterValueCache clears the cache of this node and every ancestor.
func (n *node) ResetParameterValueCache() {
	n.cache.Reset()
	if n.parent != nil {
		n.parent.ResetParameterValueCache()
	}
}

func (n *node) deps() Dependencies {
	return n.tree.deps
}

// ParamOption adjusts a GetParameterValue call.
type ParamOption func(*paramOptions)

type paramOptions struct {
	evaluateFunctions bool
	recursive         bool
	cacheResult       bool
	replaceResult     func(any) (any, error)
}

func buildParamOptions(opts []ParamOption) paramOptions {
	o := paramOptions{evaluateFunctions: true, recursive: true, cacheResult: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithoutFunctionEvaluation returns function values as they are.
func WithoutFunctionEvaluation() ParamOption {
	return func(o *paramOptions) { o.evaluateFunctions = false }
}

// NonRecursive disables the fallback to ancestor descriptions.
func NonRecursive() ParamOption {
	return func(o *paramOptions) { o.recursive = false }
}

// WithoutCaching leaves the cache untouched by this lookup.
func WithoutCaching() ParamOption {
	return func(o *paramOptions) { o.cacheResult = false }
}

// ReplaceResult post-processes the resolved value before it is cached.
func ReplaceResult(fn func(any) (any, error)) ParamOption {
	return func(o *paramOptions) { o.replaceResult = fn }
}

// resolveParameter implements GetParameterValue for both node kinds.
// evaluate binds a Variable in the calling node's scope.
//
// An explicit nil in a description counts as absent.
func (n *node) resolveParameter(path paramcache.Path, o paramOptions, evaluate func(Variable) (any, error)) (any, error) {
	result, found := n.cache.Lookup(path)
	if found && result == nil {
		found = false
	}

	if !found && o.recursive && n.parent != nil {
		var err error
		result, err = n.parent.getParameterValue(path, o)
		if err != nil {
			return nil, err
		}
	}

	if o.evaluateFunctions && isCallable(result) {
		result = call(result)
	}

	if v, ok := asVariable(result); ok {
		var err error
		result, err = evaluate(v)
		if err != nil {
			return nil, err
		}
	}

	if o.replaceResult != nil {
		var err error
		result, err = o.replaceResult(result)
		if err != nil {
			return nil, err
		}
	}

	if o.cacheResult {
		n.cache.Set(path, result)
	}
	return result, nil
}

type resolver interface {
	GetParameterValue(path paramcache.Path, opts ...ParamOption) (any, error)
}

// collectData resolves the "data" parameter of self and merges it over the
// data inherited from the parent chain. Keys set closer to the trial win.
func collectData(self resolver, parent *Timeline) (map[string]any, error) {
	out := make(map[string]any)
	if parent != nil {
		inherited, err := parent.dataParameter()
		if err != nil {
			return nil, err
		}
		for k, v := range inherited {
			out[k] = v
		}
	}

	own, err := self.GetParameterValue(paramcache.Path{"data"}, NonRecursive())
	if err != nil {
		return nil, err
	}
	if m, ok := own.(map[string]any); ok {
		for k := range m {
			v, err := self.GetParameterValue(paramcache.Path{"data", k})
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
	}
	return out, nil
}

// stringList accepts a string or a list of strings.
func stringList(v any) []string {
	if s, ok := v.(string); ok {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	l, ok := asList(v)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(l))
	for _, e := range l {
		if s, ok := e.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
