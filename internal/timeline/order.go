package timeline

import (
	"fmt"

	"github.com/roach88/trialrun/internal/paramcache"
	"github.com/roach88/trialrun/internal/sampling"
)

// noVariables is the single order entry of a timeline without variables.
const noVariables = -1

// Sample types accepted in a timeline's sample parameter.
const (
	SampleCustom             = "custom"
	SampleWithReplacement    = "with-replacement"
	SampleWithoutReplacement = "without-replacement"
	SampleFixedRepetitions   = "fixed-repetitions"
	SampleAlternateGroups    = "alternate-groups"
)

func (t *Timeline) timelineVariables() ([]map[string]any, error) {
	raw := t.description["timeline_variables"]
	if raw == nil {
		return nil, nil
	}
	list, ok := asList(raw)
	if !ok {
		return nil, configErrorf(ErrCodeInvalidDescription, "timeline_variables must be a list, got %T", raw)
	}
	out := make([]map[string]any, len(list))
	for i, elem := range list {
		m, ok := elem.(map[string]any)
		if !ok {
			return nil, &ConfigError{
				Code:    ErrCodeInvalidDescription,
				Message: fmt.Sprintf("timeline variable sets must be mappings, got %T", elem),
				Path:    fmt.Sprintf("timeline_variables[%d]", i),
			}
		}
		out[i] = m
	}
	return out, nil
}

// variableOrder returns the order in which the n timeline variable sets are
// visited. Without variables the order is a single noVariables entry.
func (t *Timeline) variableOrder(n int) ([]int, error) {
	if n == 0 {
		return []int{noVariables}, nil
	}
	deps := t.deps()
	r := deps.Rand()

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	raw, err := t.GetParameterValue(paramcache.Path{"sample"}, WithoutFunctionEvaluation())
	if err != nil {
		return nil, err
	}
	if raw != nil {
		sample, ok := raw.(map[string]any)
		if !ok {
			return nil, sampleErrorf("sample must be a mapping, got %T", raw)
		}
		indices, err = t.applySample(sample, indices)
		if err != nil {
			return nil, err
		}
	}

	randomize, err := t.GetParameterValue(paramcache.Path{"randomize_order"})
	if err != nil {
		return nil, err
	}
	if randomize == true {
		indices = sampling.Shuffle(r, indices)
	}
	return indices, nil
}

func (t *Timeline) applySample(sample map[string]any, indices []int) ([]int, error) {
	r := t.deps().Rand()
	typ, _ := sample["type"].(string)

	switch typ {
	case SampleCustom:
		fn, ok := sample["fn"].(func([]int) []int)
		if !ok {
			return nil, sampleErrorf("custom sample needs fn of type func([]int) []int, got %T", sample["fn"])
		}
		out := fn(append([]int(nil), indices...))
		for _, i := range out {
			if i < 0 || i >= len(indices) {
				return nil, sampleErrorf("custom sample returned index %d outside [0, %d)", i, len(indices))
			}
		}
		return out, nil

	case SampleWithReplacement:
		size, err := sampleSize(sample)
		if err != nil {
			return nil, err
		}
		var weights []float64
		if raw := sample["weights"]; raw != nil {
			list, ok := asList(raw)
			if !ok {
				return nil, sampleErrorf("weights must be a list of numbers, got %T", raw)
			}
			weights = make([]float64, len(list))
			for i, w := range list {
				f, ok := asFloat(w)
				if !ok {
					return nil, sampleErrorf("weights[%d] must be a number, got %T", i, w)
				}
				weights[i] = f
			}
		}
		out, err := sampling.SampleWithReplacement(r, indices, size, weights)
		if err != nil {
			return nil, sampleErrorf("%v", err)
		}
		return out, nil

	case SampleWithoutReplacement:
		size, err := sampleSize(sample)
		if err != nil {
			return nil, err
		}
		out, err := sampling.SampleWithoutReplacement(r, indices, size)
		if err != nil {
			return nil, sampleErrorf("%v", err)
		}
		return out, nil

	case SampleFixedRepetitions:
		size, err := sampleSize(sample)
		if err != nil {
			return nil, err
		}
		return sampling.RepeatEach(r, indices, size), nil

	case SampleAlternateGroups:
		groups, err := sampleGroups(sample["groups"], len(indices))
		if err != nil {
			return nil, err
		}
		randomGroupOrder, _ := sample["randomize_group_order"].(bool)
		out, warnings := sampling.ShuffleAlternateGroups(r, groups, randomGroupOrder)
		for _, w := range warnings {
			t.deps().Warn(Warning{Code: WarningCode(w.Code), Message: w.Message, TrialIndex: t.Index()})
		}
		return out, nil

	default:
		return nil, sampleErrorf("invalid type %q in timeline sample parameter; valid options are custom, with-replacement, without-replacement, fixed-repetitions and alternate-groups", typ)
	}
}

func sampleSize(sample map[string]any) (int, error) {
	size, ok := asInt(sample["size"])
	if !ok || size < 0 {
		return 0, sampleErrorf("sample size must be a non-negative integer, got %v", sample["size"])
	}
	return size, nil
}

func sampleGroups(raw any, n int) ([][]int, error) {
	list, ok := asList(raw)
	if !ok {
		return nil, sampleErrorf("alternate-groups needs groups as a list of index lists, got %T", raw)
	}
	groups := make([][]int, len(list))
	for gi, g := range list {
		members, ok := asList(g)
		if !ok {
			return nil, sampleErrorf("groups[%d] must be a list of indices, got %T", gi, g)
		}
		groups[gi] = make([]int, len(members))
		for mi, m := range members {
			idx, ok := asInt(m)
			if !ok || idx < 0 || idx >= n {
				return nil, sampleErrorf("groups[%d][%d] is not a timeline variable index: %v", gi, mi, m)
			}
			groups[gi][mi] = idx
		}
	}
	return groups, nil
}

func sampleErrorf(format string, args ...any) error {
	return &ConfigError{
		Code:    ErrCodeInvalidSample,
		Message: fmt.Sprintf(format, args...),
		Path:    "sample",
	}
}
