package timeline

// NaiveTrialCount estimates how many trials the timeline will run by walking
// its description. It multiplies by repetitions and the number of variable
// sets, honoring sample sizes, and ignores loop_function and
// conditional_function. The estimate may therefore be wrong for timelines
// that loop or skip.
func (t *Timeline) NaiveTrialCount() int {
	return naiveTrialCount(t.description)
}

func naiveTrialCount(desc any) int {
	switch d := desc.(type) {
	case []any:
		return naiveListCount(d)
	case map[string]any:
		if !IsTimelineDescription(d) {
			return 1
		}
		children, _ := asList(d["timeline"])
		count := naiveListCount(children)

		reps := 1
		if n, ok := asInt(d["repetitions"]); ok && n >= 0 {
			reps = n
		}
		return count * reps * naiveVariableCount(d)
	default:
		return 0
	}
}

func naiveListCount(children []any) int {
	total := 0
	for _, c := range children {
		total += naiveTrialCount(c)
	}
	return total
}

func naiveVariableCount(d map[string]any) int {
	vars, _ := asList(d["timeline_variables"])
	if len(vars) == 0 {
		return 1
	}
	sample, _ := d["sample"].(map[string]any)
	if sample == nil {
		return len(vars)
	}
	size, hasSize := asInt(sample["size"])
	switch sample["type"] {
	case SampleWithReplacement, SampleWithoutReplacement:
		if hasSize {
			return size
		}
	case SampleFixedRepetitions:
		if hasSize {
			return len(vars) * size
		}
	case SampleAlternateGroups:
		groups, _ := asList(sample["groups"])
		total := 0
		for _, g := range groups {
			members, _ := asList(g)
			total += len(members)
		}
		return total
	}
	return len(vars)
}

// NaiveProgress returns the share of NaiveTrialCount already completed, in
// [0, 1]. It inherits the estimate's blind spots.
func (t *Timeline) NaiveProgress() float64 {
	t.tree.mu.Lock()
	if t.status == StatusPending {
		t.tree.mu.Unlock()
		return 0
	}
	latest := t.latestLocked()
	completed := latest.indexLocked()
	if _, isTrial := latest.(*Trial); isTrial && latest.statusLocked() == StatusCompleted {
		completed++
	}
	t.tree.mu.Unlock()

	total := t.NaiveTrialCount()
	if total == 0 {
		return 1
	}
	return min(float64(completed)/float64(total), 1)
}
