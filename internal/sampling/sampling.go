package sampling

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
)

// Warning codes reported for malformed but tolerated input.
const (
	WarnSingleGroup = "SINGLE_GROUP"
	WarnRepeatShape = "REPEAT_SHAPE"
)

// Warning describes input that was tolerated with a best-effort fallback.
type Warning struct {
	Code    string
	Message string
}

// ErrSampleTooLarge is returned when a sample without replacement asks for
// more items than the population holds.
var ErrSampleTooLarge = errors.New("cannot take a sample larger than the set of items to sample")

// ErrNoRepeatsImpossible is returned by ShuffleNoRepeats when the input cannot
// be arranged without equal neighbours.
var ErrNoRepeatsImpossible = errors.New("no arrangement without adjacent repeats found")

// Shuffle returns a Fisher-Yates shuffled copy of items.
func Shuffle[T any](r *rand.Rand, items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	for m := len(out); m > 0; m-- {
		i := r.IntN(m)
		out[m-1], out[i] = out[i], out[m-1]
	}
	return out
}

// ShuffleNoRepeats shuffles items so that no two equal elements are adjacent.
func ShuffleNoRepeats[T comparable](r *rand.Rand, items []T) ([]T, error) {
	return ShuffleNoRepeatsFunc(r, items, func(a, b T) bool { return a == b })
}

// ShuffleNoRepeatsFunc is ShuffleNoRepeats with a caller-supplied equality.
//
// After an initial shuffle, each element found next to an equal neighbour is
// swapped with a random position whose surroundings do not clash. Lists with
// fewer than three elements have no such position and are returned shuffled.
func ShuffleNoRepeatsFunc[T any](r *rand.Rand, items []T, equal func(a, b T) bool) ([]T, error) {
	out := Shuffle(r, items)
	n := len(out)
	if n < 3 {
		return out, nil
	}

	maxAttempts := 1000 * n
	for i := 0; i < n-1; i++ {
		if !equal(out[i], out[i+1]) {
			continue
		}
		attempts := 0
		pick := r.IntN(n-2) + 1
		for equal(out[i+1], out[pick]) ||
			equal(out[i+1], out[pick+1]) ||
			equal(out[i+1], out[pick-1]) ||
			equal(out[i], out[pick]) {
			attempts++
			if attempts > maxAttempts {
				return out, ErrNoRepeatsImpossible
			}
			pick = r.IntN(n-2) + 1
		}
		out[pick], out[i+1] = out[i+1], out[pick]
	}
	return out, nil
}

// ShuffleAlternateGroups shuffles within each group and interleaves the groups
// position by position, so consecutive picks never come from the same group.
// Elements beyond the shortest group's length are dropped. With
// randomGroupOrder the order in which groups take turns is shuffled as well.
func ShuffleAlternateGroups[T any](r *rand.Rand, groups [][]T, randomGroupOrder bool) ([]T, []Warning) {
	if len(groups) == 0 {
		return nil, nil
	}
	if len(groups) == 1 {
		return Shuffle(r, groups[0]), []Warning{{
			Code:    WarnSingleGroup,
			Message: "alternate groups called with a single group; falling back to a simple shuffle",
		}}
	}

	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	if randomGroupOrder {
		order = Shuffle(r, order)
	}

	minLen := len(groups[0])
	shuffled := make([][]T, len(groups))
	for i, g := range groups {
		minLen = min(minLen, len(g))
		shuffled[i] = Shuffle(r, g)
	}

	out := make([]T, 0, minLen*len(groups))
	for i := 0; i < minLen; i++ {
		for _, g := range order {
			out = append(out, shuffled[g][i])
		}
	}
	return out, nil
}

// SampleWithoutReplacement shuffles items and returns the first size of them.
func SampleWithoutReplacement[T any](r *rand.Rand, items []T, size int) ([]T, error) {
	if size < 0 {
		return nil, fmt.Errorf("sample size must not be negative, got %d", size)
	}
	if size > len(items) {
		return nil, fmt.Errorf("%w (size %d, population %d)", ErrSampleTooLarge, size, len(items))
	}
	return Shuffle(r, items)[:size], nil
}

// SampleWithReplacement draws size items independently. Without weights every
// item is equally likely; otherwise weights are normalized to sum to one and a
// draw u selects the first item whose cumulative weight is at least u.
func SampleWithReplacement[T any](r *rand.Rand, items []T, size int, weights []float64) ([]T, error) {
	if size < 0 {
		return nil, fmt.Errorf("sample size must not be negative, got %d", size)
	}
	if size > 0 && len(items) == 0 {
		return nil, fmt.Errorf("cannot sample %d items from an empty set", size)
	}

	normalized := make([]float64, len(items))
	if weights != nil {
		if len(weights) != len(items) {
			return nil, fmt.Errorf("weights length %d must equal items length %d", len(weights), len(items))
		}
		var sum float64
		for _, w := range weights {
			if w < 0 {
				return nil, fmt.Errorf("weights must not be negative, got %v", w)
			}
			sum += w
		}
		if sum == 0 {
			return nil, fmt.Errorf("weights must not all be zero")
		}
		for i, w := range weights {
			normalized[i] = w / sum
		}
	} else {
		for i := range normalized {
			normalized[i] = 1 / float64(len(items))
		}
	}

	cumulative := make([]float64, len(normalized))
	for i, w := range normalized {
		cumulative[i] = w
		if i > 0 {
			cumulative[i] += cumulative[i-1]
		}
	}

	out := make([]T, 0, size)
	for range size {
		u := r.Float64()
		idx := 0
		for idx < len(cumulative)-1 && u > cumulative[idx] {
			idx++
		}
		out = append(out, items[idx])
	}
	return out, nil
}

// RepeatEach repeats every item n times and shuffles the result.
func RepeatEach[T any](r *rand.Rand, items []T, n int) []T {
	out, _ := Repeat(r, items, []int{n})
	return out
}

// Repeat repeats item i reps[i] times and shuffles the result. A single count
// applies to every item. Counts of any other mismatched length are tolerated:
// extra counts are ignored and missing ones reuse the first count.
func Repeat[T any](r *rand.Rand, items []T, reps []int) ([]T, []Warning) {
	var warnings []Warning
	counts := make([]int, len(items))
	switch {
	case len(reps) == 0:
		// nothing repeats
	case len(reps) == 1:
		for i := range counts {
			counts[i] = reps[0]
		}
	default:
		if len(reps) != len(items) {
			warnings = append(warnings, Warning{
				Code:    WarnRepeatShape,
				Message: fmt.Sprintf("items and repetitions have unequal lengths (%d vs %d)", len(items), len(reps)),
			})
		}
		for i := range counts {
			if i < len(reps) {
				counts[i] = reps[i]
			} else {
				counts[i] = reps[0]
			}
		}
	}

	var all []T
	for i, item := range items {
		for range max(counts[i], 0) {
			all = append(all, item)
		}
	}
	return Shuffle(r, all), warnings
}

// Factor is one named dimension of a factorial design.
type Factor struct {
	Name   string
	Levels []any
}

// Factorial builds the full crossing of factors, repeats every cell
// repetitions times and shuffles the result. Each returned cell is a distinct
// map.
func Factorial(r *rand.Rand, factors []Factor, repetitions int) []map[string]any {
	design := []map[string]any{{}}
	for _, f := range factors {
		next := make([]map[string]any, 0, len(design)*len(f.Levels))
		for _, level := range f.Levels {
			for _, cell := range design {
				c := maps.Clone(cell)
				c[f.Name] = level
				next = append(next, c)
			}
		}
		design = next
	}

	var all []map[string]any
	for _, cell := range design {
		for range max(repetitions, 0) {
			all = append(all, maps.Clone(cell))
		}
	}
	return Shuffle(r, all)
}

// Unpack turns a list of records into a map of columns.
func Unpack(rows []map[string]any) map[string][]any {
	out := make(map[string][]any)
	for _, row := range rows {
		for k, v := range row {
			out[k] = append(out[k], v)
		}
	}
	return out
}

// RandomInt returns an integer in [lower, upper].
func RandomInt(r *rand.Rand, lower, upper int) (int, error) {
	if upper < lower {
		return 0, fmt.Errorf("upper boundary %d must be greater than or equal to lower boundary %d", upper, lower)
	}
	return lower + r.IntN(upper-lower+1), nil
}

// SampleBernoulli returns 1 with probability p and 0 otherwise.
func SampleBernoulli(r *rand.Rand, p float64) int {
	if r.Float64() <= p {
		return 1
	}
	return 0
}

// SampleNormal draws from a normal distribution using the Box-Muller transform.
func SampleNormal(r *rand.Rand, mean, standardDeviation float64) float64 {
	return boxMuller(r)*standardDeviation + mean
}

// SampleExponential draws from an exponential distribution with the given rate.
func SampleExponential(r *rand.Rand, rate float64) float64 {
	return -math.Log(nonZero(r)) / rate
}

// SampleExGaussian draws from an ex-Gaussian distribution. With positive set,
// draws are repeated until a positive value appears.
func SampleExGaussian(r *rand.Rand, mean, standardDeviation, rate float64, positive bool) float64 {
	s := SampleNormal(r, mean, standardDeviation) + SampleExponential(r, rate)
	for positive && s <= 0 {
		s = SampleNormal(r, mean, standardDeviation) + SampleExponential(r, rate)
	}
	return s
}

const idAlphabet = "0123456789abcdefghjklmnopqrstuvwxyz"

// RandomID returns a random identifier of the given length.
func RandomID(r *rand.Rand, length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = idAlphabet[r.IntN(len(idAlphabet))]
	}
	return string(b)
}

func boxMuller(r *rand.Rand) float64 {
	u := nonZero(r)
	v := nonZero(r)
	return math.Sqrt(-2*math.Log(u)) * math.Cos(2*math.Pi*v)
}

func nonZero(r *rand.Rand) float64 {
	for {
		if u := r.Float64(); u != 0 {
			return u
		}
	}
}
