// Package scoring selects entries from sparse score-keyed tables and evaluates
// pass criteria. It is shared by questionnaire branching and feedback text.
package scoring

import "sort"

// Outcome is the tri-state result of a table lookup.
type Outcome int

const (
	// NotFound means no key qualified for the score.
	NotFound Outcome = iota
	// FoundNull means a key qualified but its value is an explicit null.
	FoundNull
	// Found means a key qualified and has a value.
	Found
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case FoundNull:
		return "found-null"
	default:
		return "not-found"
	}
}

// Result is a table lookup result. Key is meaningful unless Outcome is NotFound.
type Result[V any] struct {
	Outcome Outcome
	Key     int
	Value   *V
}

// Present reports whether the lookup selected a usable value. Callers that
// branch or display collapse FoundNull and NotFound through this method.
func (r Result[V]) Present() bool {
	return r.Outcome == Found
}

// Table is an ordered view over a sparse score-keyed map. Nil values are
// explicit nulls.
type Table[V any] struct {
	keys   []int
	values map[int]*V
}

// NewTable builds a table from a sparse map. The map is not copied.
func NewTable[V any](m map[int]*V) Table[V] {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return Table[V]{keys: keys, values: m}
}

// Len returns the number of keys.
func (t Table[V]) Len() int { return len(t.keys) }

// Lookup selects the entry with the largest key ≤ score, or with inverse the
// smallest key ≥ score.
func (t Table[V]) Lookup(score float64, inverse bool) Result[V] {
	idx := -1
	if inverse {
		i := sort.Search(len(t.keys), func(i int) bool { return float64(t.keys[i]) >= score })
		if i < len(t.keys) {
			idx = i
		}
	} else {
		i := sort.Search(len(t.keys), func(i int) bool { return float64(t.keys[i]) > score })
		idx = i - 1
	}
	if idx < 0 {
		return Result[V]{Outcome: NotFound}
	}

	key := t.keys[idx]
	v := t.values[key]
	if v == nil {
		return Result[V]{Outcome: FoundNull, Key: key}
	}
	return Result[V]{Outcome: Found, Key: key, Value: v}
}

// Resolve is a convenience for a single lookup over a sparse map.
func Resolve[V any](m map[int]*V, score float64, inverse bool) Result[V] {
	return NewTable(m).Lookup(score, inverse)
}

// Criteria is a pass threshold.
type Criteria struct {
	Score   int
	Inverse bool
}

// Passed reports whether score meets the criteria: at least the threshold, or
// at most the threshold when inverse.
func Passed(score float64, c Criteria) bool {
	if c.Inverse {
		return score <= float64(c.Score)
	}
	return score >= float64(c.Score)
}
