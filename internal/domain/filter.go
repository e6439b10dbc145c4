package domain

import "github.com/momentum-hq/momentum/internal/domain/document"

// Filter is an equality match over top-level document fields. An empty or nil
// filter matches every document.
type Filter map[string]any

// nothing is the value And assigns to a key constrained to two different
// values. No document field ever equals it, so the merged filter selects the
// empty intersection.
type nothing struct{}

// And conjoins two filters. A key present in both with equal values collapses
// to a single clause; with different values the conjunction is unsatisfiable
// and the result matches no document.
func (f Filter) And(other Filter) Filter {
	if len(other) == 0 {
		return f
	}
	if len(f) == 0 {
		return other
	}
	merged := make(Filter, len(f)+len(other))
	for k, v := range f {
		merged[k] = v
	}
	for k, v := range other {
		if prev, ok := merged[k]; ok && !document.DeepEqual(prev, v) {
			merged[k] = nothing{}
			continue
		}
		merged[k] = v
	}
	return merged
}
