package consensus

import "sort"

// Decide applies the plurality-with-lexicographic-tie-break rule: the
// value reported most often wins; ties are broken by ascending string
// order, so the decision is deterministic across honest nodes. Once an
// instance's Resolved field is set it is never recomputed — decide is
// idempotent and returns the stored value unchanged (invariant 4).
//
// Returns nil if the instance has no reports yet.
func Decide(in *Instance) *string {
	if in.Resolved != nil {
		return in.Resolved
	}
	if len(in.Reports) == 0 {
		return nil
	}

	counts := make(map[string]int, len(in.Reports))
	for _, v := range in.Reports {
		counts[v]++
	}

	best := 0
	for _, c := range counts {
		if c > best {
			best = c
		}
	}

	winners := make([]string, 0, len(counts))
	for v, c := range counts {
		if c == best {
			winners = append(winners, v)
		}
	}
	sort.Strings(winners)

	resolved := winners[0]
	in.Resolved = &resolved
	return in.Resolved
}
