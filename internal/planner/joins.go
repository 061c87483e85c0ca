package planner

import (
	"sort"

	"scim-mysql/internal/attrmap"
)

// sortedJoins linearizes the deduplicated join set into a sequence that is
// valid to emit as successive JOIN clauses: every join's base table must
// already have been introduced, either by the base table itself or by an
// earlier join, before the join appears.
//
// The filter tree references joined attributes in whatever order the client
// wrote them, so the set is first brought into a canonical order (making
// the result independent of discovery order) and then greedily inserted:
// joins on the base table go to the front, a join is placed before any
// entry that depends on its target, everything else is appended. This is
// not a general topological sort; the dependency depth here is one level of
// one-to-many expansion and valid configuration contains no cycles.
func sortedJoins(base attrmap.TableRef, joins map[attrmap.JoinKey]attrmap.TableJoin) []attrmap.TableJoin {
	candidates := make([]attrmap.TableJoin, 0, len(joins))
	for _, join := range joins {
		candidates = append(candidates, join)
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Base.Ident != b.Base.Ident {
			return a.Base.Ident < b.Base.Ident
		}
		if a.Target.Ident != b.Target.Ident {
			return a.Target.Ident < b.Target.Ident
		}
		return a.On < b.On
	})

	sorted := make([]attrmap.TableJoin, 0, len(candidates))
	for _, join := range candidates {
		if len(sorted) == 0 {
			sorted = append(sorted, join)
			continue
		}

		// joins directly on the base table have no dependency on any other
		// join and can always go first
		if join.Base == base {
			sorted = append([]attrmap.TableJoin{join}, sorted...)
			continue
		}

		inserted := false
		for i, existing := range sorted {
			// anything that joins off this join's target depends on it, so
			// this join must come before that entry
			if join.Target == existing.Base {
				sorted = append(sorted[:i], append([]attrmap.TableJoin{join}, sorted[i:]...)...)
				inserted = true
				break
			}
		}
		if !inserted {
			sorted = append(sorted, join)
		}
	}
	return sorted
}
