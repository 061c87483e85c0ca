package planner

import "scim-mysql/internal/attrmap"

// SortOrder is the requested result ordering.
type SortOrder int

const (
	// SortNone means no sort order was supplied. A sort attribute without a
	// sort order yields no ORDER BY clause at all; see Build.
	SortNone SortOrder = iota
	SortAscending
	SortDescending
)

// ParseSortOrder maps the SCIM sortOrder protocol values onto SortOrder.
// An empty string means absent.
func ParseSortOrder(value string) (SortOrder, bool) {
	switch value {
	case "":
		return SortNone, true
	case "ascending":
		return SortAscending, true
	case "descending":
		return SortDescending, true
	default:
		return SortNone, false
	}
}

// Restriction is the tenant/realm predicate conjoined with every query,
// e.g. "u.realm_id = :realmId". Its parameters are bound ahead of any
// filter parameters.
type Restriction struct {
	SQL    string
	Params []Param
}

// Plan is the immutable output of one compilation: executable query text
// with named placeholders, the ordered parameter bindings for them, and the
// row shape of a fetch result. A plan is produced per call and consumed
// immediately; it is never cached because each filter may discover a
// different join set.
type Plan struct {
	SQL    string
	Params []Param

	// Base is the table whose key column is the first result column.
	Base attrmap.TableRef
	// Projected lists the join targets whose key columns follow the base
	// key in the SELECT list (fetch mode only, empty for count plans).
	Projected []attrmap.TableRef

	bound bool
}

// RowWidth is the number of columns a fetch row carries. Single-column rows
// must still be decoded as a one-element row by the executor.
func (p *Plan) RowWidth() int {
	return 1 + len(p.Projected)
}
