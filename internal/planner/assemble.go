package planner

import (
	"fmt"
	"strings"

	"scim-mysql/internal/attrmap"
	"scim-mysql/internal/filter"
)

// Input carries everything one compilation needs: the parsed filter tree
// (nil means no filter), the attribute registry for the resource type, the
// tenant restriction, the optional sort request, and the 1-based pagination
// window.
type Input struct {
	Registry    *attrmap.Registry
	Restriction Restriction

	Filter *filter.Node

	// SortBy is the logical sort attribute name, empty for none. It is
	// resolved through the registry even when SortOrder is absent, so an
	// unknown sort attribute always fails. No ORDER BY is emitted unless
	// SortOrder is also present.
	SortBy    string
	SortOrder SortOrder

	// StartIndex is 1-based per the SCIM protocol; the emitted OFFSET is
	// StartIndex-1. Count limits the fetched page.
	StartIndex int64
	Count      int
}

// BuildCount compiles the count variant: select count of base rows matching
// the restriction and filter. Count plans carry no pagination; a row count
// needs neither limit nor offset.
func BuildCount(in Input) (*Plan, error) {
	return build(in, true)
}

// BuildFetch compiles the fetch variant: select the base key column plus
// the key columns of projection joins, with ordering and pagination.
func BuildFetch(in Input) (*Plan, error) {
	return build(in, false)
}

func build(in Input, count bool) (*Plan, error) {
	if in.Registry == nil {
		return nil, fmt.Errorf("attribute registry is required")
	}
	base := in.Registry.Base()
	state := newCompileState(in.Registry)
	for _, param := range in.Restriction.Params {
		state.addParam(param.Name, param.Value)
	}

	// The WHERE clause is compiled before anything else: walking the filter
	// tree is what discovers which joins the FROM clause must carry.
	filterExpr, err := state.compile(in.Filter)
	if err != nil {
		return nil, err
	}

	orderBy, err := buildOrderBy(state, in, count)
	if err != nil {
		return nil, err
	}

	joins := sortedJoins(base, state.joins)

	var sb strings.Builder
	var projected []attrmap.TableRef
	if count {
		fmt.Fprintf(&sb, "select count(%s)", base.KeyColumn())
	} else {
		sb.WriteString("select " + base.KeyColumn())
		for _, join := range joins {
			if join.Projected {
				sb.WriteString(", " + join.Target.KeyColumn())
				projected = append(projected, join.Target)
			}
		}
	}

	fmt.Fprintf(&sb, " from %s %s", base.Name, base.Ident)
	for _, join := range joins {
		sb.WriteString(" " + join.SQL())
	}

	if where := buildWhere(in.Restriction.SQL, filterExpr); where != "" {
		sb.WriteString(" where " + where)
	}

	if !count {
		sb.WriteString(orderBy)
		offset := in.StartIndex - 1
		if offset < 0 {
			offset = 0
		}
		limit := in.Count
		if limit < 0 {
			limit = 0
		}
		fmt.Fprintf(&sb, " limit %d offset %d", limit, offset)
	}

	return &Plan{
		SQL:       sb.String(),
		Params:    state.params,
		Base:      base,
		Projected: projected,
	}, nil
}

// buildWhere conjoins the tenant restriction with the compiled filter
// fragment. With no filter the restriction stands alone; with no
// restriction the filter stands alone.
func buildWhere(restriction, filterExpr string) string {
	restriction = strings.TrimSpace(restriction)
	filterExpr = strings.TrimSpace(filterExpr)
	switch {
	case restriction == "" && filterExpr == "":
		return ""
	case filterExpr == "":
		return restriction
	case restriction == "":
		return "(" + filterExpr + ")"
	default:
		return restriction + " and (" + filterExpr + ")"
	}
}

// buildOrderBy resolves the sort attribute and renders the ORDER BY clause.
// The attribute's joins are registered so that sorting by a joined column
// works even when no filter leaf referenced it. Count plans never emit an
// ORDER BY, and the sort joins must stay out of them too: a one-to-many
// sort attribute would multiply the counted base rows. The attribute is
// still resolved in count mode so an unknown sort attribute fails in both
// variants.
func buildOrderBy(state *compileState, in Input, count bool) (string, error) {
	if in.SortBy == "" {
		return "", nil
	}
	attr, err := state.registry.Resolve(in.SortBy)
	if err != nil {
		return "", err
	}
	if count {
		return "", nil
	}
	if in.SortOrder == SortNone {
		// a sort attribute without a sort order yields no ORDER BY at all
		return "", nil
	}
	state.registerJoins(attr.Joins)

	direction := "asc"
	if in.SortOrder == SortDescending {
		direction = "desc"
	}
	return fmt.Sprintf(" order by %s %s", attr.Column, direction), nil
}
