// Package store runs compiled query plans against the identity schema and
// decodes the results into SCIM resource documents. Filtering is the
// generic count/fetch runner; UserStore and GroupStore build on it for
// their resource types.
package store

import (
	"context"

	"scim-mysql/internal/attrmap"
	"scim-mysql/internal/dbexec"
	"scim-mysql/internal/filter"
	"scim-mysql/internal/planner"
)

// PageRequest is one filtered, sorted, paginated list request as handed
// over by the protocol layer. Filter may be nil for "no filter"; SortBy
// may be empty; StartIndex is 1-based.
type PageRequest struct {
	Filter     *filter.Node
	SortBy     string
	SortOrder  planner.SortOrder
	StartIndex int64
	Count      int
}

// Filtering compiles and executes plans for one resource type. A Filtering
// value holds no per-request state: every call builds a fresh compilation,
// so concurrent requests never share mutable state.
type Filtering struct {
	Registry    *attrmap.Registry
	Executor    dbexec.QueryExecutor
	Restriction planner.Restriction
}

func (f *Filtering) input(req PageRequest) planner.Input {
	return planner.Input{
		Registry:    f.Registry,
		Restriction: f.Restriction,
		Filter:      req.Filter,
		SortBy:      req.SortBy,
		SortOrder:   req.SortOrder,
		StartIndex:  req.StartIndex,
		Count:       req.Count,
	}
}

// CountResources returns the total number of resources matching the
// request's filter, ignoring its page window.
func (f *Filtering) CountResources(ctx context.Context, req PageRequest) (int64, error) {
	plan, err := planner.BuildCount(f.input(req))
	if err != nil {
		return 0, err
	}
	return dbexec.CountPlan(ctx, f.Executor, plan)
}

// FilterKeys returns the base-table keys of the resources matching the
// request, in result order, deduplicated across projection-join rows.
func (f *Filtering) FilterKeys(ctx context.Context, req PageRequest) ([]string, error) {
	plan, err := planner.BuildFetch(f.input(req))
	if err != nil {
		return nil, err
	}
	return dbexec.FetchPlanKeys(ctx, f.Executor, plan)
}
