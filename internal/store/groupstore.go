package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"scim-mysql/internal/attrmap"
	"scim-mysql/internal/dbexec"
	"scim-mysql/internal/planner"
	"scim-mysql/internal/resource"
)

// GroupStore serves filtered group queries for one realm.
type GroupStore struct {
	filtering Filtering
	exec      dbexec.QueryExecutor
}

// NewGroupStore creates a group store scoped to the given realm.
func NewGroupStore(exec dbexec.QueryExecutor, realmID string) *GroupStore {
	return &GroupStore{
		exec: exec,
		filtering: Filtering{
			Registry: attrmap.NewGroupRegistry(),
			Executor: exec,
			Restriction: planner.Restriction{
				SQL:    "g.realm_id = :realmId",
				Params: []planner.Param{{Name: "realmId", Value: realmID}},
			},
		},
	}
}

// Count returns the number of groups matching the request's filter.
func (s *GroupStore) Count(ctx context.Context, req PageRequest) (int64, error) {
	return s.filtering.CountResources(ctx, req)
}

// Filter returns the page of groups matching the request, hydrated into
// full SCIM group documents.
func (s *GroupStore) Filter(ctx context.Context, req PageRequest) ([]resource.Group, error) {
	keys, err := s.filtering.FilterKeys(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	groups, err := s.loadGroups(ctx, keys)
	if err != nil {
		return nil, err
	}
	members, err := s.loadMembers(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make([]resource.Group, 0, len(keys))
	for _, key := range keys {
		group, ok := groups[key]
		if !ok {
			continue
		}
		group.Members = members[key]
		out = append(out, *group)
	}
	return out, nil
}

func (s *GroupStore) loadGroups(ctx context.Context, keys []string) (map[string]*resource.Group, error) {
	query, args, err := sq.Select("g.id", "g.name").
		From("keycloak_group g").
		Where(sq.Eq{"g.id": keys}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build group hydration query: %w", err)
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make(map[string]*resource.Group, len(keys))
	for rows.Next() {
		var id, name sql.NullString
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		groups[id.String] = &resource.Group{
			Schemas:     []string{resource.GroupSchema},
			ID:          id.String,
			DisplayName: name.String,
			Meta:        resource.Meta{ResourceType: "Group"},
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *GroupStore) loadMembers(ctx context.Context, keys []string) (map[string][]resource.Member, error) {
	query, args, err := sq.Select("ugm.group_id", "u.id", "u.username").
		From("user_group_membership ugm").
		Join("user_entity u ON ugm.user_id = u.id").
		Where(sq.Eq{"ugm.group_id": keys}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build member hydration query: %w", err)
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make(map[string][]resource.Member)
	for rows.Next() {
		var groupID, userID, username sql.NullString
		if err := rows.Scan(&groupID, &userID, &username); err != nil {
			return nil, err
		}
		members[groupID.String] = append(members[groupID.String], resource.Member{
			Value:   userID.String,
			Display: username.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}
