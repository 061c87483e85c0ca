package planner

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scim-mysql/internal/attrmap"
	"scim-mysql/internal/filter"
)

func userInput(t *testing.T, filterInput string) Input {
	t.Helper()
	node, err := filter.Parse(filterInput)
	require.NoError(t, err)
	return Input{
		Registry: attrmap.NewUserRegistry(),
		Restriction: Restriction{
			SQL:    "u.realm_id = :realmId and u.service_account_client_link is null",
			Params: []Param{{Name: "realmId", Value: "master"}},
		},
		Filter:     node,
		StartIndex: 1,
		Count:      10,
	}
}

func TestBuildFetchWithoutFilter(t *testing.T) {
	plan, err := BuildFetch(userInput(t, ""))
	require.NoError(t, err)
	assert.Equal(t,
		"select u.id from user_entity u"+
			" where u.realm_id = :realmId and u.service_account_client_link is null"+
			" limit 10 offset 0",
		plan.SQL,
	)
	require.Len(t, plan.Params, 1)
	assert.Equal(t, "realmId", plan.Params[0].Name)
	assert.Empty(t, plan.Projected)
	assert.Equal(t, 1, plan.RowWidth())
}

func TestBuildCountWithoutFilter(t *testing.T) {
	plan, err := BuildCount(userInput(t, ""))
	require.NoError(t, err)
	assert.Equal(t,
		"select count(u.id) from user_entity u"+
			" where u.realm_id = :realmId and u.service_account_client_link is null",
		plan.SQL,
	)
	assert.Empty(t, plan.Projected)
}

func TestBuildFetchWithFilter(t *testing.T) {
	plan, err := BuildFetch(userInput(t, `userName eq "mario"`))
	require.NoError(t, err)
	assert.Equal(t,
		"select u.id from user_entity u"+
			" where u.realm_id = :realmId and u.service_account_client_link is null"+
			" and (lower(u.username) = lower(:p))"+
			" limit 10 offset 0",
		normalizeParams(plan.SQL),
	)
	require.Len(t, plan.Params, 2)
	assert.Equal(t, "realmId", plan.Params[0].Name)
	assert.Equal(t, "mario", plan.Params[1].Value)
}

func TestBuildFetchProjectsEmailJoin(t *testing.T) {
	plan, err := BuildFetch(userInput(t, `emails.type eq "work"`))
	require.NoError(t, err)
	assert.Equal(t,
		"select u.id, ue.id from user_entity u"+
			" left join scim_user_attributes ua on u.id = ua.user_id"+
			" left join scim_emails ue on ua.id = ue.user_attributes_id"+
			" where u.realm_id = :realmId and u.service_account_client_link is null"+
			" and (lower(ue.email_type) = lower(:p))"+
			" limit 10 offset 0",
		normalizeParams(plan.SQL),
	)
	require.Len(t, plan.Projected, 1)
	assert.Equal(t, "ue", plan.Projected[0].Ident)
	assert.Equal(t, 2, plan.RowWidth())
}

func TestBuildCountDoesNotProjectJoins(t *testing.T) {
	plan, err := BuildCount(userInput(t, `emails.type eq "work"`))
	require.NoError(t, err)
	assert.Equal(t,
		"select count(u.id) from user_entity u"+
			" left join scim_user_attributes ua on u.id = ua.user_id"+
			" left join scim_emails ue on ua.id = ue.user_attributes_id"+
			" where u.realm_id = :realmId and u.service_account_client_link is null"+
			" and (lower(ue.email_type) = lower(:p))",
		normalizeParams(plan.SQL),
	)
	assert.Empty(t, plan.Projected)
}

func TestBuildJoinOrderStableUnderLeafPermutation(t *testing.T) {
	a, err := BuildFetch(userInput(t, `emails.type eq "work" and groups.value eq "admin"`))
	require.NoError(t, err)
	b, err := BuildFetch(userInput(t, `groups.value eq "admin" and emails.type eq "work"`))
	require.NoError(t, err)

	// ignore the AND operand swap inside WHERE; the SELECT/FROM/JOIN prefix
	// must be identical regardless of leaf order
	expectedPrefix := "select u.id, ue.id from user_entity u" +
		" left join user_group_membership ugm on u.id = ugm.user_id" +
		" left join scim_user_attributes ua on u.id = ua.user_id" +
		" left join scim_emails ue on ua.id = ue.user_attributes_id" +
		" left join keycloak_group g on ugm.group_id = g.id" +
		" where"
	assert.True(t, len(a.SQL) > len(expectedPrefix))
	assert.Equal(t, expectedPrefix, a.SQL[:len(expectedPrefix)])
	assert.Equal(t, expectedPrefix, b.SQL[:len(expectedPrefix)])
}

func TestBuildFetchOrderBy(t *testing.T) {
	t.Run("descending", func(t *testing.T) {
		in := userInput(t, "")
		in.SortBy = "userName"
		in.SortOrder = SortDescending
		plan, err := BuildFetch(in)
		require.NoError(t, err)
		assert.Contains(t, plan.SQL, " order by u.username desc limit 10 offset 0")
	})
	t.Run("ascending", func(t *testing.T) {
		in := userInput(t, "")
		in.SortBy = "userName"
		in.SortOrder = SortAscending
		plan, err := BuildFetch(in)
		require.NoError(t, err)
		assert.Contains(t, plan.SQL, " order by u.username asc")
	})
	t.Run("sort attribute without sort order emits no order by", func(t *testing.T) {
		in := userInput(t, "")
		in.SortBy = "userName"
		plan, err := BuildFetch(in)
		require.NoError(t, err)
		assert.NotContains(t, plan.SQL, "order by")
	})
	t.Run("sorting by a joined attribute adds its join", func(t *testing.T) {
		in := userInput(t, "")
		in.SortBy = "displayName"
		in.SortOrder = SortAscending
		plan, err := BuildFetch(in)
		require.NoError(t, err)
		assert.Contains(t, plan.SQL, "left join scim_user_attributes ua on u.id = ua.user_id")
		assert.Contains(t, plan.SQL, " order by ua.display_name asc")
	})
}

func TestBuildCountHasNoOrderByOrPagination(t *testing.T) {
	in := userInput(t, "")
	in.SortBy = "userName"
	in.SortOrder = SortDescending
	in.StartIndex = 11
	in.Count = 10
	plan, err := BuildCount(in)
	require.NoError(t, err)
	assert.NotContains(t, plan.SQL, "order by")
	assert.NotContains(t, plan.SQL, "limit")
	assert.NotContains(t, plan.SQL, "offset")
}

func TestBuildCountIgnoresSortJoins(t *testing.T) {
	// sorting by a one-to-many attribute must not drag its joins into the
	// count query: a user with several emails would be counted once per
	// email row.
	in := userInput(t, "")
	in.SortBy = "emails.type"
	in.SortOrder = SortAscending

	plan, err := BuildCount(in)
	require.NoError(t, err)
	assert.Equal(t,
		"select count(u.id) from user_entity u"+
			" where u.realm_id = :realmId and u.service_account_client_link is null",
		plan.SQL,
	)

	// the fetch variant still carries the joins so the ORDER BY column
	// resolves
	fetch, err := BuildFetch(in)
	require.NoError(t, err)
	assert.Contains(t, fetch.SQL, "left join scim_emails ue")
	assert.Contains(t, fetch.SQL, "order by ue.email_type asc")
}

func TestBuildFetchPagination(t *testing.T) {
	tests := []struct {
		startIndex int64
		count      int
		expected   string
	}{
		{1, 10, "limit 10 offset 0"},
		{11, 10, "limit 10 offset 10"},
		{0, 5, "limit 5 offset 0"},
		{3, 0, "limit 0 offset 2"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("startIndex=%d count=%d", tt.startIndex, tt.count), func(t *testing.T) {
			in := userInput(t, "")
			in.StartIndex = tt.startIndex
			in.Count = tt.count
			plan, err := BuildFetch(in)
			require.NoError(t, err)
			assert.Contains(t, plan.SQL, tt.expected)
		})
	}
}

func TestBuildUnknownAttribute(t *testing.T) {
	t.Run("in filter", func(t *testing.T) {
		_, err := BuildFetch(userInput(t, `password eq "123456"`))
		require.Error(t, err)
		var unknownErr *attrmap.UnknownAttributeError
		require.True(t, errors.As(err, &unknownErr))
		assert.Equal(t, "urn:ietf:params:scim:schemas:core:2.0:User:password", unknownErr.Name)
	})
	t.Run("in sort attribute", func(t *testing.T) {
		in := userInput(t, "")
		in.SortBy = "password"
		_, err := BuildFetch(in)
		require.Error(t, err)
		var unknownErr *attrmap.UnknownAttributeError
		require.True(t, errors.As(err, &unknownErr))
		assert.Equal(t, "urn:ietf:params:scim:schemas:core:2.0:User:password", unknownErr.Name)
	})
	t.Run("sort attribute resolved even without sort order", func(t *testing.T) {
		in := userInput(t, "")
		in.SortBy = "password"
		in.SortOrder = SortNone
		_, err := BuildFetch(in)
		require.Error(t, err)
	})
}

func TestBuildWithoutRestriction(t *testing.T) {
	in := userInput(t, `userName eq "mario"`)
	in.Restriction = Restriction{}
	plan, err := BuildFetch(in)
	require.NoError(t, err)
	assert.Equal(t,
		"select u.id from user_entity u where (lower(u.username) = lower(:p)) limit 10 offset 0",
		normalizeParams(plan.SQL),
	)
}

func TestBuildPlanBindsExecutable(t *testing.T) {
	plan, err := BuildFetch(userInput(t, `userName eq "mario" and active eq true`))
	require.NoError(t, err)

	query, args, err := plan.Bind()
	require.NoError(t, err)
	assert.NotContains(t, query, ":")
	assert.Equal(t, []any{"master", "mario", true}, args)
}

func TestParseSortOrder(t *testing.T) {
	order, ok := ParseSortOrder("")
	assert.True(t, ok)
	assert.Equal(t, SortNone, order)

	order, ok = ParseSortOrder("ascending")
	assert.True(t, ok)
	assert.Equal(t, SortAscending, order)

	order, ok = ParseSortOrder("descending")
	assert.True(t, ok)
	assert.Equal(t, SortDescending, order)

	_, ok = ParseSortOrder("sideways")
	assert.False(t, ok)
}
