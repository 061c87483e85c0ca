//go:build integration
// +build integration

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scim-mysql/internal/dbexec"
	"scim-mysql/internal/filter"
	"scim-mysql/internal/planner"
	"scim-mysql/internal/store"
)

func userPageRequest(t *testing.T, rawFilter string) store.PageRequest {
	t.Helper()

	req := store.PageRequest{StartIndex: 1, Count: 100}
	if rawFilter != "" {
		tree, err := filter.Parse(rawFilter)
		require.NoError(t, err)
		req.Filter = tree
	}
	return req
}

func TestUserStore_Filtering(t *testing.T) {
	requireIntegrationEnv(t)

	db := openTestDB(t)
	f := seedFixture(t, db)
	users := store.NewUserStore(dbexec.NewStandardExecutor(db), f.RealmID)
	ctx := context.Background()

	t.Run("unfiltered list excludes service accounts", func(t *testing.T) {
		total, err := users.Count(ctx, userPageRequest(t, ""))
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)

		page, err := users.Filter(ctx, userPageRequest(t, ""))
		require.NoError(t, err)
		names := make([]string, 0, len(page))
		for _, u := range page {
			names = append(names, u.UserName)
		}
		assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, names)
	})

	t.Run("userName eq", func(t *testing.T) {
		page, err := users.Filter(ctx, userPageRequest(t, `userName eq "alice"`))
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, f.AliceID, page[0].ID)
		assert.Equal(t, "Alice", page[0].Name.GivenName)
		assert.True(t, page[0].Active)
	})

	t.Run("active eq false", func(t *testing.T) {
		page, err := users.Filter(ctx, userPageRequest(t, "active eq false"))
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "bob", page[0].UserName)
	})

	t.Run("co and logical and", func(t *testing.T) {
		page, err := users.Filter(ctx, userPageRequest(t, `userName co "a" and active eq true`))
		require.NoError(t, err)
		names := make([]string, 0, len(page))
		for _, u := range page {
			names = append(names, u.UserName)
		}
		assert.ElementsMatch(t, []string{"alice", "carol"}, names)
	})

	t.Run("email join filter deduplicates the user", func(t *testing.T) {
		// alice has two email rows; the projection join must not
		// produce her twice.
		page, err := users.Filter(ctx, userPageRequest(t, `emails.value co "example.com"`))
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "alice", page[0].UserName)
		assert.Len(t, page[0].Emails, 2)
	})

	t.Run("extension attribute pr", func(t *testing.T) {
		page, err := users.Filter(ctx, userPageRequest(t, "externalId pr"))
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "ext-alice", page[0].ExternalID)
	})

	t.Run("group membership hydrated", func(t *testing.T) {
		page, err := users.Filter(ctx, userPageRequest(t, `userName eq "carol"`))
		require.NoError(t, err)
		require.Len(t, page, 1)
		require.Len(t, page[0].Groups, 1)
		assert.Equal(t, f.EngineeringID, page[0].Groups[0].Value)
		assert.Equal(t, "engineering", page[0].Groups[0].Display)
	})

	t.Run("no matches", func(t *testing.T) {
		page, err := users.Filter(ctx, userPageRequest(t, `userName eq "nobody"`))
		require.NoError(t, err)
		assert.Empty(t, page)
	})
}

func TestUserStore_SortingAndPaging(t *testing.T) {
	requireIntegrationEnv(t)

	db := openTestDB(t)
	f := seedFixture(t, db)
	users := store.NewUserStore(dbexec.NewStandardExecutor(db), f.RealmID)
	ctx := context.Background()

	t.Run("sort by userName descending", func(t *testing.T) {
		req := userPageRequest(t, "")
		req.SortBy = "userName"
		req.SortOrder = planner.SortDescending

		page, err := users.Filter(ctx, req)
		require.NoError(t, err)
		require.Len(t, page, 3)
		assert.Equal(t, "carol", page[0].UserName)
		assert.Equal(t, "bob", page[1].UserName)
		assert.Equal(t, "alice", page[2].UserName)
	})

	t.Run("page window walks the sorted list", func(t *testing.T) {
		req := userPageRequest(t, "")
		req.SortBy = "userName"
		req.SortOrder = planner.SortAscending
		req.Count = 2

		first, err := users.Filter(ctx, req)
		require.NoError(t, err)
		require.Len(t, first, 2)
		assert.Equal(t, "alice", first[0].UserName)
		assert.Equal(t, "bob", first[1].UserName)

		req.StartIndex = 3
		second, err := users.Filter(ctx, req)
		require.NoError(t, err)
		require.Len(t, second, 1)
		assert.Equal(t, "carol", second[0].UserName)
	})

	t.Run("count ignores the page window", func(t *testing.T) {
		req := userPageRequest(t, "")
		req.Count = 1

		total, err := users.Count(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})
}
