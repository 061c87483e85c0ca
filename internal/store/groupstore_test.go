package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scim-mysql/internal/dbexec"
)

func newMockGroupStore(t *testing.T) (*GroupStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewGroupStore(dbexec.NewStandardExecutor(db), "master"), mock
}

func TestGroupStoreFilterByDisplayName(t *testing.T) {
	store, mock := newMockGroupStore(t)

	mock.ExpectQuery("select g.id from keycloak_group g" +
		" where g.realm_id = ? and (lower(g.name) = lower(?)) limit 10 offset 0").
		WithArgs("master", "plumbers").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("g1"))

	mock.ExpectQuery("SELECT g.id, g.name FROM keycloak_group g WHERE g.id IN (?)").
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("g1", "plumbers"))

	mock.ExpectQuery("SELECT ugm.group_id, u.id, u.username "+
		"FROM user_group_membership ugm JOIN user_entity u ON ugm.user_id = u.id "+
		"WHERE ugm.group_id IN (?)").
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "id", "username"}).
			AddRow("g1", "m1", "mario").
			AddRow("g1", "l1", "link"))

	groups, err := store.Filter(context.Background(), PageRequest{
		Filter:     parseFilter(t, `displayName eq "plumbers"`),
		StartIndex: 1,
		Count:      10,
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "plumbers", groups[0].DisplayName)
	require.Len(t, groups[0].Members, 2)
	assert.Equal(t, "mario", groups[0].Members[0].Display)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupStoreFilterByMember(t *testing.T) {
	store, mock := newMockGroupStore(t)

	// members.value is case exact, so neither side is folded
	mock.ExpectQuery("select g.id from keycloak_group g" +
		" left join user_group_membership gm on g.id = gm.group_id" +
		" where g.realm_id = ? and (gm.user_id = ?) limit 10 offset 0").
		WithArgs("master", "m1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("g1"))

	mock.ExpectQuery("SELECT g.id, g.name FROM keycloak_group g WHERE g.id IN (?)").
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("g1", "plumbers"))

	mock.ExpectQuery("SELECT ugm.group_id, u.id, u.username "+
		"FROM user_group_membership ugm JOIN user_entity u ON ugm.user_id = u.id "+
		"WHERE ugm.group_id IN (?)").
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "id", "username"}))

	groups, err := store.Filter(context.Background(), PageRequest{
		Filter:     parseFilter(t, `members.value eq "m1"`),
		StartIndex: 1,
		Count:      10,
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Empty(t, groups[0].Members)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupStoreCount(t *testing.T) {
	store, mock := newMockGroupStore(t)

	mock.ExpectQuery("select count(g.id) from keycloak_group g where g.realm_id = ?").
		WithArgs("master").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	total, err := store.Count(context.Background(), PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	require.NoError(t, mock.ExpectationsWereMet())
}
