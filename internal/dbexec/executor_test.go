package dbexec

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scim-mysql/internal/attrmap"
	"scim-mysql/internal/planner"
)

func TestCountPlan(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("select count(u.id) from user_entity u where u.realm_id = ?").
		WithArgs("master").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	plan := &planner.Plan{
		SQL:    "select count(u.id) from user_entity u where u.realm_id = :realmId",
		Params: []planner.Param{{Name: "realmId", Value: "master"}},
	}

	total, err := CountPlan(context.Background(), NewStandardExecutor(db), plan)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchPlanKeysSingleColumn(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("select u.id from user_entity u limit 10 offset 0").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).
			AddRow("id-1").
			AddRow("id-2"))

	plan := &planner.Plan{SQL: "select u.id from user_entity u limit 10 offset 0"}

	keys, err := FetchPlanKeys(context.Background(), NewStandardExecutor(db), plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"id-1", "id-2"}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchPlanKeysDeduplicatesProjectedRows(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	// a one-to-many projection join repeats the base key per joined row
	mock.ExpectQuery("select u.id, ue.id from user_entity u").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email_id"}).
			AddRow("id-1", "mail-1").
			AddRow("id-1", "mail-2").
			AddRow("id-2", "mail-3").
			AddRow("id-1", "mail-4"))

	plan := &planner.Plan{
		SQL:       "select u.id, ue.id from user_entity u",
		Projected: []attrmap.TableRef{attrmap.EmailsTable},
	}

	keys, err := FetchPlanKeys(context.Background(), NewStandardExecutor(db), plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"id-1", "id-2"}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchPlanKeysSkipsNullKeys(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("select u.id from user_entity u").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).
			AddRow(nil).
			AddRow("id-1"))

	plan := &planner.Plan{SQL: "select u.id from user_entity u"}

	keys, err := FetchPlanKeys(context.Background(), NewStandardExecutor(db), plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"id-1"}, keys)
}

func TestNilDatabaseHandle(t *testing.T) {
	exec := NewStandardExecutor(nil)
	_, err := exec.QueryContext(context.Background(), "select 1")
	assert.Error(t, err)
}
