//go:build integration
// +build integration

package integration

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fixture is one realm's worth of seeded identity rows. Every test run
// seeds its own realm so runs never interfere with each other or with
// whatever else lives in the test database.
type fixture struct {
	RealmID string

	AliceID string
	BobID   string
	CarolID string

	EngineeringID string
	MarketingID   string
}

var fixtureDDL = []string{
	`CREATE TABLE IF NOT EXISTS user_entity (
		id varchar(36) NOT NULL,
		username varchar(255),
		enabled tinyint(1) NOT NULL DEFAULT 0,
		created_timestamp bigint,
		first_name varchar(255),
		last_name varchar(255),
		realm_id varchar(255),
		service_account_client_link varchar(255),
		PRIMARY KEY (id)
	)`,
	`CREATE TABLE IF NOT EXISTS scim_user_attributes (
		id varchar(36) NOT NULL,
		user_id varchar(36) NOT NULL,
		external_id varchar(255),
		last_modified bigint,
		name_formatted varchar(255),
		name_middle_name varchar(255),
		name_honorific_prefix varchar(255),
		name_honorific_suffix varchar(255),
		display_name varchar(255),
		nickname varchar(255),
		profile_url varchar(255),
		user_type varchar(255),
		preferred_language varchar(255),
		locale varchar(255),
		timezone varchar(255),
		PRIMARY KEY (id),
		UNIQUE KEY uq_scim_user_attributes_user (user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS scim_emails (
		id varchar(36) NOT NULL,
		user_attributes_id varchar(36) NOT NULL,
		email_value varchar(255),
		email_type varchar(32),
		is_primary tinyint(1) NOT NULL DEFAULT 0,
		PRIMARY KEY (id)
	)`,
	`CREATE TABLE IF NOT EXISTS keycloak_group (
		id varchar(36) NOT NULL,
		name varchar(255),
		realm_id varchar(36),
		PRIMARY KEY (id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_group_membership (
		group_id varchar(36) NOT NULL,
		user_id varchar(36) NOT NULL,
		PRIMARY KEY (group_id, user_id)
	)`,
}

// seedFixture creates the identity tables if missing and seeds one fresh
// realm: three regular users, one service account that must never surface,
// and two groups with engineering holding alice and carol.
func seedFixture(t *testing.T, db *sql.DB) fixture {
	t.Helper()

	for _, ddl := range fixtureDDL {
		_, err := db.Exec(ddl)
		require.NoError(t, err)
	}

	f := fixture{
		RealmID:       "it-" + uuid.NewString(),
		AliceID:       uuid.NewString(),
		BobID:         uuid.NewString(),
		CarolID:       uuid.NewString(),
		EngineeringID: uuid.NewString(),
		MarketingID:   uuid.NewString(),
	}
	t.Cleanup(func() { cleanupFixture(t, db, f) })

	now := time.Now().UnixMilli()
	serviceAccountID := uuid.NewString()

	users := []struct {
		id, username        string
		enabled             bool
		firstName, lastName string
		serviceAccountLink  sql.NullString
	}{
		{f.AliceID, "alice", true, "Alice", "Anderson", sql.NullString{}},
		{f.BobID, "bob", false, "Bob", "Baker", sql.NullString{}},
		{f.CarolID, "carol", true, "Carol", "Chen", sql.NullString{}},
		{serviceAccountID, "service-account-ci", true, "", "", sql.NullString{String: "client-1", Valid: true}},
	}
	for _, u := range users {
		_, err := db.Exec(
			`INSERT INTO user_entity (id, username, enabled, created_timestamp, first_name, last_name, realm_id, service_account_client_link)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			u.id, u.username, u.enabled, now, u.firstName, u.lastName, f.RealmID, u.serviceAccountLink,
		)
		require.NoError(t, err)
	}

	aliceAttrsID := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO scim_user_attributes (id, user_id, external_id, last_modified, display_name, user_type, locale)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		aliceAttrsID, f.AliceID, "ext-alice", now, "Alice Anderson", "Employee", "en-US",
	)
	require.NoError(t, err)

	emails := []struct {
		value, emailType string
		primary          bool
	}{
		{"alice@example.com", "work", true},
		{"alice@home.example.com", "home", false},
	}
	for _, e := range emails {
		_, err := db.Exec(
			`INSERT INTO scim_emails (id, user_attributes_id, email_value, email_type, is_primary) VALUES (?, ?, ?, ?, ?)`,
			uuid.NewString(), aliceAttrsID, e.value, e.emailType, e.primary,
		)
		require.NoError(t, err)
	}

	groups := []struct{ id, name string }{
		{f.EngineeringID, "engineering"},
		{f.MarketingID, "marketing"},
	}
	for _, g := range groups {
		_, err := db.Exec(
			`INSERT INTO keycloak_group (id, name, realm_id) VALUES (?, ?, ?)`,
			g.id, g.name, f.RealmID,
		)
		require.NoError(t, err)
	}

	memberships := []struct{ groupID, userID string }{
		{f.EngineeringID, f.AliceID},
		{f.EngineeringID, f.CarolID},
	}
	for _, m := range memberships {
		_, err := db.Exec(
			`INSERT INTO user_group_membership (group_id, user_id) VALUES (?, ?)`,
			m.groupID, m.userID,
		)
		require.NoError(t, err)
	}

	return f
}

func cleanupFixture(t *testing.T, db *sql.DB, f fixture) {
	t.Helper()

	statements := []string{
		`DELETE ue FROM scim_emails ue
		 JOIN scim_user_attributes ua ON ue.user_attributes_id = ua.id
		 JOIN user_entity u ON ua.user_id = u.id
		 WHERE u.realm_id = ?`,
		`DELETE ua FROM scim_user_attributes ua
		 JOIN user_entity u ON ua.user_id = u.id
		 WHERE u.realm_id = ?`,
		`DELETE ugm FROM user_group_membership ugm
		 JOIN user_entity u ON ugm.user_id = u.id
		 WHERE u.realm_id = ?`,
		`DELETE FROM keycloak_group WHERE realm_id = ?`,
		`DELETE FROM user_entity WHERE realm_id = ?`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt, f.RealmID); err != nil {
			t.Logf("fixture cleanup failed: %v", err)
		}
	}
}
