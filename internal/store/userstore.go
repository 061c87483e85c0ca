package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"scim-mysql/internal/attrmap"
	"scim-mysql/internal/dbexec"
	"scim-mysql/internal/planner"
	"scim-mysql/internal/resource"
)

// UserStore serves filtered user queries for one realm.
type UserStore struct {
	filtering Filtering
	exec      dbexec.QueryExecutor
}

// NewUserStore creates a user store scoped to the given realm. Service
// account users are excluded from every query by the realm restriction.
func NewUserStore(exec dbexec.QueryExecutor, realmID string) *UserStore {
	return &UserStore{
		exec: exec,
		filtering: Filtering{
			Registry: attrmap.NewUserRegistry(),
			Executor: exec,
			Restriction: planner.Restriction{
				SQL:    "u.realm_id = :realmId and u.service_account_client_link is null",
				Params: []planner.Param{{Name: "realmId", Value: realmID}},
			},
		},
	}
}

// Count returns the number of users matching the request's filter.
func (s *UserStore) Count(ctx context.Context, req PageRequest) (int64, error) {
	return s.filtering.CountResources(ctx, req)
}

// Filter returns the page of users matching the request, hydrated into
// full SCIM user documents, in the order the fetch query produced them.
func (s *UserStore) Filter(ctx context.Context, req PageRequest) ([]resource.User, error) {
	keys, err := s.filtering.FilterKeys(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	users, err := s.loadUsers(ctx, keys)
	if err != nil {
		return nil, err
	}
	emails, err := s.loadEmails(ctx, keys)
	if err != nil {
		return nil, err
	}
	groups, err := s.loadGroups(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make([]resource.User, 0, len(keys))
	for _, key := range keys {
		user, ok := users[key]
		if !ok {
			// the id matched the filter but vanished before hydration
			continue
		}
		user.Emails = emails[key]
		user.Groups = groups[key]
		out = append(out, *user)
	}
	return out, nil
}

func (s *UserStore) loadUsers(ctx context.Context, keys []string) (map[string]*resource.User, error) {
	query, args, err := sq.Select(
		"u.id", "u.username", "u.enabled", "u.created_timestamp",
		"u.first_name", "u.last_name",
		"ua.external_id", "ua.last_modified",
		"ua.name_formatted", "ua.name_middle_name",
		"ua.name_honorific_prefix", "ua.name_honorific_suffix",
		"ua.display_name", "ua.nickname", "ua.profile_url", "ua.user_type",
		"ua.preferred_language", "ua.locale", "ua.timezone",
	).
		From("user_entity u").
		LeftJoin("scim_user_attributes ua ON u.id = ua.user_id").
		Where(sq.Eq{"u.id": keys}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user hydration query: %w", err)
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make(map[string]*resource.User, len(keys))
	for rows.Next() {
		var (
			id, username                       sql.NullString
			enabled                            sql.NullBool
			created, lastModified              sql.NullInt64
			firstName, lastName                sql.NullString
			externalID                         sql.NullString
			formatted, middleName              sql.NullString
			honorificPrefix, honorificSuffix   sql.NullString
			displayName, nickname              sql.NullString
			profileURL, userType               sql.NullString
			preferredLanguage, locale, tzValue sql.NullString
		)
		if err := rows.Scan(
			&id, &username, &enabled, &created,
			&firstName, &lastName,
			&externalID, &lastModified,
			&formatted, &middleName,
			&honorificPrefix, &honorificSuffix,
			&displayName, &nickname, &profileURL, &userType,
			&preferredLanguage, &locale, &tzValue,
		); err != nil {
			return nil, err
		}

		user := &resource.User{
			Schemas:           []string{resource.UserSchema},
			ID:                id.String,
			ExternalID:        externalID.String,
			UserName:          username.String,
			Active:            enabled.Bool,
			DisplayName:       displayName.String,
			NickName:          nickname.String,
			ProfileURL:        profileURL.String,
			UserType:          userType.String,
			PreferredLanguage: preferredLanguage.String,
			Locale:            locale.String,
			Timezone:          tzValue.String,
			Meta:              resource.Meta{ResourceType: "User"},
		}
		name := resource.Name{
			Formatted:       formatted.String,
			GivenName:       firstName.String,
			FamilyName:      lastName.String,
			MiddleName:      middleName.String,
			HonorificPrefix: honorificPrefix.String,
			HonorificSuffix: honorificSuffix.String,
		}
		if name != (resource.Name{}) {
			user.Name = &name
		}
		if created.Valid {
			ts := time.UnixMilli(created.Int64).UTC()
			user.Meta.Created = &ts
		}
		if lastModified.Valid {
			ts := time.UnixMilli(lastModified.Int64).UTC()
			user.Meta.LastModified = &ts
		}
		users[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UserStore) loadEmails(ctx context.Context, keys []string) (map[string][]resource.Email, error) {
	query, args, err := sq.Select("ua.user_id", "ue.email_value", "ue.email_type", "ue.is_primary").
		From("scim_emails ue").
		Join("scim_user_attributes ua ON ua.id = ue.user_attributes_id").
		Where(sq.Eq{"ua.user_id": keys}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build email hydration query: %w", err)
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := make(map[string][]resource.Email)
	for rows.Next() {
		var userID, value, emailType sql.NullString
		var primary sql.NullBool
		if err := rows.Scan(&userID, &value, &emailType, &primary); err != nil {
			return nil, err
		}
		emails[userID.String] = append(emails[userID.String], resource.Email{
			Value:   value.String,
			Type:    emailType.String,
			Primary: primary.Bool,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return emails, nil
}

func (s *UserStore) loadGroups(ctx context.Context, keys []string) (map[string][]resource.GroupRef, error) {
	query, args, err := sq.Select("ugm.user_id", "g.id", "g.name").
		From("user_group_membership ugm").
		Join("keycloak_group g ON ugm.group_id = g.id").
		Where(sq.Eq{"ugm.user_id": keys}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build group hydration query: %w", err)
	}

	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make(map[string][]resource.GroupRef)
	for rows.Next() {
		var userID, groupID, groupName sql.NullString
		if err := rows.Scan(&userID, &groupID, &groupName); err != nil {
			return nil, err
		}
		groups[userID.String] = append(groups[userID.String], resource.GroupRef{
			Value:   groupID.String,
			Display: groupName.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}
