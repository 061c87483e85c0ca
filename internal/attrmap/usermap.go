package attrmap

// Schema URNs for the resource types served by this server.
const (
	UserSchemaURI  = "urn:ietf:params:scim:schemas:core:2.0:User"
	GroupSchemaURI = "urn:ietf:params:scim:schemas:core:2.0:Group"
)

// Table references shared by the user and group mappings. The identifier
// aliases are fixed so that registered column expressions and join
// predicates can refer to them directly.
var (
	// UserTable is the base table for user queries.
	UserTable = TableRef{Ident: "u", Name: "user_entity", Key: "id"}
	// UserAttributesTable holds the extended SCIM attributes of a user.
	UserAttributesTable = TableRef{Ident: "ua", Name: "scim_user_attributes", Key: "id"}
	// EmailsTable holds a user's email addresses, one row per address.
	EmailsTable = TableRef{Ident: "ue", Name: "scim_emails", Key: "id"}
	// GroupMembershipTable links users to the groups they belong to.
	GroupMembershipTable = TableRef{Ident: "ugm", Name: "user_group_membership", Key: "group_id"}
	// GroupTable is the base table for group queries.
	GroupTable = TableRef{Ident: "g", Name: "keycloak_group", Key: "id"}
)

// Joins used by the user mapping. Emails hang off the user-attributes row,
// not the user row, so reaching an email column needs both joins; the same
// two-level shape applies to groups via the membership table.
var (
	joinUserAttributes = TableJoin{
		Base:   UserTable,
		Target: UserAttributesTable,
		On:     "u.id = ua.user_id",
	}
	joinEmails = TableJoin{
		Base:      UserAttributesTable,
		Target:    EmailsTable,
		On:        "ua.id = ue.user_attributes_id",
		Projected: true,
	}
	joinGroupMembership = TableJoin{
		Base:   UserTable,
		Target: GroupMembershipTable,
		On:     "u.id = ugm.user_id",
	}
	joinMemberGroups = TableJoin{
		Base:   GroupMembershipTable,
		Target: GroupTable,
		On:     "ugm.group_id = g.id",
	}
)

// NewUserRegistry builds the attribute mapping for the User resource type.
// Attributes that must not be filterable (password above all) are simply
// not registered, so resolving them fails with UnknownAttributeError.
func NewUserRegistry() *Registry {
	r := NewRegistry(UserSchemaURI, UserTable)

	r.Register("id", "u.id", TypeString, true)
	r.Register("userName", "u.username", TypeString, false)
	r.Register("active", "u.enabled", TypeBoolean, false)
	r.Register("meta.created", "u.created_timestamp", TypeDateTime, false)

	r.Register("externalId", "ua.external_id", TypeString, false, joinUserAttributes)
	r.Register("meta.lastModified", "ua.last_modified", TypeDateTime, false, joinUserAttributes)
	r.Register("name.formatted", "ua.name_formatted", TypeString, false, joinUserAttributes)
	r.Register("name.givenName", "u.first_name", TypeString, false)
	r.Register("name.familyName", "u.last_name", TypeString, false)
	r.Register("name.middleName", "ua.name_middle_name", TypeString, false, joinUserAttributes)
	r.Register("name.honorificPrefix", "ua.name_honorific_prefix", TypeString, false, joinUserAttributes)
	r.Register("name.honorificSuffix", "ua.name_honorific_suffix", TypeString, false, joinUserAttributes)
	r.Register("displayName", "ua.display_name", TypeString, false, joinUserAttributes)
	r.Register("nickName", "ua.nickname", TypeString, false, joinUserAttributes)
	r.Register("profileUrl", "ua.profile_url", TypeReference, false, joinUserAttributes)
	r.Register("userType", "ua.user_type", TypeString, false, joinUserAttributes)
	r.Register("preferredLanguage", "ua.preferred_language", TypeString, false, joinUserAttributes)
	r.Register("locale", "ua.locale", TypeString, false, joinUserAttributes)
	r.Register("timezone", "ua.timezone", TypeString, false, joinUserAttributes)

	r.Register("emails.value", "ue.email_value", TypeString, false, joinUserAttributes, joinEmails)
	r.Register("emails.type", "ue.email_type", TypeString, false, joinUserAttributes, joinEmails)
	r.Register("emails.primary", "ue.is_primary", TypeBoolean, false, joinUserAttributes, joinEmails)

	r.Register("groups.value", "g.name", TypeString, false, joinGroupMembership, joinMemberGroups)
	r.Register("groups.display", "g.name", TypeString, false, joinGroupMembership, joinMemberGroups)

	return r
}

// NewGroupRegistry builds the attribute mapping for the Group resource type.
func NewGroupRegistry() *Registry {
	r := NewRegistry(GroupSchemaURI, GroupTable)

	memberJoin := TableJoin{
		Base:   GroupTable,
		Target: TableRef{Ident: "gm", Name: "user_group_membership", Key: "user_id"},
		On:     "g.id = gm.group_id",
	}

	r.Register("id", "g.id", TypeString, true)
	r.Register("displayName", "g.name", TypeString, false)
	r.Register("members.value", "gm.user_id", TypeString, true, memberJoin)

	return r
}
