// Package resource defines the SCIM resource documents this server
// returns: users, groups, and the list-response envelope.
package resource

import "time"

// Schema URNs used in response documents.
const (
	UserSchema         = "urn:ietf:params:scim:schemas:core:2.0:User"
	GroupSchema        = "urn:ietf:params:scim:schemas:core:2.0:Group"
	ListResponseSchema = "urn:ietf:params:scim:api:messages:2.0:ListResponse"
	ErrorSchema        = "urn:ietf:params:scim:api:messages:2.0:Error"
)

// Meta is the common resource metadata block.
type Meta struct {
	ResourceType string     `json:"resourceType,omitempty"`
	Created      *time.Time `json:"created,omitempty"`
	LastModified *time.Time `json:"lastModified,omitempty"`
	Location     string     `json:"location,omitempty"`
}

// Name is the complex name attribute of a user.
type Name struct {
	Formatted       string `json:"formatted,omitempty"`
	FamilyName      string `json:"familyName,omitempty"`
	GivenName       string `json:"givenName,omitempty"`
	MiddleName      string `json:"middleName,omitempty"`
	HonorificPrefix string `json:"honorificPrefix,omitempty"`
	HonorificSuffix string `json:"honorificSuffix,omitempty"`
}

// Email is one entry of a user's multi-valued emails attribute.
type Email struct {
	Value   string `json:"value,omitempty"`
	Type    string `json:"type,omitempty"`
	Primary bool   `json:"primary,omitempty"`
}

// GroupRef references a group a user belongs to.
type GroupRef struct {
	Value   string `json:"value,omitempty"`
	Display string `json:"display,omitempty"`
}

// User is a SCIM user resource document.
type User struct {
	Schemas           []string   `json:"schemas"`
	ID                string     `json:"id"`
	ExternalID        string     `json:"externalId,omitempty"`
	UserName          string     `json:"userName,omitempty"`
	Name              *Name      `json:"name,omitempty"`
	DisplayName       string     `json:"displayName,omitempty"`
	NickName          string     `json:"nickName,omitempty"`
	ProfileURL        string     `json:"profileUrl,omitempty"`
	UserType          string     `json:"userType,omitempty"`
	PreferredLanguage string     `json:"preferredLanguage,omitempty"`
	Locale            string     `json:"locale,omitempty"`
	Timezone          string     `json:"timezone,omitempty"`
	Active            bool       `json:"active"`
	Emails            []Email    `json:"emails,omitempty"`
	Groups            []GroupRef `json:"groups,omitempty"`
	Meta              Meta       `json:"meta"`
}

// Member references a user belonging to a group.
type Member struct {
	Value   string `json:"value,omitempty"`
	Display string `json:"display,omitempty"`
}

// Group is a SCIM group resource document.
type Group struct {
	Schemas     []string `json:"schemas"`
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName,omitempty"`
	Members     []Member `json:"members,omitempty"`
	Meta        Meta     `json:"meta"`
}

// ListResponse is the SCIM paged list envelope. Resources holds the page's
// resource documents; TotalResults is the full match count regardless of
// the page window.
type ListResponse struct {
	Schemas      []string `json:"schemas"`
	TotalResults int64    `json:"totalResults"`
	StartIndex   int64    `json:"startIndex"`
	ItemsPerPage int      `json:"itemsPerPage"`
	Resources    []any    `json:"Resources"`
}

// Error is the SCIM error response document.
type Error struct {
	Schemas  []string `json:"schemas"`
	Status   string   `json:"status"`
	ScimType string   `json:"scimType,omitempty"`
	Detail   string   `json:"detail,omitempty"`
}
