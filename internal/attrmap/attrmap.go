// Package attrmap maps logical SCIM attribute names to the physical columns
// and table joins needed to reach them from a resource's base table.
// Registries are populated once at startup and are read-only afterwards, so
// they are safe for unsynchronized concurrent lookups.
package attrmap

import (
	"fmt"
	"strings"
)

// AttrType is the SCIM data type of a filterable attribute. It drives both
// case folding (only textual types are ever folded) and parameter typing.
type AttrType int

const (
	TypeString AttrType = iota
	TypeBoolean
	TypeInteger
	TypeDateTime
	// TypeReference is a URI-valued attribute; it compares like a string.
	TypeReference
)

// Textual reports whether values of this type are compared as text.
func (t AttrType) Textual() bool {
	return t == TypeString || t == TypeReference
}

// TableRef identifies one table participating in a query: the alias used to
// reference it, the physical table name, and the column that identifies a
// row (used for count and projection).
type TableRef struct {
	Ident string
	Name  string
	Key   string
}

// KeyColumn returns the alias-qualified identifying column, e.g. "u.id".
func (t TableRef) KeyColumn() string {
	return t.Ident + "." + t.Key
}

// TableJoin describes a LEFT JOIN required to reach a joined table from a
// table that is already part of the query.
//
// Projected marks one-to-many joins whose target identifier must be added to
// the SELECT list so that multi-valued rows are flattened into the result set
// (e.g. a user's multiple email addresses).
type TableJoin struct {
	Base      TableRef
	Target    TableRef
	On        string
	Projected bool
}

// JoinKey is the structural identity of a join: two joins are the same join
// iff their table endpoints and predicate match. Projected is deliberately
// not part of the identity.
type JoinKey struct {
	Base   TableRef
	Target TableRef
	On     string
}

// Key returns the deduplication identity of the join.
func (j TableJoin) Key() JoinKey {
	return JoinKey{Base: j.Base, Target: j.Target, On: j.On}
}

// SQL renders the join clause, e.g. "left join scim_emails ue on ua.id = ue.user_attributes_id".
func (j TableJoin) SQL() string {
	return fmt.Sprintf("left join %s %s on %s", j.Target.Name, j.Target.Ident, j.On)
}

// FilterAttribute is the resolved physical mapping of one logical attribute.
type FilterAttribute struct {
	// Name is the fully qualified attribute name as registered, e.g.
	// "urn:ietf:params:scim:schemas:core:2.0:User:userName".
	Name string
	// Column is the alias-qualified column expression, e.g. "u.username".
	Column string
	Type   AttrType
	// CaseExact controls whether textual comparisons are case-sensitive.
	CaseExact bool
	// Joins lists the joins required to reach Column from the base table,
	// in dependency order.
	Joins []TableJoin
}

// UnknownAttributeError reports a filter or sort attribute that has no
// registered mapping. This is how filtering on disallowed attributes (such
// as passwords) is rejected: they are simply never registered.
type UnknownAttributeError struct {
	Name string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("illegal filter attribute found '%s'", e.Name)
}

// Registry holds the attribute mappings for one resource type.
type Registry struct {
	schemaURI  string
	base       TableRef
	attributes map[string]FilterAttribute
}

// NewRegistry creates an empty registry for a resource type. schemaURI is
// the resource's core schema URN; unqualified attribute names resolve
// against it.
func NewRegistry(schemaURI string, base TableRef) *Registry {
	return &Registry{
		schemaURI:  schemaURI,
		base:       base,
		attributes: make(map[string]FilterAttribute),
	}
}

// Base returns the base table the registry's resource rows live in.
func (r *Registry) Base() TableRef {
	return r.base
}

// Register adds or overwrites the mapping for a logical attribute name.
// Names without a URN prefix are qualified with the registry's schema URI.
// Attribute names are case-insensitive per the SCIM specification.
func (r *Registry) Register(name, column string, typ AttrType, caseExact bool, joins ...TableJoin) {
	if strings.TrimSpace(name) == "" {
		return
	}
	qualified := r.qualify(name)
	r.attributes[strings.ToLower(qualified)] = FilterAttribute{
		Name:      qualified,
		Column:    column,
		Type:      typ,
		CaseExact: caseExact,
		Joins:     joins,
	}
}

// Resolve looks up the mapping for a logical attribute name. Absent names
// yield an UnknownAttributeError carrying the fully qualified name, which
// the boundary layer surfaces as a client error.
func (r *Registry) Resolve(name string) (FilterAttribute, error) {
	qualified := r.qualify(name)
	attr, ok := r.attributes[strings.ToLower(qualified)]
	if !ok {
		return FilterAttribute{}, &UnknownAttributeError{Name: qualified}
	}
	return attr, nil
}

func (r *Registry) qualify(name string) string {
	if strings.HasPrefix(strings.ToLower(name), "urn:") {
		return name
	}
	return r.schemaURI + ":" + name
}
