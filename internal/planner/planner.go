// Package planner compiles SCIM filter expression trees into parameterized
// MySQL queries: it translates the boolean tree into a WHERE fragment,
// discovers and orders the table joins the fragment needs, and assembles
// count and fetch query variants with sorting and pagination.
package planner
