// Package filter defines the SCIM filter expression tree and the parser
// that produces it from an RFC 7644 filter string.
package filter

import "fmt"

// NodeKind discriminates the closed set of filter tree node shapes.
type NodeKind int

const (
	// KindLeaf is a single attribute comparison, e.g. `userName eq "mario"`.
	KindLeaf NodeKind = iota
	// KindAnd holds two children that must both match.
	KindAnd
	// KindOr holds two children of which at least one must match.
	KindOr
	// KindNot negates its single child.
	KindNot
)

// Comparator is a SCIM attribute comparison operator.
type Comparator string

const (
	Equal          Comparator = "eq"
	NotEqual       Comparator = "ne"
	Contains       Comparator = "co"
	StartsWith     Comparator = "sw"
	EndsWith       Comparator = "ew"
	GreaterThan    Comparator = "gt"
	GreaterOrEqual Comparator = "ge"
	LessThan       Comparator = "lt"
	LessOrEqual    Comparator = "le"
	Present        Comparator = "pr"
)

// ValueKind describes the literal form of a leaf comparison value as it
// appeared in the filter string. The attribute registry decides the final
// SQL parameter type; this only records what the parser saw.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueNumber
	ValueBoolean
	ValueNull
)

// Node is one node of a filter expression tree. Trees are immutable once
// built: the parser constructs them and the planner only reads them.
//
// Leaf nodes use Attribute, Comparator and the Value fields. And/Or nodes
// use Left and Right, Not uses Right only.
type Node struct {
	Kind NodeKind

	Left  *Node
	Right *Node

	Attribute  string
	Comparator Comparator
	ValueKind  ValueKind
	Value      string
	BoolValue  bool
}

// And builds a conjunction node.
func And(left, right *Node) *Node {
	return &Node{Kind: KindAnd, Left: left, Right: right}
}

// Or builds a disjunction node.
func Or(left, right *Node) *Node {
	return &Node{Kind: KindOr, Left: left, Right: right}
}

// Not builds a negation node.
func Not(child *Node) *Node {
	return &Node{Kind: KindNot, Right: child}
}

// Compare builds a leaf comparison node with a string literal value.
func Compare(attribute string, comparator Comparator, value string) *Node {
	return &Node{
		Kind:       KindLeaf,
		Attribute:  attribute,
		Comparator: comparator,
		ValueKind:  ValueString,
		Value:      value,
	}
}

// CompareBool builds a leaf comparison node with a boolean literal value.
func CompareBool(attribute string, comparator Comparator, value bool) *Node {
	return &Node{
		Kind:       KindLeaf,
		Attribute:  attribute,
		Comparator: comparator,
		ValueKind:  ValueBoolean,
		BoolValue:  value,
	}
}

// Pr builds a presence-check leaf node.
func Pr(attribute string) *Node {
	return &Node{Kind: KindLeaf, Attribute: attribute, Comparator: Present}
}

// String renders the node back into SCIM filter syntax. Used in logs and
// error messages only; the output is not guaranteed to round-trip quoting.
func (n *Node) String() string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case KindAnd:
		return fmt.Sprintf("(%s and %s)", n.Left.String(), n.Right.String())
	case KindOr:
		return fmt.Sprintf("(%s or %s)", n.Left.String(), n.Right.String())
	case KindNot:
		return fmt.Sprintf("not (%s)", n.Right.String())
	default:
		if n.Comparator == Present {
			return fmt.Sprintf("%s pr", n.Attribute)
		}
		switch n.ValueKind {
		case ValueString:
			return fmt.Sprintf("%s %s %q", n.Attribute, n.Comparator, n.Value)
		case ValueBoolean:
			return fmt.Sprintf("%s %s %t", n.Attribute, n.Comparator, n.BoolValue)
		case ValueNull:
			return fmt.Sprintf("%s %s null", n.Attribute, n.Comparator)
		default:
			return fmt.Sprintf("%s %s %s", n.Attribute, n.Comparator, n.Value)
		}
	}
}
