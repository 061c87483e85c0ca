package planner

import (
	"fmt"
	"strconv"
	"time"

	"scim-mysql/internal/attrmap"
	"scim-mysql/internal/filter"
)

// compileState is the per-compilation working set: the unique joins
// discovered while walking the filter tree and the ordered parameter
// bindings for the emitted placeholders. One instance is created per Build
// call and discarded afterwards; it is never shared across compilations.
type compileState struct {
	registry *attrmap.Registry
	joins    map[attrmap.JoinKey]attrmap.TableJoin
	params   []Param
}

func newCompileState(registry *attrmap.Registry) *compileState {
	return &compileState{
		registry: registry,
		joins:    make(map[attrmap.JoinKey]attrmap.TableJoin),
	}
}

func (s *compileState) addParam(name string, value any) {
	s.params = append(s.params, Param{Name: name, Value: value})
}

// registerJoins records the joins an attribute needs, skipping any join
// whose target is the base table itself since the base table is always
// already part of the FROM clause.
func (s *compileState) registerJoins(joins []attrmap.TableJoin) {
	base := s.registry.Base()
	for _, join := range joins {
		if join.Target == base {
			continue
		}
		s.joins[join.Key()] = join
	}
}

// compile recursively translates a filter tree into a boolean SQL fragment,
// registering discovered joins and parameter bindings as leaves are
// visited. A nil tree compiles to the empty string.
func (s *compileState) compile(node *filter.Node) (string, error) {
	if node == nil {
		return "", nil
	}

	switch node.Kind {
	case filter.KindAnd:
		left, err := s.compile(node.Left)
		if err != nil {
			return "", err
		}
		right, err := s.compile(node.Right)
		if err != nil {
			return "", err
		}
		return "(" + left + " AND " + right + ")", nil
	case filter.KindOr:
		left, err := s.compile(node.Left)
		if err != nil {
			return "", err
		}
		right, err := s.compile(node.Right)
		if err != nil {
			return "", err
		}
		return "(" + left + " OR " + right + ")", nil
	case filter.KindNot:
		child, err := s.compile(node.Right)
		if err != nil {
			return "", err
		}
		return "NOT (" + child + ")", nil
	case filter.KindLeaf:
		return s.compileLeaf(node)
	default:
		// Node.Kind is a closed set; anything else is a broken tree from
		// the parser, not user input.
		return "", fmt.Errorf("unrecognized filter node kind %d", node.Kind)
	}
}

func (s *compileState) compileLeaf(node *filter.Node) (string, error) {
	attr, err := s.registry.Resolve(node.Attribute)
	if err != nil {
		return "", err
	}
	s.registerJoins(attr.Joins)

	column := caseChecked(attr, attr.Column)
	comparison, err := s.resolveComparator(attr, node)
	if err != nil {
		return "", err
	}
	return column + " " + comparison, nil
}

// resolveComparator translates a leaf comparison into its SQL form and
// registers the deferred parameter binding for its value. Presence checks
// bind no parameter.
func (s *compileState) resolveComparator(attr attrmap.FilterAttribute, node *filter.Node) (string, error) {
	if node.Comparator == filter.Present {
		return "is not null", nil
	}

	name := newParamName()
	value, err := paramValue(attr, node)
	if err != nil {
		return "", err
	}
	s.addParam(name, value)
	placeholder := caseChecked(attr, ":"+name)

	switch node.Comparator {
	case filter.Equal:
		return "= " + placeholder, nil
	case filter.NotEqual:
		return "!= " + placeholder, nil
	case filter.Contains:
		return "like concat('%', " + placeholder + ", '%')", nil
	case filter.StartsWith:
		return "like concat(" + placeholder + ", '%')", nil
	case filter.EndsWith:
		return "like concat('%', " + placeholder + ")", nil
	case filter.GreaterOrEqual:
		return ">= " + placeholder, nil
	case filter.LessOrEqual:
		return "<= " + placeholder, nil
	case filter.GreaterThan:
		return "> " + placeholder, nil
	case filter.LessThan:
		return "< " + placeholder, nil
	default:
		return "", fmt.Errorf("unrecognized comparator %q", node.Comparator)
	}
}

// paramValue converts a leaf's literal into the typed value bound for its
// placeholder: booleans as-is, timestamps as epoch milliseconds, integers
// as int64, everything else as its string form.
func paramValue(attr attrmap.FilterAttribute, node *filter.Node) (any, error) {
	switch attr.Type {
	case attrmap.TypeBoolean:
		if node.ValueKind == filter.ValueBoolean {
			return node.BoolValue, nil
		}
		parsed, err := strconv.ParseBool(node.Value)
		if err != nil {
			return false, nil
		}
		return parsed, nil
	case attrmap.TypeDateTime:
		ts, err := time.Parse(time.RFC3339, node.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid dateTime value %q for attribute '%s'", node.Value, attr.Name)
		}
		return ts.UnixMilli(), nil
	case attrmap.TypeInteger:
		if parsed, err := strconv.ParseInt(node.Value, 10, 64); err == nil {
			return parsed, nil
		}
		parsed, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer value %q for attribute '%s'", node.Value, attr.Name)
		}
		return int64(parsed), nil
	default:
		if node.ValueKind == filter.ValueBoolean {
			return strconv.FormatBool(node.BoolValue), nil
		}
		return node.Value, nil
	}
}

// caseChecked wraps expr in lower(...) when the attribute is textual and
// not case-exact; numeric, boolean and timestamp expressions are never
// folded. Applied symmetrically to the column and its placeholder.
func caseChecked(attr attrmap.FilterAttribute, expr string) string {
	if attr.CaseExact || !attr.Type.Textual() {
		return expr
	}
	return "lower(" + expr + ")"
}
