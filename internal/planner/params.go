package planner

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Param is one deferred parameter binding: the generated placeholder name
// and the already-typed value to bind for it. Values are bound by the
// executor after query-text generation so that user-controlled literals are
// never interpolated into the SQL string.
type Param struct {
	Name  string
	Value any
}

// newParamName generates a collision-free placeholder name. Placeholder
// names must start with a letter, hence the leading "a".
func newParamName() string {
	return "a" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Bind rewrites the plan's named placeholders into driver "?" placeholders
// and returns the argument list in placeholder order. The plan's bindings
// are cleared afterwards: a plan is single-use and a second Bind fails.
func (p *Plan) Bind() (string, []any, error) {
	if p.bound {
		return "", nil, fmt.Errorf("query plan was already bound")
	}
	query, args, err := BindNamed(p.SQL, p.Params)
	if err != nil {
		return "", nil, err
	}
	p.bound = true
	p.Params = nil
	return query, args, nil
}

// BindNamed rewrites :name placeholders in query into "?" placeholders and
// produces the positional argument list. Every placeholder must have a
// binding and every binding must be used exactly once.
func BindNamed(query string, params []Param) (string, []any, error) {
	values := make(map[string]any, len(params))
	remaining := make(map[string]int, len(params))
	for _, param := range params {
		if _, dup := values[param.Name]; dup {
			return "", nil, fmt.Errorf("duplicate parameter name %q", param.Name)
		}
		values[param.Name] = param.Value
		remaining[param.Name] = 1
	}

	var sb strings.Builder
	var args []any
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c != ':' || i+1 >= len(query) || !isNameChar(query[i+1]) {
			sb.WriteByte(c)
			continue
		}
		start := i + 1
		end := start
		for end < len(query) && isNameChar(query[end]) {
			end++
		}
		name := query[start:end]
		value, ok := values[name]
		if !ok {
			return "", nil, fmt.Errorf("no binding for parameter %q", name)
		}
		if remaining[name] == 0 {
			return "", nil, fmt.Errorf("parameter %q bound more than once", name)
		}
		remaining[name]--
		args = append(args, value)
		sb.WriteByte('?')
		i = end - 1
	}

	for name, n := range remaining {
		if n != 0 {
			return "", nil, fmt.Errorf("unused parameter binding %q", name)
		}
	}
	return sb.String(), args, nil
}

func isNameChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
