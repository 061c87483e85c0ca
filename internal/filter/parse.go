package filter

import (
	"fmt"
	"strings"
	"unicode"
)

// Parse parses an RFC 7644 filter expression into a Node tree. An empty or
// blank input yields a nil tree, meaning "no filter". Operator keywords and
// attribute names are case-insensitive per the SCIM specification.
//
// The supported grammar covers attribute comparisons, presence checks,
// `and`/`or`/`not` and parenthesised grouping. Value paths in bracket
// notation (`emails[type eq "work"]`) are not supported; callers use dotted
// sub-attribute paths instead (`emails.type eq "work"`).
func Parse(input string) (*Node, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}

	p := &parser{lexer: newLexer(input)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokenEOF {
		return nil, fmt.Errorf("unexpected %q at position %d in filter", p.tok.text, p.tok.pos)
	}
	return node, nil
}

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenLParen
	tokenRParen
	tokenString
	tokenWord
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokenEOF, pos: l.pos}, nil
	}

	start := l.pos
	switch c := l.input[l.pos]; c {
	case '(':
		l.pos++
		return token{kind: tokenLParen, text: "(", pos: start}, nil
	case ')':
		l.pos++
		return token{kind: tokenRParen, text: ")", pos: start}, nil
	case '"':
		return l.lexString()
	default:
		for l.pos < len(l.input) && !isWordBoundary(l.input[l.pos]) {
			l.pos++
		}
		return token{kind: tokenWord, text: l.input[start:l.pos], pos: start}, nil
	}
}

func isWordBoundary(c byte) bool {
	return c == '(' || c == ')' || c == '"' || unicode.IsSpace(rune(c))
}

// lexString reads a double-quoted JSON-style string literal.
func (l *lexer) lexString() (token, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch c {
		case '"':
			l.pos++
			return token{kind: tokenString, text: sb.String(), pos: start}, nil
		case '\\':
			l.pos++
			if l.pos >= len(l.input) {
				return token{}, fmt.Errorf("unterminated escape sequence at position %d in filter", start)
			}
			switch esc := l.input[l.pos]; esc {
			case '"', '\\', '/':
				sb.WriteByte(esc)
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				return token{}, fmt.Errorf("unsupported escape sequence '\\%c' at position %d in filter", esc, l.pos)
			}
			l.pos++
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return token{}, fmt.Errorf("unterminated string literal at position %d in filter", start)
}

type parser struct {
	lexer *lexer
	tok   token
}

func (p *parser) advance() error {
	tok, err := p.lexer.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

// keywordIs reports whether the current token is the given keyword,
// compared case-insensitively.
func (p *parser) keywordIs(keyword string) bool {
	return p.tok.kind == tokenWord && strings.EqualFold(p.tok.text, keyword)
}

func (p *parser) parseOr() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keywordIs("or") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or(left, right)
	}
	return left, nil
}

func (p *parser) parseAnd() (*Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.keywordIs("and") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = And(left, right)
	}
	return left, nil
}

func (p *parser) parseUnary() (*Node, error) {
	if p.keywordIs("not") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokenLParen {
			return nil, fmt.Errorf("expected '(' after 'not' at position %d in filter", p.tok.pos)
		}
		child, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		return Not(child), nil
	}
	if p.tok.kind == tokenLParen {
		return p.parseGroup()
	}
	return p.parseComparison()
}

func (p *parser) parseGroup() (*Node, error) {
	if err := p.advance(); err != nil { // consume '('
		return nil, err
	}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokenRParen {
		return nil, fmt.Errorf("expected ')' at position %d in filter", p.tok.pos)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *parser) parseComparison() (*Node, error) {
	if p.tok.kind != tokenWord {
		return nil, fmt.Errorf("expected attribute path at position %d in filter", p.tok.pos)
	}
	attribute := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.tok.kind != tokenWord {
		return nil, fmt.Errorf("expected comparison operator after %q at position %d in filter", attribute, p.tok.pos)
	}
	comparator, ok := parseComparator(p.tok.text)
	if !ok {
		return nil, fmt.Errorf("unknown comparison operator %q at position %d in filter", p.tok.text, p.tok.pos)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	if comparator == Present {
		return Pr(attribute), nil
	}

	node := &Node{Kind: KindLeaf, Attribute: attribute, Comparator: comparator}
	switch p.tok.kind {
	case tokenString:
		node.ValueKind = ValueString
		node.Value = p.tok.text
	case tokenWord:
		switch {
		case strings.EqualFold(p.tok.text, "true"):
			node.ValueKind = ValueBoolean
			node.BoolValue = true
		case strings.EqualFold(p.tok.text, "false"):
			node.ValueKind = ValueBoolean
			node.BoolValue = false
		case strings.EqualFold(p.tok.text, "null"):
			node.ValueKind = ValueNull
		case isNumber(p.tok.text):
			node.ValueKind = ValueNumber
			node.Value = p.tok.text
		default:
			return nil, fmt.Errorf("invalid comparison value %q at position %d in filter", p.tok.text, p.tok.pos)
		}
	default:
		return nil, fmt.Errorf("expected comparison value at position %d in filter", p.tok.pos)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return node, nil
}

func parseComparator(word string) (Comparator, bool) {
	switch Comparator(strings.ToLower(word)) {
	case Equal, NotEqual, Contains, StartsWith, EndsWith,
		GreaterThan, GreaterOrEqual, LessThan, LessOrEqual, Present:
		return Comparator(strings.ToLower(word)), true
	default:
		return "", false
	}
}

func isNumber(word string) bool {
	if word == "" {
		return false
	}
	seenDigit := false
	for i := 0; i < len(word); i++ {
		switch c := word[i]; {
		case c >= '0' && c <= '9':
			seenDigit = true
		case c == '-' || c == '+':
			if i != 0 {
				return false
			}
		case c == '.':
			// a single decimal point is fine, anything more is not a number
			if strings.Count(word, ".") > 1 {
				return false
			}
		default:
			return false
		}
	}
	return seenDigit
}
