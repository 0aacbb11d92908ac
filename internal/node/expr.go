package node

import (
	"strconv"
	"strings"

	"go.starlark.net/syntax"

	"github.com/conneroisu/spoon/internal/token"
)

// Expr is a compiled template expression.
type Expr interface {
	// Code returns the Starlark expression evaluating it.
	Code() string
}

type literal string

func (l literal) Code() string { return string(l) }

// Path reads a value out of the render context.
type Path struct {
	Segments []Expr
}

// Code implements Expr.
func (p *Path) Code() string {
	parts := make([]string, 0, len(p.Segments)+1)
	parts = append(parts, ContextVar)
	for _, s := range p.Segments {
		parts = append(parts, s.Code())
	}
	return "lookup(" + strings.Join(parts, ", ") + ")"
}

// Modified applies a named modifier to a value.
type Modified struct {
	Value Expr
	Name  string
	Args  []Expr
}

// Code implements Expr.
func (m *Modified) Code() string {
	parts := []string{syntax.Quote(m.Name, false), m.Value.Code()}
	for _, a := range m.Args {
		parts = append(parts, a.Code())
	}
	return "modify(" + strings.Join(parts, ", ") + ")"
}

type unary struct {
	op string
	x  Expr
}

func (u *unary) Code() string {
	if u.op == "not" {
		return "(not " + u.x.Code() + ")"
	}
	return "(" + u.op + u.x.Code() + ")"
}

type binary struct {
	op   string
	l, r Expr
}

func (b *binary) Code() string {
	return "(" + b.l.Code() + " " + b.op + " " + b.r.Code() + ")"
}

type list []Expr

func (l list) Code() string {
	items := make([]string, len(l))
	for i, e := range l {
		items[i] = e.Code()
	}
	return "[" + strings.Join(items, ", ") + "]"
}

var constants = map[string]string{
	"true":  "True",
	"false": "False",
	"null":  "None",
	"none":  "None",
}

var comparisons = map[string]bool{
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
}

// exprParser is a precedence-climbing parser. The stream's current token is
// always the next token to consume.
type exprParser struct {
	s *token.Stream
}

// ParseExpression parses an expression starting at the current token and
// leaves the cursor on the first token after it.
func ParseExpression(s *token.Stream) (Expr, error) {
	p := &exprParser{s: s}
	return p.parseOr()
}

func (p *exprParser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.s.Test(token.NAME, "or") {
		p.s.Next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binary{op: "or", l: left, r: right}
	}
	return left, nil
}

func (p *exprParser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.s.Test(token.NAME, "and") {
		p.s.Next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &binary{op: "and", l: left, r: right}
	}
	return left, nil
}

func (p *exprParser) parseNot() (Expr, error) {
	if p.s.Test(token.NAME, "not") {
		p.s.Next()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &unary{op: "not", x: x}, nil
	}
	return p.parseComparison()
}

func (p *exprParser) parseComparison() (Expr, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}

	var op string
	switch cur := p.s.Current(); {
	case cur.Kind == token.OPERATOR && comparisons[cur.Value]:
		op = cur.Value
	case cur.Test(token.NAME, "in"):
		op = "in"
	case cur.Test(token.NAME, "not") && p.s.Peek().Test(token.NAME, "in"):
		op = "not in"
		p.s.Next()
	default:
		return left, nil
	}
	p.s.Next()

	right, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	return &binary{op: op, l: left, r: right}, nil
}

func (p *exprParser) parseSum() (Expr, error) {
	left, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for p.s.Test(token.OPERATOR, "+", "-") {
		op := p.s.Current().Value
		p.s.Next()
		right, err := p.parseProduct()
		if err != nil {
			return nil, err
		}
		left = &binary{op: op, l: left, r: right}
	}
	return left, nil
}

func (p *exprParser) parseProduct() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.s.Test(token.OPERATOR, "*", "/", "%") {
		op := p.s.Current().Value
		p.s.Next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binary{op: op, l: left, r: right}
	}
	return left, nil
}

func (p *exprParser) parseUnary() (Expr, error) {
	if p.s.Test(token.OPERATOR, "-") {
		p.s.Next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unary{op: "-", x: x}, nil
	}
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return p.parseModifiers(x)
}

func (p *exprParser) parsePrimary() (Expr, error) {
	tok := p.s.Current()
	switch tok.Kind {
	case token.NUMBER:
		p.s.Next()
		return literal(number(tok.Value)), nil
	case token.STRING:
		p.s.Next()
		return literal(syntax.Quote(tok.Value, false)), nil
	case token.NAME:
		if c, ok := constants[tok.Value]; ok {
			p.s.Next()
			return literal(c), nil
		}
		return p.parsePath()
	case token.PUNCTUATION:
		switch tok.Value {
		case "(":
			p.s.Next()
			x, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if !p.s.Test(token.PUNCTUATION, ")") {
				return nil, p.s.Unexpected(p.s.Current(), `")"`)
			}
			p.s.Next()
			return x, nil
		case "[":
			return p.parseList()
		}
	}
	return nil, p.s.Unexpected(tok, "expression")
}

func (p *exprParser) parsePath() (Expr, error) {
	path := &Path{Segments: []Expr{literal(syntax.Quote(p.s.Current().Value, false))}}
	p.s.Next()
	for {
		switch {
		case p.s.Test(token.PUNCTUATION, "."):
			tok := p.s.Next()
			switch tok.Kind {
			case token.NAME:
				path.Segments = append(path.Segments, literal(syntax.Quote(tok.Value, false)))
			case token.NUMBER:
				n, err := strconv.Atoi(tok.Value)
				if err != nil {
					return nil, p.s.Unexpected(tok, "attribute name or index")
				}
				path.Segments = append(path.Segments, literal(strconv.Itoa(n)))
			default:
				return nil, p.s.Unexpected(tok, "attribute name or index")
			}
			p.s.Next()
		case p.s.Test(token.PUNCTUATION, "["):
			p.s.Next()
			key, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if !p.s.Test(token.PUNCTUATION, "]") {
				return nil, p.s.Unexpected(p.s.Current(), `"]"`)
			}
			p.s.Next()
			path.Segments = append(path.Segments, key)
		default:
			return path, nil
		}
	}
}

func (p *exprParser) parseList() (Expr, error) {
	var items list
	p.s.Next()
	for !p.s.Test(token.PUNCTUATION, "]") {
		if len(items) > 0 {
			if !p.s.Test(token.PUNCTUATION, ",") {
				return nil, p.s.Unexpected(p.s.Current(), `"," or "]"`)
			}
			p.s.Next()
		}
		item, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	p.s.Next()
	return items, nil
}

// parseModifiers handles a chain of |name:arg:arg suffixes.
func (p *exprParser) parseModifiers(x Expr) (Expr, error) {
	for p.s.Test(token.PUNCTUATION, "|") {
		name := p.s.Next()
		if name.Kind != token.NAME {
			return nil, p.s.Unexpected(name, "modifier name")
		}
		m := &Modified{Value: x, Name: name.Value}
		p.s.Next()
		for p.s.Test(token.PUNCTUATION, ":") {
			p.s.Next()
			arg, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			m.Args = append(m.Args, arg)
		}
		x = m
	}
	return x, nil
}

// number normalises a numeric literal; Starlark rejects leading zeros on
// integers.
func number(v string) string {
	if strings.Contains(v, ".") {
		return v
	}
	if t := strings.TrimLeft(v, "0"); t != "" {
		return t
	}
	return "0"
}
