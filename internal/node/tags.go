package node

import (
	"fmt"

	"go.starlark.net/syntax"

	"github.com/conneroisu/spoon/internal/token"
	"github.com/conneroisu/spoon/internal/writer"
)

var reserved = map[string]bool{
	"and": true, "or": true, "not": true, "in": true,
	"true": true, "false": true, "null": true, "none": true,
	"loop": true, ContextVar: true,
}

// IfNode compiles {% if %} ... {% elseif %} ... {% else %} ... {% endif %}.
type IfNode struct {
	s  *token.Stream
	sc Scope
}

// NewIf is the Constructor for the if tag.
func NewIf(s *token.Stream, sc Scope) Node {
	return &IfNode{s: s, sc: sc}
}

// Compile implements Node.
func (n *IfNode) Compile(w *writer.Writer) error {
	keyword := "if"
	for {
		n.s.Next()
		cond, err := n.condition()
		if err != nil {
			return err
		}
		w.Writef("%s %s:", keyword, cond.Code())

		end, err := n.body(w, "elseif", "else", "endif")
		if err != nil {
			return err
		}

		switch end.Value {
		case "elseif":
			keyword = "elif"
			continue
		case "else":
			if _, err := n.s.Expect(token.BLOCK_END); err != nil {
				return err
			}
			w.Write("else:")
			if _, err := n.body(w, "endif"); err != nil {
				return err
			}
		}

		_, err = n.s.Expect(token.BLOCK_END)
		return err
	}
}

func (n *IfNode) condition() (Expr, error) {
	cond, err := ParseExpression(n.s)
	if err != nil {
		return nil, err
	}
	if !n.s.Test(token.BLOCK_END) {
		return nil, n.s.Unexpected(n.s.Current(), token.BLOCK_END.String())
	}
	return cond, nil
}

func (n *IfNode) body(w *writer.Writer, ends ...string) (token.Token, error) {
	var end token.Token
	err := suite(w, func() error {
		var err error
		end, err = n.sc.Subcompile(w, ends...)
		return err
	})
	return end, err
}

// ForNode compiles {% for item in expr %} ... {% endfor %}. Inside the body
// the loop mapping carries index, index0, first, last and length.
type ForNode struct {
	s  *token.Stream
	sc Scope
}

// NewFor is the Constructor for the for tag.
func NewFor(s *token.Stream, sc Scope) Node {
	return &ForNode{s: s, sc: sc}
}

// Compile implements Node.
func (n *ForNode) Compile(w *writer.Writer) error {
	name, err := n.s.Expect(token.NAME)
	if err != nil {
		return err
	}
	if reserved[name.Value] {
		return n.s.Unexpected(name, "loop variable name")
	}
	if _, err := n.s.Expect(token.NAME, "in"); err != nil {
		return err
	}
	n.s.Next()
	seq, err := ParseExpression(n.s)
	if err != nil {
		return err
	}
	if !n.s.Test(token.BLOCK_END) {
		return n.s.Unexpected(n.s.Current(), token.BLOCK_END.String())
	}

	id := n.sc.UniqueID()
	outer := fmt.Sprintf("_outer%d", id)
	items := fmt.Sprintf("_seq%d", id)
	index := fmt.Sprintf("_i%d", id)
	value := fmt.Sprintf("_v%d", id)

	w.Writef("%s = %s", outer, ContextVar)
	w.Writef("%s = iterate(%s)", items, seq.Code())
	w.Writef("for %s, %s in enumerate(%s):", index, value, items)
	w.Indent()
	w.Writef("%s = scope(%s, %s, %s, %s, len(%s))",
		ContextVar, outer, syntax.Quote(name.Value, false), value, index, items)
	if _, err := n.sc.Subcompile(w, "endfor"); err != nil {
		return err
	}
	w.Outdent()
	w.Writef("%s = %s", ContextVar, outer)

	_, err = n.s.Expect(token.BLOCK_END)
	return err
}

// SetNode compiles {% set name = expr %}. The binding lasts until the end of
// the template or of the enclosing loop iteration.
type SetNode struct {
	s *token.Stream
}

// NewSet is the Constructor for the set tag.
func NewSet(s *token.Stream, _ Scope) Node {
	return &SetNode{s: s}
}

// Compile implements Node.
func (n *SetNode) Compile(w *writer.Writer) error {
	name, err := n.s.Expect(token.NAME)
	if err != nil {
		return err
	}
	if reserved[name.Value] {
		return n.s.Unexpected(name, "variable name")
	}
	if _, err := n.s.Expect(token.OPERATOR, "="); err != nil {
		return err
	}
	n.s.Next()
	value, err := ParseExpression(n.s)
	if err != nil {
		return err
	}
	if !n.s.Test(token.BLOCK_END) {
		return n.s.Unexpected(n.s.Current(), token.BLOCK_END.String())
	}

	w.Writef("%s = scope(%s, %s, %s)", ContextVar, ContextVar, syntax.Quote(name.Value, false), value.Code())
	return nil
}
