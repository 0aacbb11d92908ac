package node

import (
	"github.com/conneroisu/spoon/internal/token"
	"github.com/conneroisu/spoon/internal/writer"
)

// RawModifier disables escaping when it is the last modifier of a variable.
const RawModifier = "raw"

// EscapeModifier output is not escaped a second time.
const EscapeModifier = "escape"

// VariableNode evaluates an expression and writes its value.
type VariableNode struct {
	s  *token.Stream
	sc Scope
}

// NewVariable binds a variable node to the first token after VAR_START.
func NewVariable(s *token.Stream, sc Scope) *VariableNode {
	return &VariableNode{s: s, sc: sc}
}

// Compile consumes the expression through VAR_END.
func (n *VariableNode) Compile(w *writer.Writer) error {
	expr, err := ParseExpression(n.s)
	if err != nil {
		return err
	}
	if !n.s.Test(token.VAR_END) {
		return n.s.Unexpected(n.s.Current(), token.VAR_END.String())
	}

	fn := "text"
	if n.sc.Autoescape() {
		fn = "escape"
	}
	if m, ok := expr.(*Modified); ok {
		switch m.Name {
		case RawModifier:
			if len(m.Args) > 0 {
				return n.s.Unexpected(n.s.Current(), "no arguments to raw")
			}
			expr = m.Value
			fn = "text"
		case EscapeModifier:
			// already escaped
			fn = "text"
		}
	}

	w.Writef("%s.append(%s(%s))", OutputVar, fn, expr.Code())
	return nil
}
