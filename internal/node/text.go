package node

import (
	"strings"

	"go.starlark.net/syntax"

	"github.com/conneroisu/spoon/internal/token"
	"github.com/conneroisu/spoon/internal/writer"
)

// TextNode emits literal template text.
type TextNode struct {
	s *token.Stream
}

// NewText binds a text node to the TEXT token at the cursor.
func NewText(s *token.Stream) *TextNode {
	return &TextNode{s: s}
}

// Compile consumes the current TEXT token plus any TEXT tokens directly
// after it and appends their content as one literal.
func (n *TextNode) Compile(w *writer.Writer) error {
	cur := n.s.Current()
	if cur.Kind != token.TEXT {
		return n.s.Unexpected(cur, token.TEXT.String())
	}

	var b strings.Builder
	b.WriteString(cur.Value)
	for n.s.Peek().Kind == token.TEXT {
		b.WriteString(n.s.Next().Value)
	}

	w.Writef("%s.append(%s)", OutputVar, syntax.Quote(b.String(), false))
	return nil
}
