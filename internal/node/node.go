// Package node holds the compile-time constructs of a spoon template.
//
// A Node consumes tokens from the stream starting at the token that
// introduced it and writes Starlark statements into a writer. Text and
// variable nodes are built in; every tag is a Node registered by name.
package node

import (
	"github.com/conneroisu/spoon/internal/token"
	"github.com/conneroisu/spoon/internal/writer"
)

// Node compiles one template construct.
//
// Compile must leave the stream cursor on the last token the construct
// consumed; the caller advances past it.
type Node interface {
	Compile(w *writer.Writer) error
}

// Constructor builds the node for one occurrence of a tag. The stream cursor
// is on the tag name token.
type Constructor func(s *token.Stream, sc Scope) Node

// Scope is the part of a running compilation that nodes can use.
type Scope interface {
	// Filename is the source being compiled.
	Filename() string
	// Autoescape reports whether variable output is HTML escaped by default.
	Autoescape() bool
	// Subcompile compiles nested constructs from the token after the cursor
	// until a block whose tag name is one of ends. It returns that name
	// token, leaving the cursor on it.
	Subcompile(w *writer.Writer, ends ...string) (token.Token, error)
	// UniqueID returns a number not handed out before in this compilation.
	UniqueID() int
}

// Generated identifiers available to node code.
const (
	ContextVar = "context"
	OutputVar  = "out"
)

// suite writes body and emits "pass" when it produced no statements, since
// Starlark does not allow empty blocks.
func suite(w *writer.Writer, body func() error) error {
	w.Indent()
	before := w.Len()
	if err := body(); err != nil {
		return err
	}
	if w.Len() == before {
		w.Write("pass")
	}
	w.Outdent()
	return nil
}
