// Package token defines the lexical tokens of spoon templates and the
// forward-only cursor the compiler and nodes consume them through.
package token

import "fmt"

// Kind identifies the lexical class of a token.
type Kind int

const (
	EOF Kind = iota
	TEXT
	VAR_START
	VAR_END
	BLOCK_START
	BLOCK_END
	NAME
	NUMBER
	STRING
	OPERATOR
	PUNCTUATION
)

var kindNames = [...]string{
	EOF:         "EOF",
	TEXT:        "TEXT",
	VAR_START:   "VAR_START",
	VAR_END:     "VAR_END",
	BLOCK_START: "BLOCK_START",
	BLOCK_END:   "BLOCK_END",
	NAME:        "NAME",
	NUMBER:      "NUMBER",
	STRING:      "STRING",
	OPERATOR:    "OPERATOR",
	PUNCTUATION: "PUNCTUATION",
}

// String returns the string representation of the Kind
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is the smallest unit produced by the lexer.
type Token struct {
	Kind  Kind
	Value string
	Line  int
}

// String renders the token for diagnostics.
func (t Token) String() string {
	switch t.Kind {
	case EOF:
		return "end of template"
	case STRING:
		return fmt.Sprintf("%s %q", t.Kind, t.Value)
	case TEXT:
		return "text"
	default:
		return fmt.Sprintf("%s %q", t.Kind, t.Value)
	}
}

// Test reports whether the token is of kind k and, when values are given,
// carries one of them.
func (t Token) Test(k Kind, values ...string) bool {
	if t.Kind != k {
		return false
	}
	if len(values) == 0 {
		return true
	}
	for _, v := range values {
		if t.Value == v {
			return true
		}
	}
	return false
}
