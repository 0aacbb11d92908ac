package token

import (
	"fmt"
	"strings"

	"github.com/conneroisu/spoon/internal/errors"
)

// Stream is a cursor over a finite token sequence that always ends in EOF.
// The cursor only moves forward.
type Stream struct {
	tokens   []Token
	cursor   int
	filename string
}

// NewStream creates a stream over tokens. A terminating EOF token is appended
// when the sequence does not already end with one.
func NewStream(tokens []Token, filename string) *Stream {
	if n := len(tokens); n == 0 || tokens[n-1].Kind != EOF {
		line := 1
		if n > 0 {
			line = tokens[n-1].Line
		}
		tokens = append(tokens, Token{Kind: EOF, Line: line})
	}
	return &Stream{tokens: tokens, filename: filename}
}

// Filename returns the source identifier the tokens were read from.
func (s *Stream) Filename() string {
	return s.filename
}

// Current returns the token at the cursor.
func (s *Stream) Current() Token {
	return s.tokens[s.cursor]
}

// Next advances the cursor and returns the new current token. Once the
// cursor sits on EOF it stays there.
func (s *Stream) Next() Token {
	if s.cursor < len(s.tokens)-1 {
		s.cursor++
	}
	return s.tokens[s.cursor]
}

// Peek returns the token after the current one without moving.
func (s *Stream) Peek() Token {
	if s.cursor < len(s.tokens)-1 {
		return s.tokens[s.cursor+1]
	}
	return s.tokens[len(s.tokens)-1]
}

// IsEOF reports whether the cursor is on the EOF token.
func (s *Stream) IsEOF() bool {
	return s.tokens[s.cursor].Kind == EOF
}

// Test reports whether the current token matches kind and optional values.
func (s *Stream) Test(k Kind, values ...string) bool {
	return s.Current().Test(k, values...)
}

// Expect advances the cursor and requires the new current token to match.
func (s *Stream) Expect(k Kind, values ...string) (Token, error) {
	tok := s.Next()
	if tok.Test(k, values...) {
		return tok, nil
	}
	return tok, s.Unexpected(tok, describe(k, values))
}

// Unexpected builds the syntax error reported for tok when want was required.
func (s *Stream) Unexpected(tok Token, want string) error {
	msg := fmt.Sprintf("unexpected %s, expected %s", tok, want)
	err := errors.NewSyntaxError(s.filename, tok.Line, tok.Value, msg)
	if tok.Kind == EOF {
		err.WithCode(errors.ErrCodeUnexpectedEOF)
	}
	return err
}

// Len returns the number of tokens including EOF.
func (s *Stream) Len() int {
	return len(s.tokens)
}

func describe(k Kind, values []string) string {
	if len(values) == 0 {
		return k.String()
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return fmt.Sprintf("%s %s", k, strings.Join(quoted, " or "))
}
