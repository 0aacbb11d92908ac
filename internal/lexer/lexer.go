// Package lexer turns spoon template source into a token stream.
//
// Outside delimiters the source is literal text. Inside {{ }} and {% %} it is
// split into names, numbers, strings, operators and punctuation. {# #}
// comments are dropped. Every token records the line it starts on.
package lexer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/conneroisu/spoon/internal/errors"
	"github.com/conneroisu/spoon/internal/token"
)

// Delimiters recognised by the lexer.
const (
	VarStart     = "{{"
	VarEnd       = "}}"
	BlockStart   = "{%"
	BlockEnd     = "%}"
	CommentStart = "{#"
	CommentEnd   = "#}"
)

// operators are matched longest first.
var operators = []string{"==", "!=", "<=", ">=", "<", ">", "=", "+", "-", "*", "/", "%"}

const punctuation = ".,|:()[]"

type lexer struct {
	src    string
	name   string
	pos    int
	line   int
	tokens []token.Token
}

// Tokenize converts source text into a stream. name identifies the source in
// diagnostics. Source must be valid UTF-8.
func Tokenize(source, name string) (*token.Stream, error) {
	if err := checkEncoding(source, name); err != nil {
		return nil, err
	}
	l := &lexer{src: source, name: name, line: 1}
	if err := l.run(); err != nil {
		return nil, err
	}
	l.tokens = append(l.tokens, token.Token{Kind: token.EOF, Line: l.line})
	return token.NewStream(l.tokens, name), nil
}

// checkEncoding rejects the first invalid UTF-8 sequence. Generated units
// cannot represent such bytes in string literals.
func checkEncoding(source, name string) error {
	for i := 0; i < len(source); {
		r, size := utf8.DecodeRuneInString(source[i:])
		if r == utf8.RuneError && size == 1 {
			line := 1 + strings.Count(source[:i], "\n")
			return errors.NewLexicalError(name, line,
				fmt.Sprintf("invalid UTF-8 byte 0x%02x", source[i])).WithCode(errors.ErrCodeInvalidUTF8)
		}
		i += size
	}
	return nil
}

func (l *lexer) run() error {
	for l.pos < len(l.src) {
		next, delim := l.nextDelimiter()
		if next > l.pos {
			l.emit(token.TEXT, l.src[l.pos:next], l.line)
			l.advance(next - l.pos)
		}
		if delim == "" {
			return nil
		}

		var err error
		switch delim {
		case VarStart:
			err = l.lexInside(token.VAR_START, token.VAR_END, VarEnd)
		case BlockStart:
			err = l.lexInside(token.BLOCK_START, token.BLOCK_END, BlockEnd)
		case CommentStart:
			err = l.lexComment()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// nextDelimiter finds the earliest opening delimiter at or after pos.
func (l *lexer) nextDelimiter() (int, string) {
	rest := l.src[l.pos:]
	for i := 0; i+1 < len(rest); i++ {
		if rest[i] != '{' {
			continue
		}
		switch rest[i+1] {
		case '{':
			return l.pos + i, VarStart
		case '%':
			return l.pos + i, BlockStart
		case '#':
			return l.pos + i, CommentStart
		}
	}
	return len(l.src), ""
}

func (l *lexer) lexComment() error {
	startLine := l.line
	l.advance(len(CommentStart))
	end := strings.Index(l.src[l.pos:], CommentEnd)
	if end < 0 {
		return errors.NewLexicalError(l.name, startLine, "unclosed comment")
	}
	l.advance(end + len(CommentEnd))
	return nil
}

func (l *lexer) lexInside(start, end token.Kind, closer string) error {
	startLine := l.line
	l.emit(start, l.src[l.pos:l.pos+2], l.line)
	l.advance(2)

	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			what := "variable"
			if start == token.BLOCK_START {
				what = "block"
			}
			return errors.NewLexicalError(l.name, startLine,
				fmt.Sprintf("unclosed %s, expected %q", what, closer))
		}
		if strings.HasPrefix(l.src[l.pos:], closer) {
			l.emit(end, closer, l.line)
			l.advance(len(closer))
			return nil
		}
		if err := l.lexExpression(); err != nil {
			return err
		}
	}
}

func (l *lexer) lexExpression() error {
	c := l.src[l.pos]
	switch {
	case isNameStart(c):
		n := 1
		for l.pos+n < len(l.src) && isNameChar(l.src[l.pos+n]) {
			n++
		}
		l.emit(token.NAME, l.src[l.pos:l.pos+n], l.line)
		l.advance(n)
	case isDigit(c):
		n := 1
		for l.pos+n < len(l.src) && isDigit(l.src[l.pos+n]) {
			n++
		}
		// A fraction needs a digit after the dot so that a.0.b stays a path.
		if l.pos+n+1 < len(l.src) && l.src[l.pos+n] == '.' && isDigit(l.src[l.pos+n+1]) &&
			(l.pos == 0 || l.src[l.pos-1] != '.') {
			n++
			for l.pos+n < len(l.src) && isDigit(l.src[l.pos+n]) {
				n++
			}
		}
		l.emit(token.NUMBER, l.src[l.pos:l.pos+n], l.line)
		l.advance(n)
	case c == '"' || c == '\'':
		return l.lexString(c)
	case strings.IndexByte(punctuation, c) >= 0:
		l.emit(token.PUNCTUATION, string(c), l.line)
		l.advance(1)
	default:
		for _, op := range operators {
			if strings.HasPrefix(l.src[l.pos:], op) {
				l.emit(token.OPERATOR, op, l.line)
				l.advance(len(op))
				return nil
			}
		}
		return errors.NewLexicalError(l.name, l.line,
			fmt.Sprintf("unexpected character %q", c)).WithCode(errors.ErrCodeUnexpectedChar)
	}
	return nil
}

func (l *lexer) lexString(quote byte) error {
	startLine := l.line
	var b strings.Builder
	i := l.pos + 1
	for i < len(l.src) {
		c := l.src[i]
		switch {
		case c == quote:
			l.emit(token.STRING, b.String(), startLine)
			l.advance(i + 1 - l.pos)
			return nil
		case c == '\\' && i+1 < len(l.src):
			i++
			switch esc := l.src[i]; esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(esc)
			}
		default:
			b.WriteByte(c)
		}
		i++
	}
	return errors.NewLexicalError(l.name, startLine, "unterminated string")
}

func (l *lexer) skipSpace() {
	n := 0
	for l.pos+n < len(l.src) {
		switch l.src[l.pos+n] {
		case ' ', '\t', '\r', '\n':
			n++
			continue
		}
		break
	}
	l.advance(n)
}

// advance moves pos forward n bytes, counting the newlines passed over.
func (l *lexer) advance(n int) {
	l.line += strings.Count(l.src[l.pos:l.pos+n], "\n")
	l.pos += n
}

func (l *lexer) emit(k token.Kind, value string, line int) {
	l.tokens = append(l.tokens, token.Token{Kind: k, Value: value, Line: line})
}

func isNameStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
