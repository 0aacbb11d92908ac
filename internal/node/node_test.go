package node

import (
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/spoon/internal/errors"
	"github.com/conneroisu/spoon/internal/lexer"
	"github.com/conneroisu/spoon/internal/token"
	"github.com/conneroisu/spoon/internal/writer"
)

// textScope compiles nested bodies made of plain text only.
type textScope struct {
	s          *token.Stream
	autoescape bool
	id         int
}

func (f *textScope) Filename() string { return f.s.Filename() }
func (f *textScope) Autoescape() bool { return f.autoescape }
func (f *textScope) UniqueID() int    { f.id++; return f.id }

func (f *textScope) Subcompile(w *writer.Writer, ends ...string) (token.Token, error) {
	for {
		tok := f.s.Next()
		switch tok.Kind {
		case token.TEXT:
			if err := NewText(f.s).Compile(w); err != nil {
				return token.Token{}, err
			}
		case token.BLOCK_START:
			name := f.s.Next()
			if slices.Contains(ends, name.Value) {
				return name, nil
			}
			return token.Token{}, f.s.Unexpected(name, "end tag")
		default:
			return token.Token{}, f.s.Unexpected(tok, "text or end tag")
		}
	}
}

func stream(t *testing.T, src string) *token.Stream {
	t.Helper()
	s, err := lexer.Tokenize(src, "node.tpl")
	require.NoError(t, err)
	return s
}

// compileTag positions the stream on the tag name and compiles it.
func compileTag(t *testing.T, src string, c Constructor) (string, *token.Stream, error) {
	t.Helper()
	s := stream(t, src)
	require.Equal(t, token.BLOCK_START, s.Current().Kind)
	s.Next()

	w := writer.New()
	if err := c(s, &textScope{s: s}).Compile(w); err != nil {
		return "", s, err
	}
	out, err := w.Source()
	require.NoError(t, err)
	return out, s, nil
}

func TestParseExpression(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"name", `lookup(context, "name")`},
		{"user.name", `lookup(context, "user", "name")`},
		{"items.0", `lookup(context, "items", 0)`},
		{"a[b]", `lookup(context, "a", lookup(context, "b"))`},
		{`a["k"].c`, `lookup(context, "a", "k", "c")`},
		{"1 + 2 * 3", `(1 + (2 * 3))`},
		{"(1 + 2) * 3", `((1 + 2) * 3)`},
		{"not a and b", `((not lookup(context, "a")) and lookup(context, "b"))`},
		{"a or b and c", `(lookup(context, "a") or (lookup(context, "b") and lookup(context, "c")))`},
		{"a not in [1, 2]", `(lookup(context, "a") not in [1, 2])`},
		{"a in b", `(lookup(context, "a") in lookup(context, "b"))`},
		{"x >= 10", `(lookup(context, "x") >= 10)`},
		{"-x", `(-lookup(context, "x"))`},
		{"true or null", `(True or None)`},
		{"007", `7`},
		{"1.50", `1.50`},
		{`"say \"hi\""`, `"say \"hi\""`},
		{"[]", `[]`},
		{"name|upper", `modify("upper", lookup(context, "name"))`},
		{`s|truncate:10:"..."`, `modify("truncate", lookup(context, "s"), 10, "...")`},
		{"s|trim|lower", `modify("lower", modify("trim", lookup(context, "s")))`},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			s := stream(t, "{{ "+tt.src+" }}")
			s.Next()

			expr, err := ParseExpression(s)
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr.Code())
			assert.True(t, s.Test(token.VAR_END), "cursor left on %s", s.Current())
		})
	}
}

func TestParseExpressionErrors(t *testing.T) {
	for _, src := range []string{"a.", "(a", "[1 2]", "|upper", "a|", "a[1", "}}"} {
		t.Run(src, func(t *testing.T) {
			s := stream(t, "{{ "+src+" }}")
			s.Next()

			_, err := ParseExpression(s)
			require.Error(t, err)
			assert.True(t, errors.IsSyntax(err))
		})
	}
}

func TestTextNodeMergesAdjacentText(t *testing.T) {
	s := token.NewStream([]token.Token{
		{Kind: token.TEXT, Value: "Hello, ", Line: 1},
		{Kind: token.TEXT, Value: "\"world\"\n", Line: 1},
	}, "text.tpl")

	w := writer.New()
	require.NoError(t, NewText(s).Compile(w))
	out, err := w.Source()
	require.NoError(t, err)

	assert.Equal(t, "out.append(\"Hello, \\\"world\\\"\\n\")\n", out)
	assert.Equal(t, "\"world\"\n", s.Current().Value)
}

func TestVariableNode(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		autoescape bool
		want       string
	}{
		{"escaped", "{{ name }}", true, `out.append(escape(lookup(context, "name")))`},
		{"unescaped", "{{ name }}", false, `out.append(text(lookup(context, "name")))`},
		{"raw", "{{ html|raw }}", true, `out.append(text(lookup(context, "html")))`},
		{"explicit escape", "{{ html|escape }}", true, `out.append(text(modify("escape", lookup(context, "html"))))`},
		{"modifier", "{{ n|upper }}", true, `out.append(escape(modify("upper", lookup(context, "n"))))`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := stream(t, tt.src)
			s.Next()

			w := writer.New()
			require.NoError(t, NewVariable(s, &textScope{s: s, autoescape: tt.autoescape}).Compile(w))
			out, err := w.Source()
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
			assert.True(t, s.Test(token.VAR_END))
		})
	}
}

func TestVariableNodeErrors(t *testing.T) {
	for _, src := range []string{"{{ a b }}", "{{ a|raw:1 }}", "{{ }}"} {
		t.Run(src, func(t *testing.T) {
			s := stream(t, src)
			s.Next()
			err := NewVariable(s, &textScope{s: s}).Compile(writer.New())
			assert.True(t, errors.IsSyntax(err))
		})
	}
}

func TestIfNode(t *testing.T) {
	out, s, err := compileTag(t, "{% if a %}x{% elseif b %}y{% else %}z{% endif %}", NewIf)
	require.NoError(t, err)

	assert.Equal(t, `if lookup(context, "a"):
    out.append("x")
elif lookup(context, "b"):
    out.append("y")
else:
    out.append("z")
`, out)
	assert.True(t, s.Test(token.BLOCK_END))
	assert.Equal(t, token.EOF, s.Next().Kind)
}

func TestIfNodeEmptyBranch(t *testing.T) {
	out, _, err := compileTag(t, "{% if a %}{% endif %}", NewIf)
	require.NoError(t, err)
	assert.Equal(t, "if lookup(context, \"a\"):\n    pass\n", out)
}

func TestIfNodeErrors(t *testing.T) {
	tests := map[string]string{
		"unclosed":         "{% if a %}x",
		"missing block end": "{% if a b %}x{% endif %}",
		"bad else":          "{% if a %}x{% else b %}y{% endif %}",
		"trailing endif":    "{% if a %}x{% endif a %}",
		"missing condition": "{% if %}x{% endif %}",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := compileTag(t, src, NewIf)
			assert.True(t, errors.IsSyntax(err), "got %v", err)
		})
	}
}

func TestForNode(t *testing.T) {
	out, s, err := compileTag(t, "{% for item in items %}x{% endfor %}", NewFor)
	require.NoError(t, err)

	assert.Equal(t, `_outer1 = context
_seq1 = iterate(lookup(context, "items"))
for _i1, _v1 in enumerate(_seq1):
    context = scope(_outer1, "item", _v1, _i1, len(_seq1))
    out.append("x")
context = _outer1
`, out)
	assert.True(t, s.Test(token.BLOCK_END))
}

func TestForNodeErrors(t *testing.T) {
	tests := map[string]string{
		"reserved name": "{% for loop in items %}x{% endfor %}",
		"missing in":    "{% for a of items %}x{% endfor %}",
		"no sequence":   "{% for a in %}x{% endfor %}",
		"unclosed":      "{% for a in items %}x",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := compileTag(t, src, NewFor)
			assert.True(t, errors.IsSyntax(err), "got %v", err)
		})
	}
}

func TestSetNode(t *testing.T) {
	out, s, err := compileTag(t, "{% set total = price * 2 %}", NewSet)
	require.NoError(t, err)
	assert.Equal(t, "context = scope(context, \"total\", (lookup(context, \"price\") * 2))\n", out)
	assert.True(t, s.Test(token.BLOCK_END))

	for _, src := range []string{"{% set x 1 %}", "{% set not = 1 %}", "{% set x = 1 2 %}"} {
		_, _, err := compileTag(t, src, NewSet)
		assert.True(t, errors.IsSyntax(err), src)
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"for", "if", "set"}, r.Names())

	_, ok := r.Lookup("if")
	assert.True(t, ok)

	r.Register("raw", NewSet)
	_, ok = r.Lookup("raw")
	assert.True(t, ok)

	r.Unregister("raw")
	_, ok = r.Lookup("raw")
	assert.False(t, ok)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			r.Register(fmt.Sprintf("tag%d", i), NewSet)
		}(i)
		go func() {
			defer wg.Done()
			_ = r.Names()
			_, _ = r.Lookup("tag0")
		}()
	}
	wg.Wait()
	assert.Len(t, r.Names(), 20)
}
