package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func list(items ...starlark.Value) *starlark.List {
	return starlark.NewList(items)
}

func TestModifiers(t *testing.T) {
	s := func(v string) starlark.Value { return starlark.String(v) }
	n := starlark.MakeInt

	tests := []struct {
		name string
		mod  string
		in   starlark.Value
		args []starlark.Value
		want string
	}{
		{"upper", "upper", s("héllo"), nil, "HÉLLO"},
		{"uppercase alias", "uppercase", s("abc"), nil, "ABC"},
		{"lower", "lower", s("ÀBC"), nil, "àbc"},
		{"lowercase alias", "lowercase", s("ABC"), nil, "abc"},
		{"title", "title", s("hello big world"), nil, "Hello Big World"},
		{"ucfirst", "ucfirst", s("élan vital"), nil, "Élan vital"},
		{"ucfirst empty", "ucfirst", s(""), nil, ""},
		{"trim space", "trim", s("  x \n"), nil, "x"},
		{"trim cutset", "trim", s("--x--"), []starlark.Value{s("-")}, "x"},
		{"length string", "length", s("héj"), nil, "3"},
		{"length list", "length", list(n(1), n(2)), nil, "2"},
		{"length none", "length", starlark.None, nil, "0"},
		{"default none", "default", starlark.None, []starlark.Value{s("anon")}, "anon"},
		{"default empty", "default", s(""), []starlark.Value{s("anon")}, "anon"},
		{"default set", "default", s("Ada"), []starlark.Value{s("anon")}, "Ada"},
		{"join", "join", list(s("a"), n(1), starlark.True), []starlark.Value{s(", ")}, "a, 1, true"},
		{"join no separator", "join", list(s("a"), s("b")), nil, "ab"},
		{"join scalar", "join", s("abc"), nil, "abc"},
		{"truncate", "truncate", s("abcdef"), []starlark.Value{n(3)}, "abc..."},
		{"truncate suffix", "truncate", s("abcdef"), []starlark.Value{n(2), s("~")}, "ab~"},
		{"truncate short", "truncate", s("ab"), []starlark.Value{n(5)}, "ab"},
		{"truncate runes", "truncate", s("héllo"), []starlark.Value{n(2), s("")}, "hé"},
		{"escape", "escape", s("<b>"), nil, "&lt;b&gt;"},
		{"raw", "raw", s("<b>"), nil, "<b>"},
		{"json list", "json", list(n(1), s("a"), starlark.None), nil, `[1,"a",null]`},
		{"json empty list", "json", list(), nil, `[]`},
		{"json string", "json", s(`"q"`), nil, `"\"q\""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]starlark.Value{s(tt.mod), tt.in}, tt.args...)
			got, err := call(t, "modify", args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Text(got))
		})
	}
}

func TestJSONModifierDict(t *testing.T) {
	got, err := call(t, "modify", starlark.String("json"), dict(t, "b", 2, "a", []any{true}))
	require.NoError(t, err)
	assert.Equal(t, `{"a":[true],"b":2}`, Text(got))
}

func TestModifierErrors(t *testing.T) {
	tests := map[string]struct {
		args []starlark.Value
		msg  string
	}{
		"unknown": {
			[]starlark.Value{starlark.String("shout"), starlark.String("x")},
			`unknown modifier "shout"`,
		},
		"too many arguments": {
			[]starlark.Value{starlark.String("upper"), starlark.String("x"), starlark.MakeInt(1)},
			`modifier "upper": want 0 arguments, got 1`,
		},
		"missing argument": {
			[]starlark.Value{starlark.String("default"), starlark.None},
			`modifier "default": want 1 arguments, got 0`,
		},
		"negative truncate": {
			[]starlark.Value{starlark.String("truncate"), starlark.String("x"), starlark.MakeInt(-1)},
			"negative length",
		},
		"no length": {
			[]starlark.Value{starlark.String("length"), starlark.MakeInt(3)},
			"int has no length",
		},
		"missing value": {
			[]starlark.Value{starlark.String("upper")},
			"want modifier name and value",
		},
		"name not string": {
			[]starlark.Value{starlark.MakeInt(1), starlark.String("x")},
			"modifier name must be a string",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := call(t, "modify", tt.args...)
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

func TestRegisterModifier(t *testing.T) {
	RegisterModifier("reverse", func(v starlark.Value, args starlark.Tuple) (starlark.Value, error) {
		r := []rune(Text(v))
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return starlark.String(r), nil
	})
	t.Cleanup(func() {
		modifiersMu.Lock()
		delete(modifiers, "reverse")
		modifiersMu.Unlock()
	})

	assert.Contains(t, Modifiers(), "reverse")

	src := `load("spoon", "Renderer", "lookup", "modify", "text")

def Srev_Template():
    def display(context):
        return text(modify("reverse", lookup(context, "word")))

    return Renderer(name = "Srev_Template", display = display)
`
	r, err := Load("rev.star", []byte(src), "Srev_Template")
	require.NoError(t, err)
	out, err := r.Display(context.Background(), map[string]any{"word": "spoon"})
	require.NoError(t, err)
	assert.Equal(t, "noops", out)
}

func TestModifiersSorted(t *testing.T) {
	names := Modifiers()
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "raw")
	assert.Contains(t, names, "escape")
}
