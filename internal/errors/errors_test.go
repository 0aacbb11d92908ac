package errors

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpoonErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *SpoonError
		want string
	}{
		{
			name: "syntax error with location",
			err:  NewSyntaxError("page.tpl", 3, "frobnicate", `There is no such template tag "frobnicate"`),
			want: `page.tpl:3: syntax error: There is no such template tag "frobnicate"`,
		},
		{
			name: "lexical error without line",
			err:  NewLexicalError("page.tpl", 0, "unclosed comment"),
			want: "page.tpl: lexical error: unclosed comment",
		},
		{
			name: "persistence error with cause",
			err:  NewCachePersistenceError(ErrCodeRename, "cache/a.star", os.ErrPermission),
			want: "cache_persistence error: cannot persist cache/a.star: permission denied",
		},
		{
			name: "config error",
			err:  NewConfigError(ErrCodeConfigInvalid, "bad"),
			want: "config error: bad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestSpoonErrorIs(t *testing.T) {
	err := NewSyntaxError("a.tpl", 1, "x", "boom").WithCode(ErrCodeUnknownTag)
	wrapped := fmt.Errorf("compile: %w", err)

	assert.True(t, errors.Is(wrapped, &SpoonError{Type: ErrorTypeSyntax, Code: ErrCodeUnknownTag}))
	assert.False(t, errors.Is(wrapped, &SpoonError{Type: ErrorTypeSyntax, Code: ErrCodeUnexpectedTok}))
	assert.True(t, IsSyntax(wrapped))
	assert.False(t, IsLexical(wrapped))
}

func TestCachePersistenceUnwrap(t *testing.T) {
	err := NewCachePersistenceError(ErrCodeTempFile, "cache/a.star", os.ErrPermission)

	assert.True(t, IsCachePersistence(err))
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, "cache/a.star", err.Context["path"])
}

func TestLocation(t *testing.T) {
	file, line, ok := Location(fmt.Errorf("wrapped: %w", NewSyntaxError("b.tpl", 7, "", "x")))
	require.True(t, ok)
	assert.Equal(t, "b.tpl", file)
	assert.Equal(t, 7, line)

	_, _, ok = Location(errors.New("plain"))
	assert.False(t, ok)
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeInternal, ErrCodeInternalError, "x"))

	inner := NewSyntaxError("c.tpl", 2, "endif", "unexpected")
	outer := Wrap(inner, ErrorTypeInternal, ErrCodeInternalError, "cannot compile")
	assert.Equal(t, "c.tpl", outer.File)
	assert.Equal(t, 2, outer.Line)
	assert.Equal(t, "endif", outer.Value)
	assert.True(t, IsSyntax(outer.Cause))

	plain := WrapInternal(errors.New("io"), "cannot read")
	assert.Equal(t, ErrorTypeInternal, plain.Type)
	assert.Empty(t, plain.File)
}

func TestWithContext(t *testing.T) {
	err := NewConfigError(ErrCodeConfigInvalid, "bad").WithContext("field", "cache.dir")
	assert.Equal(t, "cache.dir", err.Context["field"])
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	assert.False(t, c.HasErrors())

	c.Add("z.tpl", NewSyntaxError("z.tpl", 1, "", "bad"))
	c.Add("a.tpl", NewLexicalError("a.tpl", 1, "bad"))
	c.Add("m.tpl", errors.New("plain"))
	c.Add("ok.tpl", nil)

	require.True(t, c.HasErrors())
	assert.Equal(t, 3, c.Len())

	failures := c.Failures()
	assert.Equal(t, []string{"a.tpl", "m.tpl", "z.tpl"},
		[]string{failures[0].Source, failures[1].Source, failures[2].Source})

	assert.Equal(t, map[ErrorType]int{
		ErrorTypeSyntax:   1,
		ErrorTypeLexical:  1,
		ErrorTypeInternal: 1,
	}, c.CountByType())

	c.Clear()
	assert.False(t, c.HasErrors())
}
