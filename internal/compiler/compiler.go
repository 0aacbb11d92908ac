// Package compiler turns one spoon template into a Starlark renderer unit
// and persists it to the cache directory.
//
// Compile is pure: it lexes the source, dispatches every construct to its
// node and wraps the generated body in the unit boilerplate. Write adds the
// filesystem side, writing the unit to a temporary file next to its
// destination and renaming it into place so readers never see a partial
// file.
package compiler

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/afero"

	"github.com/conneroisu/spoon/internal/errors"
	"github.com/conneroisu/spoon/internal/lexer"
	"github.com/conneroisu/spoon/internal/logging"
	"github.com/conneroisu/spoon/internal/node"
	"github.com/conneroisu/spoon/internal/token"
	"github.com/conneroisu/spoon/internal/writer"
)

// Environment supplies the tag registry and cache policy.
type Environment interface {
	Lookup(tag string) (node.Constructor, bool)
	CacheDir() string
	CacheFilename(source string) string
	Autoescape() bool
}

// Compiler compiles a single template file. It is meant to be used once.
type Compiler struct {
	env      Environment
	filename string
	fs       afero.Fs
	logger   logging.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithFs sets the filesystem used by Write.
func WithFs(fs afero.Fs) Option {
	return func(c *Compiler) {
		c.fs = fs
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// New creates a compiler for the template at filename.
func New(env Environment, filename string, opts ...Option) *Compiler {
	c := &Compiler{
		env:      env,
		filename: filename,
		fs:       afero.NewOsFs(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("compiler")
	return c
}

// Filename returns the template this compiler was created for.
func (c *Compiler) Filename() string {
	return c.filename
}

// Compile generates the renderer unit for src.
func (c *Compiler) Compile(src []byte) (string, error) {
	stream, err := lexer.Tokenize(string(src), c.filename)
	if err != nil {
		return "", err
	}

	w := writer.New()
	// class body, then display body
	w.Indent()
	w.Indent()

	run := &compilation{env: c.env, stream: stream}
	if _, err := run.dispatch(w, nil); err != nil {
		return "", err
	}

	w.Outdent()
	w.Outdent()
	body, err := w.Source()
	if err != nil {
		return "", errors.NewInternalError(errors.ErrCodeInternalError,
			"generated code for "+c.filename+" is malformed", err)
	}

	class := ClassName(c.env.CacheFilename(c.filename))
	c.logger.Debug(context.Background(), "Compiled template",
		"file", c.filename, "class", class, "tokens", stream.Len(), "lines", w.Len())

	return renderUnit(unit{
		Source:   c.filename,
		Checksum: Checksum(src),
		Class:    class,
		Body:     body,
	})
}

// compilation is the state of one Compile call. It is the node.Scope handed
// to tag constructors.
type compilation struct {
	env    Environment
	stream *token.Stream
	nextID int
}

var _ node.Scope = (*compilation)(nil)

func (r *compilation) Filename() string {
	return r.stream.Filename()
}

func (r *compilation) Autoescape() bool {
	return r.env.Autoescape()
}

func (r *compilation) UniqueID() int {
	r.nextID++
	return r.nextID
}

func (r *compilation) Subcompile(w *writer.Writer, ends ...string) (token.Token, error) {
	r.stream.Next()
	return r.dispatch(w, ends)
}

// dispatch compiles constructs until the stream is exhausted or, when ends is
// non-empty, until a block whose tag name is in ends. The EOF check runs on
// the live stream after every node.
func (r *compilation) dispatch(w *writer.Writer, ends []string) (token.Token, error) {
	s := r.stream
	for !s.IsEOF() {
		tok := s.Current()
		switch tok.Kind {
		case token.TEXT:
			if err := node.NewText(s).Compile(w); err != nil {
				return token.Token{}, err
			}

		case token.VAR_START:
			s.Next()
			if err := node.NewVariable(s, r).Compile(w); err != nil {
				return token.Token{}, err
			}

		case token.BLOCK_START:
			name := s.Next()
			if name.Kind != token.NAME {
				return token.Token{}, s.Unexpected(name, "tag name")
			}
			if slices.Contains(ends, name.Value) {
				return name, nil
			}

			construct, ok := r.env.Lookup(name.Value)
			if !ok {
				return token.Token{}, errors.NewSyntaxError(
					r.Filename(),
					tok.Line,
					name.Value,
					fmt.Sprintf("There is no such template tag %q", name.Value),
				).WithCode(errors.ErrCodeUnknownTag)
			}
			if err := construct(s, r).Compile(w); err != nil {
				return token.Token{}, err
			}

		default:
			return token.Token{}, errors.NewInternalError(errors.ErrCodeInternalError,
				fmt.Sprintf("%s:%d: unexpected %s outside of a construct", r.Filename(), tok.Line, tok.Kind), nil)
		}

		s.Next()
	}

	if len(ends) > 0 {
		return token.Token{}, s.Unexpected(s.Current(), fmt.Sprintf("{%% %s %%}", ends[len(ends)-1]))
	}
	return s.Current(), nil
}
