// Package runtime executes compiled spoon units.
//
// A unit is a Starlark file whose entry point returns a Renderer value. The
// helpers units call into (lookup, escape, modify, ...) are served as the
// Starlark module the compiler tells units to load.
package runtime

import (
	"context"
	"fmt"

	"go.starlark.net/starlark"

	"github.com/conneroisu/spoon/internal/compiler"
	"github.com/conneroisu/spoon/internal/errors"
)

// Renderer is the capability every compiled unit implements.
type Renderer interface {
	// Name is the unit's class name.
	Name() string
	// Display renders the template with vars as its context.
	Display(ctx context.Context, vars map[string]any) (string, error)
}

// Load executes the unit source and returns the renderer produced by its
// entry point class.
func Load(filename string, src []byte, class string) (Renderer, error) {
	thread := newThread(filename)
	globals, err := starlark.ExecFile(thread, filename, src, nil)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError,
			"cannot execute unit "+filename, backtrace(err))
	}

	entry, ok := globals[class].(starlark.Callable)
	if !ok {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError,
			fmt.Sprintf("unit %s does not define %s", filename, class), nil)
	}

	v, err := starlark.Call(thread, entry, nil, nil)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError,
			"cannot construct "+class, backtrace(err))
	}
	r, ok := v.(*rendererValue)
	if !ok {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError,
			fmt.Sprintf("%s returned %s, want renderer", class, v.Type()), nil)
	}
	r.Freeze()
	return r, nil
}

// LoadUnit loads a unit written for cacheFilename, deriving its class name.
func LoadUnit(filename string, src []byte, cacheFilename string) (Renderer, error) {
	return Load(filename, src, compiler.ClassName(cacheFilename))
}

func newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
			if module != compiler.Module {
				return nil, fmt.Errorf("unknown module %q", module)
			}
			return Module, nil
		},
		Print: func(*starlark.Thread, string) {},
	}
}

func backtrace(err error) error {
	if evalErr, ok := err.(*starlark.EvalError); ok {
		return fmt.Errorf("%s", evalErr.Backtrace())
	}
	return err
}

// rendererValue is the Starlark value built by Renderer(name, display).
type rendererValue struct {
	name    string
	display starlark.Callable
}

var (
	_ starlark.Value = (*rendererValue)(nil)
	_ Renderer       = (*rendererValue)(nil)
)

func (r *rendererValue) String() string        { return fmt.Sprintf("<renderer %s>", r.name) }
func (r *rendererValue) Type() string          { return "renderer" }
func (r *rendererValue) Freeze()               { r.display.Freeze() }
func (r *rendererValue) Truth() starlark.Bool  { return starlark.True }
func (r *rendererValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: renderer") }

// Name implements Renderer.
func (r *rendererValue) Name() string {
	return r.name
}

// Display implements Renderer. Cancelling ctx aborts the render.
func (r *rendererValue) Display(ctx context.Context, vars map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dict, err := ContextDict(vars)
	if err != nil {
		return "", err
	}

	thread := newThread(r.name)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	v, err := starlark.Call(thread, r.display, starlark.Tuple{dict}, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("render %s: %w", r.name, backtrace(err))
	}

	out, ok := starlark.AsString(v)
	if !ok {
		return "", fmt.Errorf("render %s: display returned %s", r.name, v.Type())
	}
	return out, nil
}

func makeRenderer(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var display starlark.Callable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "display", &display); err != nil {
		return nil, err
	}
	return &rendererValue{name: name, display: display}, nil
}
