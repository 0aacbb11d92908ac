package runtime

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Component adapts a renderer to templ so rendered templates can be
// embedded in templ pages or served with templ.Handler.
func Component(r Renderer, vars map[string]any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out, err := r.Display(ctx, vars)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	})
}
