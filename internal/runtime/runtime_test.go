package runtime

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/spoon/internal/errors"
)

const greetUnit = `load("spoon", "Renderer", "escape", "lookup")

def Sgreet_Template():
    def display(context):
        out = []
        out.append("Hi ")
        out.append(escape(lookup(context, "user", "name")))
        return "".join(out)

    return Renderer(name = "Sgreet_Template", display = display)
`

const busyUnit = `load("spoon", "Renderer")

def Sbusy_Template():
    def display(context):
        n = 0
        for i in range(1000000000):
            n += 1
        return str(n)

    return Renderer(name = "Sbusy_Template", display = display)
`

func TestLoadAndDisplay(t *testing.T) {
	r, err := Load("greet.star", []byte(greetUnit), "Sgreet_Template")
	require.NoError(t, err)
	assert.Equal(t, "Sgreet_Template", r.Name())

	out, err := r.Display(context.Background(), map[string]any{
		"user": map[string]any{"name": "<Ada>"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi &lt;Ada&gt;", out)

	out, err = r.Display(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi ", out)
}

func TestLoadUnitDerivesClass(t *testing.T) {
	_, err := LoadUnit("greet.star", []byte(greetUnit), "greet.star")
	require.NoError(t, err)
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]struct {
		src   string
		class string
	}{
		"syntax error":    {"def (", "Sx_Template"},
		"missing class":   {greetUnit, "Sother_Template"},
		"unknown module":  {`load("os", "system")`, "Sx_Template"},
		"not a renderer":  {"def Sx_Template():\n    return 1\n", "Sx_Template"},
		"entry point err": {"def Sx_Template():\n    return 1 // 0\n", "Sx_Template"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load("bad.star", []byte(tt.src), tt.class)
			require.Error(t, err)

			var se *errors.SpoonError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, errors.ErrorTypeInternal, se.Type)
		})
	}
}

func TestDisplayRuntimeError(t *testing.T) {
	src := `load("spoon", "Renderer", "modify")

def Sx_Template():
    def display(context):
        return modify("nope", 1)

    return Renderer(name = "Sx_Template", display = display)
`
	r, err := Load("x.star", []byte(src), "Sx_Template")
	require.NoError(t, err)

	_, err = r.Display(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown modifier "nope"`)
}

func TestDisplayRejectsNonString(t *testing.T) {
	src := `load("spoon", "Renderer")

def Sx_Template():
    def display(context):
        return 42

    return Renderer(name = "Sx_Template", display = display)
`
	r, err := Load("x.star", []byte(src), "Sx_Template")
	require.NoError(t, err)

	_, err = r.Display(context.Background(), nil)
	assert.ErrorContains(t, err, "display returned int")
}

func TestDisplayCancellation(t *testing.T) {
	r, err := Load("busy.star", []byte(busyUnit), "Sbusy_Template")
	require.NoError(t, err)

	t.Run("already cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.Display(ctx, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("deadline during render", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := r.Display(ctx, nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestDisplayConcurrent(t *testing.T) {
	r, err := Load("greet.star", []byte(greetUnit), "Sgreet_Template")
	require.NoError(t, err)

	names := []string{"Ada", "Bob", "Cy", "Dee"}
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		name := names[i%len(names)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := r.Display(context.Background(), map[string]any{"user": map[string]any{"name": name}})
			assert.NoError(t, err)
			assert.Equal(t, "Hi "+name, out)
		}()
	}
	wg.Wait()
}

func TestComponent(t *testing.T) {
	r, err := Load("greet.star", []byte(greetUnit), "Sgreet_Template")
	require.NoError(t, err)

	var buf bytes.Buffer
	err = Component(r, map[string]any{"user": map[string]any{"name": "Ada"}}).Render(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, "Hi Ada", buf.String())
}
