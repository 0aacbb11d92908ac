package compiler

import (
	"bufio"
	"bytes"
	"strings"
	"text/template"

	"go.starlark.net/syntax"

	"github.com/conneroisu/spoon/internal/cache"
)

// Module is the Starlark module every unit loads its helpers from.
const Module = "spoon"

// Builtins are the names a unit loads from Module.
var Builtins = []string{"Renderer", "escape", "iterate", "lookup", "modify", "scope", "text"}

// UnitExt is the extension of generated units.
const UnitExt = ".star"

const checksumPrefix = "# checksum: "

const unitTemplate = `# Code generated by spoon. DO NOT EDIT.
# source: {{ .Source }}
` + checksumPrefix + `{{ .Checksum }}

load({{ quote .Module }}{{ range .Builtins }}, {{ quote . }}{{ end }})

def {{ .Class }}():
    def display(context):
        out = []
{{ .Body }}        return "".join(out)

    return Renderer(name = {{ quote .Class }}, display = display)
`

var unitTmpl = template.Must(template.New("unit").Funcs(template.FuncMap{
	"quote": func(s string) string { return syntax.Quote(s, false) },
}).Parse(unitTemplate))

type unit struct {
	Source   string
	Checksum string
	Class    string
	Body     string
	Module   string
	Builtins []string
}

func renderUnit(u unit) (string, error) {
	u.Source = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, u.Source)
	u.Module = Module
	u.Builtins = Builtins

	var buf bytes.Buffer
	if err := unitTmpl.Execute(&buf, u); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Checksum fingerprints template source; units record it in their header.
func Checksum(src []byte) string {
	return cache.Sum(src)
}

// ReadChecksum extracts the source checksum from a unit's header.
func ReadChecksum(unit []byte) (string, bool) {
	sc := bufio.NewScanner(bytes.NewReader(unit))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "#") {
			break
		}
		if sum, ok := strings.CutPrefix(line, checksumPrefix); ok {
			return strings.TrimSpace(sum), true
		}
	}
	return "", false
}

// ClassName derives the unit's entry point from its cache filename.
func ClassName(cacheFilename string) string {
	return "S" + Ident(strings.TrimSuffix(cacheFilename, UnitExt)) + "_Template"
}

const hexDigits = "0123456789abcdef"

// Ident encodes s into identifier characters. ASCII letters and digits are
// kept, '_' is doubled and every other byte becomes '_' plus two hex digits,
// so distinct inputs never share an encoding.
func Ident(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
			b.WriteByte(c)
		case c == '_':
			b.WriteString("__")
		default:
			b.WriteByte('_')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		}
	}
	return b.String()
}
