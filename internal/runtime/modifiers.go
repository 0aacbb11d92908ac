package runtime

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"go.starlark.net/starlark"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Modifier transforms a value in a `{{ value|name:arg }}` expression.
type Modifier func(v starlark.Value, args starlark.Tuple) (starlark.Value, error)

var (
	modifiersMu sync.RWMutex
	modifiers   = map[string]Modifier{
		"upper":     upper,
		"uppercase": upper,
		"lower":     lower,
		"lowercase": lower,
		"title":     title,
		"ucfirst":   ucfirst,
		"trim":      trim,
		"length":    length,
		"default":   defaultValue,
		"join":      join,
		"truncate":  truncate,
		"escape":    escapeModifier,
		"json":      jsonModifier,
		"raw":       raw,
	}
)

// RegisterModifier makes a modifier available to every unit.
func RegisterModifier(name string, m Modifier) {
	modifiersMu.Lock()
	defer modifiersMu.Unlock()
	modifiers[name] = m
}

// Modifiers returns the registered modifier names, sorted.
func Modifiers() []string {
	modifiersMu.RLock()
	defer modifiersMu.RUnlock()
	names := make([]string, 0, len(modifiers))
	for name := range modifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// modify(name, value, *args) applies a registered modifier.
func modify(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	if len(args) < 2 {
		return nil, fmt.Errorf("%s: want modifier name and value", b.Name())
	}
	name, ok := starlark.AsString(args[0])
	if !ok {
		return nil, fmt.Errorf("%s: modifier name must be a string", b.Name())
	}

	modifiersMu.RLock()
	m, ok := modifiers[name]
	modifiersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown modifier %q", name)
	}

	out, err := m(args[1], args[2:])
	if err != nil {
		return nil, fmt.Errorf("modifier %q: %w", name, err)
	}
	return out, nil
}

func arity(args starlark.Tuple, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return fmt.Errorf("want %d arguments, got %d", lo, len(args))
		}
		return fmt.Errorf("want %d to %d arguments, got %d", lo, hi, len(args))
	}
	return nil
}

func caser(c cases.Caser) Modifier {
	return func(v starlark.Value, args starlark.Tuple) (starlark.Value, error) {
		if err := arity(args, 0, 0); err != nil {
			return nil, err
		}
		return starlark.String(c.String(Text(v))), nil
	}
}

func upper(v starlark.Value, args starlark.Tuple) (starlark.Value, error) {
	return caser(cases.Upper(language.Und))(v, args)
}

func lower(v starlark.Value, args starlark.Tuple) (starlark.Value, error) {
	return caser(cases.Lower(language.Und))(v, args)
}

func title(v starlark.Value, args starlark.Tuple) (starlark.Value, error) {
	return caser(cases.Title(language.Und))(v, args)
}

func ucfirst(v starlark.Value, args starlark.Tuple) (starlark.Value, error) {
	if err := arity(args, 0, 0); err != nil {
		return nil, err
	}
	s := Text(v)
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return starlark.String(""), nil
	}
	return starlark.String(cases.Upper(language.Und).String(string(r)) + s[size:]), nil
}

func trim(v starlark.Value, args starlark.Tuple) (starlark.Value, error) {
	if err := arity(args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 1 {
		return starlark.String(strings.Trim(Text(v), Text(args[0]))), nil
	}
	return starlark.String(strings.TrimSpace(Text(v))), nil
}

func length(v starlark.Value, args starlark.Tuple) (starlark.Value, error) {
	if err := arity(args, 0, 0); err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case starlark.NoneType:
		return starlark.MakeInt(0), nil
	case starlark.String:
		return starlark.MakeInt(utf8.RuneCountInString(string(x))), nil
	case starlark.Sequence:
		return starlark.MakeInt(x.Len()), nil
	}
	return nil, fmt.Errorf("%s has no length", v.Type())
}

func defaultValue(v starlark.Value, args starlark.Tuple) (starlark.Value, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	if v == starlark.None || v.Truth() == starlark.False {
		return args[0], nil
	}
	return v, nil
}

func join(v starlark.Value, args starlark.Tuple) (starlark.Value, error) {
	if err := arity(args, 0, 1); err != nil {
		return nil, err
	}
	sep := ""
	if len(args) == 1 {
		sep = Text(args[0])
	}

	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return starlark.String(Text(v)), nil
	}
	var parts []string
	iter := iterable.Iterate()
	defer iter.Done()
	var elem starlark.Value
	for iter.Next(&elem) {
		parts = append(parts, Text(elem))
	}
	return starlark.String(strings.Join(parts, sep)), nil
}

func truncate(v starlark.Value, args starlark.Tuple) (starlark.Value, error) {
	if err := arity(args, 1, 2); err != nil {
		return nil, err
	}
	n, err := starlark.AsInt32(args[0])
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("negative length %d", n)
	}
	suffix := "..."
	if len(args) == 2 {
		suffix = Text(args[1])
	}

	runes := []rune(Text(v))
	if len(runes) <= n {
		return starlark.String(string(runes)), nil
	}
	return starlark.String(string(runes[:n]) + suffix), nil
}

func escapeModifier(v starlark.Value, args starlark.Tuple) (starlark.Value, error) {
	if err := arity(args, 0, 0); err != nil {
		return nil, err
	}
	return starlark.String(html.EscapeString(Text(v))), nil
}

func jsonModifier(v starlark.Value, args starlark.Tuple) (starlark.Value, error) {
	if err := arity(args, 0, 0); err != nil {
		return nil, err
	}
	plain, err := FromStarlark(v)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(plain)
	if err != nil {
		return nil, err
	}
	return starlark.String(data), nil
}

func raw(v starlark.Value, args starlark.Tuple) (starlark.Value, error) {
	if err := arity(args, 0, 0); err != nil {
		return nil, err
	}
	return v, nil
}
