package runtime

import (
	"fmt"
	"strconv"

	"go.starlark.net/starlark"
	"golang.org/x/net/html"
)

// Module is the set of helpers loaded by every unit.
var Module = starlark.StringDict{
	"Renderer": starlark.NewBuiltin("Renderer", makeRenderer),
	"escape":   starlark.NewBuiltin("escape", escape),
	"iterate":  starlark.NewBuiltin("iterate", iterate),
	"lookup":   starlark.NewBuiltin("lookup", lookup),
	"modify":   starlark.NewBuiltin("modify", modify),
	"scope":    starlark.NewBuiltin("scope", scope),
	"text":     starlark.NewBuiltin("text", text),
}

// lookup(value, *keys) walks keys through dicts, sequences and attributes.
// A missing step yields None.
func lookup(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: missing value", b.Name())
	}

	v := args[0]
	for _, key := range args[1:] {
		v = index(v, key)
		if v == starlark.None {
			break
		}
	}
	return v, nil
}

func index(v, key starlark.Value) starlark.Value {
	switch x := v.(type) {
	case starlark.Mapping:
		if got, found, err := x.Get(key); err == nil && found {
			return got
		}
		if i, ok := key.(starlark.Int); ok {
			if got, found, err := x.Get(starlark.String(i.String())); err == nil && found {
				return got
			}
		}
	case starlark.Indexable:
		i, ok := key.(starlark.Int)
		if !ok {
			break
		}
		n, ok := i.Int64()
		if ok && n >= 0 && n < int64(x.Len()) {
			return x.Index(int(n))
		}
	case starlark.HasAttrs:
		name, ok := key.(starlark.String)
		if !ok {
			break
		}
		if attr, err := x.Attr(string(name)); err == nil && attr != nil {
			return attr
		}
	}
	return starlark.None
}

func escape(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	return starlark.String(html.EscapeString(Text(v))), nil
}

func text(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	return starlark.String(Text(v)), nil
}

// Text is the printed form of v in template output. None prints as nothing.
func Text(v starlark.Value) string {
	switch x := v.(type) {
	case starlark.NoneType:
		return ""
	case starlark.String:
		return string(x)
	case starlark.Bool:
		return strconv.FormatBool(bool(x))
	case starlark.Float:
		return strconv.FormatFloat(float64(x), 'g', -1, 64)
	default:
		return v.String()
	}
}

// iterate(value) returns a list to loop over. Dicts yield their keys, strings
// their characters and None nothing.
func iterate(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}

	switch x := v.(type) {
	case starlark.NoneType:
		return starlark.NewList(nil), nil
	case starlark.String:
		var elems []starlark.Value
		for _, r := range string(x) {
			elems = append(elems, starlark.String(string(r)))
		}
		return starlark.NewList(elems), nil
	case starlark.Iterable:
		var elems []starlark.Value
		iter := x.Iterate()
		defer iter.Done()
		var elem starlark.Value
		for iter.Next(&elem) {
			elems = append(elems, elem)
		}
		return starlark.NewList(elems), nil
	}
	return nil, fmt.Errorf("%s: cannot loop over %s", b.Name(), v.Type())
}

// scope(context, name, value, index=None, length=None) returns a copy of
// context with name bound to value. Inside loops index and length add the
// "loop" mapping.
func scope(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		ctx    *starlark.Dict
		name   string
		value  starlark.Value
		idx    starlark.Value = starlark.None
		length starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"context", &ctx, "name", &name, "value", &value, "index?", &idx, "length?", &length); err != nil {
		return nil, err
	}

	next := starlark.NewDict(ctx.Len() + 2)
	for _, item := range ctx.Items() {
		if err := next.SetKey(item[0], item[1]); err != nil {
			return nil, err
		}
	}
	if err := next.SetKey(starlark.String(name), value); err != nil {
		return nil, err
	}

	if idx == starlark.None {
		return next, nil
	}
	i, err := starlark.AsInt32(idx)
	if err != nil {
		return nil, fmt.Errorf("%s: index: %w", b.Name(), err)
	}
	n, err := starlark.AsInt32(length)
	if err != nil {
		return nil, fmt.Errorf("%s: length: %w", b.Name(), err)
	}

	loop := starlark.NewDict(5)
	for _, kv := range []struct {
		key   string
		value starlark.Value
	}{
		{"index", starlark.MakeInt(i + 1)},
		{"index0", starlark.MakeInt(i)},
		{"first", starlark.Bool(i == 0)},
		{"last", starlark.Bool(i == n-1)},
		{"length", starlark.MakeInt(n)},
	} {
		_ = loop.SetKey(starlark.String(kv.key), kv.value)
	}
	if err := next.SetKey(starlark.String("loop"), loop); err != nil {
		return nil, err
	}
	return next, nil
}
