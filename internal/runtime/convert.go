package runtime

import (
	"fmt"
	"reflect"
	"sort"

	"go.starlark.net/starlark"
)

// ContextDict converts template variables into the dict passed to display.
func ContextDict(vars map[string]any) (*starlark.Dict, error) {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dict := starlark.NewDict(len(vars))
	for _, k := range keys {
		v, err := ToStarlark(vars[k])
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", k, err)
		}
		if err := dict.SetKey(starlark.String(k), v); err != nil {
			return nil, err
		}
	}
	return dict, nil
}

// ToStarlark converts a Go value decoded from YAML, JSON or flags.
func ToStarlark(v any) (starlark.Value, error) {
	switch x := v.(type) {
	case nil:
		return starlark.None, nil
	case starlark.Value:
		return x, nil
	case string:
		return starlark.String(x), nil
	case []byte:
		return starlark.String(x), nil
	case bool:
		return starlark.Bool(x), nil
	case int:
		return starlark.MakeInt(x), nil
	case int64:
		return starlark.MakeInt64(x), nil
	case uint64:
		return starlark.MakeUint64(x), nil
	case float64:
		return starlark.Float(x), nil
	case float32:
		return starlark.Float(x), nil
	case fmt.Stringer:
		return starlark.String(x.String()), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return starlark.MakeInt64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return starlark.MakeUint64(rv.Uint()), nil
	case reflect.Slice, reflect.Array:
		elems := make([]starlark.Value, rv.Len())
		for i := range elems {
			elem, err := ToStarlark(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			elems[i] = elem
		}
		return starlark.NewList(elems), nil
	case reflect.Map:
		dict := starlark.NewDict(rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, err := ToStarlark(iter.Key().Interface())
			if err != nil {
				return nil, err
			}
			val, err := ToStarlark(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(key, val); err != nil {
				return nil, err
			}
		}
		return dict, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return starlark.None, nil
		}
		return ToStarlark(rv.Elem().Interface())
	}
	return nil, fmt.Errorf("unsupported value of type %T", v)
}

// FromStarlark converts a Starlark value back into plain Go values.
func FromStarlark(v starlark.Value) (any, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.String:
		return string(x), nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return i, nil
		}
		return x.String(), nil
	case starlark.Float:
		return float64(x), nil
	case *starlark.Dict:
		m := make(map[string]any, x.Len())
		for _, item := range x.Items() {
			val, err := FromStarlark(item[1])
			if err != nil {
				return nil, err
			}
			m[Text(item[0])] = val
		}
		return m, nil
	case starlark.Iterable:
		out := []any{}
		iter := x.Iterate()
		defer iter.Done()
		var elem starlark.Value
		for iter.Next(&elem) {
			val, err := FromStarlark(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot convert %s", v.Type())
}
