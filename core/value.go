package core

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"slices"
	"weak"

	"github.com/nasdf/docproxy/constraint"
	"github.com/nasdf/docproxy/fieldop"
)

// binding ties a container to the top-level field of its root document.
//
// The root is held weakly. A document detaches a binding by dropping it from
// its bindings map, after which mutations through the binding are ignored.
type binding struct {
	root  weak.Pointer[Document]
	field string
}

func newBinding(doc *Document, field string) *binding {
	return &binding{root: weak.Make(doc), field: field}
}

func (b *binding) markDirty() {
	if b == nil {
		return
	}
	if doc := b.root.Value(); doc != nil {
		doc.markFieldDirty(b)
	}
}

// prepare validates the value and converts it into a plain value tree.
//
// The returned tree shares no mutable state with the input. Nothing is
// wrapped until the whole tree has been validated.
func prepare(value any, field string, depth int) (any, error) {
	if err := constraint.ValidateDepth(depth, field); err != nil {
		return nil, err
	}
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool, string, int64, float64:
		return v, nil
	case []byte:
		return bytes.Clone(v), nil
	case *Map:
		return prepare(v.Plain(), field, depth)
	case *List:
		return prepare(v.Plain(), field, depth)
	case fieldop.Op:
		return nil, fmt.Errorf("%w: field operation %s must be registered, not assigned", ErrUnsupportedValue, v.Kind())
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			if err := constraint.ValidateFieldName(key, depth); err != nil {
				return nil, withPath(err, field)
			}
			p, err := prepare(val, field, depth+1)
			if err != nil {
				return nil, err
			}
			out[key] = p
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			p, err := prepare(val, field, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	}
	return prepareReflect(reflect.ValueOf(value), field, depth)
}

func prepareReflect(rv reflect.Value, field string, depth int) (any, error) {
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("%w: integer %d overflows int64", ErrUnsupportedValue, u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return prepare(rv.Elem().Interface(), field, depth)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			out := make([]byte, rv.Len())
			for i := range out {
				out[i] = byte(rv.Index(i).Uint())
			}
			return out, nil
		}
		list := make([]any, rv.Len())
		for i := range list {
			list[i] = rv.Index(i).Interface()
		}
		return prepare(list, field, depth)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map keys must be strings, got %s", ErrUnsupportedValue, rv.Type().Key())
		}
		if rv.IsNil() {
			return nil, nil
		}
		m := make(map[string]any, rv.Len())
		for iter := rv.MapRange(); iter.Next(); {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return prepare(m, field, depth)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, rv.Interface())
}

func withPath(err error, field string) error {
	if ce, ok := err.(*constraint.Error); ok && ce.Path == "" {
		ce.Path = field
	}
	return err
}

// wrap turns a prepared plain value into live containers bound to b.
func wrap(value any, b *binding, depth int) any {
	switch v := value.(type) {
	case map[string]any:
		m := &Map{entries: make(map[string]any, len(v)), binding: b, depth: depth}
		for key, val := range v {
			m.entries[key] = wrap(val, b, depth+1)
		}
		return m
	case []any:
		l := &List{items: make([]any, len(v)), binding: b, depth: depth}
		for i, val := range v {
			l.items[i] = wrap(val, b, depth+1)
		}
		return l
	default:
		return v
	}
}

// Plain returns a deep copy of the value with all containers converted to
// map[string]any and []any.
func Plain(value any) any {
	switch v := value.(type) {
	case *Map:
		return v.Plain()
	case *List:
		return v.Plain()
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[key] = Plain(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = Plain(val)
		}
		return out
	case []byte:
		return bytes.Clone(v)
	default:
		return v
	}
}

// equal reports whether two values are structurally equal after unwrapping.
func equal(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func normalize(value any) any {
	if p, err := prepare(value, "", 0); err == nil {
		return p
	}
	return Plain(value)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
