package core

import (
	"bytes"
	"cmp"
	"fmt"
	"iter"
	"slices"
)

// List is a nested list value of a document field.
//
// Every mutation marks the top-level field that contains the list as dirty.
type List struct {
	items   []any
	binding *binding
	depth   int
}

// NewList returns a detached list containing the given values.
func NewList(values ...any) (*List, error) {
	p, err := prepare(values, "", 0)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = []any{}
	}
	return wrap(p, nil, 0).(*List), nil
}

func (l *List) field() string {
	if l.binding == nil {
		return ""
	}
	return l.binding.field
}

func (l *List) prepareItems(values []any) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		p, err := prepare(v, l.field(), l.depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	for i, p := range out {
		out[i] = wrap(p, l.binding, l.depth+1)
	}
	return out, nil
}

func (l *List) checkIndex(i int) error {
	if i < 0 || i >= len(l.items) {
		return indexError(i, len(l.items))
	}
	return nil
}

// Get returns the value at index i.
func (l *List) Get(i int) (any, error) {
	if err := l.checkIndex(i); err != nil {
		return nil, err
	}
	return l.items[i], nil
}

// Len returns the number of values.
func (l *List) Len() int {
	return len(l.items)
}

// Values returns a copy of the list values.
//
// Nested containers in the result are still live.
func (l *List) Values() []any {
	return slices.Clone(l.items)
}

// All returns an iterator over the indexes and values.
func (l *List) All() iter.Seq2[int, any] {
	return slices.All(l.items)
}

// Set replaces the value at index i.
func (l *List) Set(i int, value any) error {
	if err := l.checkIndex(i); err != nil {
		return err
	}
	items, err := l.prepareItems([]any{value})
	if err != nil {
		return err
	}
	l.items[i] = items[0]
	l.binding.markDirty()
	return nil
}

// Delete removes the value at index i.
func (l *List) Delete(i int) error {
	if err := l.checkIndex(i); err != nil {
		return err
	}
	l.items = slices.Delete(l.items, i, i+1)
	l.binding.markDirty()
	return nil
}

// Append adds the value to the end of the list.
func (l *List) Append(value any) error {
	return l.Extend(value)
}

// Extend adds all values to the end of the list.
func (l *List) Extend(values ...any) error {
	items, err := l.prepareItems(values)
	if err != nil {
		return err
	}
	l.items = append(l.items, items...)
	l.binding.markDirty()
	return nil
}

// Insert inserts the value before index i. An index equal to Len appends.
func (l *List) Insert(i int, value any) error {
	if i < 0 || i > len(l.items) {
		return indexError(i, len(l.items))
	}
	items, err := l.prepareItems([]any{value})
	if err != nil {
		return err
	}
	l.items = slices.Insert(l.items, i, items[0])
	l.binding.markDirty()
	return nil
}

// Pop removes the last value and returns its plain value.
func (l *List) Pop() (any, bool) {
	if len(l.items) == 0 {
		return nil, false
	}
	v, _ := l.PopAt(len(l.items) - 1)
	return v, true
}

// PopAt removes the value at index i and returns its plain value.
func (l *List) PopAt(i int) (any, error) {
	if err := l.checkIndex(i); err != nil {
		return nil, err
	}
	v := l.items[i]
	l.items = slices.Delete(l.items, i, i+1)
	l.binding.markDirty()
	return Plain(v), nil
}

// Remove removes the first value equal to the given value.
func (l *List) Remove(value any) error {
	i := l.Index(value)
	if i < 0 {
		return fmt.Errorf("%w: %v", ErrValueNotFound, value)
	}
	l.items = slices.Delete(l.items, i, i+1)
	l.binding.markDirty()
	return nil
}

// Index returns the index of the first value equal to the given value, or -1.
func (l *List) Index(value any) int {
	target := Plain(value)
	return slices.IndexFunc(l.items, func(v any) bool {
		return equal(v, target)
	})
}

// Clear removes all values.
func (l *List) Clear() {
	l.items = []any{}
	l.binding.markDirty()
}

// Sort sorts the values with the given comparison function.
//
// A nil function orders scalar values by type then by value.
func (l *List) Sort(fn func(a, b any) int) {
	if fn == nil {
		fn = compareValues
	}
	slices.SortStableFunc(l.items, fn)
	l.binding.markDirty()
}

// Reverse reverses the order of the values.
func (l *List) Reverse() {
	slices.Reverse(l.items)
	l.binding.markDirty()
}

// Replace replaces the values in the range [lo, hi) with the given values.
func (l *List) Replace(lo, hi int, values ...any) error {
	if lo < 0 || hi > len(l.items) || lo > hi {
		return fmt.Errorf("%w: range [%d:%d] with length %d", ErrIndexOutOfRange, lo, hi, len(l.items))
	}
	items, err := l.prepareItems(values)
	if err != nil {
		return err
	}
	l.items = slices.Replace(l.items, lo, hi, items...)
	l.binding.markDirty()
	return nil
}

// Plain returns a deep copy of the list without containers.
func (l *List) Plain() []any {
	out := make([]any, len(l.items))
	for i, v := range l.items {
		out[i] = Plain(v)
	}
	return out
}

// Equal reports whether the list is structurally equal to the given value.
func (l *List) Equal(other any) bool {
	return equal(l, other)
}

func (l *List) String() string {
	return fmt.Sprintf("List(%v)", l.Plain())
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int64, float64:
		return 2
	case string:
		return 3
	case []byte:
		return 4
	case *List:
		return 5
	default:
		return 6
	}
}

func compareValues(a, b any) int {
	if c := cmp.Compare(typeRank(a), typeRank(b)); c != 0 {
		return c
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y)
		}
		return cmp.Compare(float64(x), b.(float64))
	case float64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, float64(y))
		}
		return cmp.Compare(x, b.(float64))
	case string:
		return cmp.Compare(x, b.(string))
	case []byte:
		return bytes.Compare(x, b.([]byte))
	}
	return 0
}
