package core

import (
	"fmt"
	"iter"
	"maps"

	"github.com/nasdf/docproxy/constraint"
)

// Map is a nested map value of a document field.
//
// Every mutation marks the top-level field that contains the map as dirty.
type Map struct {
	entries map[string]any
	binding *binding
	depth   int
}

// NewMap returns a detached map containing the given entries.
//
// A detached map does not report mutations. It is copied when assigned to a field.
func NewMap(entries map[string]any) (*Map, error) {
	p, err := prepare(entries, "", 0)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = map[string]any{}
	}
	return wrap(p, nil, 0).(*Map), nil
}

func (m *Map) field() string {
	if m.binding == nil {
		return ""
	}
	return m.binding.field
}

func (m *Map) prepareEntry(key string, value any) (any, error) {
	if err := constraint.ValidateFieldName(key, m.depth); err != nil {
		return nil, withPath(err, m.field())
	}
	p, err := prepare(value, m.field(), m.depth+1)
	if err != nil {
		return nil, err
	}
	return wrap(p, m.binding, m.depth+1), nil
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (any, bool) {
	v, ok := m.entries[key]
	return v, ok
}

// Has returns true if the key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.entries[key]
	return ok
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.entries)
}

// Keys returns the keys in sorted order.
func (m *Map) Keys() []string {
	return sortedKeys(m.entries)
}

// All returns an iterator over the entries in sorted key order.
func (m *Map) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, k := range sortedKeys(m.entries) {
			if !yield(k, m.entries[k]) {
				return
			}
		}
	}
}

// Set stores the value under key.
func (m *Map) Set(key string, value any) error {
	v, err := m.prepareEntry(key, value)
	if err != nil {
		return err
	}
	m.entries[key] = v
	m.binding.markDirty()
	return nil
}

// Delete removes the key from the map.
func (m *Map) Delete(key string) error {
	if _, ok := m.entries[key]; !ok {
		return missingFieldError(key)
	}
	delete(m.entries, key)
	m.binding.markDirty()
	return nil
}

// Clear removes all entries.
func (m *Map) Clear() {
	clear(m.entries)
	m.binding.markDirty()
}

// Pop removes the key and returns its plain value.
func (m *Map) Pop(key string) (any, bool) {
	v, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	delete(m.entries, key)
	m.binding.markDirty()
	return Plain(v), true
}

// PopItem removes the entry with the smallest key and returns it.
func (m *Map) PopItem() (string, any, bool) {
	if len(m.entries) == 0 {
		return "", nil, false
	}
	key := sortedKeys(m.entries)[0]
	v, _ := m.Pop(key)
	return key, v, true
}

// SetDefault returns the value stored under key, storing def first if the key is missing.
func (m *Map) SetDefault(key string, def any) (any, error) {
	if v, ok := m.entries[key]; ok {
		return v, nil
	}
	v, err := m.prepareEntry(key, def)
	if err != nil {
		return nil, err
	}
	m.entries[key] = v
	m.binding.markDirty()
	return v, nil
}

// Update stores all of the given entries.
//
// Either all entries are stored or none are.
func (m *Map) Update(values map[string]any) error {
	wrapped := make(map[string]any, len(values))
	for k, v := range values {
		w, err := m.prepareEntry(k, v)
		if err != nil {
			return err
		}
		wrapped[k] = w
	}
	maps.Copy(m.entries, wrapped)
	m.binding.markDirty()
	return nil
}

// Plain returns a deep copy of the map without containers.
func (m *Map) Plain() map[string]any {
	out := make(map[string]any, len(m.entries))
	for k, v := range m.entries {
		out[k] = Plain(v)
	}
	return out
}

// Equal reports whether the map is structurally equal to the given value.
func (m *Map) Equal(other any) bool {
	return equal(m, other)
}

func (m *Map) String() string {
	return fmt.Sprintf("Map(%v)", m.Plain())
}
