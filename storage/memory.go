package storage

import (
	"bytes"
	"context"
	"fmt"
	"sync"
)

type memory struct {
	values map[string][]byte
	lock   sync.RWMutex
}

var _ Storage = (*memory)(nil)

// NewMemory returns a Storage that keeps all values in memory.
//
// Values are copied on the way in and out.
func NewMemory() Storage {
	return &memory{
		values: make(map[string][]byte),
	}
}

func (m *memory) Has(ctx context.Context, key string) (bool, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	_, ok := m.values[key]
	return ok, nil
}

func (m *memory) Put(ctx context.Context, key string, content []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.values[key] = bytes.Clone(content)
	return nil
}

func (m *memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	content, ok := m.values[key]
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrNotFound, key)
	}
	return bytes.Clone(content), nil
}

func (m *memory) Delete(ctx context.Context, key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	delete(m.values, key)
	return nil
}
