// Package mem implements an in-memory block store, used by tests and
// ephemeral sessions.
package mem

import (
	"context"
	"sync"

	"github.com/thicketfs/thicket/pkg/storage"
)

// New creates a new in-memory storage model
func New() storage.Store {
	return &memStore{
		blocks: make(map[string][]byte),
	}
}

type memStore struct {
	mu     sync.RWMutex
	blocks map[string][]byte
}

func (m *memStore) String() string {
	return "mem"
}

func (m *memStore) Has(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocks[key]
	return ok, nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (m *memStore) Put(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[key] = stored
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blocks, key)
	return nil
}

func (m *memStore) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.blocks))
	for k := range m.blocks {
		keys = append(keys, k)
	}
	return keys, nil
}
