package session

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrNoSnapshot is returned by Store.Load when the slot is empty.
var ErrNoSnapshot = errors.New("no snapshot")

// Store is a string-keyed slot holding one serialised session state.
// Implementations must be safe for concurrent use.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// MemoryStore keeps snapshots in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string][]byte)}
}

// Load returns a copy of the snapshot stored under key.
func (m *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.slots[key]
	if !ok {
		return nil, ErrNoSnapshot
	}
	return slices.Clone(data), nil
}

// Save replaces the snapshot stored under key.
func (m *MemoryStore) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	m.slots[key] = slices.Clone(data)
	m.mu.Unlock()
	return nil
}

// Delete empties the slot for key.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.slots, key)
	m.mu.Unlock()
	return nil
}
