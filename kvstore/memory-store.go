package kvstore

import (
	"encoding/json"
	"sync"
)

// MemoryStore is a non-durable PersistentStore, used by tests and by the
// coordinator when run with backend "memory".
type MemoryStore struct {
	mu    sync.RWMutex
	store map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{store: make(map[string]json.RawMessage)}
}

func (m *MemoryStore) Get(path Path) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := getIn(m.store, path)
	return v, ok, nil
}

func (m *MemoryStore) Set(path Path, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return setIn(m.store, path, value)
}

func (m *MemoryStore) SetMany(entries map[string]json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range entries {
		if err := setIn(m.store, P(k), v); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) Delete(path Path) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return deleteIn(m.store, path)
}

func (m *MemoryStore) Dump() (map[string]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(m.store))
	for k, v := range m.store {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) Restore(data map[string]json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = make(map[string]json.RawMessage, len(data))
	for k, v := range data {
		m.store[k] = v
	}
	return nil
}
