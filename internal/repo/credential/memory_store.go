package credential

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps values in process memory. Nothing survives a restart.
type MemoryStore struct {
	values map[string][]byte
	m      sync.RWMutex
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Load implements Store.Load.
func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	s.m.RLock()
	defer s.m.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return nil, nil
	}

	return slices.Clone(value), nil
}

// Save implements Store.Save.
func (s *MemoryStore) Save(_ context.Context, key string, value []byte) error {
	s.m.Lock()
	defer s.m.Unlock()

	s.values[key] = slices.Clone(value)

	return nil
}

// Close implements Store.Close.
func (s *MemoryStore) Close() error {
	return nil
}
