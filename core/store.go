package core

import (
	"maps"
	"sort"
	"sync"
)

// Store is a sample-scoped key/value scratchpad shared between the solvers,
// tools and scorers operating on a single run. It is safe for concurrent use.
//
// Contract:
//   - Get/Set/Delete operate on a flat string-keyed namespace
//   - Keys returns a sorted copy of the current key set
//   - Fork returns an isolated deep-ish copy (top level entries) so nested
//     work (subtasks, parallel branches) can mutate freely without leaking
//     changes back into the parent
type Store struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: map[string]any{}}
}

// NewStoreFrom creates a store seeded with a copy of the provided entries.
func NewStoreFrom(seed map[string]any) *Store {
	s := NewStore()
	maps.Copy(s.data, seed)
	return s
}

// Get returns the value and existence flag for a key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// GetDefault returns the value for key or def when absent.
func (s *Store) GetDefault(key string, def any) any {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

// Set stores a key/value pair.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Delete removes a key. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Keys returns the sorted key set.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Snapshot returns a copy of the current entries.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.data))
	maps.Copy(out, s.data)
	return out
}

// Fork returns an isolated copy of the store. Mutations on the fork do not
// propagate back to the receiver.
func (s *Store) Fork() *Store {
	return NewStoreFrom(s.Snapshot())
}
