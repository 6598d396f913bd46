package transcript

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when a transcript id has no persisted events.
var ErrNotFound = errors.New("transcript not found")

// Store persists completed transcripts keyed by a run identifier.
// Implementations must be safe for concurrent use.
type Store interface {
	Save(id string, events []Event) error
	Load(id string) ([]Event, error)
	List() ([]string, error)
	Delete(id string) error
}

// InMemoryStore keeps serialized transcripts in process memory. Useful for
// tests, examples and single-process prototypes. Events are serialized on
// save so the stored copy cannot be mutated through retained pointers.
type InMemoryStore struct {
	mu          sync.RWMutex
	transcripts map[string][][]byte // id -> serialized event envelopes
}

// NewInMemoryStore returns an empty in-memory transcript store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{transcripts: make(map[string][][]byte)}
}

// Save stores (or overwrites) the serialized events for the given id.
func (s *InMemoryStore) Save(id string, events []Event) error {
	serialized := make([][]byte, 0, len(events))
	for _, ev := range events {
		raw, err := MarshalEvent(ev)
		if err != nil {
			return err
		}
		serialized = append(serialized, raw)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[id] = serialized
	return nil
}

// Load returns the decoded events for the id or ErrNotFound.
func (s *InMemoryStore) Load(id string) ([]Event, error) {
	s.mu.RLock()
	serialized, ok := s.transcripts[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	events := make([]Event, 0, len(serialized))
	for _, raw := range serialized {
		ev, err := UnmarshalEvent(raw)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// List returns the stored transcript ids. The slice is a snapshot and safe
// for caller mutation.
func (s *InMemoryStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.transcripts))
	for id := range s.transcripts {
		ids = append(ids, id)
	}
	return ids, nil
}

// Delete removes the transcript if present or returns ErrNotFound.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transcripts[id]; !ok {
		return ErrNotFound
	}
	delete(s.transcripts, id)
	return nil
}
