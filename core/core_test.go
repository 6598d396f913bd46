package core

import (
	"context"

	"github.com/probelabs/probe/logging"
)

type mockSessionStore struct {
	sessions map[string]*Session
	applied  map[string]map[string]any
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: map[string]*Session{}, applied: map[string]map[string]any{}}
}

func (m *mockSessionStore) Get(id string) (*Session, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s := NewSession(id)
	m.sessions[id] = s
	return s, nil
}

func (m *mockSessionStore) Create(id string) (*Session, error) { return m.Get(id) }

func (m *mockSessionStore) AppendEvent(id string, ev Event) error {
	if s, ok := m.sessions[id]; ok {
		s.AddEvent(ev)
	}
	return nil
}

func (m *mockSessionStore) ApplyDelta(id string, delta map[string]any) error {
	cp := map[string]any{}
	for k, v := range delta {
		cp[k] = v
	}
	m.applied[id] = cp
	if s, ok := m.sessions[id]; ok {
		s.ApplyStateDelta(delta)
	}
	return nil
}

func newRunContextForTest() (*RunContext, chan Event) {
	store := newMockSessionStore()
	sess, _ := store.Create("test-session")
	emit := make(chan Event, 10)
	resume := make(chan struct{}, 10)
	rc := NewRunContext(
		context.Background(), "test-session", "test-run", AgentInfo{Name: "Test Agent", Type: "test"},
		NewUserContent("Test input"),
		NewLimits(0, 0, 0), emit, resume, sess, store, nil, logging.NoOpLogger{},
	)
	return rc, emit
}
