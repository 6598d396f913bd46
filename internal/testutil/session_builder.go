package testutil

import (
	"github.com/probelabs/probe/core"
)

// SessionBuilder assembles pre-populated sessions for tests, avoiding the
// append/mutate boilerplate of setting up conversation fixtures by hand:
//
//	sess := NewSessionBuilder("sess-1").
//		State("topic", "math").
//		Events(userEv, answerEv).
//		Build()
type SessionBuilder struct {
	id       string
	state    map[string]any
	metadata map[string]string
	events   []core.Event
}

// NewSessionBuilder starts a builder for the session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, state: map[string]any{}}
}

// State seeds a state key on the resulting session (chainable).
func (b *SessionBuilder) State(key string, val any) *SessionBuilder {
	b.state[key] = val
	return b
}

// Metadata sets a metadata entry on the resulting session (chainable).
func (b *SessionBuilder) Metadata(key, val string) *SessionBuilder {
	if b.metadata == nil {
		b.metadata = map[string]string{}
	}
	b.metadata[key] = val
	return b
}

// Event appends one event to the session history (chainable).
func (b *SessionBuilder) Event(ev core.Event) *SessionBuilder {
	b.events = append(b.events, ev)
	return b
}

// Events appends several events to the session history (chainable).
func (b *SessionBuilder) Events(evs ...core.Event) *SessionBuilder {
	b.events = append(b.events, evs...)
	return b
}

// Build materializes the session with the seeded state, metadata and history.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)
	for k, v := range b.state {
		s.State[k] = v
	}
	for k, v := range b.metadata {
		s.Metadata[k] = v
	}
	s.Events = append(s.Events, b.events...)
	return s
}
