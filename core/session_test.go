package core

import "testing"

func TestSession_StateDeltaAndClone(t *testing.T) {
	s := NewSession("sess-1")

	s.ApplyStateDelta(map[string]any{"answer": "4", "attempts": 1})
	if v, ok := s.GetState("answer"); !ok || v.(string) != "4" {
		t.Fatalf("delta not applied: %+v", s.State)
	}

	clone := s.Clone()
	if clone == s {
		t.Fatal("clone must be an independent copy")
	}
	clone.SetState("scratch", true)
	if _, leaked := s.GetState("scratch"); leaked {
		t.Fatal("clone writes must not reach the original session")
	}
}

func TestSession_EventsAndHistory(t *testing.T) {
	s := NewSession("sess-2")
	s.AddEvent(NewMessageEvent("solver", "thinking"))
	s.AddEvent(NewUserMessageEvent("run-1", "what is 2+2?"))

	events := s.GetEvents()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	// GetEvents hands out a copy; mutating it must not touch the session.
	events[0].Author = "mutated"
	if s.GetEvents()[0].Author != "solver" {
		t.Fatal("events slice must be copied on read")
	}

	history := s.GetConversationHistory()
	var sawUser bool
	for _, ev := range history {
		if ev.Content != nil && ev.Content.Role == "user" {
			sawUser = true
		}
	}
	if !sawUser {
		t.Fatal("user message missing from conversation history")
	}
}

func TestSession_HistorySkipsPartialAndSystem(t *testing.T) {
	s := NewSession("sess-3")

	partial := true
	chunk := NewMessageEvent("solver", "th")
	chunk.Partial = &partial
	s.AddEvent(chunk)

	sys := NewEvent("run-1", "solver")
	sysContent := NewSystemContent("You are a solver.")
	sys.Content = &sysContent
	s.AddEvent(sys)

	s.AddEvent(NewMessageEvent("solver", "the answer is 4"))

	history := s.GetConversationHistory()
	if len(history) != 1 {
		t.Fatalf("expected only the complete assistant message, got %d", len(history))
	}
	if history[0].Content.Text() != "the answer is 4" {
		t.Fatalf("unexpected history entry: %+v", history[0])
	}
}
