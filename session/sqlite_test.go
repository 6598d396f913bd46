package session

import (
	"path/filepath"
	"testing"

	"github.com/probelabs/probe/core"
)

func newSQLiteTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, db, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return store
}

func TestSQLiteStore_GetCreatesLazily(t *testing.T) {
	store := newSQLiteTestStore(t)

	sess, err := store.Get("fresh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.ID != "fresh" {
		t.Fatalf("expected id 'fresh', got %q", sess.ID)
	}
	if len(sess.Events) != 0 {
		t.Fatalf("expected empty event list, got %d", len(sess.Events))
	}
}

func TestSQLiteStore_AppendEventRoundTrip(t *testing.T) {
	store := newSQLiteTestStore(t)

	ev := core.NewUserMessageEvent("run-1", "hello there")
	if err := store.AppendEvent("s1", ev); err != nil {
		t.Fatalf("append event: %v", err)
	}
	resp := core.NewEvent("run-1", "assistant")
	resp.Content = &core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: "hi"}}}
	if err := store.AppendEvent("s1", resp); err != nil {
		t.Fatalf("append event: %v", err)
	}

	sess, err := store.Get("s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(sess.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(sess.Events))
	}
	if sess.Events[0].Content.Text() != "hello there" {
		t.Fatalf("unexpected first event text: %q", sess.Events[0].Content.Text())
	}
	if sess.Events[1].Author != "assistant" {
		t.Fatalf("unexpected second event author: %q", sess.Events[1].Author)
	}
}

func TestSQLiteStore_ApplyDelta(t *testing.T) {
	store := newSQLiteTestStore(t)

	if err := store.ApplyDelta("s1", map[string]any{"counter": float64(1), "name": "probe"}); err != nil {
		t.Fatalf("apply delta: %v", err)
	}
	if err := store.ApplyDelta("s1", map[string]any{"counter": float64(2)}); err != nil {
		t.Fatalf("apply delta: %v", err)
	}

	sess, err := store.Get("s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.State["counter"] != float64(2) {
		t.Fatalf("expected counter 2, got %v", sess.State["counter"])
	}
	if sess.State["name"] != "probe" {
		t.Fatalf("expected name 'probe', got %v", sess.State["name"])
	}
}

func TestSQLiteStore_CreateResets(t *testing.T) {
	store := newSQLiteTestStore(t)

	if err := store.AppendEvent("s1", core.NewUserMessageEvent("run-1", "old")); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if _, err := store.Create("s1"); err != nil {
		t.Fatalf("create session: %v", err)
	}

	sess, err := store.Get("s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(sess.Events) != 0 {
		t.Fatalf("expected reset session to have no events, got %d", len(sess.Events))
	}
}

var _ core.SessionStore = (*SQLiteStore)(nil)
