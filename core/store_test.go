package core

import "testing"

func TestStore_BasicOperations(t *testing.T) {
	s := NewStore()
	s.Set("a", 1)
	s.Set("b", "two")

	if v, ok := s.Get("a"); !ok || v.(int) != 1 {
		t.Fatalf("unexpected value for a: %v", v)
	}
	if s.GetDefault("missing", "fallback") != "fallback" {
		t.Error("expected fallback for missing key")
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", s.Len())
	}

	keys := s.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("keys should be sorted: %v", keys)
	}

	s.Delete("a")
	if _, ok := s.Get("a"); ok {
		t.Error("deleted key should be absent")
	}
	s.Delete("a") // deleting again is a no-op
}

func TestStore_ForkIsolation(t *testing.T) {
	parent := NewStoreFrom(map[string]any{"shared": "yes"})
	fork := parent.Fork()

	fork.Set("only_fork", true)
	parent.Set("only_parent", true)

	if v, _ := fork.Get("shared"); v != "yes" {
		t.Error("fork missing parent entry")
	}
	if _, ok := parent.Get("only_fork"); ok {
		t.Error("fork mutation leaked into parent")
	}
	if _, ok := fork.Get("only_parent"); ok {
		t.Error("parent mutation after fork leaked into fork")
	}
}

func TestStore_Snapshot(t *testing.T) {
	s := NewStoreFrom(map[string]any{"k": "v"})
	snap := s.Snapshot()
	snap["k"] = "changed"
	if v, _ := s.Get("k"); v != "v" {
		t.Error("snapshot mutation leaked into store")
	}
}
