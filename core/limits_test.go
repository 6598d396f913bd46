package core

import (
	"errors"
	"testing"
)

func TestLimits_ModelCalls(t *testing.T) {
	l := NewLimits(2, 0, 0)
	if err := l.CountModelCall(); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}
	if err := l.CountModelCall(); err != nil {
		t.Fatalf("second call should pass: %v", err)
	}
	err := l.CountModelCall()
	if err == nil {
		t.Fatal("third call should exceed limit")
	}
	var le *LimitError
	if !errors.As(err, &le) || le.Kind != "model_call" {
		t.Fatalf("expected model_call LimitError, got %v", err)
	}
}

func TestLimits_Unlimited(t *testing.T) {
	l := NewLimits(0, 0, 0)
	for i := 0; i < 100; i++ {
		if err := l.CountModelCall(); err != nil {
			t.Fatalf("unlimited limiter should never fail: %v", err)
		}
	}
	if l.RemainingModelCalls() != -1 {
		t.Error("unlimited limiter should report -1 remaining")
	}
}

func TestLimits_Messages(t *testing.T) {
	l := NewLimits(0, 5, 0)
	if err := l.CheckMessages(4); err != nil {
		t.Fatalf("under limit should pass: %v", err)
	}
	err := l.CheckMessages(5)
	var le *LimitError
	if !errors.As(err, &le) || le.Kind != "message" {
		t.Fatalf("expected message LimitError at the limit, got %v", err)
	}
}

func TestLimits_Tokens(t *testing.T) {
	l := NewLimits(0, 0, 100)
	if err := l.RecordTokens(60); err != nil {
		t.Fatalf("under limit should pass: %v", err)
	}
	err := l.RecordTokens(50)
	var le *LimitError
	if !errors.As(err, &le) || le.Kind != "token" {
		t.Fatalf("expected token LimitError, got %v", err)
	}
	if l.TotalTokens() != 110 {
		t.Errorf("expected 110 total tokens, got %d", l.TotalTokens())
	}
}
