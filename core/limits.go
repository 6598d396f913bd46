package core

import (
	"fmt"
	"sync"
)

// LimitError reports that a run exceeded one of its configured budgets.
// Kind is one of "model_call", "message" or "token".
type LimitError struct {
	Kind  string
	Value int
	Limit int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s limit exceeded: %d (limit %d)", e.Kind, e.Value, e.Limit)
}

// Limits tracks model call, message and token budgets for a single run.
// A zero budget means unlimited. Limits is safe for concurrent use and is
// shared across the agents participating in one invocation.
type Limits struct {
	MaxModelCalls int
	MaxMessages   int
	MaxTokens     int

	mu          sync.Mutex
	modelCalls  int
	totalTokens int
}

// NewLimits constructs a Limits with the given budgets (0 = unlimited).
func NewLimits(maxModelCalls, maxMessages, maxTokens int) *Limits {
	return &Limits{MaxModelCalls: maxModelCalls, MaxMessages: maxMessages, MaxTokens: maxTokens}
}

// CountModelCall increments the model call counter and returns a LimitError
// once the budget is exceeded.
func (l *Limits) CountModelCall() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.modelCalls++
	if l.MaxModelCalls > 0 && l.modelCalls > l.MaxModelCalls {
		return &LimitError{Kind: "model_call", Value: l.modelCalls, Limit: l.MaxModelCalls}
	}

	return nil
}

// CheckMessages validates a prospective conversation length before a model
// call. The call is rejected once the history has grown to the limit.
func (l *Limits) CheckMessages(count int) error {
	if l.MaxMessages > 0 && count >= l.MaxMessages {
		return &LimitError{Kind: "message", Value: count, Limit: l.MaxMessages}
	}
	return nil
}

// RecordTokens adds usage to the running total and returns a LimitError when
// the accumulated tokens exceed the budget.
func (l *Limits) RecordTokens(tokens int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.totalTokens += tokens
	if l.MaxTokens > 0 && l.totalTokens > l.MaxTokens {
		return &LimitError{Kind: "token", Value: l.totalTokens, Limit: l.MaxTokens}
	}

	return nil
}

// ModelCalls returns the number of model calls recorded so far.
func (l *Limits) ModelCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.modelCalls
}

// TotalTokens returns the accumulated token usage.
func (l *Limits) TotalTokens() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalTokens
}

// RemainingModelCalls returns how many model calls are left, or -1 when the
// budget is unlimited.
func (l *Limits) RemainingModelCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.MaxModelCalls == 0 {
		return -1
	}

	return l.MaxModelCalls - l.modelCalls
}
