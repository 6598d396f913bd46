package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/probelabs/probe/core"
)

func init() {
	Register("mock", func(name string, cfg GenerateConfig) (Generator, error) {
		return NewMockModel(name, "mock"), nil
	})
}

// MockModel is a lightweight in-memory Provider useful for tests & examples.
type MockModel struct {
	ProviderDefaults
	info      Info
	responses map[string]string
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// Generate implements Generator; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}
		last := req.Contents[len(req.Contents)-1]
		var inputText string
		for _, p := range last.Parts {
			if tp, ok := p.(core.TextPart); ok {
				inputText += tp.Text
			}
		}
		full := m.responses[inputText]
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}
		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{core.TextPart{Text: string(r)}},
					},
				}:
				}
			}
		}
		respCh <- Response{
			Partial: false,
			Content: core.Content{
				Role:  "assistant",
				Parts: []core.Part{core.TextPart{Text: full}},
			},
			FinishReason: "stop",
			Usage: &TokenUsage{
				PromptTokens:     len(inputText),
				CompletionTokens: len(full),
				TotalTokens:      len(inputText) + len(full),
			},
		}
	}()
	return respCh, errCh
}

// Info implements Generator.
func (m *MockModel) Info() Info { return m.info }

// ScriptedStep is one canned turn of a ScriptedProvider.
type ScriptedStep struct {
	Response Response
	Err      error
	// Retryable marks Err as transient so the dispatch layer retries it.
	Retryable bool
}

// ScriptedProvider replays a fixed sequence of responses and errors. Each
// Generate call consumes one step; calls past the script return an error.
// Used to exercise retry, caching and loop behavior deterministically.
type ScriptedProvider struct {
	ProviderDefaults
	info  Info
	mu    sync.Mutex
	steps []ScriptedStep
	calls int
}

// NewScriptedProvider builds a provider that replays the given steps.
func NewScriptedProvider(name string, steps ...ScriptedStep) *ScriptedProvider {
	return &ScriptedProvider{
		info:  Info{Name: name, Provider: "mock", SupportsTools: true},
		steps: steps,
	}
}

// Calls returns how many Generate calls have been consumed.
func (s *ScriptedProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Generate implements Generator.
func (s *ScriptedProvider) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if idx >= len(s.steps) {
			errCh <- fmt.Errorf("scripted provider exhausted after %d steps", len(s.steps))
			return
		}
		step := s.steps[idx]
		if step.Err != nil {
			errCh <- step.Err
			return
		}
		respCh <- step.Response
	}()
	return respCh, errCh
}

// Info implements Generator.
func (s *ScriptedProvider) Info() Info { return s.info }

// ShouldRetry implements Provider; an error is retryable when the step that
// produced it was marked Retryable.
func (s *ScriptedProvider) ShouldRetry(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, step := range s.steps {
		if step.Err != nil && step.Err == err && step.Retryable {
			return true
		}
	}
	return false
}
