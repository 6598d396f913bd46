package tool

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/probelabs/probe/core"
	"github.com/probelabs/probe/internal/util"
	"github.com/probelabs/probe/logging"
)

// -------------------- Schema & Validation Tests --------------------

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
}

func TestCreateSchema(t *testing.T) {
	schema := util.CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	assert.True(t, ok)
	// Properties present
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	// Required only includes non-pointer, non-omitempty exported fields
	req, _ := schema["required"].([]string)
	if req == nil { // reflection may produce []any
		ifaceReq, _ := schema["required"].([]any)
		for _, v := range ifaceReq {
			req = append(req, v.(string))
		}
	}
	assert.ElementsMatch(t, []string{"a"}, req)
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		// Use []any to mirror possible JSON decoded schema shape
		"required": []any{"x"},
	}

	// Success
	err := util.ValidateParameters(map[string]any{"x": 5}, schema)
	assert.NoError(t, err)

	// Missing required
	err = util.ValidateParameters(map[string]any{}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Equal(t, "x", vErr.Field)
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	// Wrong type
	err = util.ValidateParameters(map[string]any{"x": "not-int"}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Contains(t, vErr.Message, "expected type integer")
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

// -------------------- Argument Parsing Tests --------------------

func TestParseArguments(t *testing.T) {
	args, err := ParseArguments(`{"city":"Berlin","limit":3}`)
	assert.NoError(t, err)
	assert.Equal(t, "Berlin", args["city"])
	assert.Equal(t, float64(3), args["limit"])
}

func TestParseArguments_RepairsBrokenJSON(t *testing.T) {
	// trailing comma and single quotes, typical model output glitches
	args, err := ParseArguments(`{'city': 'Berlin',}`)
	assert.NoError(t, err)
	assert.Equal(t, "Berlin", args["city"])
}

func TestParseArguments_Empty(t *testing.T) {
	args, err := ParseArguments("")
	assert.NoError(t, err)
	assert.Empty(t, args)
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		a := args["a"].(float64)
		b := args["b"].(float64)
		return a + b, nil
	})

	tc := core.NewToolContext(dummyRunContext(), "fc1")
	result, err := sumTool.Call(tc, map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		// Use interface slice to match ValidateParameters implementation expectation
		"required": []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})
	tc := core.NewToolContext(dummyRunContext(), "fc2")
	_, err := tTool.Call(tc, map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	tc := core.NewToolContext(dummyRunContext(), "fc3")
	_, err := execTool.Call(tc, map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
}

type memSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: map[string]*core.Session{}}
}

func (s *memSessionStore) Get(id string) (*core.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return s.Create(id)
	}
	return sess.Clone(), nil
}

func (s *memSessionStore) Create(id string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	newSess := core.NewSession(id)
	s.sessions[id] = newSess
	return newSess.Clone(), nil
}

func (s *memSessionStore) AppendEvent(id string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = core.NewSession(id)
	}
	s.sessions[id].AddEvent(ev)
	return nil
}

func (s *memSessionStore) ApplyDelta(id string, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = core.NewSession(id)
	}
	s.sessions[id].ApplyStateDelta(delta)
	return nil
}

func dummyRunContext() *core.RunContext {
	sessStore := newMemSessionStore()

	sessionID := "sess-1"
	sess, err := sessStore.Create(sessionID)
	if err != nil {
		panic(err)
	}

	emit := make(chan core.Event, 10)
	resume := make(chan struct{}, 1)

	return core.NewRunContext(
		context.Background(), sessionID, "run-1",
		core.AgentInfo{Name: "Agent", Type: "test"}, core.Content{},
		nil, emit, resume, sess, sessStore, nil, logging.NoOpLogger{},
	)
}

func TestStoreTool_SetAndGet(t *testing.T) {
	st := NewStoreTool()
	rc := dummyRunContext()
	tc := core.NewToolContext(rc, "fc-set")

	res, err := st.Call(tc, map[string]any{"operation": "set", "key": "foo", "value": "bar"})
	assert.NoError(t, err)

	m := res.(map[string]any)
	assert.Equal(t, "foo", m["key"])
	assert.Equal(t, "bar", m["value"])
	assert.Equal(t, "bar", tc.Actions().StateDelta["foo"])

	// staged writes are visible through the same run context
	tcGet := core.NewToolContext(rc, "fc-get")
	res, err = st.Call(tcGet, map[string]any{"operation": "get", "key": "foo"})
	assert.NoError(t, err)
	gm := res.(map[string]any)
	assert.True(t, gm["exists"].(bool))
	assert.Equal(t, "bar", gm["value"])
}

func TestStoreTool_Keys(t *testing.T) {
	st := NewStoreTool()
	rc := dummyRunContext()
	tc := core.NewToolContext(rc, "fc-keys")

	_, err := st.Call(tc, map[string]any{"operation": "set", "key": "alpha", "value": 1})
	assert.NoError(t, err)

	res, err := st.Call(tc, map[string]any{"operation": "keys"})
	assert.NoError(t, err)
	km := res.(map[string]any)
	assert.Contains(t, km["keys"].([]string), "alpha")
}

func TestStoreTool_FlowControlActions(t *testing.T) {
	st := NewStoreTool()
	rc := dummyRunContext()
	tc := core.NewToolContext(rc, "fc-flow")

	// escalate
	_, err := st.Call(tc, map[string]any{"operation": "escalate"})
	assert.NoError(t, err)
	assert.NotNil(t, tc.Actions().Escalate)
	assert.True(t, *tc.Actions().Escalate)

	// transfer_agent
	tc2 := core.NewToolContext(rc, "fc-transfer")
	_, err = st.Call(tc2, map[string]any{"operation": "transfer_agent", "agent_name": "NextAgent"})
	assert.NoError(t, err)
	assert.NotNil(t, tc2.Actions().TransferToAgent)
	assert.Equal(t, "NextAgent", *tc2.Actions().TransferToAgent)

	// skip_summarization
	tc3 := core.NewToolContext(rc, "fc-skip")
	_, err = st.Call(tc3, map[string]any{"operation": "skip_summarization"})
	assert.NoError(t, err)
	assert.NotNil(t, tc3.Actions().SkipSummarization)
	assert.True(t, *tc3.Actions().SkipSummarization)
}

func TestTransferToAgentTool(t *testing.T) {
	tr := NewTransferToAgentTool()
	tc := core.NewToolContext(dummyRunContext(), "fc-xfer")

	_, err := tr.Call(tc, map[string]any{"agent": "researcher"})
	assert.NoError(t, err)
	assert.NotNil(t, tc.Actions().TransferToAgent)
	assert.Equal(t, "researcher", *tc.Actions().TransferToAgent)

	_, err = tr.Call(tc, map[string]any{})
	assert.Error(t, err)
}

// -------------------- Approver Tests --------------------

func TestAutoApprover(t *testing.T) {
	approval, err := AutoApprover{}.Approve(nil, "anything", nil)
	assert.NoError(t, err)
	assert.Equal(t, DecisionApprove, approval.Decision)
}

func TestConsoleApprover(t *testing.T) {
	var out bytes.Buffer
	a := &ConsoleApprover{In: strings.NewReader("r\nnot allowed\n"), Out: &out}
	approval, err := a.Approve(nil, "shell", map[string]any{"cmd": "rm -rf /"})
	assert.NoError(t, err)
	assert.Equal(t, DecisionReject, approval.Decision)
	assert.Equal(t, "not allowed", approval.Reason)
	assert.Contains(t, out.String(), "shell")

	a = &ConsoleApprover{In: strings.NewReader("e\n{\"cmd\":\"ls\"}\n"), Out: &out}
	approval, err = a.Approve(nil, "shell", map[string]any{"cmd": "rm -rf /"})
	assert.NoError(t, err)
	assert.Equal(t, DecisionModify, approval.Decision)
	assert.Equal(t, "ls", approval.Args["cmd"])
}

// -------------------- ToolError Formatting --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}
