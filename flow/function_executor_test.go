package flow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/probelabs/probe/core"
	"github.com/probelabs/probe/logging"
	"github.com/probelabs/probe/model"
	"github.com/probelabs/probe/session"
	"github.com/probelabs/probe/tool"
	"github.com/probelabs/probe/transcript"
)

type teMockTool struct {
	name        string
	delay       time.Duration
	result      any
	err         error
	panicMsg    any
	actionState map[string]any
	transferTo  string
	gotArgs     map[string]any
}

func (mt *teMockTool) Name() string               { return mt.name }
func (mt *teMockTool) Description() string        { return "mock tool" }
func (mt *teMockTool) Parameters() map[string]any { return map[string]any{} }
func (mt *teMockTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	mt.gotArgs = args
	if mt.delay > 0 {
		select {
		case <-time.After(mt.delay):
		case <-tc.Context().Done():
			return nil, tc.Context().Err()
		}
	}
	if mt.panicMsg != nil {
		panic(mt.panicMsg)
	}
	for k, v := range mt.actionState {
		tc.SetState(k, v)
	}
	if mt.transferTo != "" {
		tc.TransferToAgent(mt.transferTo)
	}
	return mt.result, mt.err
}

type teAgent struct {
	name  string
	tools map[string]tool.Tool
}

func (a *teAgent) GetName() string                                      { return a.name }
func (a *teAgent) GetLLM() model.Generator                              { return nil }
func (a *teAgent) GetToolChoice() string                                { return "" }
func (a *teAgent) ResolveInstructions(*core.RunContext) (string, error) { return "", nil }
func (a *teAgent) GetTools() map[string]tool.Tool                       { return a.tools }
func (a *teAgent) GetSubAgents() []FlowAgent                            { return nil }
func (a *teAgent) IsFunctionCallingEnabled() bool                       { return true }
func (a *teAgent) IsStreamingEnabled() bool                             { return false }
func (a *teAgent) IsTransferEnabled() bool                              { return true }
func (a *teAgent) GetOutputKey() string                                 { return "" }
func (a *teAgent) MaxHistoryMessages() int                              { return 50 }
func (a *teAgent) TransferToAgent(*core.RunContext, string) error       { return nil }
func (a *teAgent) ExecuteTool(tc *core.ToolContext, name, args string) (any, error) {
	impl := a.tools[name]
	argMap, err := tool.ParseArguments(args)
	if err != nil {
		return nil, err
	}
	return impl.Call(tc, argMap)
}

// helper to make run context
func newTERunContext(t *testing.T) *core.RunContext {
	t.Helper()
	ctx := context.Background()
	eventChan := make(chan core.Event, 100)
	sessStore := session.NewInMemoryStore()
	sess, _ := sessStore.Create("sess")
	userContent := core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "msg"}}}

	return core.NewRunContext(ctx, "sess", "run", core.AgentInfo{Name: "agent", Type: "test"}, userContent, nil, eventChan, nil, sess, sessStore, transcript.New("run"), logging.NoOpLogger{})
}

func TestFunctionExecutor_Single(t *testing.T) {
	a := &teAgent{name: "A", tools: map[string]tool.Tool{
		"one": &teMockTool{name: "one", result: 42},
	}}
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 4, PreserveOrder: true})
	rc := newTERunContext(t)
	fnCalls := []core.FunctionCall{{ID: "1", Name: "one", Arguments: "{}"}}
	events := make([]core.Event, 0)
	emit := func(ev core.Event) error { events = append(events, ev); return nil }
	te.Execute(rc, a, a.tools, fnCalls, emit)
	if len(events) != 1 {
		t.Fatalf("expected 1 event got %d", len(events))
	}
}

func TestFunctionExecutor_ParallelUnordered(t *testing.T) {
	a := &teAgent{name: "A", tools: map[string]tool.Tool{
		"slow": &teMockTool{name: "slow", delay: 60 * time.Millisecond, result: "s"},
		"fast": &teMockTool{name: "fast", delay: 5 * time.Millisecond, result: "f"},
	}}
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 2, PreserveOrder: false})
	rc := newTERunContext(t)
	fnCalls := []core.FunctionCall{{ID: "1", Name: "slow", Arguments: "{}"}, {ID: "2", Name: "fast", Arguments: "{}"}}
	var order []string
	emit := func(ev core.Event) error { order = append(order, ev.GetFunctionResponses()[0].Name); return nil }
	start := time.Now()
	te.Execute(rc, a, a.tools, fnCalls, emit)
	if len(order) != 2 {
		t.Fatalf("want 2 events got %d", len(order))
	}
	if order[0] != "fast" {
		t.Fatalf("expected fast first got %s", order[0])
	}
	elapsed := time.Since(start)
	if elapsed > 90*time.Millisecond {
		t.Fatalf("expected parallel speedup, elapsed=%v", elapsed)
	}
}

func TestFunctionExecutor_PreserveOrder(t *testing.T) {
	a := &teAgent{name: "A", tools: map[string]tool.Tool{
		"t1": &teMockTool{name: "t1", delay: 30 * time.Millisecond, result: 1},
		"t2": &teMockTool{name: "t2", delay: 5 * time.Millisecond, result: 2},
	}}
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 2, PreserveOrder: true})
	rc := newTERunContext(t)
	fnCalls := []core.FunctionCall{{ID: "1", Name: "t1", Arguments: "{}"}, {ID: "2", Name: "t2", Arguments: "{}"}}
	var order []string
	emit := func(ev core.Event) error { order = append(order, ev.GetFunctionResponses()[0].Name); return nil }
	te.Execute(rc, a, a.tools, fnCalls, emit)
	if order[0] != "t1" || order[1] != "t2" {
		t.Fatalf("order not preserved: %v", order)
	}
}

func TestFunctionExecutor_ErrorIsolation(t *testing.T) {
	a := &teAgent{name: "A", tools: map[string]tool.Tool{
		"ok":  &teMockTool{name: "ok", result: "fine"},
		"bad": &teMockTool{name: "bad", err: errors.New("boom")},
	}}
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 2, PreserveOrder: false})
	rc := newTERunContext(t)
	fnCalls := []core.FunctionCall{{ID: "1", Name: "ok", Arguments: "{}"}, {ID: "2", Name: "bad", Arguments: "{}"}}
	var errs int32
	emit := func(ev core.Event) error {
		if ev.GetFunctionResponses()[0].Error != "" {
			atomic.AddInt32(&errs, 1)
		}
		return nil
	}
	te.Execute(rc, a, a.tools, fnCalls, emit)
	if atomic.LoadInt32(&errs) != 1 {
		t.Fatalf("expected 1 error event got %d", errs)
	}
}

func TestFunctionExecutor_PanicRecovery(t *testing.T) {
	a := &teAgent{name: "A", tools: map[string]tool.Tool{
		"panic": &teMockTool{name: "panic", panicMsg: "boom"},
	}}
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{})
	rc := newTERunContext(t)
	fnCalls := []core.FunctionCall{{ID: "1", Name: "panic", Arguments: "{}"}}
	var got bool
	emit := func(ev core.Event) error {
		if ev.GetFunctionResponses()[0].Error != "" {
			got = true
		}
		return nil
	}
	te.Execute(rc, a, a.tools, fnCalls, emit)
	if !got {
		t.Fatalf("expected panic converted to error")
	}
}

func TestFunctionExecutor_ActionsApplied(t *testing.T) {
	a := &teAgent{name: "A", tools: map[string]tool.Tool{
		"act": &teMockTool{name: "act", actionState: map[string]any{"k": "v"}, transferTo: "next"},
	}}
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{})
	rc := newTERunContext(t)
	fnCalls := []core.FunctionCall{{ID: "1", Name: "act", Arguments: "{}"}}
	var evs []core.Event
	emit := func(ev core.Event) error { evs = append(evs, ev); return nil }
	te.Execute(rc, a, a.tools, fnCalls, emit)
	if len(evs) != 1 {
		t.Fatalf("expected 1 event got %d", len(evs))
	}
	if evs[0].Actions.StateDelta["k"] != "v" {
		t.Fatalf("state delta missing")
	}
	if evs[0].Actions.TransferToAgent == nil || *evs[0].Actions.TransferToAgent != "next" {
		t.Fatalf("transfer action missing")
	}
}

func TestFunctionExecutor_RecordsTranscript(t *testing.T) {
	a := &teAgent{name: "A", tools: map[string]tool.Tool{
		"one": &teMockTool{name: "one", result: 42},
	}}
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{})
	rc := newTERunContext(t)
	fnCalls := []core.FunctionCall{{ID: "fc1", Name: "one", Arguments: `{"x":1}`}}
	emit := func(core.Event) error { return nil }
	te.Execute(rc, a, a.tools, fnCalls, emit)

	events := rc.Transcript.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 transcript event, got %d", len(events))
	}
	tev, ok := events[0].(*transcript.ToolEvent)
	if !ok {
		t.Fatalf("expected ToolEvent, got %T", events[0])
	}
	if tev.CallID != "fc1" || tev.Function != "one" {
		t.Fatalf("unexpected tool event: %+v", tev)
	}
	if tev.Result != 42 {
		t.Fatalf("result not recorded: %v", tev.Result)
	}
	if tev.Pending {
		t.Fatal("tool event should be completed")
	}
}

type scriptedApprover struct {
	approval tool.Approval
}

func (s scriptedApprover) Approve(*core.ToolContext, string, map[string]any) (tool.Approval, error) {
	return s.approval, nil
}

func TestFunctionExecutor_ApproverReject(t *testing.T) {
	mt := &teMockTool{name: "danger", result: "ran"}
	a := &teAgent{name: "A", tools: map[string]tool.Tool{"danger": mt}}
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{
		Approver: scriptedApprover{approval: tool.Approval{Decision: tool.DecisionReject, Reason: "nope"}},
	})
	rc := newTERunContext(t)
	fnCalls := []core.FunctionCall{{ID: "1", Name: "danger", Arguments: "{}"}}
	var evs []core.Event
	emit := func(ev core.Event) error { evs = append(evs, ev); return nil }
	te.Execute(rc, a, a.tools, fnCalls, emit)

	if mt.gotArgs != nil {
		t.Fatal("rejected tool must not run")
	}
	fr := evs[0].GetFunctionResponses()[0]
	if fr.Error == "" {
		t.Fatal("expected error in function response")
	}
}

func TestFunctionExecutor_ApproverModify(t *testing.T) {
	mt := &teMockTool{name: "edit", result: "ok"}
	a := &teAgent{name: "A", tools: map[string]tool.Tool{"edit": mt}}
	te := NewParallelFunctionExecutor(FunctionExecutorConfig{
		Approver: scriptedApprover{approval: tool.Approval{Decision: tool.DecisionModify, Args: map[string]any{"cmd": "ls"}}},
	})
	rc := newTERunContext(t)
	fnCalls := []core.FunctionCall{{ID: "1", Name: "edit", Arguments: `{"cmd":"rm -rf /"}`}}
	emit := func(core.Event) error { return nil }
	te.Execute(rc, a, a.tools, fnCalls, emit)

	if mt.gotArgs["cmd"] != "ls" {
		t.Fatalf("expected modified args, got %v", mt.gotArgs)
	}
}
