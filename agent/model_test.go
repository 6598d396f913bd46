package agent

import (
	"context"
	"testing"
	"time"

	"github.com/probelabs/probe/core"
	"github.com/probelabs/probe/logging"
	"github.com/probelabs/probe/model"
	"github.com/probelabs/probe/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoTool struct{ gotArgs map[string]any }

func (e *echoTool) Name() string        { return "echo" }
func (e *echoTool) Description() string { return "echoes its arguments" }
func (e *echoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}

func (e *echoTool) Call(_ *core.ToolContext, args map[string]interface{}) (interface{}, error) {
	e.gotArgs = args
	return args, nil
}

func TestModelAgent_NewAgent(t *testing.T) {
	llm := model.NewMockModel("test-model", "mock")
	agent := NewModelAgent("Test Agent", llm)

	assert.NotNil(t, agent)
	assert.Equal(t, llm, agent.llm)
	assert.NotNil(t, agent.tools)
	assert.Empty(t, agent.tools)
	assert.False(t, agent.enableStreaming)
	assert.True(t, agent.enableFunctionCalling)
	assert.True(t, agent.allowTransfer)
	assert.Equal(t, 15*time.Second, agent.toolTimeout)
	assert.Equal(t, 20, agent.MaxHistoryMessages())
}

func TestModelAgent_Options(t *testing.T) {
	llm := model.NewMockModel("test-model", "mock")
	agent := NewModelAgent("Configured", llm, func(o *ModelAgentOptions) {
		o.EnableStreaming = true
		o.ToolChoice = "any"
		o.OutputKey = "answer"
		o.MaxHistoryMessages = 5
		o.AllowTransfer = false
	})

	assert.True(t, agent.IsStreamingEnabled())
	assert.Equal(t, "any", agent.GetToolChoice())
	assert.Equal(t, "answer", agent.GetOutputKey())
	assert.Equal(t, 5, agent.MaxHistoryMessages())
	assert.False(t, agent.IsTransferEnabled())
}

func TestModelAgent_ToolRegistry(t *testing.T) {
	agent := NewModelAgent("Tooling", model.NewMockModel("test-model", "mock"))
	et := &echoTool{}

	agent.RegisterTool(et)
	assert.True(t, agent.HasTool("echo"))
	assert.Equal(t, []string{"echo"}, agent.ListTools())

	got, ok := agent.GetTool("echo")
	assert.True(t, ok)
	assert.Equal(t, et, got)

	assert.True(t, agent.UnregisterTool("echo"))
	assert.False(t, agent.UnregisterTool("echo"))
	assert.False(t, agent.HasTool("echo"))
}

func TestModelAgent_ExecuteTool(t *testing.T) {
	agent := NewModelAgent("Tooling", model.NewMockModel("test-model", "mock"))
	et := &echoTool{}
	agent.RegisterTool(et)

	runCtx := newTestRunContext()
	toolCtx := core.NewToolContext(runCtx, "call-1")

	result, err := agent.ExecuteTool(toolCtx, "echo", `{"value": "hi"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"value": "hi"}, result)
	assert.Equal(t, "hi", et.gotArgs["value"])

	_, err = agent.ExecuteTool(toolCtx, "missing", `{}`)
	assert.Error(t, err)
}

func TestModelAgent_ExecuteTool_RepairsArguments(t *testing.T) {
	agent := NewModelAgent("Tooling", model.NewMockModel("test-model", "mock"))
	et := &echoTool{}
	agent.RegisterTool(et)

	runCtx := newTestRunContext()
	toolCtx := core.NewToolContext(runCtx, "call-2")

	// Trailing comma is a common model output glitch
	_, err := agent.ExecuteTool(toolCtx, "echo", `{"value": "hi",}`)
	require.NoError(t, err)
	assert.Equal(t, "hi", et.gotArgs["value"])
}

func TestModelAgent_Run_EmitsFinalResponse(t *testing.T) {
	llm := model.NewMockModel("test-model", "mock")
	llm.AddResponse("hello", "Hi there!")

	agent := NewModelAgent("Responder", llm)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sess := core.NewSession("test-session")
	emit := make(chan core.Event, 10)
	runCtx := core.NewRunContext(
		ctx, sess.ID, "test-run",
		core.AgentInfo{Name: "Responder", Type: "model"},
		core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "hello"}}},
		nil, emit, nil, sess, nil, nil, logging.NoOpLogger{},
	)

	err := agent.Run(runCtx)
	require.NoError(t, err)
	close(emit)

	var final *core.Event
	for ev := range emit {
		ev := ev
		if ev.IsFinalResponse() {
			final = &ev
		}
	}
	require.NotNil(t, final, "expected a final response event")
	assert.Equal(t, "Hi there!", final.Content.Text())
}

var _ tool.Tool = (*echoTool)(nil)
