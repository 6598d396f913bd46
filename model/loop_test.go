package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probelabs/probe/core"
)

func toolCallResponse(id, name, args string) Response {
	return Response{
		Content: core.Content{Role: "assistant", Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args}},
		}},
		FinishReason: "tool_calls",
	}
}

func TestGenerateLoop_ExecutesToolsUntilFinal(t *testing.T) {
	provider := NewScriptedProvider("scripted",
		ScriptedStep{Response: toolCallResponse("call-1", "weather", `{"city":"Berlin"}`)},
		ScriptedStep{Response: finalText("Sunny in Berlin")},
	)

	var executed []string
	exec := func(call core.FunctionCall) (any, error) {
		executed = append(executed, call.Name)
		return "sunny", nil
	}

	contents, final, err := GenerateLoop(context.Background(), provider, userRequest("weather in berlin?"), exec)
	require.NoError(t, err)
	assert.Equal(t, []string{"weather"}, executed)
	assert.Equal(t, "Sunny in Berlin", final.Content.Text())

	// user, assistant tool call, tool response, final assistant
	require.Len(t, contents, 4)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "assistant", contents[1].Role)
	assert.Equal(t, "tool", contents[2].Role)
	assert.Equal(t, "assistant", contents[3].Role)

	frs := contents[2].Parts[0].(core.FunctionResponsePart)
	assert.Equal(t, "call-1", frs.FunctionResponse.ID)
	assert.Equal(t, "sunny", frs.FunctionResponse.Response)
}

func TestGenerateLoop_ToolErrorFoldedIntoResponse(t *testing.T) {
	provider := NewScriptedProvider("scripted",
		ScriptedStep{Response: toolCallResponse("call-1", "broken", `{}`)},
		ScriptedStep{Response: finalText("I could not look that up")},
	)

	exec := func(call core.FunctionCall) (any, error) {
		return nil, assert.AnError
	}

	contents, final, err := GenerateLoop(context.Background(), provider, userRequest("try"), exec)
	require.NoError(t, err)
	assert.Equal(t, "I could not look that up", final.Content.Text())

	frs := contents[2].Parts[0].(core.FunctionResponsePart)
	assert.Equal(t, assert.AnError.Error(), frs.FunctionResponse.Error)
}

func TestGenerateLoop_NoExecutor(t *testing.T) {
	provider := NewScriptedProvider("scripted",
		ScriptedStep{Response: toolCallResponse("call-1", "weather", `{}`)},
	)
	_, _, err := GenerateLoop(context.Background(), provider, userRequest("hm"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no executor")
}

func TestCollect(t *testing.T) {
	respCh := make(chan Response, 3)
	errCh := make(chan error)
	respCh <- Response{Partial: true, Content: core.NewAssistantContent("p")}
	respCh <- Response{Content: core.NewAssistantContent("final")}
	close(respCh)
	close(errCh)

	resp, err := Collect(respCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, "final", resp.Content.Text())
}

func TestCollect_NoFinal(t *testing.T) {
	respCh := make(chan Response)
	errCh := make(chan error)
	close(respCh)
	close(errCh)

	_, err := Collect(respCh, errCh)
	assert.ErrorIs(t, err, ErrNoResponse)
}
