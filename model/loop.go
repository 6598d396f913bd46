package model

import (
	"context"
	"fmt"

	"github.com/probelabs/probe/core"
)

// ToolExecutor resolves one tool call into a result. The error is folded
// into the function response message rather than aborting the loop, so the
// model can react to tool failures.
type ToolExecutor func(call core.FunctionCall) (any, error)

// GenerateLoop drives a generator until it stops asking for tools: call the
// model, append the assistant message, execute any tool calls, append their
// responses, repeat. Returns the grown message list and the final response.
func GenerateLoop(ctx context.Context, g Generator, req Request, exec ToolExecutor) ([]core.Content, Response, error) {
	contents := append([]core.Content{}, req.Contents...)

	for {
		if err := ctx.Err(); err != nil {
			return contents, Response{}, err
		}

		r := req
		r.Contents = contents
		r.Stream = false
		resp, err := Collect(g.Generate(ctx, r))
		if err != nil {
			return contents, Response{}, err
		}
		contents = append(contents, resp.Content)

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			return contents, resp, nil
		}
		if exec == nil {
			return contents, resp, fmt.Errorf("model requested tool %q but no executor is attached", calls[0].Name)
		}

		parts := make([]core.Part, 0, len(calls))
		for _, call := range calls {
			result, execErr := exec(call)
			fr := core.FunctionResponse{ID: call.ID, Name: call.Name, Response: result}
			if execErr != nil {
				fr.Error = execErr.Error()
			}
			parts = append(parts, core.FunctionResponsePart{FunctionResponse: fr})
		}
		contents = append(contents, core.Content{Role: "tool", Parts: parts})
	}
}
