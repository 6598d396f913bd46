package tool

import (
	"fmt"

	"github.com/probelabs/probe/core"
)

// StoreTool exposes the sample-scoped store and agent flow control to the
// model as one multiplexed tool.
//
// It demonstrates how to use ToolContext for state management and flow
// control and gives agents a scratchpad that survives across turns.
type StoreTool struct {
	name        string
	description string
}

// NewStoreTool creates the store management tool.
//
// Supported operations:
//   - get, set, delete, keys: the sample-scoped KV scratchpad
//   - transfer_agent, escalate, skip_summarization: flow control
//   - get_session_history: summarized conversation history
func NewStoreTool() *StoreTool {
	return &StoreTool{
		name: "store",
		description: "Manages the per-sample store and agent flow control. " +
			"Supports operations: get, set, delete, keys, transfer_agent, " +
			"escalate, skip_summarization, get_session_history.",
	}
}

// Name returns the tool identifier.
func (t *StoreTool) Name() string {
	return t.name
}

// Description returns the tool description.
func (t *StoreTool) Description() string {
	return t.description
}

// Parameters returns the JSON schema for tool parameters.
func (t *StoreTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"operation": map[string]interface{}{
				"type": "string",
				"enum": []string{
					"get", "set", "delete", "keys", "transfer_agent",
					"escalate", "skip_summarization", "get_session_history",
				},
				"description": "The store operation to perform",
			},
			"key": map[string]interface{}{
				"type":        "string",
				"description": "Store key for get/set/delete operations",
			},
			"value": map[string]interface{}{
				"description": "Value for set operations (any type)",
			},
			"agent_name": map[string]interface{}{
				"type":        "string",
				"description": "Agent name for transfer_agent operation",
			},
		},
		"required": []string{"operation"},
	}
}

// Call implements the Tool interface with structured arguments.
func (t *StoreTool) Call(toolCtx *core.ToolContext, args map[string]interface{}) (interface{}, error) {
	operation, ok := args["operation"].(string)
	if !ok {
		return nil, fmt.Errorf("operation parameter is required")
	}

	switch operation {
	case "get":
		return t.handleGet(args, toolCtx)
	case "set":
		return t.handleSet(args, toolCtx)
	case "delete":
		return t.handleDelete(args, toolCtx)
	case "keys":
		return t.handleKeys(toolCtx)
	case "transfer_agent":
		return t.handleTransferAgent(args, toolCtx)
	case "escalate":
		return t.handleEscalate(toolCtx)
	case "skip_summarization":
		return t.handleSkipSummarization(toolCtx)
	case "get_session_history":
		return t.handleGetSessionHistory(toolCtx)
	default:
		return nil, fmt.Errorf("unknown operation: %s", operation)
	}
}

// handleGet retrieves a value from the store.
func (t *StoreTool) handleGet(args map[string]interface{}, toolCtx *core.ToolContext) (interface{}, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, fmt.Errorf("key parameter is required for get operation")
	}

	value, exists := toolCtx.GetState(key)
	return map[string]interface{}{
		"key":    key,
		"exists": exists,
		"value":  value,
	}, nil
}

// handleSet stages a store write.
func (t *StoreTool) handleSet(args map[string]interface{}, toolCtx *core.ToolContext) (interface{}, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, fmt.Errorf("key parameter is required for set operation")
	}

	value := args["value"] // Can be any type

	toolCtx.SetState(key, value)

	return map[string]interface{}{
		"key":     key,
		"value":   value,
		"success": true,
		"message": fmt.Sprintf("Store key '%s' set successfully", key),
	}, nil
}

// handleDelete stages a store delete (sets the key to nil).
func (t *StoreTool) handleDelete(args map[string]interface{}, toolCtx *core.ToolContext) (interface{}, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, fmt.Errorf("key parameter is required for delete operation")
	}

	toolCtx.SetState(key, nil)

	return map[string]interface{}{
		"key":     key,
		"success": true,
	}, nil
}

// handleKeys lists store keys visible to this call (committed + staged).
func (t *StoreTool) handleKeys(toolCtx *core.ToolContext) (interface{}, error) {
	keys := toolCtx.StoreSnapshot().Keys()
	return map[string]interface{}{
		"keys":  keys,
		"count": len(keys),
	}, nil
}

// handleTransferAgent initiates agent transfer.
func (t *StoreTool) handleTransferAgent(args map[string]interface{}, toolCtx *core.ToolContext) (interface{}, error) {
	agentName, ok := args["agent_name"].(string)
	if !ok {
		return nil, fmt.Errorf("agent_name parameter is required for transfer_agent operation")
	}

	toolCtx.TransferToAgent(agentName)

	return map[string]interface{}{
		"agent_name": agentName,
		"success":    true,
		"message":    fmt.Sprintf("Transfer to agent '%s' initiated", agentName),
	}, nil
}

// handleEscalate initiates escalation.
func (t *StoreTool) handleEscalate(toolCtx *core.ToolContext) (interface{}, error) {
	toolCtx.Escalate()

	return map[string]interface{}{
		"success": true,
		"message": "Escalation initiated",
	}, nil
}

// handleSkipSummarization sets the skip summarization flag.
func (t *StoreTool) handleSkipSummarization(toolCtx *core.ToolContext) (interface{}, error) {
	toolCtx.SkipSummarization()

	return map[string]interface{}{
		"success": true,
		"message": "Summarization will be skipped for this interaction",
	}, nil
}

// handleGetSessionHistory retrieves a summarized session history.
func (t *StoreTool) handleGetSessionHistory(toolCtx *core.ToolContext) (interface{}, error) {
	history := toolCtx.GetSessionHistory()

	events := make([]map[string]interface{}, len(history))
	for i, ev := range history {
		events[i] = map[string]interface{}{
			"id":          ev.ID,
			"author":      ev.Author,
			"timestamp":   ev.Timestamp,
			"has_content": ev.Content != nil,
		}
		if ev.Content != nil {
			events[i]["summary"] = summarizeParts(ev.Content.Parts)
		}
	}

	return map[string]interface{}{
		"events": events,
		"count":  len(events),
	}, nil
}

func summarizeParts(parts []core.Part) string {
	var out []string
	for _, part := range parts {
		switch p := part.(type) {
		case core.TextPart:
			preview := p.Text
			if len(preview) > 100 {
				preview = preview[:100] + "..."
			}
			out = append(out, fmt.Sprintf("text: %s", preview))
		case core.FunctionCallPart:
			out = append(out, fmt.Sprintf("function_call: %s", p.FunctionCall.Name))
		case core.FunctionResponsePart:
			out = append(out, fmt.Sprintf("function_response: %s", p.FunctionResponse.Name))
		default:
			out = append(out, "other")
		}
	}
	if len(out) == 0 {
		return ""
	}
	result := out[0]
	for _, s := range out[1:] {
		result += ", " + s
	}
	return result
}
