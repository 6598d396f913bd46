package flow

import (
	"fmt"

	"github.com/probelabs/probe/core"
	internalutil "github.com/probelabs/probe/internal/util"
	"github.com/probelabs/probe/model"
)

// InstructionsProcessor handles system prompt and instruction processing.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest resolves the agent instructions, renders store values into
// the template and attaches the result to the request.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	runCtx.LogDebug("agent.instruction.resolved", "agent", agent.GetName(), "length", len(instructions))

	// Template data is the effective store: committed session state overlaid
	// with any staged delta from earlier tool calls this turn.
	data := runCtx.StoreSnapshot().Snapshot()
	if len(data) > 0 {
		req.Instructions, err = internalutil.RenderTemplate(instructions, data)
		if err != nil {
			return fmt.Errorf("failed to render template: %w", err)
		}
	} else {
		req.Instructions = instructions
	}

	return nil
}

// ContentsProcessor assembles the conversation contents sent to the model.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest adds the conversation history to the chat request.
//
// System messages recorded by previous agents are dropped from the history:
// after a handoff the active agent contributes its own instructions and must
// not inherit the prompt of whoever held the conversation before. Function
// call / response pairing in the remaining history is preserved as-is.
func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	var contents []core.Content

	if runCtx.Session != nil {
		events := runCtx.Session.GetConversationHistory()
		if max := agent.MaxHistoryMessages(); max > 0 && len(events) > max {
			events = events[len(events)-max:]
		}

		for _, ev := range events {
			if ev.Content == nil || len(ev.Content.Parts) == 0 {
				continue
			}
			if ev.Content.Role == "system" {
				continue
			}
			contents = append(contents, *ev.Content)
		}
	}

	if len(contents) == 0 {
		contents = append(contents, runCtx.UserContent)
	}

	req.Contents = contents
	return nil
}
