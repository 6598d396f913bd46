package flow

import (
	"fmt"
	"strings"

	"github.com/probelabs/probe/core"
	"github.com/probelabs/probe/model"
	"github.com/probelabs/probe/tool"
)

// TransferToolInjector injects the transfer_to_agent tool definition into the
// request when the agent may hand control to a sub-agent. The definition is
// built from the canonical tool implementation so the schema stays in sync,
// with the description extended by the names of the reachable sub-agents.
type TransferToolInjector struct{}

// NewTransferToolInjector creates a new transfer tool injector.
func NewTransferToolInjector() *TransferToolInjector { return &TransferToolInjector{} }

// Name returns the processor's identifier.
func (p *TransferToolInjector) Name() string { return "transfer_injector" }

// ProcessRequest implements RequestProcessor.
func (p *TransferToolInjector) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	if !agent.IsTransferEnabled() {
		return nil
	}

	subAgents := agent.GetSubAgents()
	if len(subAgents) == 0 {
		return nil
	}

	transferTool := tool.NewTransferToAgentTool()

	// Already present, either from the agent's own registry or a prior pass
	for _, td := range req.Tools {
		if td.Function.Name == transferTool.Name() {
			return nil
		}
	}

	names := make([]string, 0, len(subAgents))
	for _, sub := range subAgents {
		names = append(names, sub.GetName())
	}

	req.Tools = append(req.Tools, model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        transferTool.Name(),
			Description: fmt.Sprintf("%s Available agents: %s.", transferTool.Description(), strings.Join(names, ", ")),
			Parameters:  transferTool.Parameters(),
		},
	})

	runCtx.LogDebug("agent.transfer.tool_injected", "agent", agent.GetName(), "sub_agents", len(names))

	return nil
}
