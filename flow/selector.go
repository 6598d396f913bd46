package flow

// Selector determines which flow to use based on agent capabilities.
//
// The flow is selected dynamically from the agent's configuration rather
// than fixed at construction time.
type Selector struct{}

// NewSelector creates a new flow selector.
func NewSelector() *Selector { return &Selector{} }

// SelectFlow chooses the appropriate flow for the given agent.
//
// Selection logic:
//   - SingleAgentFlow for isolated agents without transfers or sub-agents
//   - MultiAgentFlow for agents with transfer capabilities or sub-agents
func (s *Selector) SelectFlow(agent FlowAgent) Flow {
	// Use simple flow for isolated agents
	if !agent.IsTransferEnabled() && len(agent.GetSubAgents()) == 0 {
		return NewSingleAgentFlow(agent)
	}
	// Use auto flow for agents with advanced capabilities
	return NewMultiAgentFlow(agent)
}
