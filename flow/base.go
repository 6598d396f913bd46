package flow

import (
	"fmt"

	"github.com/probelabs/probe/core"
	"github.com/probelabs/probe/model"
	"github.com/probelabs/probe/tool"
)

// BaseFlow is a minimal single-agent flow implementation that supports a
// request -> LLM -> (optional tool loop) cycle with pluggable pre/post processors.
type BaseFlow struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	executor           FunctionExecutor
}

// NewBaseFlow creates a new basic single-agent flow.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:              agent,
		requestProcessors:  []RequestProcessor{},
		responseProcessors: []ResponseProcessor{},
		executor:           NewParallelFunctionExecutor(FunctionExecutorConfig{PreserveOrder: true}),
	}
}

// AddRequestProcessor appends a request processor; order of registration defines execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor executed after each model chunk.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// SetFunctionExecutor replaces the default tool call executor. Useful for
// custom parallelism limits or approval gating.
func (f *BaseFlow) SetFunctionExecutor(executor FunctionExecutor) {
	if executor != nil {
		f.executor = executor
	}
}

// Execute launches the flow asynchronously and returns a channel of Events.
// The channel is closed when a final response is emitted or an unrecoverable
// error occurs. Callers should range over the returned channel.
func (f *BaseFlow) Execute(runCtx *core.RunContext) (<-chan core.Event, error) {
	eventChan := make(chan core.Event, 100)

	go func() {
		defer close(eventChan)

		for {
			last := f.runOnce(runCtx, eventChan)
			if last == nil {
				break
			}
			// A requested handoff ends this agent's turn; the target agent
			// continues the conversation on the same run context.
			if target := last.Actions.TransferToAgent; target != nil && *target != "" {
				runCtx.LogInfo("flow.transfer.start", "from_agent", f.agent.GetName(), "to_agent", *target)
				if err := f.agent.TransferToAgent(runCtx, *target); err != nil {
					f.emitError(eventChan, fmt.Errorf("transfer to agent %s failed: %w", *target, err))
				}
				break
			}
			// A function response means the model gets another turn
			if len(last.GetFunctionResponses()) > 0 {
				continue
			}
			if last.IsPartial() {
				runCtx.LogWarn("flow.partial_tail", "agent", f.agent.GetName())
				break
			}
			if last.IsFinalResponse() {
				break
			}
		}
	}()

	return eventChan, nil
}

// emitError converts an internal error to a system Event.
func (f *BaseFlow) emitError(eventChan chan<- core.Event, err error) {
	ev := core.NewEvent("", "system")
	msg := err.Error()
	ev.ErrorMessage = &msg
	eventChan <- ev
}

// runOnce performs one model turn (including any tool executions) and returns
// the last emitted Event (final or intermediate). A nil return signals termination.
func (f *BaseFlow) runOnce(runCtx *core.RunContext, eventChan chan<- core.Event) *core.Event {
	// Refresh the session snapshot so request processors see the latest
	// conversation, including freshly persisted tool responses.
	if runCtx.SessionStore != nil {
		if err := runCtx.RefreshSession(); err != nil {
			runCtx.LogWarn("flow.session.refresh_failed", "error", err.Error())
		}
	}

	req := new(model.Request)

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, req, f.agent); err != nil {
			f.emitError(eventChan, fmt.Errorf("request processor %s failed: %w", processor.Name(), err))
			return nil
		}
	}

	// Build tool definitions
	tools := f.agent.GetTools()
	if f.agent.IsFunctionCallingEnabled() && len(tools) > 0 {
		for _, t := range tools {
			req.Tools = append(req.Tools, model.ToolDefinition{
				Type: "function",
				Function: model.FunctionDefinition{
					Name:        t.Name(),
					Description: t.Description(),
					Parameters:  t.Parameters(),
				},
			})
		}
		if req.ToolChoice == "" {
			req.ToolChoice = f.agent.GetToolChoice()
		}
	}

	req.Stream = f.agent.IsStreamingEnabled()

	llm := f.agent.GetLLM()
	if llm == nil {
		f.emitError(eventChan, fmt.Errorf("agent %s has no model attached", f.agent.GetName()))
		return nil
	}
	// Attach the run transcript and limits when the model supports binding
	if b, ok := llm.(model.Binder); ok {
		llm = b.Bind(runCtx.Transcript, runCtx.Limits)
	}

	respCh, errCh := llm.Generate(runCtx.Context, *req)

	var lastEvent *core.Event

loop:
	for {
		select {
		case resp, ok := <-respCh:
			if !ok {
				break loop
			}

			for _, processor := range f.responseProcessors {
				if err := processor.ProcessResponse(runCtx, &resp, f.agent); err != nil {
					f.emitError(eventChan, fmt.Errorf("response processor %s failed: %w", processor.Name(), err))
					return nil
				}
			}

			ev := core.NewEvent(runCtx.RunID, f.agent.GetName())
			ev.Content = &resp.Content
			ev.Partial = &resp.Partial

			// Mark turn complete if this is a final assistant response with no pending tool calls
			if !resp.Partial && len(ev.GetFunctionCalls()) == 0 {
				complete := true
				ev.TurnComplete = &complete

				// Save the response under the agent's output key for
				// downstream agents and scorers.
				if key := f.agent.GetOutputKey(); key != "" {
					if ev.Actions.StateDelta == nil {
						ev.Actions.StateDelta = map[string]any{}
					}
					ev.Actions.StateDelta[key] = resp.Content.Text()
				}
			}

			lastEvent = &ev

			eventChan <- ev

			// Wait for session persistence (runner sends resume after append)
			if !ev.IsPartial() && runCtx.Resume != nil {
				select {
				case <-runCtx.Context.Done():
					return lastEvent
				case <-runCtx.Resume:
				}
			}

			if fnCalls := ev.GetFunctionCalls(); len(fnCalls) > 0 {
				merged, ok := f.executeFunctionCalls(runCtx, fnCalls)
				if !ok {
					return lastEvent
				}

				lastEvent = &merged
				eventChan <- merged

				// Wait for session persistence of the tool responses
				if runCtx.Resume != nil {
					select {
					case <-runCtx.Context.Done():
						return lastEvent
					case <-runCtx.Resume:
					}
				}
			}
		case err, ok := <-errCh:
			if ok && err != nil {
				runCtx.LogError("flow.model.error", "agent", f.agent.GetName(), "error", err.Error())
				f.emitError(eventChan, err)
				return nil
			}
			break loop
		}
	}

	return lastEvent
}

// executeFunctionCalls runs all calls through the executor and merges the
// per-call response events into a single event carrying every function
// response part plus the union of staged actions. The bool result is false
// when the run context was cancelled before completion.
func (f *BaseFlow) executeFunctionCalls(runCtx *core.RunContext, fnCalls []core.FunctionCall) (core.Event, bool) {
	var collected []core.Event
	emit := func(ev core.Event) error {
		collected = append(collected, ev)
		return nil
	}

	f.executor.Execute(runCtx, f.agent, f.toolRegistry(), fnCalls, emit)

	if runCtx.Context.Err() != nil && len(collected) < len(fnCalls) {
		return core.Event{}, false
	}

	merged := core.NewEvent(runCtx.RunID, f.agent.GetName())
	content := core.Content{Role: "tool"}
	for _, ev := range collected {
		if ev.Content != nil {
			content.Parts = append(content.Parts, ev.Content.Parts...)
		}
		mergeActions(&merged.Actions, ev.Actions)
	}
	merged.Content = &content

	return merged, true
}

// toolRegistry returns the agent's tools, with the transfer tool added when
// the agent may hand off to a sub-agent. The TransferToolInjector advertises
// the tool to the model, so the executor must be able to resolve it too.
func (f *BaseFlow) toolRegistry() map[string]tool.Tool {
	registry := map[string]tool.Tool{}
	for name, t := range f.agent.GetTools() {
		registry[name] = t
	}

	if f.agent.IsTransferEnabled() && len(f.agent.GetSubAgents()) > 0 {
		transferTool := tool.NewTransferToAgentTool()
		if _, ok := registry[transferTool.Name()]; !ok {
			registry[transferTool.Name()] = transferTool
		}
	}

	return registry
}

// mergeActions folds src into dst. State deltas are unioned; for the scalar
// directives the first set value wins.
func mergeActions(dst *core.EventActions, src core.EventActions) {
	if len(src.StateDelta) > 0 {
		if dst.StateDelta == nil {
			dst.StateDelta = map[string]any{}
		}
		for k, v := range src.StateDelta {
			dst.StateDelta[k] = v
		}
	}
	if dst.TransferToAgent == nil && src.TransferToAgent != nil {
		dst.TransferToAgent = src.TransferToAgent
	}
	if dst.Escalate == nil && src.Escalate != nil {
		dst.Escalate = src.Escalate
	}
	if dst.SkipSummarization == nil && src.SkipSummarization != nil {
		dst.SkipSummarization = src.SkipSummarization
	}
}
