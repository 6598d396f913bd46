// Package core provides the foundational domain types, interfaces and execution
// contexts used by Probe. It defines the core abstractions for:
//
//   - Agents (units of autonomous / orchestrated work)
//   - Sessions (stateful conversational containers with event history)
//   - Stores (sample-scoped key/value scratchpads with fork semantics)
//   - Events (immutable communication + orchestration records)
//   - RunContext / ToolContext (scoped execution & tool sandboxing)
//   - Limits (model call / message / token budgets per run)
//
// The package intentionally keeps implementation concerns (persistence, model
// dispatch, concrete agents) out of scope, exposing small interfaces to
// enable custom backends and extensions.
package core
