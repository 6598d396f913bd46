// Package runner implements the orchestration layer for Probe.
//
// The Runner owns the lifecycle of a single run: it persists the user
// message, executes the root agent, applies event side effects to the
// session (state deltas, transfer and escalation flags), persists
// non-partial events, forwards the stream to the caller and saves the
// run transcript when configured with a transcript store.
//
// # Responsibilities (abridged)
//   - Run orchestration (async streaming + sync helper via façade)
//   - Event processing and side effect application (session state)
//   - Session history persistence and resume signalling
//   - Run lifecycle management and cancellation
//
// See runner.go for the operational implementation details.
package runner
