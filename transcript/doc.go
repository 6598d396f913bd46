// Package transcript records the structured history of a run: model calls,
// tool executions, store mutations and nested subtask activity. Events may be
// recorded in a pending state and completed later, mirroring how long-running
// actions unfold. Pluggable stores persist finished transcripts (in-memory for
// tests, SQLite for durable logs).
package transcript
