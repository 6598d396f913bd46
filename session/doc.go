// Package session houses concrete implementations of the core.SessionStore.
// The interface itself (and the Session struct) live in the core package
// to centralize domain contracts. Keeping only implementations here prevents
// higher level packages (agents, runner, eval) from depending on concrete
// storage.
//
// Two backends are provided: a volatile in-memory store for tests and demos,
// and a SQLite-backed store for durable sessions across process restarts.
package session
