// Package testutil provides fluent builders for events and sessions so tests
// can construct conversation fixtures without repeating struct literals.
// Test-only; nothing here is part of the public API.
package testutil
