// Package model defines the provider-agnostic abstractions and the dispatch
// layer for interacting with language models.
//
// Core pieces:
//   - Generator unifies streaming + non-streaming generation behind a single
//     channel-based interface
//   - Provider extends Generator with behavior hooks (connection limits,
//     retry classification, message collapsing)
//   - Model wraps a Provider with retry, per-connection-key concurrency,
//     generate caching, transcript recording and usage accounting
//   - Resolve looks up "api/model" specs against registered provider
//     factories
//
// Providers (OpenAI, Anthropic, DeepSeek) live in subpackages so higher
// layers (agents, flows, eval) remain decoupled from vendor SDKs.
package model
