package model

import "time"

// GenerateConfig tunes a generate call. Pointer fields distinguish "unset"
// from zero so per-call overrides can be merged over a model's base config.
type GenerateConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   *int64   `json:"max_tokens,omitempty"`

	// MaxRetries bounds the number of generate attempts (including the
	// first). Zero means retry until Timeout or indefinitely.
	MaxRetries int `json:"max_retries,omitempty"`
	// Timeout bounds the total time spent on a generate call including
	// retries. Zero means no deadline.
	Timeout time.Duration `json:"timeout,omitempty"`
	// MaxConnections overrides the provider's default concurrent
	// connection limit for this model's connection key.
	MaxConnections int `json:"max_connections,omitempty"`
	// Cache enables the generate cache for this call.
	Cache bool `json:"cache,omitempty"`
}

// Merge returns a copy of base with the non-zero fields of override applied.
func (base GenerateConfig) Merge(override *GenerateConfig) GenerateConfig {
	if override == nil {
		return base
	}
	out := base
	if override.Temperature != nil {
		out.Temperature = override.Temperature
	}
	if override.TopP != nil {
		out.TopP = override.TopP
	}
	if override.MaxTokens != nil {
		out.MaxTokens = override.MaxTokens
	}
	if override.MaxRetries != 0 {
		out.MaxRetries = override.MaxRetries
	}
	if override.Timeout != 0 {
		out.Timeout = override.Timeout
	}
	if override.MaxConnections != 0 {
		out.MaxConnections = override.MaxConnections
	}
	if override.Cache {
		out.Cache = true
	}
	return out
}
