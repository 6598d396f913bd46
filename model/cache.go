package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
)

// GenerateCache memoizes final generate responses keyed on the full request
// identity (model, config, input, tools, tool choice). Safe for concurrent
// use and shareable across Model instances.
type GenerateCache struct {
	mu      sync.RWMutex
	entries map[string]Response
}

// NewGenerateCache returns an empty cache.
func NewGenerateCache() *GenerateCache {
	return &GenerateCache{entries: make(map[string]Response)}
}

// Fetch returns the cached response for the key.
func (c *GenerateCache) Fetch(key string) (Response, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	resp, ok := c.entries[key]
	return resp, ok
}

// Store records the response under the key, overwriting any prior entry.
func (c *GenerateCache) Store(key string, resp Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = resp
}

// Len returns the number of cached entries.
func (c *GenerateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops all entries.
func (c *GenerateCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Response)
}

// CacheKey derives the cache key for a request against a model. Streaming
// flags do not participate; a cached result is the same either way.
func CacheKey(modelName string, cfg GenerateConfig, req Request) string {
	payload, err := json.Marshal(struct {
		Model        string           `json:"model"`
		Config       GenerateConfig   `json:"config"`
		Instructions string           `json:"instructions"`
		Contents     any              `json:"contents"`
		Tools        []ToolDefinition `json:"tools"`
		ToolChoice   string           `json:"tool_choice"`
	}{modelName, cfg, req.Instructions, req.Contents, req.Tools, req.ToolChoice})
	if err != nil {
		// Marshal only fails on unencodable part payloads; fall back to a
		// key that never matches so the call goes to the provider.
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
