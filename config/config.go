// Package config loads layered configuration for probe applications:
// defaults, then a YAML file, then PROBE_-prefixed environment variables
// (PROBE_MODEL_PROVIDER -> model.provider).
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log     LogConfig     `koanf:"log"`
	Model   ModelConfig   `koanf:"model"`
	Limits  LimitsConfig  `koanf:"limits"`
	Storage StorageConfig `koanf:"storage"`
	Eval    EvalConfig    `koanf:"eval"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type ModelConfig struct {
	Provider string `koanf:"provider"` // openai, anthropic, deepseek, mock
	Name     string `koanf:"name"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
	// MaxConnections bounds concurrent provider calls (0 = provider default).
	MaxConnections int `koanf:"max_connections"`
	// MaxRetries caps generate retries (0 = retry until context deadline).
	MaxRetries int `koanf:"max_retries"`
}

// Spec returns the "provider/name" form accepted by the model registry.
func (m ModelConfig) Spec() string {
	return m.Provider + "/" + m.Name
}

type LimitsConfig struct {
	MaxModelCalls int `koanf:"max_model_calls"`
	MaxMessages   int `koanf:"max_messages"`
	MaxTokens     int `koanf:"max_tokens"`
}

type StorageConfig struct {
	// Session and Transcript select a backend: memory or sqlite.
	Session    string `koanf:"session"`
	Transcript string `koanf:"transcript"`
	// SQLitePath is the database file used by sqlite backends.
	SQLitePath string `koanf:"sqlite_path"`
}

type EvalConfig struct {
	MaxConcurrentSamples int `koanf:"max_concurrent_samples"`
}

// Load reads configuration in layers: defaults, optional YAML file at path,
// then PROBE_ environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("model.provider", "openai")
	k.Set("model.name", "gpt-4o-mini")

	k.Set("limits.max_model_calls", 100)

	k.Set("storage.session", "memory")
	k.Set("storage.transcript", "memory")
	k.Set("storage.sqlite_path", "probe.db")

	k.Set("eval.max_concurrent_samples", 4)

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (PROBE_MODEL_PROVIDER -> model.provider)
	if err := k.Load(env.Provider("PROBE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "PROBE_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
