package model

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// EvalModelEnvVar names the environment variable consulted when Resolve is
// called with an empty spec.
const EvalModelEnvVar = "PROBE_EVAL_MODEL"

// Factory constructs a generator for a model name within one provider API.
type Factory func(name string, cfg GenerateConfig) (Generator, error)

var (
	regMu     sync.Mutex
	factories = make(map[string]Factory)
	resolved  = make(map[string]Generator)
)

// Register binds a provider API name (the part before the first "/" in a
// model spec) to a factory. Later registrations replace earlier ones.
func Register(api string, factory Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[api] = factory
}

// ResolveOptions tune model resolution.
type ResolveOptions struct {
	Config GenerateConfig
}

// Resolve turns a "api/model" spec into a Generator. Instances are memoized
// per spec+config so repeated resolution shares connection pools; mock
// models are exempt so tests always get fresh instances. An empty spec
// falls back to the PROBE_EVAL_MODEL environment variable.
func Resolve(spec string, optFns ...func(o *ResolveOptions)) (Generator, error) {
	opts := ResolveOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if spec == "" {
		spec = os.Getenv(EvalModelEnvVar)
	}
	if spec == "" {
		return nil, fmt.Errorf("no model specified and %s is not set", EvalModelEnvVar)
	}

	api, name, found := strings.Cut(spec, "/")
	if !found || api == "" || name == "" {
		return nil, fmt.Errorf("invalid model spec %q, want \"api/model\"", spec)
	}

	memoKey := spec + "|" + CacheKey(spec, opts.Config, Request{})
	memoize := api != "mock"

	regMu.Lock()
	if memoize {
		if g, ok := resolved[memoKey]; ok {
			regMu.Unlock()
			return g, nil
		}
	}
	factory, ok := factories[api]
	regMu.Unlock()
	if !ok {
		return nil, &UnknownProviderError{API: api}
	}

	g, err := factory(name, opts.Config)
	if err != nil {
		return nil, fmt.Errorf("create model %q: %w", spec, err)
	}

	if memoize {
		regMu.Lock()
		resolved[memoKey] = g
		regMu.Unlock()
	}
	return g, nil
}
