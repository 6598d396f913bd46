// Package deepseek provides a DeepSeek provider built on the OpenAI adapter.
// DeepSeek exposes an OpenAI-compatible Chat Completions API at its own base
// URL, so only the endpoint, credentials and labeling differ.
package deepseek

import (
	"os"

	"github.com/probelabs/probe/model"
	"github.com/probelabs/probe/model/openai"
)

// BaseURL is the DeepSeek OpenAI-compatible endpoint.
const BaseURL = "https://api.deepseek.com/v1"

// APIKeyEnvVar names the environment variable holding the DeepSeek key.
const APIKeyEnvVar = "DEEPSEEK_API_KEY"

func init() {
	model.Register("deepseek", func(name string, cfg model.GenerateConfig) (model.Generator, error) {
		p := New(func(o *Options) { o.Model = name })
		return model.New(p, func(o *model.Options) { o.Config = cfg }), nil
	})
}

// Options configure the DeepSeek provider.
type Options struct {
	Model  string
	APIKey string
}

// New creates a DeepSeek provider. The API key defaults to the
// DEEPSEEK_API_KEY environment variable.
func New(optFns ...func(o *Options)) *openai.Provider {
	opts := Options{
		Model:  "deepseek-chat",
		APIKey: os.Getenv(APIKeyEnvVar),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return openai.New(func(o *openai.Options) {
		o.Model = opts.Model
		o.APIKey = opts.APIKey
		o.BaseURL = BaseURL
		o.Label = "deepseek"
		o.ConnectionKey = "deepseek"
	})
}
