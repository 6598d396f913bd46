package model

// DefaultMaxConnections bounds concurrent calls per connection key when
// neither the provider nor the config says otherwise.
const DefaultMaxConnections = 10

// Provider is a Generator with behavior hooks consulted by the Model
// wrapper. Adapters embed ProviderDefaults and override what they need.
type Provider interface {
	Generator

	// MaxConnections returns the default concurrent connection limit for
	// this provider. Overridable per call via GenerateConfig.
	MaxConnections() int

	// ConnectionKey groups providers that share a connection pool. All
	// Model instances with the same key share one semaphore.
	ConnectionKey() string

	// ShouldRetry reports whether a generate error is transient (rate
	// limit, overloaded, transport) and worth retrying.
	ShouldRetry(err error) bool

	// CollapseUserMessages reports whether consecutive user messages must
	// be folded into one before dispatch.
	CollapseUserMessages() bool

	// CollapseAssistantMessages reports whether consecutive assistant
	// messages must be folded into one before dispatch.
	CollapseAssistantMessages() bool
}

// ProviderDefaults supplies the neutral hook implementations.
type ProviderDefaults struct{}

// MaxConnections implements Provider.
func (ProviderDefaults) MaxConnections() int { return DefaultMaxConnections }

// ConnectionKey implements Provider.
func (ProviderDefaults) ConnectionKey() string { return "default" }

// ShouldRetry implements Provider.
func (ProviderDefaults) ShouldRetry(error) bool { return false }

// CollapseUserMessages implements Provider.
func (ProviderDefaults) CollapseUserMessages() bool { return false }

// CollapseAssistantMessages implements Provider.
func (ProviderDefaults) CollapseAssistantMessages() bool { return false }
