// Package plugin defines the capability interface the SIGMOS runtime calls
// into for `object.method(...)` expressions, and the registry that resolves
// provider names and aliases to instances.
package plugin

import "sync/atomic"

// Plugin is a capability provider.
//
// Initialize must be idempotent and must be called before Execute; calling
// Execute on an uninitialized provider returns ErrNotInitialized. Execute
// dispatches on the provider's own method names and returns
// ErrMethodNotFound for unknown methods.
type Plugin interface {
	Name() string
	Initialize() error
	Execute(method string, args map[string]any) (any, error)
}

// Metadata describes a registered provider.
type Metadata struct {
	Name        string   `json:"name" yaml:"name"`
	Version     string   `json:"version" yaml:"version"`
	Description string   `json:"description" yaml:"description"`
	Author      string   `json:"author" yaml:"author"`
	Methods     []string `json:"methods" yaml:"methods"`
}

// Capabilities are the flags callers may filter providers by.
type Capabilities struct {
	SupportsAsync     bool `json:"supports_async" yaml:"supports_async"`
	SupportsStreaming bool `json:"supports_streaming" yaml:"supports_streaming"`
	RequiresNetwork   bool `json:"requires_network" yaml:"requires_network"`
	RequiresAuth      bool `json:"requires_auth" yaml:"requires_auth"`
}

// Describer is implemented by providers that publish their own metadata.
type Describer interface {
	Metadata() Metadata
	Capabilities() Capabilities
}

// Config is implemented by provider configuration types.
type Config interface {
	Validate() error
	PluginName() string
}

// State tracks whether a provider finished initialization. Providers embed
// it to implement the initialize-before-execute contract.
type State struct {
	initialized atomic.Bool
}

// MarkInitialized records a successful Initialize.
func (s *State) MarkInitialized() {
	s.initialized.Store(true)
}

// Initialized reports whether Initialize has completed.
func (s *State) Initialized() bool {
	return s.initialized.Load()
}

// CheckInitialized returns ErrNotInitialized for name until Initialize succeeds.
func (s *State) CheckInitialized(name string) error {
	if !s.Initialized() {
		return NotInitialized(name)
	}
	return nil
}
