package plugin

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// entry is one registered provider. The provider instance is guarded by its
// own lock: read for Execute, write for Initialize.
type entry struct {
	mu           sync.RWMutex
	plugin       Plugin
	metadata     Metadata
	capabilities Capabilities
	enabled      bool
	initialized  bool
	aliases      []string
}

// Registry resolves provider names and aliases to instances.
//
// The name and alias tables are guarded by the registry's own mutex, which is
// never held while a provider method runs.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	aliases map[string]string
	order   []string
	logger  *zap.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		aliases: make(map[string]string),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a provider under its own name. Providers implementing
// Describer contribute their metadata and capabilities.
func (r *Registry) Register(p Plugin) error {
	return r.RegisterWithAliases(p)
}

// RegisterWithAliases adds a provider under its name and every alias. If
// the name or any alias is taken the registry is left unchanged.
func (r *Registry) RegisterWithAliases(p Plugin, aliases ...string) error {
	metadata, capabilities := Describe(p)
	return r.register(p, metadata, capabilities, aliases)
}

// RegisterWithMetadata adds a provider with explicit metadata and capabilities.
func (r *Registry) RegisterWithMetadata(p Plugin, metadata Metadata, capabilities Capabilities, aliases ...string) error {
	if metadata.Name == "" {
		metadata.Name = p.Name()
	}
	return r.register(p, metadata, capabilities, aliases)
}

func (r *Registry) register(p Plugin, metadata Metadata, capabilities Capabilities, aliases []string) error {
	name := p.Name()
	if name == "" {
		return InvalidConfiguration(name, "plugin name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.taken(name) {
		return fmt.Errorf("plugin '%s': %w", name, ErrAlreadyRegistered)
	}

	seen := map[string]bool{name: true}
	for _, alias := range aliases {
		if alias == "" {
			return InvalidConfiguration(name, "alias cannot be empty")
		}
		if seen[alias] || r.taken(alias) {
			return fmt.Errorf("alias '%s' for plugin '%s': %w", alias, name, ErrAlreadyRegistered)
		}
		seen[alias] = true
	}

	r.entries[name] = &entry{
		plugin:       p,
		metadata:     metadata,
		capabilities: capabilities,
		enabled:      true,
		aliases:      append([]string(nil), aliases...),
	}
	for _, alias := range aliases {
		r.aliases[alias] = name
	}
	r.order = append(r.order, name)

	r.logger.Debug("plugin registered", zap.String("plugin", name), zap.Strings("aliases", aliases))
	return nil
}

// Describe returns the metadata and capabilities p publishes. Providers that
// are not Describers get their name and no capabilities.
func Describe(p Plugin) (Metadata, Capabilities) {
	if d, ok := p.(Describer); ok {
		metadata := d.Metadata()
		if metadata.Name == "" {
			metadata.Name = p.Name()
		}
		return metadata, d.Capabilities()
	}
	return Metadata{Name: p.Name()}, Capabilities{}
}

// taken reports whether name is used as a provider name or alias. Callers hold r.mu.
func (r *Registry) taken(name string) bool {
	if _, ok := r.entries[name]; ok {
		return true
	}
	_, ok := r.aliases[name]
	return ok
}

// lookup resolves a name or alias. Callers hold r.mu.
func (r *Registry) lookup(name string) (*entry, bool) {
	if e, ok := r.entries[name]; ok {
		return e, true
	}
	if target, ok := r.aliases[name]; ok {
		e, ok := r.entries[target]
		return e, ok
	}
	return nil, false
}

func (r *Registry) get(name string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("plugin '%s': %w", name, ErrNotFound)
	}
	return e, nil
}

// Get returns the provider registered under name or alias.
func (r *Registry) Get(name string) (Plugin, bool) {
	e, err := r.get(name)
	if err != nil {
		return nil, false
	}
	return e.plugin, true
}

// Has reports whether name resolves to a provider.
func (r *Registry) Has(name string) bool {
	_, err := r.get(name)
	return err == nil
}

// ExecutePluginMethod dispatches method on the provider named name.
func (r *Registry) ExecutePluginMethod(name, method string, args map[string]any) (any, error) {
	r.mu.RLock()
	e, ok := r.lookup(name)
	var enabled bool
	if ok {
		enabled = e.enabled
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("plugin '%s': %w", name, ErrNotFound)
	}
	if !enabled {
		return nil, fmt.Errorf("plugin '%s' is disabled: %w", e.metadata.Name, ErrDisabled)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	result, err := e.plugin.Execute(method, args)
	if err != nil {
		r.logger.Debug("plugin method failed",
			zap.String("plugin", e.metadata.Name),
			zap.String("method", method),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

// Enable allows dispatch to the provider.
func (r *Registry) Enable(name string) error {
	return r.setEnabled(name, true)
}

// Disable stops dispatch to the provider without unregistering it.
func (r *Registry) Disable(name string) error {
	return r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.lookup(name)
	if !ok {
		return fmt.Errorf("plugin '%s': %w", name, ErrNotFound)
	}
	e.enabled = enabled
	return nil
}

// IsEnabled reports whether the provider accepts dispatch.
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.lookup(name)
	return ok && e.enabled
}

// Unregister removes a provider and every alias pointing at it.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.lookup(name)
	if !ok {
		return fmt.Errorf("plugin '%s': %w", name, ErrNotFound)
	}

	canonical := e.plugin.Name()
	delete(r.entries, canonical)
	for alias, target := range r.aliases {
		if target == canonical {
			delete(r.aliases, alias)
		}
	}
	for i, n := range r.order {
		if n == canonical {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.logger.Debug("plugin unregistered", zap.String("plugin", canonical))
	return nil
}

// Initialize initializes a single provider.
func (r *Registry) Initialize(name string) error {
	e, err := r.get(name)
	if err != nil {
		return err
	}
	return r.initialize(e)
}

func (r *Registry) initialize(e *entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}
	if err := e.plugin.Initialize(); err != nil {
		return err
	}
	e.initialized = true
	return nil
}

// InitializeAll initializes every registered provider in registration
// order. Failures are collected into *InitializationErrors; providers that
// succeeded stay initialized and are not initialized again on a later call.
func (r *Registry) InitializeAll() error {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.order))
	for _, name := range r.order {
		entries = append(entries, r.entries[name])
	}
	r.mu.RUnlock()

	failures := make(map[string]error)
	for _, e := range entries {
		if err := r.initialize(e); err != nil {
			failures[e.metadata.Name] = err
			r.logger.Warn("plugin initialization failed",
				zap.String("plugin", e.metadata.Name),
				zap.Error(err))
		}
	}

	if len(failures) > 0 {
		return &InitializationErrors{Failures: failures}
	}
	return nil
}

// PluginsByCapability returns the enabled providers whose capabilities
// satisfy pred, in registration order.
func (r *Registry) PluginsByCapability(pred func(Capabilities) bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for _, name := range r.order {
		e := r.entries[name]
		if e.enabled && pred(e.capabilities) {
			names = append(names, name)
		}
	}
	return names
}

// List returns provider names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Aliases returns the aliases registered for a provider.
func (r *Registry) Aliases(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.lookup(name)
	if !ok {
		return nil
	}
	return append([]string(nil), e.aliases...)
}

// Metadata returns the provider's metadata.
func (r *Registry) Metadata(name string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.lookup(name)
	if !ok {
		return Metadata{}, false
	}
	return e.metadata, true
}

// Capabilities returns the provider's capability flags.
func (r *Registry) Capabilities(name string) (Capabilities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.lookup(name)
	if !ok {
		return Capabilities{}, false
	}
	return e.capabilities, true
}

// Count returns the number of registered providers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}
