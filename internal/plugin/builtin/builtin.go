// Package builtin provides the "builtin" pseudo-object that bare identifier
// actions such as `before: noop` dispatch to.
package builtin

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/copyleftdev/sigmos/internal/compiler/ast"
	"github.com/copyleftdev/sigmos/internal/plugin"
)

// Name is the registry name of the provider.
const Name = ast.BuiltinObject

// Provider implements utility methods that need no configuration.
type Provider struct {
	plugin.State

	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	history []string
}

// Option configures the provider.
type Option func(*Provider)

// WithLogger routes the log method to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock replaces the time source used by now.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// New creates the builtin provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements plugin.Plugin
func (p *Provider) Name() string {
	return Name
}

// Initialize implements plugin.Plugin
func (p *Provider) Initialize() error {
	p.MarkInitialized()
	return nil
}

// Metadata implements plugin.Describer
func (p *Provider) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        Name,
		Version:     "1.0.0",
		Description: "Utility actions available without configuration",
		Author:      "SIGMOS",
		Methods:     []string{"noop", "log", "echo", "now", "uuid", "env", "calls"},
	}
}

// Capabilities implements plugin.Describer
func (p *Provider) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{}
}

// Execute implements plugin.Plugin
func (p *Provider) Execute(method string, args map[string]any) (any, error) {
	if err := p.CheckInitialized(Name); err != nil {
		return nil, err
	}
	a := plugin.NewArgs(Name, method, args)

	switch method {
	case "noop":
		p.record(method)
		return nil, nil

	case "log":
		message, err := a.String("message", 0)
		if err != nil {
			return nil, err
		}
		level, err := a.OptionalString("level", 1, "info")
		if err != nil {
			return nil, err
		}
		p.record(method)
		switch level {
		case "debug":
			p.logger.Debug(message)
		case "warn":
			p.logger.Warn(message)
		case "error":
			p.logger.Error(message)
		default:
			p.logger.Info(message)
		}
		return message, nil

	case "echo":
		p.record(method)
		return a.Raw("value", 0), nil

	case "now":
		p.record(method)
		return p.now().UTC().Format(time.RFC3339), nil

	case "uuid":
		p.record(method)
		return uuid.NewString(), nil

	case "env":
		name, err := a.String("name", 0)
		if err != nil {
			return nil, err
		}
		p.record(method)
		value, ok := os.LookupEnv(name)
		if !ok {
			return a.Raw("default", 1), nil
		}
		return value, nil

	case "calls":
		p.mu.Lock()
		defer p.mu.Unlock()
		out := make([]any, len(p.history))
		for i, name := range p.history {
			out[i] = name
		}
		return out, nil
	}

	return nil, plugin.MethodNotFound(Name, method)
}

func (p *Provider) record(method string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, method)
}
