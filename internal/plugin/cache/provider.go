package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/copyleftdev/sigmos/internal/plugin"
)

// Name is the registry name of the provider.
const Name = "cache"

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config configures the cache provider.
type Config struct {
	Backend    string        `mapstructure:"backend" yaml:"backend"`
	Addr       string        `mapstructure:"addr" yaml:"addr"`
	Password   string        `mapstructure:"password" yaml:"password"`
	DB         int           `mapstructure:"db" yaml:"db"`
	Prefix     string        `mapstructure:"prefix" yaml:"prefix"`
	DefaultTTL time.Duration `mapstructure:"default_ttl" yaml:"default_ttl"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DefaultConfig returns an in-memory configuration.
func DefaultConfig() Config {
	store := DefaultStoreConfig()
	return Config{
		Backend:    BackendMemory,
		Addr:       "localhost:6379",
		Prefix:     store.Prefix,
		DefaultTTL: store.DefaultTTL,
		Timeout:    5 * time.Second,
	}
}

// PluginName implements plugin.Config
func (c Config) PluginName() string {
	return Name
}

// Validate implements plugin.Config
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Addr == "" {
			return plugin.InvalidConfiguration(Name, "redis backend requires addr")
		}
	default:
		return plugin.InvalidConfiguration(Name, fmt.Sprintf("unknown backend %q", c.Backend))
	}
	if c.DefaultTTL < 0 {
		return plugin.InvalidConfiguration(Name, "default_ttl cannot be negative")
	}
	if c.Timeout <= 0 {
		return plugin.InvalidConfiguration(Name, "timeout must be positive")
	}
	return nil
}

// Provider exposes get, set, delete, exists and clear over a Store.
type Provider struct {
	plugin.State

	config Config

	mu    sync.Mutex
	store Store
}

// New creates a provider; the store is opened by Initialize.
func New(config Config) *Provider {
	return &Provider{config: config}
}

// NewWithStore creates a provider over an existing store.
func NewWithStore(config Config, store Store) *Provider {
	return &Provider{config: config, store: store}
}

// Name implements plugin.Plugin
func (p *Provider) Name() string {
	return Name
}

// Metadata implements plugin.Describer
func (p *Provider) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        Name,
		Version:     "1.0.0",
		Description: "Key/value cache backed by memory or Redis",
		Author:      "SIGMOS",
		Methods:     []string{"get", "set", "delete", "exists", "clear"},
	}
}

// Capabilities implements plugin.Describer
func (p *Provider) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{RequiresNetwork: p.config.Backend == BackendRedis}
}

// Initialize implements plugin.Plugin
func (p *Provider) Initialize() error {
	if err := p.config.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.store == nil {
		storeConfig := StoreConfig{DefaultTTL: p.config.DefaultTTL, Prefix: p.config.Prefix}
		switch p.config.Backend {
		case BackendRedis:
			ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
			defer cancel()
			store, err := DialRedis(ctx, RedisOptions{
				Addr:     p.config.Addr,
				Password: p.config.Password,
				DB:       p.config.DB,
			}, storeConfig)
			if err != nil {
				return plugin.InitializationFailed(Name, err)
			}
			p.store = store
		default:
			p.store = NewMemoryStore(storeConfig, time.Minute)
		}
	}

	p.MarkInitialized()
	return nil
}

// Close releases the store.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.store == nil {
		return nil
	}
	return p.store.Close()
}

// Execute implements plugin.Plugin
func (p *Provider) Execute(method string, args map[string]any) (any, error) {
	if err := p.CheckInitialized(Name); err != nil {
		return nil, err
	}
	a := plugin.NewArgs(Name, method, args)

	ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
	defer cancel()

	switch method {
	case "get":
		return p.get(ctx, a)
	case "set":
		return p.set(ctx, a)
	case "delete":
		key, err := a.String("key", 0)
		if err != nil {
			return nil, err
		}
		if err := p.store.Delete(ctx, key); err != nil {
			return nil, p.storeError(method, err)
		}
		return true, nil
	case "exists":
		key, err := a.String("key", 0)
		if err != nil {
			return nil, err
		}
		ok, err := p.store.Exists(ctx, key)
		if err != nil {
			return nil, p.storeError(method, err)
		}
		return ok, nil
	case "clear":
		if err := p.store.Clear(ctx); err != nil {
			return nil, p.storeError(method, err)
		}
		return true, nil
	}

	return nil, plugin.MethodNotFound(Name, method)
}

// get returns the stored value, or the default argument (null when absent)
// on a miss.
func (p *Provider) get(ctx context.Context, a plugin.Args) (any, error) {
	key, err := a.String("key", 0)
	if err != nil {
		return nil, err
	}

	data, err := p.store.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return a.Raw("default", 1), nil
	}
	if err != nil {
		return nil, p.storeError("get", err)
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, plugin.SerializationError(Name, "get", err)
	}
	return value, nil
}

func (p *Provider) set(ctx context.Context, a plugin.Args) (any, error) {
	key, err := a.String("key", 0)
	if err != nil {
		return nil, err
	}
	value := a.Raw("value", 1)
	seconds, err := a.OptionalInt("ttl", 2, 0)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, plugin.SerializationError(Name, "set", err)
	}
	if err := p.store.Set(ctx, key, data, time.Duration(seconds)*time.Second); err != nil {
		return nil, p.storeError("set", err)
	}
	return value, nil
}

func (p *Provider) storeError(method string, err error) error {
	if p.config.Backend == BackendRedis {
		return plugin.NetworkError(Name, method, err)
	}
	return plugin.ExecutionFailed(Name, method, err)
}
