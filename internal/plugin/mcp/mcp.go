// Package mcp provides the "mcp" capability provider: model completion,
// embedding, chat and analysis requests sent as JSON-RPC 2.0 calls to a
// model context server, or answered locally when no server is configured.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"

	"github.com/copyleftdev/sigmos/internal/plugin"
)

// DefaultName is the registry name used when none is configured.
const DefaultName = "mcp"

// EndpointLocal answers requests in-process without a server.
const EndpointLocal = "local"

// Config configures the MCP provider.
type Config struct {
	Name        string        `mapstructure:"name" yaml:"name"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Model       string        `mapstructure:"model" yaml:"model"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	Dimensions  int           `mapstructure:"dimensions" yaml:"dimensions"`
}

// DefaultConfig returns a configuration answering locally.
func DefaultConfig() Config {
	return Config{
		Name:        DefaultName,
		Endpoint:    EndpointLocal,
		Model:       "gpt-3.5-turbo",
		Timeout:     30 * time.Second,
		MaxTokens:   1000,
		Temperature: 0.7,
		Dimensions:  768,
	}
}

// PluginName implements plugin.Config
func (c Config) PluginName() string {
	return c.Name
}

// Validate implements plugin.Config
func (c Config) Validate() error {
	if c.Name == "" {
		return plugin.InvalidConfiguration(DefaultName, "name cannot be empty")
	}
	if c.Endpoint == "" {
		return plugin.InvalidConfiguration(c.Name, "endpoint cannot be empty")
	}
	if c.Model == "" {
		return plugin.InvalidConfiguration(c.Name, "model cannot be empty")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return plugin.InvalidConfiguration(c.Name, "temperature must be between 0.0 and 2.0")
	}
	if c.Timeout <= 0 {
		return plugin.InvalidConfiguration(c.Name, "timeout must be greater than 0")
	}
	if c.Dimensions <= 0 {
		return plugin.InvalidConfiguration(c.Name, "dimensions must be greater than 0")
	}
	return nil
}

// Dialer opens the transport to a server.
type Dialer func(ctx context.Context) (net.Conn, error)

// Provider sends model requests over JSON-RPC.
type Provider struct {
	plugin.State

	config Config
	dial   Dialer
	logger *zap.Logger

	mu   sync.Mutex
	conn jsonrpc2.Conn
}

// Option configures the provider.
type Option func(*Provider)

// WithDialer replaces the TCP dialer.
func WithDialer(dial Dialer) Option {
	return func(p *Provider) {
		p.dial = dial
	}
}

// WithLogger sets the provider logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New validates config and creates a provider.
func New(config Config, opts ...Option) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	p := &Provider{config: config, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	if p.dial == nil {
		addr := strings.TrimPrefix(config.Endpoint, "tcp://")
		p.dial = func(ctx context.Context) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", addr)
		}
	}
	return p, nil
}

// Name implements plugin.Plugin
func (p *Provider) Name() string {
	return p.config.Name
}

// Metadata implements plugin.Describer
func (p *Provider) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        p.config.Name,
		Version:     "1.0.0",
		Description: "Model Context Protocol integration for AI services",
		Author:      "SIGMOS",
		Methods:     []string{"complete", "embed", "chat", "analyze"},
	}
}

// Capabilities implements plugin.Describer
func (p *Provider) Capabilities() plugin.Capabilities {
	remote := p.config.Endpoint != EndpointLocal
	return plugin.Capabilities{
		SupportsAsync:   true,
		RequiresNetwork: remote,
		RequiresAuth:    p.config.APIKey != "",
	}
}

// Initialize implements plugin.Plugin. Remote endpoints are dialed once.
func (p *Provider) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.Endpoint != EndpointLocal && p.conn == nil {
		ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
		defer cancel()

		netConn, err := p.dial(ctx)
		if err != nil {
			return plugin.InitializationFailed(p.config.Name, err)
		}
		conn := jsonrpc2.NewConn(jsonrpc2.NewStream(netConn))
		conn.Go(context.Background(), jsonrpc2.MethodNotFoundHandler)
		p.conn = conn
		p.logger.Debug("mcp connected", zap.String("endpoint", p.config.Endpoint))
	}

	p.MarkInitialized()
	return nil
}

// Close closes the server connection.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

// Request is the params object of every call.
type Request struct {
	Model       string         `json:"model"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Temperature float64        `json:"temperature"`
	APIKey      string         `json:"api_key,omitempty"`
	Dimensions  int            `json:"dimensions,omitempty"`
	Arguments   map[string]any `json:"arguments"`
}

// Execute implements plugin.Plugin
func (p *Provider) Execute(method string, args map[string]any) (any, error) {
	if err := p.CheckInitialized(p.config.Name); err != nil {
		return nil, err
	}
	if err := validateArgs(p.config.Name, method, args); err != nil {
		return nil, err
	}

	req := Request{
		Model:       p.config.Model,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
		APIKey:      p.config.APIKey,
		Dimensions:  p.config.Dimensions,
		Arguments:   args,
	}

	if p.config.Endpoint == EndpointLocal {
		result, err := answer(method, req)
		if err != nil {
			return nil, plugin.ExecutionFailed(p.config.Name, method, err)
		}
		return result, nil
	}
	return p.call(method, req)
}

func (p *Provider) call(method string, req Request) (any, error) {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return nil, plugin.NotInitialized(p.config.Name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
	defer cancel()

	var result any
	if _, err := conn.Call(ctx, method, req, &result); err != nil {
		var rpcErr *jsonrpc2.Error
		if errors.As(err, &rpcErr) {
			if rpcErr.Code == jsonrpc2.MethodNotFound {
				return nil, plugin.MethodNotFound(p.config.Name, method)
			}
			return nil, plugin.ExecutionFailed(p.config.Name, method, err)
		}
		return nil, plugin.NetworkError(p.config.Name, method, err)
	}
	return result, nil
}

var requiredArgs = map[string]string{
	"complete": "prompt",
	"embed":    "text",
	"chat":     "messages",
	"analyze":  "text",
}

func validateArgs(name, method string, args map[string]any) error {
	required, ok := requiredArgs[method]
	if !ok {
		return plugin.MethodNotFound(name, method)
	}
	a := plugin.NewArgs(name, method, args)
	if required == "messages" {
		if _, ok := a.Lookup(required, 0); !ok {
			return plugin.InvalidArgument(name, method, fmt.Sprintf("missing required argument '%s'", required))
		}
		return nil
	}
	_, err := a.String(required, 0)
	return err
}

// Handler answers MCP calls in-process. It backs the local endpoint and
// can be served on any JSON-RPC connection.
func Handler(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	if _, ok := requiredArgs[req.Method()]; !ok {
		return reply(ctx, nil, jsonrpc2.ErrMethodNotFound)
	}

	var params Request
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, &jsonrpc2.Error{Code: jsonrpc2.InvalidParams, Message: err.Error()})
	}

	result, err := answer(req.Method(), params)
	if err != nil {
		return reply(ctx, nil, &jsonrpc2.Error{Code: jsonrpc2.InvalidParams, Message: err.Error()})
	}
	return reply(ctx, result, nil)
}
