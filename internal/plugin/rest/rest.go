// Package rest provides the "rest" capability provider: HTTP requests
// against a configured base URL, returning status, headers and a decoded
// body.
package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/copyleftdev/sigmos/internal/plugin"
)

// DefaultName is the registry name used when none is configured.
const DefaultName = "rest"

// JWTConfig enables minted bearer tokens.
type JWTConfig struct {
	Secret  string        `mapstructure:"secret" yaml:"secret"`
	Issuer  string        `mapstructure:"issuer" yaml:"issuer"`
	Subject string        `mapstructure:"subject" yaml:"subject"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// Config configures the REST provider.
type Config struct {
	Name           string            `mapstructure:"name" yaml:"name"`
	BaseURL        string            `mapstructure:"base_url" yaml:"base_url"`
	DefaultHeaders map[string]string `mapstructure:"default_headers" yaml:"default_headers"`
	Timeout        time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	MaxRedirects   int               `mapstructure:"max_redirects" yaml:"max_redirects"`
	VerifySSL      bool              `mapstructure:"verify_ssl" yaml:"verify_ssl"`
	AuthToken      string            `mapstructure:"auth_token" yaml:"auth_token"`
	JWT            JWTConfig         `mapstructure:"jwt" yaml:"jwt"`
	UserAgent      string            `mapstructure:"user_agent" yaml:"user_agent"`
}

// DefaultConfig returns the default REST configuration.
func DefaultConfig() Config {
	return Config{
		Name:    DefaultName,
		BaseURL: "https://api.example.com",
		DefaultHeaders: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		Timeout:      30 * time.Second,
		MaxRedirects: 5,
		VerifySSL:    true,
		UserAgent:    "SIGMOS-REST-Plugin/1.0",
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
	if c.BaseURL == "" {
		return plugin.InvalidConfiguration(c.Name, "base_url cannot be empty")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return plugin.InvalidConfiguration(c.Name, "base_url must start with http:// or https://")
	}
	if c.Timeout <= 0 {
		return plugin.InvalidConfiguration(c.Name, "timeout must be greater than 0")
	}
	if c.MaxRedirects < 0 {
		return plugin.InvalidConfiguration(c.Name, "max_redirects cannot be negative")
	}
	if c.AuthToken != "" && c.JWT.Secret != "" {
		return plugin.InvalidConfiguration(c.Name, "auth_token and jwt.secret are mutually exclusive")
	}
	if c.JWT.Secret != "" && c.JWT.TTL <= 0 {
		return plugin.InvalidConfiguration(c.Name, "jwt.ttl must be greater than 0")
	}
	return nil
}

var methods = map[string]string{
	"get":     http.MethodGet,
	"post":    http.MethodPost,
	"put":     http.MethodPut,
	"delete":  http.MethodDelete,
	"patch":   http.MethodPatch,
	"head":    http.MethodHead,
	"options": http.MethodOptions,
}

// Provider performs HTTP requests.
type Provider struct {
	plugin.State

	config Config
	client *http.Client
	signer *TokenSigner
}

// New validates config and creates a provider.
func New(config Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Provider{config: config}, nil
}

// Name implements plugin.Plugin
func (p *Provider) Name() string {
	return p.config.Name
}

// Config returns the provider configuration.
func (p *Provider) Config() Config {
	return p.config
}

// Metadata implements plugin.Describer
func (p *Provider) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        p.config.Name,
		Version:     "1.0.0",
		Description: "HTTP/REST API integration plugin",
		Author:      "SIGMOS",
		Methods:     []string{"get", "post", "put", "delete", "patch", "head", "options", "request"},
	}
}

// Capabilities implements plugin.Describer
func (p *Provider) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{
		SupportsAsync:   true,
		RequiresNetwork: true,
		RequiresAuth:    p.config.AuthToken != "" || p.config.JWT.Secret != "",
	}
}

// Initialize implements plugin.Plugin
func (p *Provider) Initialize() error {
	if p.Initialized() {
		return nil
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !p.config.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	maxRedirects := p.config.MaxRedirects
	p.client = &http.Client{
		Timeout:   p.config.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	if p.config.JWT.Secret != "" {
		p.signer = NewTokenSigner(p.config.JWT.Secret, p.config.JWT.Issuer, p.config.JWT.Subject, p.config.JWT.TTL)
	}

	p.MarkInitialized()
	return nil
}

// Execute implements plugin.Plugin
func (p *Provider) Execute(method string, args map[string]any) (any, error) {
	if err := p.CheckInitialized(p.config.Name); err != nil {
		return nil, err
	}
	a := plugin.NewArgs(p.config.Name, method, args)

	if httpMethod, ok := methods[method]; ok {
		return p.do(method, httpMethod, a, 0)
	}
	if method == "request" {
		name, err := a.String("method", 0)
		if err != nil {
			return nil, err
		}
		httpMethod, ok := methods[strings.ToLower(name)]
		if !ok {
			return nil, plugin.InvalidArgument(p.config.Name, method, fmt.Sprintf("unsupported HTTP method: %s", name))
		}
		return p.do(method, httpMethod, a, 1)
	}

	return nil, plugin.MethodNotFound(p.config.Name, method)
}

// do sends one request. The path argument is resolved against the base URL.
// Positional arguments are path, body, headers, params, starting at offset.
func (p *Provider) do(method, httpMethod string, a plugin.Args, offset int) (any, error) {
	path, err := a.OptionalString("path", offset, "")
	if err != nil {
		return nil, err
	}
	headers, err := a.Map("headers", offset+2)
	if err != nil {
		return nil, err
	}
	params, err := a.Map("params", offset+3)
	if err != nil {
		return nil, err
	}

	target := p.resolve(path, params)

	var body io.Reader
	if httpMethod == http.MethodPost || httpMethod == http.MethodPut || httpMethod == http.MethodPatch {
		if raw, ok := a.Lookup("body", offset+1); ok {
			data, err := json.Marshal(raw)
			if err != nil {
				return nil, plugin.SerializationError(p.config.Name, method, err)
			}
			body = bytes.NewReader(data)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, httpMethod, target, body)
	if err != nil {
		return nil, plugin.InvalidArgument(p.config.Name, method, err.Error())
	}

	requestID := uuid.NewString()
	for k, v := range p.config.DefaultHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", p.config.UserAgent)
	req.Header.Set("X-Request-ID", requestID)
	if err := p.authorize(req, requestID); err != nil {
		return nil, plugin.ExecutionFailed(p.config.Name, method, err)
	}
	for k, v := range headers {
		if s, ok := v.(string); ok {
			req.Header.Set(k, s)
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, plugin.NetworkError(p.config.Name, method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, plugin.NetworkError(p.config.Name, method, fmt.Errorf("failed to read response body: %w", err))
	}

	return map[string]any{
		"status":     float64(resp.StatusCode),
		"headers":    flattenHeaders(resp.Header),
		"body":       decodeBody(data),
		"url":        target,
		"method":     httpMethod,
		"request_id": requestID,
	}, nil
}

func (p *Provider) authorize(req *http.Request, requestID string) error {
	switch {
	case p.config.AuthToken != "":
		req.Header.Set("Authorization", "Bearer "+p.config.AuthToken)
	case p.signer != nil:
		token, err := p.signer.Sign(requestID)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

func (p *Provider) resolve(path string, params map[string]any) string {
	target := p.config.BaseURL
	if path != "" {
		target = strings.TrimRight(p.config.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	}

	query := url.Values{}
	for k, v := range params {
		if s, ok := v.(string); ok {
			query.Set(k, s)
		}
	}
	if len(query) == 0 {
		return target
	}
	if strings.Contains(target, "?") {
		return target + "&" + query.Encode()
	}
	return target + "?" + query.Encode()
}

func flattenHeaders(h http.Header) map[string]any {
	out := make(map[string]any, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return out
}

// decodeBody parses JSON bodies and falls back to the raw text.
func decodeBody(data []byte) any {
	if len(data) == 0 {
		return ""
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return string(data)
	}
	return decoded
}
