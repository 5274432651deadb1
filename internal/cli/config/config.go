// Package config loads sigmos.yaml through viper. Every setting has a
// default, and SIGMOS_* environment variables override file values
// (SIGMOS_PLUGINS_REST_BASE_URL sets plugins.rest.base_url).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/copyleftdev/sigmos/internal/logging"
	"github.com/copyleftdev/sigmos/internal/plugin/cache"
	"github.com/copyleftdev/sigmos/internal/plugin/js"
	"github.com/copyleftdev/sigmos/internal/plugin/mcp"
	"github.com/copyleftdev/sigmos/internal/plugin/rest"
	"github.com/copyleftdev/sigmos/internal/plugin/schedule"
	"github.com/copyleftdev/sigmos/internal/plugin/sqldb"
)

// FileName is the configuration file base name searched for by Load.
const FileName = "sigmos"

// Plugin names accepted in plugins.enabled.
var knownPlugins = []string{rest.DefaultName, mcp.DefaultName, cache.Name, sqldb.DefaultName, js.DefaultName, schedule.Name}

// Config represents the SIGMOS configuration
type Config struct {
	Log     logging.Config `mapstructure:"log"`
	Plugins PluginsConfig  `mapstructure:"plugins"`
	Server  ServerConfig   `mapstructure:"server"`
	History HistoryConfig  `mapstructure:"history"`

	// File is the configuration file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// PluginsConfig selects and configures capability providers. The builtin
// provider is always installed.
type PluginsConfig struct {
	Enabled []string     `mapstructure:"enabled"`
	REST    rest.Config  `mapstructure:"rest"`
	MCP     mcp.Config   `mapstructure:"mcp"`
	Cache   cache.Config `mapstructure:"cache"`
	SQL     sqldb.Config `mapstructure:"sql"`
	JS      js.Config    `mapstructure:"js"`
}

// IsEnabled reports whether the named plugin is in the enabled list.
func (p PluginsConfig) IsEnabled(name string) bool {
	for _, enabled := range p.Enabled {
		if enabled == name {
			return true
		}
	}
	return false
}

// ServerConfig represents the HTTP API configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// AuthSecret, when set, requires an HS256 bearer token on every route
	// except /health.
	AuthSecret string `mapstructure:"auth_secret"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds POST /execute per client. Zero requests disables it.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// Addr joins host and port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// HistoryConfig represents execution history storage
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Keep    int    `mapstructure:"keep"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Log: logging.DefaultConfig(),
		Plugins: PluginsConfig{
			Enabled: []string{rest.DefaultName, mcp.DefaultName, cache.Name, js.DefaultName, schedule.Name},
			REST:    rest.DefaultConfig(),
			MCP:     mcp.DefaultConfig(),
			Cache:   cache.DefaultConfig(),
			SQL:     sqldb.DefaultConfig(),
			JS:      js.DefaultConfig(),
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
			RateLimit: RateLimitConfig{
				Requests: 60,
				Window:   time.Minute,
			},
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    filepath.Join(".sigmos", "history.db"),
			Keep:    100,
		},
	}
}

// Load reads the configuration. With an empty path it searches the
// current directory and $HOME/.sigmos for sigmos.yaml and falls back to
// defaults; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	v := viper.New()

	// Defaults are registered so environment overrides apply to keys the
	// file does not mention.
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("plugins.enabled", cfg.Plugins.Enabled)
	v.SetDefault("plugins.rest.base_url", cfg.Plugins.REST.BaseURL)
	v.SetDefault("plugins.rest.auth_token", cfg.Plugins.REST.AuthToken)
	v.SetDefault("plugins.rest.jwt.secret", cfg.Plugins.REST.JWT.Secret)
	v.SetDefault("plugins.mcp.endpoint", cfg.Plugins.MCP.Endpoint)
	v.SetDefault("plugins.mcp.api_key", cfg.Plugins.MCP.APIKey)
	v.SetDefault("plugins.mcp.model", cfg.Plugins.MCP.Model)
	v.SetDefault("plugins.cache.backend", cfg.Plugins.Cache.Backend)
	v.SetDefault("plugins.cache.addr", cfg.Plugins.Cache.Addr)
	v.SetDefault("plugins.cache.password", cfg.Plugins.Cache.Password)
	v.SetDefault("plugins.sql.driver", cfg.Plugins.SQL.Driver)
	v.SetDefault("plugins.sql.dsn", cfg.Plugins.SQL.DSN)
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.auth_secret", cfg.Server.AuthSecret)
	v.SetDefault("server.rate_limit.requests", cfg.Server.RateLimit.Requests)
	v.SetDefault("server.rate_limit.window", cfg.Server.RateLimit.Window)
	v.SetDefault("history.enabled", cfg.History.Enabled)
	v.SetDefault("history.path", cfg.History.Path)
	v.SetDefault("history.keep", cfg.History.Keep)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".sigmos"))
		}
	}

	v.SetEnvPrefix("SIGMOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section and the configuration of each enabled
// plugin.
func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return err
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got: %d", c.Server.Port)
	}

	if c.Server.RateLimit.Requests < 0 {
		return fmt.Errorf("server.rate_limit.requests cannot be negative, got: %d", c.Server.RateLimit.Requests)
	}
	if c.Server.RateLimit.Requests > 0 && c.Server.RateLimit.Window <= 0 {
		return fmt.Errorf("server.rate_limit.window must be positive, got: %s", c.Server.RateLimit.Window)
	}

	if c.History.Keep < 0 {
		return fmt.Errorf("history.keep cannot be negative, got: %d", c.History.Keep)
	}
	if c.History.Enabled && c.History.Path == "" {
		return errors.New("history.path is required when history is enabled")
	}

	for _, name := range c.Plugins.Enabled {
		if err := c.validatePlugin(name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validatePlugin(name string) error {
	switch name {
	case rest.DefaultName:
		return c.Plugins.REST.Validate()
	case mcp.DefaultName:
		return c.Plugins.MCP.Validate()
	case cache.Name:
		return c.Plugins.Cache.Validate()
	case sqldb.DefaultName:
		return c.Plugins.SQL.Validate()
	case js.DefaultName:
		return c.Plugins.JS.Validate()
	case schedule.Name:
		return nil
	}
	return fmt.Errorf("plugins.enabled: unknown plugin %q (known: %s)", name, strings.Join(knownPlugins, ", "))
}

// KnownPlugins lists the plugin names accepted in plugins.enabled.
func KnownPlugins() []string {
	return append([]string(nil), knownPlugins...)
}
