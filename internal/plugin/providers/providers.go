// Package providers builds the configured capability providers and
// installs them on a runtime.
package providers

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/copyleftdev/sigmos/internal/cli/config"
	"github.com/copyleftdev/sigmos/internal/plugin"
	"github.com/copyleftdev/sigmos/internal/plugin/builtin"
	"github.com/copyleftdev/sigmos/internal/plugin/cache"
	"github.com/copyleftdev/sigmos/internal/plugin/js"
	"github.com/copyleftdev/sigmos/internal/plugin/mcp"
	"github.com/copyleftdev/sigmos/internal/plugin/rest"
	"github.com/copyleftdev/sigmos/internal/plugin/schedule"
	"github.com/copyleftdev/sigmos/internal/plugin/sqldb"
)

// Registrar is satisfied by *runtime.Runtime.
type Registrar interface {
	RegisterPlugin(p plugin.Plugin, aliases ...string) error
}

// Build creates the builtin provider followed by every enabled provider,
// in the order they are listed.
func Build(cfg config.PluginsConfig, logger *zap.Logger) ([]plugin.Plugin, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	plugins := []plugin.Plugin{builtin.New(builtin.WithLogger(logger.Named("builtin")))}
	for _, name := range cfg.Enabled {
		p, err := build(name, cfg, logger.Named(name))
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}

// Entry describes one configured provider.
type Entry struct {
	Metadata     plugin.Metadata     `json:"metadata"`
	Capabilities plugin.Capabilities `json:"capabilities"`
}

// Catalog describes the configured providers without initializing them.
func Catalog(cfg config.PluginsConfig) ([]Entry, error) {
	plugins, err := Build(cfg, nil)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(plugins))
	for i, p := range plugins {
		entries[i].Metadata, entries[i].Capabilities = plugin.Describe(p)
	}
	return entries, nil
}

// Metadata returns the metadata of each entry.
func Metadata(entries []Entry) []plugin.Metadata {
	metadata := make([]plugin.Metadata, len(entries))
	for i, e := range entries {
		metadata[i] = e.Metadata
	}
	return metadata
}

func build(name string, cfg config.PluginsConfig, logger *zap.Logger) (plugin.Plugin, error) {
	switch name {
	case rest.DefaultName:
		return rest.New(cfg.REST)
	case mcp.DefaultName:
		return mcp.New(cfg.MCP, mcp.WithLogger(logger))
	case cache.Name:
		return cache.New(cfg.Cache), nil
	case sqldb.DefaultName:
		return sqldb.New(cfg.SQL, sqldb.WithLogger(logger))
	case js.DefaultName:
		return js.New(cfg.JS, js.WithLogger(logger))
	case schedule.Name:
		return schedule.New(), nil
	}
	return nil, fmt.Errorf("unknown plugin %q", name)
}

// Install builds the providers and registers each on r. Registration
// initializes the provider; the first failure stops installation and
// closes the failed provider and everything installed before it. The
// returned closer releases provider connections.
func Install(r Registrar, cfg config.PluginsConfig, logger *zap.Logger) (io.Closer, error) {
	plugins, err := Build(cfg, logger)
	if err != nil {
		return nil, err
	}

	installed := closers{}
	for _, p := range plugins {
		if err := r.RegisterPlugin(p); err != nil {
			// Initialize may have opened resources before failing.
			if c, ok := p.(io.Closer); ok {
				installed = append(installed, c)
			}
			_ = installed.Close()
			return nil, err
		}
		if c, ok := p.(io.Closer); ok {
			installed = append(installed, c)
		}
	}
	return installed, nil
}

type closers []io.Closer

// Close closes every provider and joins their errors.
func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
