package templates

// PluginTemplateName is the registry name of the provider scaffold.
const PluginTemplateName = "plugin"

// NewPluginTemplate returns the scaffold for a capability provider package:
// a provider implementing plugin.Plugin and plugin.Describer, its config and
// a test file.
func NewPluginTemplate() *Template {
	return &Template{
		Name:        PluginTemplateName,
		Description: "Capability provider package",
		Version:     "1.0.0",
		Variables: []*TemplateVariable{
			{
				Name:        "description",
				Description: "One-line provider description",
				Type:        VariableTypeString,
				Default:     "Custom capability provider",
				Prompt:      "Description:",
			},
			{
				Name:        "author",
				Description: "Provider author",
				Type:        VariableTypeString,
				Default:     "SIGMOS",
				Prompt:      "Author:",
			},
			{
				Name:        "network",
				Description: "Whether the provider calls remote services",
				Type:        VariableTypeConfirm,
				Default:     false,
				Prompt:      "Does the provider require network access?",
			},
			{
				Name:        "tests",
				Description: "Generate a test file",
				Type:        VariableTypeConfirm,
				Default:     true,
				Prompt:      "Generate tests?",
			},
		},
		Files: []*TemplateFile{
			{
				TargetPath: "{{snake .Name}}/{{snake .Name}}.go",
				Template:   true,
				Content:    pluginSource,
			},
			{
				TargetPath: "{{snake .Name}}/{{snake .Name}}_test.go",
				Template:   true,
				Content:    pluginTestSource,
				Condition:  "{{.Variables.tests}}",
			},
		},
	}
}

const pluginSource = `// Package {{snake .Name}} provides the "{{snake .Name}}" capability provider.
package {{snake .Name}}

import (
	"go.uber.org/zap"

	"{{.Module}}/internal/plugin"
)

// DefaultName is the registry name used when Config.Name is empty.
const DefaultName = "{{snake .Name}}"

// Config configures the provider.
type Config struct {
	Name string ` + "`mapstructure:\"name\" yaml:\"name\"`" + `
}

// DefaultConfig returns the provider defaults.
func DefaultConfig() Config {
	return Config{Name: DefaultName}
}

// Validate implements plugin.Config
func (c Config) Validate() error {
	if c.Name == "" {
		return plugin.InvalidConfiguration(DefaultName, "name cannot be empty")
	}
	return nil
}

// PluginName implements plugin.Config
func (c Config) PluginName() string {
	return c.Name
}

// Provider is the {{title .Name}} capability provider.
type Provider struct {
	plugin.State

	config Config
	logger *zap.Logger
}

// Option configures the provider.
type Option func(*Provider)

// WithLogger sets the provider logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// New creates a provider.
func New(config Config, opts ...Option) *Provider {
	p := &Provider{config: config, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements plugin.Plugin
func (p *Provider) Name() string {
	return p.config.Name
}

// Metadata implements plugin.Describer
func (p *Provider) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        p.config.Name,
		Version:     "0.1.0",
		Description: {{quote (index .Variables "description")}},
		Author:      {{quote (index .Variables "author")}},
		Methods:     []string{"echo"},
	}
}

// Capabilities implements plugin.Describer
func (p *Provider) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{RequiresNetwork: {{.Variables.network}}}
}

// Initialize implements plugin.Plugin
func (p *Provider) Initialize() error {
	if err := p.config.Validate(); err != nil {
		return err
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

	switch method {
	case "echo":
		text, err := a.String("text", 0)
		if err != nil {
			return nil, err
		}
		p.logger.Debug("echo", zap.String("text", text))
		return text, nil
	}

	return nil, plugin.MethodNotFound(p.config.Name, method)
}
`

const pluginTestSource = `package {{snake .Name}}

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"{{.Module}}/internal/plugin"
)

func TestProvider_Echo(t *testing.T) {
	p := New(DefaultConfig())
	require.NoError(t, p.Initialize())

	got, err := p.Execute("echo", map[string]any{"arg_0": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestProvider_Errors(t *testing.T) {
	p := New(DefaultConfig())

	_, err := p.Execute("echo", map[string]any{"text": "x"})
	assert.ErrorIs(t, err, plugin.ErrNotInitialized)

	require.NoError(t, p.Initialize())
	_, err = p.Execute("missing", nil)
	assert.ErrorIs(t, err, plugin.ErrMethodNotFound)
}
`
