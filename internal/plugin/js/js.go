// Package js provides the "js" capability provider: ECMAScript snippets
// and library functions evaluated with goja.
package js

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"
	"go.uber.org/zap"

	"github.com/copyleftdev/sigmos/internal/plugin"
)

// DefaultName is the registry name used when none is configured.
const DefaultName = "js"

// InterruptedMessage is the interrupt value used when a script times out.
const InterruptedMessage = "RuntimeError: timeout"

// ErrInterrupted is returned when a script exceeds its timeout.
var ErrInterrupted = errors.New(InterruptedMessage)

// Config configures the js provider.
type Config struct {
	Name      string            `mapstructure:"name" yaml:"name"`
	Libraries map[string]string `mapstructure:"libraries" yaml:"libraries"`
	Timeout   time.Duration     `mapstructure:"timeout" yaml:"timeout"`
}

// DefaultConfig returns a configuration without libraries.
func DefaultConfig() Config {
	return Config{
		Name:    DefaultName,
		Timeout: time.Second,
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
	if c.Timeout <= 0 {
		return plugin.InvalidConfiguration(c.Name, "timeout must be greater than 0")
	}
	return nil
}

// Provider evaluates scripts. Every call gets a fresh goja.Runtime.
type Provider struct {
	plugin.State

	config Config
	logger *zap.Logger

	// libraries holds the concatenated library source, checked at Initialize.
	libraries string
}

// Option configures the provider.
type Option func(*Provider)

// WithLogger sets the logger used by the script log helper.
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
		Description: "ECMAScript evaluation with goja",
		Author:      "SIGMOS",
		Methods:     []string{"eval", "call"},
	}
}

// Capabilities implements plugin.Describer
func (p *Provider) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{}
}

// Initialize implements plugin.Plugin. Libraries are compiled once to
// report syntax errors early.
func (p *Provider) Initialize() error {
	names := make([]string, 0, len(p.config.Libraries))
	for name := range p.config.Libraries {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		src := p.config.Libraries[name]
		if _, err := goja.Compile(name, src, true); err != nil {
			return plugin.InitializationFailed(p.config.Name, fmt.Errorf("library %s: %w", name, err))
		}
		b.WriteString(src)
		b.WriteString("\n")
	}
	p.libraries = b.String()

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
	case "eval":
		code, err := a.String("code", 0)
		if err != nil {
			return nil, err
		}
		bindings, err := optionalMap(a, "bindings", 1)
		if err != nil {
			return nil, err
		}
		return p.run(method, wrapSrc(code), bindings)

	case "call":
		function, err := a.String("function", 0)
		if err != nil {
			return nil, err
		}
		var callArgs []any
		if a.Raw("args", 1) != nil {
			if callArgs, err = a.List("args", 1); err != nil {
				return nil, err
			}
		}
		return p.call(method, function, callArgs)
	}

	return nil, plugin.MethodNotFound(p.config.Name, method)
}

func optionalMap(a plugin.Args, name string, index int) (map[string]any, error) {
	if a.Raw(name, index) == nil {
		return map[string]any{}, nil
	}
	return a.Map(name, index)
}

func wrapSrc(src string) string {
	return fmt.Sprintf("(function() {\n%s\n}());\n", src)
}

func (p *Provider) run(method, code string, bindings map[string]any) (any, error) {
	program, err := goja.Compile("", p.libraries+code, true)
	if err != nil {
		return nil, plugin.ExecutionFailed(p.config.Name, method, err)
	}

	vm := p.newRuntime(bindings)

	ctx, cancel := context.WithTimeout(context.Background(), p.config.Timeout)
	go func() {
		<-ctx.Done()
		// After RunProgram returns cancel() fires too, and the interrupt
		// lands on a finished runtime.
		vm.Interrupt(InterruptedMessage)
	}()

	v, err := vm.RunProgram(program)
	cancel()

	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, plugin.ExecutionFailed(p.config.Name, method, ErrInterrupted)
		}
		return nil, plugin.ExecutionFailed(p.config.Name, method, err)
	}

	return export(p.config.Name, method, v)
}

func (p *Provider) call(method, function string, args []any) (any, error) {
	if !isFunctionName(function) {
		return nil, plugin.InvalidArgument(p.config.Name, method, fmt.Sprintf("invalid function name %q", function))
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return nil, plugin.SerializationError(p.config.Name, method, err)
	}
	if args == nil {
		encoded = []byte("[]")
	}
	code := fmt.Sprintf(
		"if (typeof %[1]s !== 'function') { throw new Error('unknown function: %[1]s'); }\nreturn %[1]s.apply(null, %[2]s);",
		function, encoded)
	return p.run(method, wrapSrc(code), nil)
}

// isFunctionName accepts dotted identifier paths such as math.clamp.
func isFunctionName(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			switch {
			case r == '_' || r == '$':
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			case i > 0 && r >= '0' && r <= '9':
			default:
				return false
			}
		}
	}
	return true
}

// newRuntime installs the helper object at _.
func (p *Provider) newRuntime(bindings map[string]any) *goja.Runtime {
	vm := goja.New()

	if bindings == nil {
		bindings = map[string]any{}
	}

	env := map[string]any{
		"bindings": bindings,
	}

	env["uuid"] = func() string {
		return uuid.NewString()
	}

	env["esc"] = func(s string) string {
		return url.QueryEscape(s)
	}

	env["cronNext"] = func(expr string) string {
		c, err := cronexpr.Parse(expr)
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return c.Next(time.Now()).UTC().Format(time.RFC3339)
	}

	env["log"] = func(x goja.Value) goja.Value {
		p.logger.Info("script log", zap.Any("value", x.Export()))
		return x
	}

	_ = vm.Set("_", env)
	return vm
}

// export converts a goja value into plain runtime data.
func export(name, method string, v goja.Value) (any, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	x := v.Export()
	data, err := json.Marshal(x)
	if err != nil {
		return nil, plugin.SerializationError(name, method, err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, plugin.SerializationError(name, method, err)
	}
	return out, nil
}
