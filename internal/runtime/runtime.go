// Package runtime executes validated SIGMOS specifications: it materializes
// inputs, evaluates computed fields and lifecycle actions, and dispatches
// plugin calls through a plugin.Registry.
package runtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/copyleftdev/sigmos/internal/compiler/ast"
	"github.com/copyleftdev/sigmos/internal/plugin"
)

// Runtime owns one execution context and the registry its expressions
// dispatch plugin calls to. Concurrent Execute calls on one Runtime are not
// ordered; use one Runtime per concurrent execution.
type Runtime struct {
	ctx      *ExecutionContext
	registry *plugin.Registry
	logger   *zap.Logger

	mu          sync.RWMutex
	inputs      map[string]any
	executionID string
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithRegistry shares an existing plugin registry.
func WithRegistry(registry *plugin.Registry) Option {
	return func(r *Runtime) {
		if registry != nil {
			r.registry = registry
		}
	}
}

// WithLogger sets the runtime logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates an idle runtime with an empty context.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		ctx:    NewExecutionContext(),
		logger: zap.NewNop(),
		inputs: make(map[string]any),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = plugin.NewRegistry(plugin.WithLogger(r.logger))
	}
	return r
}

// Context returns the runtime's execution context.
func (r *Runtime) Context() *ExecutionContext {
	return r.ctx
}

// Registry returns the plugin registry used for dispatch.
func (r *Runtime) Registry() *plugin.Registry {
	return r.registry
}

// RegisterPlugin registers and initializes a provider.
func (r *Runtime) RegisterPlugin(p plugin.Plugin, aliases ...string) error {
	if err := r.registry.RegisterWithAliases(p, aliases...); err != nil {
		return err
	}
	if err := r.registry.Initialize(p.Name()); err != nil {
		_ = r.registry.Unregister(p.Name())
		return err
	}
	return nil
}

// SetInput supplies an input value. Supplied values take precedence over
// default and generate modifiers.
func (r *Runtime) SetInput(name string, value any) error {
	normalized, err := Normalize(value)
	if err != nil {
		return fmt.Errorf("input %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.inputs[name] = normalized
	return nil
}

// SetInputs supplies several input values.
func (r *Runtime) SetInputs(values map[string]any) error {
	for name, value := range values {
		if err := r.SetInput(name, value); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) suppliedInput(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.inputs[name]
	return v, ok
}

// ExecutionID identifies the most recent Execute call.
func (r *Runtime) ExecutionID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.executionID
}

// Snapshot copies the current context together with the execution ID.
func (r *Runtime) Snapshot() Snapshot {
	s := r.ctx.snapshot()
	s.ExecutionID = r.ExecutionID()
	return s
}

// EvaluateExpression evaluates expr with no variable bindings: identifiers
// render as ${name}. Use EvaluateExpressionWithContext to bind variables.
func (r *Runtime) EvaluateExpression(expr ast.Expr) (any, error) {
	return r.EvaluateExpressionWithContext(expr, nil)
}

// EvaluateExpressionWithContext evaluates expr against vars. Unbound
// identifiers and template placeholders render as ${name}.
func (r *Runtime) EvaluateExpressionWithContext(expr ast.Expr, vars map[string]any) (any, error) {
	if vars == nil {
		vars = map[string]any{}
	}
	e := &evaluator{registry: r.registry, vars: vars}
	return e.eval(expr)
}

// Execute runs the specification: lifecycle before actions, input
// processing, computed fields, then lifecycle after actions. After actions
// see the input variables only, not computed values. The first error
// aborts execution and marks the context failed.
func (r *Runtime) Execute(spec *ast.Spec) error {
	id := uuid.NewString()
	r.mu.Lock()
	r.executionID = id
	r.mu.Unlock()

	logger := r.logger.With(
		zap.String("spec", spec.Name),
		zap.String("version", spec.Version.String()),
		zap.String("execution_id", id))

	r.ctx.start()
	logger.Debug("execution started")

	if err := r.execute(spec, logger); err != nil {
		r.ctx.fail(err.Error())
		logger.Debug("execution failed", zap.Error(err))
		return err
	}

	r.ctx.complete()
	logger.Debug("execution completed")
	return nil
}

func (r *Runtime) execute(spec *ast.Spec, logger *zap.Logger) error {
	if err := r.runLifecycle(spec, ast.PhaseBefore, r.ctx.Variables()); err != nil {
		return err
	}

	values, err := r.processInputs(spec)
	if err != nil {
		return err
	}
	r.ctx.setVariables(values)
	logger.Debug("inputs processed", zap.Int("count", len(values)))

	snapshot := r.ctx.Variables()
	computed := make(map[string]any, len(spec.Computed))
	for _, field := range spec.Computed {
		value, err := r.EvaluateExpressionWithContext(field.Expression, snapshot)
		if err != nil {
			return err
		}
		computed[field.Name] = value
	}
	r.ctx.setComputed(computed)
	logger.Debug("computed fields evaluated", zap.Int("count", len(computed)))

	return r.runLifecycle(spec, ast.PhaseAfter, r.ctx.Variables())
}

func (r *Runtime) runLifecycle(spec *ast.Spec, phase ast.LifecyclePhase, vars map[string]any) error {
	for _, entry := range spec.Lifecycle {
		if entry.Phase != phase {
			continue
		}
		if _, err := r.EvaluateExpressionWithContext(entry.Action.AsCall(), vars); err != nil {
			return err
		}
	}
	return nil
}

// processInputs computes the initial value of every input field.
func (r *Runtime) processInputs(spec *ast.Spec) (map[string]any, error) {
	values := make(map[string]any, len(spec.Inputs))
	for _, field := range spec.Inputs {
		if supplied, ok := r.suppliedInput(field.Name); ok {
			values[field.Name] = supplied
			continue
		}

		var value any
		for _, mod := range field.Modifiers {
			switch mod.Kind {
			case ast.ModifierDefault:
				v, err := r.EvaluateExpressionWithContext(mod.Default, nil)
				if err != nil {
					return nil, err
				}
				value = v
			case ast.ModifierGenerate:
				value = GeneratedValue(field.Type)
			}
		}
		values[field.Name] = value
	}
	return values, nil
}

// GeneratedValue is the placeholder a generate modifier assigns to a field
// of type t.
func GeneratedValue(t ast.TypeExpr) any {
	switch x := t.(type) {
	case *ast.PrimitiveType:
		switch x.Primitive {
		case ast.PrimitiveString:
			return "generated"
		case ast.PrimitiveInt, ast.PrimitiveFloat:
			return float64(0)
		case ast.PrimitiveBool:
			return false
		}
	case *ast.GenericType:
		switch x.Name {
		case "Array", "list":
			return []any{}
		case "Map", "map":
			return map[string]any{}
		}
	}
	return nil
}

// ParseInputValue converts raw text supplied for a field of type t into a
// runtime value. Strings are taken verbatim; collections and references are
// decoded as JSON, falling back to the raw text.
func ParseInputValue(t ast.TypeExpr, raw string) (any, error) {
	if p, ok := t.(*ast.PrimitiveType); ok {
		switch p.Primitive {
		case ast.PrimitiveString:
			return raw, nil
		case ast.PrimitiveInt, ast.PrimitiveFloat:
			n, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("expected a number for %s, got %q", t, raw)
			}
			return n, nil
		case ast.PrimitiveBool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("expected true or false for %s, got %q", t, raw)
			}
			return b, nil
		case ast.PrimitiveNull:
			return nil, nil
		}
	}

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return raw, nil
	}
	return decoded, nil
}
