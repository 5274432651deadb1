package runtime

import (
	"errors"

	"go.uber.org/zap"

	"github.com/copyleftdev/sigmos/internal/compiler/ast"
)

// The stages in this file run outside Execute. Callers decide when events
// fire and whether constraints are enforced.

// DispatchEvent runs every handler whose trigger matches event, binding the
// handler's parameter to payload on top of the current bindings. Handlers
// run in declaration order; the first failure stops dispatch. It returns the
// number of handlers run.
func (r *Runtime) DispatchEvent(spec *ast.Spec, event ast.EventType, payload any) (int, error) {
	normalized, err := Normalize(payload)
	if err != nil {
		return 0, eventFailed(event.String(), err)
	}

	handled := 0
	for _, def := range spec.Events {
		if def.Type != event {
			continue
		}

		vars := r.ctx.Bindings()
		if def.Parameter != "" {
			vars[def.Parameter] = normalized
		}
		if _, err := r.EvaluateExpressionWithContext(def.Action.AsCall(), vars); err != nil {
			return handled, eventFailed(event.String(), err)
		}
		handled++
	}

	r.logger.Debug("event dispatched",
		zap.String("spec", spec.Name),
		zap.String("event", event.String()),
		zap.Int("handlers", handled))
	return handled, nil
}

// Update changes an input value after execution and dispatches on_change
// with a payload of {field, old, new}. Readonly fields cannot be updated.
func (r *Runtime) Update(spec *ast.Spec, name string, value any) error {
	field, ok := spec.Input(name)
	if !ok {
		return fieldError(ErrUnknownField, "EXE003", "Unknown input field: %s", name)
	}
	if field.HasModifier(ast.ModifierReadonly) {
		return fieldError(ErrReadonlyField, "EXE004", "Field %s is readonly", name)
	}

	normalized, err := Normalize(value)
	if err != nil {
		return err
	}

	old, _ := r.ctx.Variable(name)
	r.ctx.SetVariable(name, normalized)

	_, err = r.DispatchEvent(spec, ast.EventType{Kind: ast.EventOnChange}, map[string]any{
		"field": name,
		"old":   old,
		"new":   normalized,
	})
	return err
}

// CheckConstraints evaluates every assert and ensure against the current
// bindings. All constraints are checked; violations and evaluation
// failures are joined into one error.
func (r *Runtime) CheckConstraints(spec *ast.Spec) error {
	vars := r.ctx.Bindings()

	var errs []error
	for _, c := range spec.Constraints {
		value, err := r.EvaluateExpressionWithContext(c.Expression, vars)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !IsTruthy(value) {
			errs = append(errs, constraintViolated(c.Kind.String(), ast.FormatExpr(c.Expression)))
		}
	}

	if len(errs) > 0 {
		r.logger.Debug("constraints violated",
			zap.String("spec", spec.Name),
			zap.Int("violations", len(errs)))
	}
	return errors.Join(errs...)
}

// Finalize runs the finally lifecycle actions against the current bindings.
// It runs regardless of the execution state; every action runs and
// failures are joined.
func (r *Runtime) Finalize(spec *ast.Spec) error {
	vars := r.ctx.Bindings()

	var errs []error
	for _, entry := range spec.Lifecycle {
		if entry.Phase != ast.PhaseFinally {
			continue
		}
		if _, err := r.EvaluateExpressionWithContext(entry.Action.AsCall(), vars); err != nil {
			errs = append(errs, lifecycleFailed(entry.Phase.String(), err))
		}
	}
	return errors.Join(errs...)
}
