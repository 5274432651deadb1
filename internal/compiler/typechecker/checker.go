package typechecker

import (
	"github.com/copyleftdev/sigmos/internal/compiler/ast"
)

// TypeChecker holds the type registries used to validate specifications.
// A TypeChecker is not safe for concurrent use.
type TypeChecker struct {
	// builtin generic types and their arity
	builtinTypes map[string]int

	// user-defined types from `types:` sections and RegisterType
	userTypes map[string]ast.TypeExpr

	// signatures for plugin methods, keyed by "object.method"
	functions map[string]FunctionSignature
}

// NewTypeChecker creates a type checker seeded with the list and map generics
func NewTypeChecker() *TypeChecker {
	return &TypeChecker{
		builtinTypes: map[string]int{
			typeList: 1,
			typeMap:  2,
		},
		userTypes: make(map[string]ast.TypeExpr),
		functions: make(map[string]FunctionSignature),
	}
}

// Check validates spec with a fresh checker.
func Check(spec *ast.Spec) error {
	return NewTypeChecker().ValidateSpec(spec)
}

// RegisterType adds a user type. It fails if name collides with a built-in or
// if the definition is not valid under the current registry.
func (tc *TypeChecker) RegisterType(name string, definition ast.TypeExpr) error {
	if _, builtin := tc.builtinTypes[name]; builtin {
		return NewBuiltinCollision(ast.SourceLocation{}, name)
	}
	if !tc.IsValidType(definition) {
		return NewUndefinedType(ast.SourceLocation{}, definition)
	}
	tc.userTypes[name] = definition
	return nil
}

// RegisterFunction declares the signature of a plugin method or extra builtin.
func (tc *TypeChecker) RegisterFunction(name string, signature FunctionSignature) {
	tc.functions[name] = signature
}

// IsValidType reports whether t resolves under the current registries
func (tc *TypeChecker) IsValidType(t ast.TypeExpr) bool {
	switch t := t.(type) {
	case *ast.PrimitiveType:
		return true
	case *ast.ReferenceType:
		if _, ok := tc.userTypes[t.Name]; ok {
			return true
		}
		_, ok := tc.builtinTypes[t.Name]
		return ok
	case *ast.GenericType:
		arity, ok := tc.builtinTypes[t.Name]
		if !ok || arity != len(t.Args) {
			return false
		}
		for _, arg := range t.Args {
			if !tc.IsValidType(arg) {
				return false
			}
		}
		return true
	}
	return false
}

// ValidateSpec checks every type declaration, input field, computed field,
// constraint and action of spec. It returns an ErrorList or nil.
//
// All user types are registered before any definition is checked so types
// and fields may refer to types declared later in the source.
func (tc *TypeChecker) ValidateSpec(spec *ast.Spec) error {
	var errs ErrorList

	seen := make(map[string]bool, len(spec.Types))
	declared := make([]*ast.TypeDef, 0, len(spec.Types))
	for _, def := range spec.Types {
		if _, builtin := tc.builtinTypes[def.Name]; builtin {
			errs = append(errs, NewBuiltinCollision(def.Loc, def.Name))
			continue
		}
		if seen[def.Name] {
			errs = append(errs, NewDuplicateType(def.Loc, def.Name))
			continue
		}
		seen[def.Name] = true
		tc.userTypes[def.Name] = def.Definition
		declared = append(declared, def)
	}
	for _, def := range declared {
		if !tc.IsValidType(def.Definition) {
			errs = append(errs, NewUndefinedType(def.Loc, def.Definition))
		}
	}

	scope := NewTypeContext()
	for name, sig := range tc.functions {
		scope.Functions[name] = sig
	}

	for _, field := range spec.Inputs {
		if !tc.IsValidType(field.Type) {
			errs = append(errs, NewUndefinedType(field.Loc, field.Type))
			continue
		}
		for _, modifier := range field.Modifiers {
			if err := tc.ValidateModifier(modifier, field.Type); err != nil {
				errs = append(errs, located(err, field.Loc))
			}
		}
		scope.Variables[field.Name] = field.Type
	}

	// Computed fields see the input bindings only; the runtime evaluates
	// them against the post-input variable snapshot.
	computedScope := scope
	for _, computed := range spec.Computed {
		typ, err := tc.TypeOfExpression(computed.Expression, scope)
		if err != nil {
			errs = append(errs, located(err, computed.Loc))
			continue
		}
		computedScope = computedScope.WithVariable(computed.Name, typ)
	}

	for _, constraint := range spec.Constraints {
		if _, err := tc.TypeOfExpression(constraint.Expression, computedScope); err != nil {
			errs = append(errs, located(err, constraint.Loc))
		}
	}

	for _, event := range spec.Events {
		eventScope := computedScope.WithVariable(event.Parameter, Dynamic())
		if err := tc.checkAction(event.Action, eventScope); err != nil {
			errs = append(errs, located(err, event.Loc))
		}
	}

	for _, hook := range spec.Lifecycle {
		actionScope := scope
		if hook.Phase == ast.PhaseFinally {
			actionScope = computedScope
		}
		if err := tc.checkAction(hook.Action, actionScope); err != nil {
			errs = append(errs, located(err, hook.Loc))
		}
	}

	for _, ext := range spec.Extensions {
		if ext.Name == "" || ext.ImportSpec == "" {
			errs = append(errs, NewInvalidExtension(ext.Loc, ext.Name))
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ValidateModifier checks a Default modifier's expression against the
// field's declared type. Other modifiers are always valid.
func (tc *TypeChecker) ValidateModifier(modifier ast.Modifier, fieldType ast.TypeExpr) *TypeError {
	if modifier.Kind != ast.ModifierDefault {
		return nil
	}

	actual, err := tc.TypeOfExpression(modifier.Default, NewTypeContext())
	if err != nil {
		return asTypeError(err)
	}
	if !IsCompatible(fieldType, actual) {
		return NewTypeMismatch(modifier.Default.Location(), fieldType, actual, "default value")
	}
	return nil
}

// checkAction infers the arguments of an action call. Bare identifiers and
// builtin pseudo-object calls are resolved at run time.
func (tc *TypeChecker) checkAction(action ast.Action, scope *TypeContext) error {
	if action.Call == nil {
		return nil
	}
	for _, arg := range action.Call.Arguments {
		if _, err := tc.TypeOfExpression(arg.Value, scope); err != nil {
			return err
		}
	}
	return nil
}

// located fills in a location for errors raised without one.
func located(err error, loc ast.SourceLocation) *TypeError {
	typeErr := asTypeError(err)
	if typeErr.Location == (ast.SourceLocation{}) {
		typeErr.Location = loc
	}
	return typeErr
}

func asTypeError(err error) *TypeError {
	if typeErr, ok := err.(*TypeError); ok {
		return typeErr
	}
	return &TypeError{
		Code:     ErrTypeMismatch,
		Category: CategoryType,
		Severity: SeverityError,
		Message:  err.Error(),
	}
}
