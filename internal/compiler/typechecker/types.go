// Package typechecker validates parsed SIGMOS specifications: it registers
// built-in and user types, checks field types and modifiers, and infers the
// types of expressions.
package typechecker

import "github.com/copyleftdev/sigmos/internal/compiler/ast"

const (
	typeList  = "list"
	typeMap   = "map"
	typeArray = "Array"

	// DynamicTypeName is the inferred type of plugin call results, whose
	// shape is only known at run time. It is compatible with every type.
	DynamicTypeName = "any"
)

// Dynamic returns the type of values produced by plugin calls.
func Dynamic() ast.TypeExpr {
	return ast.Reference(DynamicTypeName)
}

// IsDynamic reports whether t is the dynamic type.
func IsDynamic(t ast.TypeExpr) bool {
	ref, ok := t.(*ast.ReferenceType)
	return ok && ref.Name == DynamicTypeName
}

// FunctionSignature describes a callable known to the checker.
type FunctionSignature struct {
	Parameters []ast.TypeExpr
	ReturnType ast.TypeExpr
}

// TypeContext maps variable names and function names to their types.
// Plugin functions are keyed by "object.method".
type TypeContext struct {
	Variables map[string]ast.TypeExpr
	Functions map[string]FunctionSignature
}

// NewTypeContext returns an empty context.
func NewTypeContext() *TypeContext {
	return &TypeContext{
		Variables: make(map[string]ast.TypeExpr),
		Functions: make(map[string]FunctionSignature),
	}
}

// WithVariable returns a copy of the context with one more binding.
func (c *TypeContext) WithVariable(name string, typ ast.TypeExpr) *TypeContext {
	clone := NewTypeContext()
	for k, v := range c.Variables {
		clone.Variables[k] = v
	}
	for k, v := range c.Functions {
		clone.Functions[k] = v
	}
	clone.Variables[name] = typ
	return clone
}

// IsCompatible reports whether a value of type actual may be used where
// expected is required: exact match, int widening to float, or either side
// dynamic.
func IsCompatible(expected, actual ast.TypeExpr) bool {
	if ast.TypeEqual(expected, actual) {
		return true
	}
	if ast.IsPrimitive(expected, ast.PrimitiveFloat) && ast.IsPrimitive(actual, ast.PrimitiveInt) {
		return true
	}
	return IsDynamic(expected) || IsDynamic(actual)
}

func isNumeric(t ast.TypeExpr) bool {
	return ast.IsPrimitive(t, ast.PrimitiveInt) || ast.IsPrimitive(t, ast.PrimitiveFloat)
}

func isBoolish(t ast.TypeExpr) bool {
	return ast.IsPrimitive(t, ast.PrimitiveBool) || IsDynamic(t)
}
