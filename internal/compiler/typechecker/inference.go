package typechecker

import (
	"github.com/copyleftdev/sigmos/internal/compiler/ast"
)

// builtinSignatures lists the closed set of builtin functions. Each takes
// exactly one argument.
var builtinSignatures = map[string]ast.TypeExpr{
	"len":   ast.Int(),
	"upper": ast.String(),
	"lower": ast.String(),
	"trim":  ast.String(),
	"abs":   ast.Float(),
}

// TypeOfExpression infers the type of expr under ctx.
//
// Number literals infer float regardless of their written form. Comparisons
// do not check operand compatibility and conditionals take the type of their
// then-branch without comparing it to the else-branch.
func (tc *TypeChecker) TypeOfExpression(expr ast.Expr, ctx *TypeContext) (ast.TypeExpr, error) {
	if ctx == nil {
		ctx = NewTypeContext()
	}

	switch e := expr.(type) {
	case *ast.StringLiteral, *ast.StringTemplate:
		return ast.String(), nil

	case *ast.NumberLiteral:
		return ast.Float(), nil

	case *ast.BooleanLiteral:
		return ast.Bool(), nil

	case *ast.Identifier:
		if typ, ok := ctx.Variables[e.Name]; ok {
			return typ, nil
		}
		return nil, NewUndefinedVariable(e.Loc, e.Name)

	case *ast.FunctionCall:
		return tc.typeOfCall(e, ctx)

	case *ast.Arithmetic:
		return tc.typeOfArithmetic(e, ctx)

	case *ast.Comparison:
		if _, err := tc.TypeOfExpression(e.Left, ctx); err != nil {
			return nil, err
		}
		if _, err := tc.TypeOfExpression(e.Right, ctx); err != nil {
			return nil, err
		}
		return ast.Bool(), nil

	case *ast.Logical:
		left, err := tc.TypeOfExpression(e.Left, ctx)
		if err != nil {
			return nil, err
		}
		right, err := tc.TypeOfExpression(e.Right, ctx)
		if err != nil {
			return nil, err
		}
		if !isBoolish(left) || !isBoolish(right) {
			return nil, NewInvalidBinaryOp(e.Loc, e.Op.String(), left, right)
		}
		return ast.Bool(), nil

	case *ast.Not:
		operand, err := tc.TypeOfExpression(e.Operand, ctx)
		if err != nil {
			return nil, err
		}
		if !isBoolish(operand) {
			return nil, NewInvalidUnaryOp(e.Loc, "not", operand)
		}
		return ast.Bool(), nil

	case *ast.Conditional:
		condition, err := tc.TypeOfExpression(e.Condition, ctx)
		if err != nil {
			return nil, err
		}
		if !isBoolish(condition) {
			return nil, NewTypeMismatch(e.Loc, ast.Bool(), condition, "condition")
		}
		return tc.TypeOfExpression(e.Then, ctx)

	case *ast.IndexAccess:
		return tc.typeOfIndex(e, ctx)

	case *ast.PropertyAccess:
		return ast.String(), nil
	}

	return nil, &TypeError{
		Code:     ErrTypeMismatch,
		Category: CategoryType,
		Severity: SeverityError,
		Message:  "Unsupported expression",
	}
}

func (tc *TypeChecker) typeOfCall(call *ast.FunctionCall, ctx *TypeContext) (ast.TypeExpr, error) {
	for _, arg := range call.Arguments {
		if _, err := tc.TypeOfExpression(arg.Value, ctx); err != nil {
			return nil, err
		}
	}

	if sig, ok := ctx.Functions[call.QualifiedName()]; ok {
		if sig.Parameters != nil && len(sig.Parameters) != len(call.Arguments) {
			return nil, NewInvalidArgumentCount(call.Loc, call.QualifiedName(), len(sig.Parameters), len(call.Arguments))
		}
		return sig.ReturnType, nil
	}

	if call.Object != "" {
		return Dynamic(), nil
	}

	ret, ok := builtinSignatures[call.Method]
	if !ok {
		return nil, NewUndefinedFunction(call.Loc, call.Method)
	}
	if len(call.Arguments) != 1 {
		return nil, NewInvalidArgumentCount(call.Loc, call.Method, 1, len(call.Arguments))
	}
	return ret, nil
}

func (tc *TypeChecker) typeOfArithmetic(e *ast.Arithmetic, ctx *TypeContext) (ast.TypeExpr, error) {
	left, err := tc.TypeOfExpression(e.Left, ctx)
	if err != nil {
		return nil, err
	}
	right, err := tc.TypeOfExpression(e.Right, ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case IsDynamic(left) || IsDynamic(right):
		return Dynamic(), nil
	case ast.IsPrimitive(left, ast.PrimitiveInt) && ast.IsPrimitive(right, ast.PrimitiveInt):
		return ast.Int(), nil
	case isNumeric(left) && isNumeric(right):
		return ast.Float(), nil
	}
	return nil, NewInvalidBinaryOp(e.Loc, e.Op.String(), left, right)
}

func (tc *TypeChecker) typeOfIndex(e *ast.IndexAccess, ctx *TypeContext) (ast.TypeExpr, error) {
	collection, err := tc.TypeOfExpression(e.Collection, ctx)
	if err != nil {
		return nil, err
	}
	index, err := tc.TypeOfExpression(e.Index, ctx)
	if err != nil {
		return nil, err
	}

	if IsDynamic(collection) {
		return Dynamic(), nil
	}

	generic, ok := collection.(*ast.GenericType)
	if !ok || generic.Name != typeArray || len(generic.Args) != 1 {
		return nil, NewInvalidIndexOp(e.Loc, collection, index)
	}
	if !ast.IsPrimitive(index, ast.PrimitiveInt) && !IsDynamic(index) {
		return nil, NewInvalidIndexOp(e.Loc, collection, index)
	}
	return generic.Args[0], nil
}
