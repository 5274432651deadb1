package runtime

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/copyleftdev/sigmos/internal/compiler/ast"
	"github.com/copyleftdev/sigmos/internal/plugin"
)

// evaluator walks an expression tree against a fixed set of bindings.
// It has no side effects except through plugin dispatch.
type evaluator struct {
	registry *plugin.Registry
	vars     map[string]any
}

func (e *evaluator) eval(expr ast.Expr) (any, error) {
	switch x := expr.(type) {
	case *ast.StringLiteral:
		return x.Value, nil

	case *ast.StringTemplate:
		var b strings.Builder
		for _, part := range x.Parts {
			if !part.IsVariable() {
				b.WriteString(part.Text)
				continue
			}
			if v, ok := e.vars[part.Variable]; ok {
				b.WriteString(Render(v))
			} else {
				b.WriteString("${" + part.Variable + "}")
			}
		}
		return b.String(), nil

	case *ast.NumberLiteral:
		return x.Value, nil

	case *ast.BooleanLiteral:
		return x.Value, nil

	case *ast.Identifier:
		if v, ok := e.vars[x.Name]; ok {
			return v, nil
		}
		return "${" + x.Name + "}", nil

	case *ast.FunctionCall:
		return e.call(x)

	case *ast.Arithmetic:
		return e.arithmetic(x)

	case *ast.Comparison:
		return e.comparison(x)

	case *ast.Logical:
		left, err := e.eval(x.Left)
		if err != nil {
			return nil, err
		}
		switch x.Op {
		case ast.OpAnd:
			if !IsTruthy(left) {
				return false, nil
			}
		case ast.OpOr:
			if IsTruthy(left) {
				return true, nil
			}
		}
		right, err := e.eval(x.Right)
		if err != nil {
			return nil, err
		}
		return IsTruthy(right), nil

	case *ast.Not:
		operand, err := e.eval(x.Operand)
		if err != nil {
			return nil, err
		}
		return !IsTruthy(operand), nil

	case *ast.Conditional:
		cond, err := e.eval(x.Condition)
		if err != nil {
			return nil, err
		}
		if IsTruthy(cond) {
			return e.eval(x.Then)
		}
		return e.eval(x.Else)

	case *ast.IndexAccess:
		return e.index(x)

	case *ast.PropertyAccess:
		object, err := e.eval(x.Object)
		if err != nil {
			return nil, err
		}
		m, ok := object.(map[string]any)
		if !ok {
			return nil, typeMismatch("Cannot access property '%s' on %s", x.Property, TypeName(object))
		}
		return m[x.Property], nil
	}

	return nil, evalError(nil, "EVL000", "Unsupported expression %T", expr)
}

func (e *evaluator) arithmetic(x *ast.Arithmetic) (any, error) {
	left, err := e.eval(x.Left)
	if err != nil {
		return nil, err
	}
	right, err := e.eval(x.Right)
	if err != nil {
		return nil, err
	}

	if x.Op == ast.OpAdd {
		if ls, ok := left.(string); ok {
			if rs, ok := right.(string); ok {
				return ls + rs, nil
			}
		}
	}

	l, lok := left.(float64)
	r, rok := right.(float64)
	if !lok || !rok {
		return nil, typeMismatch("Operator %s cannot be applied to %s and %s", x.Op, TypeName(left), TypeName(right))
	}

	var res float64
	switch x.Op {
	case ast.OpAdd:
		res = l + r
	case ast.OpSubtract:
		res = l - r
	case ast.OpMultiply:
		res = l * r
	case ast.OpDivide:
		if r == 0 {
			return nil, divisionByZero()
		}
		res = l / r
	case ast.OpModulo:
		if r == 0 {
			return nil, moduloByZero()
		}
		res = math.Mod(l, r)
	default:
		return nil, typeMismatch("Unknown arithmetic operator %s", x.Op)
	}

	if math.IsInf(res, 0) || math.IsNaN(res) {
		return nil, invalidNumber(x.Op)
	}
	return res, nil
}

func (e *evaluator) comparison(x *ast.Comparison) (any, error) {
	left, err := e.eval(x.Left)
	if err != nil {
		return nil, err
	}
	right, err := e.eval(x.Right)
	if err != nil {
		return nil, err
	}

	switch x.Op {
	case ast.OpEqual:
		return ValuesEqual(left, right), nil
	case ast.OpNotEqual:
		return !ValuesEqual(left, right), nil
	}

	var cmp int
	switch l := left.(type) {
	case float64:
		r, ok := right.(float64)
		if !ok {
			return nil, typeMismatch("Cannot compare %s with %s", TypeName(left), TypeName(right))
		}
		switch {
		case l < r:
			cmp = -1
		case l > r:
			cmp = 1
		}
	case string:
		r, ok := right.(string)
		if !ok {
			return nil, typeMismatch("Cannot compare %s with %s", TypeName(left), TypeName(right))
		}
		cmp = strings.Compare(l, r)
	default:
		return nil, typeMismatch("Cannot compare %s with %s", TypeName(left), TypeName(right))
	}

	switch x.Op {
	case ast.OpLess:
		return cmp < 0, nil
	case ast.OpLessEqual:
		return cmp <= 0, nil
	case ast.OpGreater:
		return cmp > 0, nil
	default:
		return cmp >= 0, nil
	}
}

func (e *evaluator) index(x *ast.IndexAccess) (any, error) {
	collection, err := e.eval(x.Collection)
	if err != nil {
		return nil, err
	}
	index, err := e.eval(x.Index)
	if err != nil {
		return nil, err
	}

	switch c := collection.(type) {
	case []any:
		n, ok := index.(float64)
		if !ok || n != math.Trunc(n) {
			return nil, typeMismatch("Array index must be an integer, found %s", Render(index))
		}
		if n < 0 || n >= float64(len(c)) {
			return nil, indexOutOfBounds(int(n), len(c))
		}
		return c[int(n)], nil
	case map[string]any:
		key, ok := index.(string)
		if !ok {
			return nil, typeMismatch("Object key must be a string, found %s", TypeName(index))
		}
		return c[key], nil
	}
	return nil, typeMismatch("Cannot index %s with %s", TypeName(collection), TypeName(index))
}

func (e *evaluator) call(x *ast.FunctionCall) (any, error) {
	if x.Object == "" {
		fn, ok := builtins[x.Method]
		if !ok {
			return nil, unknownFunction(x.Method)
		}
		if len(x.Arguments) != 1 {
			return nil, invalidArguments("%s expects 1 argument, got %d", x.Method, len(x.Arguments))
		}
		arg, err := e.eval(x.Arguments[0].Value)
		if err != nil {
			return nil, err
		}
		return fn(arg)
	}

	if e.registry == nil || !e.registry.Has(x.Object) {
		return nil, unknownFunction(x.QualifiedName())
	}

	args := make(map[string]any, len(x.Arguments))
	for i, arg := range x.Arguments {
		value, err := e.eval(arg.Value)
		if err != nil {
			return nil, err
		}
		name := arg.Name
		if name == "" {
			name = fmt.Sprintf("arg_%d", i)
		}
		args[name] = value
	}

	result, err := e.registry.ExecutePluginMethod(x.Object, x.Method, args)
	if err != nil {
		if errors.Is(err, plugin.ErrMethodNotFound) || errors.Is(err, plugin.ErrNotFound) {
			unknown := unknownFunction(x.QualifiedName())
			unknown.Err = err
			return nil, unknown
		}
		return nil, pluginFailed(x.Object, x.Method, err)
	}

	value, err := Normalize(result)
	if err != nil {
		return nil, pluginFailed(x.Object, x.Method, err)
	}
	return value, nil
}
