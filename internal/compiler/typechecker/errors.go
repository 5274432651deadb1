package typechecker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/copyleftdev/sigmos/internal/compiler/ast"
)

// ErrorCode represents a specific type error code
type ErrorCode string

const (
	// ErrTypeMismatch indicates a value's type is incompatible with its target.
	ErrTypeMismatch ErrorCode = "TYP102"

	// ErrUndefinedType indicates an undefined or unknown type was referenced.
	ErrUndefinedType ErrorCode = "TYP200"
	// ErrUndefinedVariable indicates an identifier with no binding in scope.
	ErrUndefinedVariable ErrorCode = "TYP201"
	// ErrBuiltinCollision indicates a user type reuses a built-in type name.
	ErrBuiltinCollision ErrorCode = "TYP203"
	// ErrDuplicateType indicates a user type was declared twice.
	ErrDuplicateType ErrorCode = "TYP204"

	// ErrUndefinedFunction indicates an undefined function was called.
	ErrUndefinedFunction ErrorCode = "TYP300"
	// ErrInvalidArgumentCount indicates wrong number of arguments in a function call.
	ErrInvalidArgumentCount ErrorCode = "TYP301"

	// ErrInvalidBinaryOp indicates an invalid binary operation between types.
	ErrInvalidBinaryOp ErrorCode = "TYP500"
	// ErrInvalidUnaryOp indicates an invalid unary operation on a type.
	ErrInvalidUnaryOp ErrorCode = "TYP501"
	// ErrInvalidIndexOp indicates an invalid index operation on a non-indexable type.
	ErrInvalidIndexOp ErrorCode = "TYP502"

	// ErrInvalidExtension indicates an extension without a name or import.
	ErrInvalidExtension ErrorCode = "TYP600"
)

// Category separates structural (semantic) rejections from inference failures.
type Category string

const (
	// CategorySemantic covers invalid declarations: unknown types, collisions.
	CategorySemantic Category = "semantic"
	// CategoryType covers expression inference and compatibility failures.
	CategoryType Category = "type"
)

// ErrorSeverity indicates the severity level of a type error
type ErrorSeverity string

const (
	// SeverityError indicates a type error that rejects the specification.
	SeverityError ErrorSeverity = "error"
	// SeverityWarning indicates a type warning that suggests potential issues.
	SeverityWarning ErrorSeverity = "warning"
)

// TypeError represents a type checking error with enough structure for both
// terminal output and machine consumption
type TypeError struct {
	Code       ErrorCode          `json:"code"`
	Category   Category           `json:"category"`
	Severity   ErrorSeverity      `json:"severity"`
	Message    string             `json:"message"`
	Location   ast.SourceLocation `json:"location"`
	Expected   string             `json:"expected,omitempty"`
	Actual     string             `json:"actual,omitempty"`
	Suggestion string             `json:"suggestion,omitempty"`
}

// Error implements the error interface
func (e *TypeError) Error() string {
	if e.Expected != "" || e.Actual != "" {
		return fmt.Sprintf("%s [%s]: expected %s, found %s", e.Message, e.Code, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%s [%s]", e.Message, e.Code)
}

// Format returns a human-readable error message for terminal output
func (e *TypeError) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s:%d:%d: %s [%s]\n",
		"<source>", e.Location.Line, e.Location.Column,
		strings.ToUpper(string(e.Severity)), e.Code)

	fmt.Fprintf(&b, "  %s\n", e.Message)

	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&b, "\n")
		if e.Expected != "" {
			fmt.Fprintf(&b, "  Expected: %s\n", e.Expected)
		}
		if e.Actual != "" {
			fmt.Fprintf(&b, "  Actual:   %s\n", e.Actual)
		}
	}

	if e.Suggestion != "" {
		fmt.Fprintf(&b, "\n  Suggestion: %s\n", e.Suggestion)
	}

	return b.String()
}

// ToJSON returns the error as a JSON string
func (e *TypeError) ToJSON() (string, error) {
	bytes, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// ErrorList is a collection of type errors
type ErrorList []*TypeError

// Error implements the error interface
func (el ErrorList) Error() string {
	if len(el) == 0 {
		return "no errors"
	}
	var b strings.Builder
	for i, err := range el {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

// HasErrors returns true if the list contains any errors
func (el ErrorList) HasErrors() bool {
	return len(el) > 0
}

// ToJSON returns all errors as a JSON array
func (el ErrorList) ToJSON() (string, error) {
	bytes, err := json.MarshalIndent(el, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// NewTypeMismatch creates a TYP102 error
func NewTypeMismatch(loc ast.SourceLocation, expected, actual ast.TypeExpr, context string) *TypeError {
	message := "Type mismatch"
	if context != "" {
		message = fmt.Sprintf("Type mismatch in %s", context)
	}

	return &TypeError{
		Code:     ErrTypeMismatch,
		Category: CategoryType,
		Severity: SeverityError,
		Message:  message,
		Location: loc,
		Expected: expected.String(),
		Actual:   actual.String(),
	}
}

// NewUndefinedType creates a TYP200 error
func NewUndefinedType(loc ast.SourceLocation, typ ast.TypeExpr) *TypeError {
	return &TypeError{
		Code:       ErrUndefinedType,
		Category:   CategorySemantic,
		Severity:   SeverityError,
		Message:    fmt.Sprintf("Invalid type: %s", typ),
		Location:   loc,
		Suggestion: "Declare the type under 'types:' or use string, int, float, bool, list<T> or map<K, V>",
	}
}

// NewUndefinedVariable creates a TYP201 error
func NewUndefinedVariable(loc ast.SourceLocation, name string) *TypeError {
	return &TypeError{
		Code:     ErrUndefinedVariable,
		Category: CategoryType,
		Severity: SeverityError,
		Message:  fmt.Sprintf("Undefined variable: %s", name),
		Location: loc,
	}
}

// NewBuiltinCollision creates a TYP203 error
func NewBuiltinCollision(loc ast.SourceLocation, name string) *TypeError {
	return &TypeError{
		Code:     ErrBuiltinCollision,
		Category: CategorySemantic,
		Severity: SeverityError,
		Message:  fmt.Sprintf("Cannot redefine built-in type: %s", name),
		Location: loc,
	}
}

// NewDuplicateType creates a TYP204 error
func NewDuplicateType(loc ast.SourceLocation, name string) *TypeError {
	return &TypeError{
		Code:     ErrDuplicateType,
		Category: CategorySemantic,
		Severity: SeverityError,
		Message:  fmt.Sprintf("Type already defined: %s", name),
		Location: loc,
	}
}

// NewUndefinedFunction creates a TYP300 error
func NewUndefinedFunction(loc ast.SourceLocation, name string) *TypeError {
	return &TypeError{
		Code:       ErrUndefinedFunction,
		Category:   CategoryType,
		Severity:   SeverityError,
		Message:    fmt.Sprintf("Unknown function: %s", name),
		Location:   loc,
		Suggestion: "Built-in functions are len, upper, lower, trim and abs; plugin calls take the form plugin.method(...)",
	}
}

// NewInvalidArgumentCount creates a TYP301 error
func NewInvalidArgumentCount(loc ast.SourceLocation, name string, expected, actual int) *TypeError {
	return &TypeError{
		Code:     ErrInvalidArgumentCount,
		Category: CategoryType,
		Severity: SeverityError,
		Message:  fmt.Sprintf("Wrong number of arguments to %s", name),
		Location: loc,
		Expected: fmt.Sprintf("%d", expected),
		Actual:   fmt.Sprintf("%d", actual),
	}
}

// NewInvalidBinaryOp creates a TYP500 error
func NewInvalidBinaryOp(loc ast.SourceLocation, op string, left, right ast.TypeExpr) *TypeError {
	return &TypeError{
		Code:     ErrInvalidBinaryOp,
		Category: CategoryType,
		Severity: SeverityError,
		Message:  fmt.Sprintf("Operator %s cannot be applied to %s and %s", op, left, right),
		Location: loc,
	}
}

// NewInvalidUnaryOp creates a TYP501 error
func NewInvalidUnaryOp(loc ast.SourceLocation, op string, operand ast.TypeExpr) *TypeError {
	return &TypeError{
		Code:     ErrInvalidUnaryOp,
		Category: CategoryType,
		Severity: SeverityError,
		Message:  fmt.Sprintf("Operator %s requires bool, found %s", op, operand),
		Location: loc,
		Expected: "bool",
		Actual:   operand.String(),
	}
}

// NewInvalidIndexOp creates a TYP502 error
func NewInvalidIndexOp(loc ast.SourceLocation, collection, index ast.TypeExpr) *TypeError {
	return &TypeError{
		Code:     ErrInvalidIndexOp,
		Category: CategoryType,
		Severity: SeverityError,
		Message:  "Indexed access requires Array<T> indexed by int",
		Location: loc,
		Expected: "Array<T>[int]",
		Actual:   fmt.Sprintf("%s[%s]", collection, index),
	}
}

// NewInvalidExtension creates a TYP600 error
func NewInvalidExtension(loc ast.SourceLocation, name string) *TypeError {
	return &TypeError{
		Code:     ErrInvalidExtension,
		Category: CategorySemantic,
		Severity: SeverityError,
		Message:  fmt.Sprintf("Extension %q must have a non-empty import", name),
		Location: loc,
	}
}
