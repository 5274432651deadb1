package ast

import (
	"strconv"
	"strings"
)

// Expr is an expression tree node. Expressions are strict trees owned by
// the entity that embeds them.
type Expr interface {
	Node
	exprNode()
}

// StringLiteral is a plain string.
type StringLiteral struct {
	Value string
	Loc   SourceLocation
}

func (s *StringLiteral) node()     {}
func (s *StringLiteral) exprNode() {}

func (s *StringLiteral) Location() SourceLocation {
	return s.Loc
}

// TemplatePart is either literal text or a ${variable} placeholder.
type TemplatePart struct {
	Text     string
	Variable string
}

// IsVariable reports whether the part is a placeholder.
func (p TemplatePart) IsVariable() bool {
	return p.Variable != ""
}

// Text builds a literal template part.
func Text(s string) TemplatePart { return TemplatePart{Text: s} }

// Var builds a placeholder template part.
func Var(name string) TemplatePart { return TemplatePart{Variable: name} }

// StringTemplate concatenates literal text and variable renderings.
type StringTemplate struct {
	Parts []TemplatePart
	Loc   SourceLocation
}

func (s *StringTemplate) node()     {}
func (s *StringTemplate) exprNode() {}

func (s *StringTemplate) Location() SourceLocation {
	return s.Loc
}

// NumberLiteral is a double-precision number. Integer literals land here too.
type NumberLiteral struct {
	Value float64
	Loc   SourceLocation
}

func (n *NumberLiteral) node()     {}
func (n *NumberLiteral) exprNode() {}

func (n *NumberLiteral) Location() SourceLocation {
	return n.Loc
}

// BooleanLiteral is true or false.
type BooleanLiteral struct {
	Value bool
	Loc   SourceLocation
}

func (b *BooleanLiteral) node()     {}
func (b *BooleanLiteral) exprNode() {}

func (b *BooleanLiteral) Location() SourceLocation {
	return b.Loc
}

// Identifier references a variable binding.
type Identifier struct {
	Name string
	Loc  SourceLocation
}

func (i *Identifier) node()     {}
func (i *Identifier) exprNode() {}

func (i *Identifier) Location() SourceLocation {
	return i.Loc
}

// Argument is a call argument. Name is empty for positional arguments.
type Argument struct {
	Name  string
	Value Expr
}

// FunctionCall calls a builtin (empty Object) or a plugin method.
type FunctionCall struct {
	Object    string
	Method    string
	Arguments []Argument
	Loc       SourceLocation
}

func (f *FunctionCall) node()     {}
func (f *FunctionCall) exprNode() {}

func (f *FunctionCall) Location() SourceLocation {
	return f.Loc
}

// QualifiedName renders object.method, or just method for builtins.
func (f *FunctionCall) QualifiedName() string {
	if f.Object == "" {
		return f.Method
	}
	return f.Object + "." + f.Method
}

// ArithmeticOp enumerates arithmetic operators.
type ArithmeticOp int

const (
	OpAdd ArithmeticOp = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
)

func (op ArithmeticOp) String() string {
	return [...]string{"+", "-", "*", "/", "%"}[op]
}

// Arithmetic is a binary arithmetic expression.
type Arithmetic struct {
	Op    ArithmeticOp
	Left  Expr
	Right Expr
	Loc   SourceLocation
}

func (a *Arithmetic) node()     {}
func (a *Arithmetic) exprNode() {}

func (a *Arithmetic) Location() SourceLocation {
	return a.Loc
}

// ComparisonOp enumerates comparison operators.
type ComparisonOp int

const (
	OpEqual ComparisonOp = iota
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
)

func (op ComparisonOp) String() string {
	return [...]string{"==", "!=", "<", "<=", ">", ">="}[op]
}

// Comparison is a binary comparison expression.
type Comparison struct {
	Op    ComparisonOp
	Left  Expr
	Right Expr
	Loc   SourceLocation
}

func (c *Comparison) node()     {}
func (c *Comparison) exprNode() {}

func (c *Comparison) Location() SourceLocation {
	return c.Loc
}

// LogicalOp enumerates the short-circuiting logical operators.
type LogicalOp int

const (
	OpAnd LogicalOp = iota
	OpOr
)

func (op LogicalOp) String() string {
	if op == OpOr {
		return "or"
	}
	return "and"
}

// Logical is a short-circuiting and/or expression.
type Logical struct {
	Op    LogicalOp
	Left  Expr
	Right Expr
	Loc   SourceLocation
}

func (l *Logical) node()     {}
func (l *Logical) exprNode() {}

func (l *Logical) Location() SourceLocation {
	return l.Loc
}

// Not is logical negation.
type Not struct {
	Operand Expr
	Loc     SourceLocation
}

func (n *Not) node()     {}
func (n *Not) exprNode() {}

func (n *Not) Location() SourceLocation {
	return n.Loc
}

// Conditional evaluates exactly one of its branches.
type Conditional struct {
	Condition Expr
	Then      Expr
	Else      Expr
	Loc       SourceLocation
}

func (c *Conditional) node()     {}
func (c *Conditional) exprNode() {}

func (c *Conditional) Location() SourceLocation {
	return c.Loc
}

// IndexAccess indexes an array by integer or an object by string key.
type IndexAccess struct {
	Collection Expr
	Index      Expr
	Loc        SourceLocation
}

func (i *IndexAccess) node()     {}
func (i *IndexAccess) exprNode() {}

func (i *IndexAccess) Location() SourceLocation {
	return i.Loc
}

// PropertyAccess reads a named property of an object.
type PropertyAccess struct {
	Object   Expr
	Property string
	Loc      SourceLocation
}

func (p *PropertyAccess) node()     {}
func (p *PropertyAccess) exprNode() {}

func (p *PropertyAccess) Location() SourceLocation {
	return p.Loc
}

// FormatExpr renders an expression in a source-like notation. Operators the
// surface grammar cannot express are rendered infix for readability.
func FormatExpr(e Expr) string {
	var b strings.Builder
	formatExpr(&b, e)
	return b.String()
}

func formatExpr(b *strings.Builder, e Expr) {
	switch e := e.(type) {
	case nil:
		b.WriteString("<nil>")
	case *StringLiteral:
		b.WriteString(strconv.Quote(e.Value))
	case *StringTemplate:
		b.WriteByte('"')
		for _, part := range e.Parts {
			if part.IsVariable() {
				b.WriteString("${" + part.Variable + "}")
			} else {
				quoted := strconv.Quote(part.Text)
				b.WriteString(quoted[1 : len(quoted)-1])
			}
		}
		b.WriteByte('"')
	case *NumberLiteral:
		b.WriteString(strconv.FormatFloat(e.Value, 'f', -1, 64))
	case *BooleanLiteral:
		b.WriteString(strconv.FormatBool(e.Value))
	case *Identifier:
		b.WriteString(e.Name)
	case *FunctionCall:
		b.WriteString(e.QualifiedName())
		b.WriteByte('(')
		for i, arg := range e.Arguments {
			if i > 0 {
				b.WriteString(", ")
			}
			if arg.Name != "" {
				b.WriteString(arg.Name + ": ")
			}
			formatExpr(b, arg.Value)
		}
		b.WriteByte(')')
	case *Arithmetic:
		formatBinary(b, e.Left, e.Op.String(), e.Right)
	case *Comparison:
		formatBinary(b, e.Left, e.Op.String(), e.Right)
	case *Logical:
		formatBinary(b, e.Left, e.Op.String(), e.Right)
	case *Not:
		b.WriteString("not ")
		formatExpr(b, e.Operand)
	case *Conditional:
		b.WriteString("if ")
		formatExpr(b, e.Condition)
		b.WriteString(" then ")
		formatExpr(b, e.Then)
		b.WriteString(" else ")
		formatExpr(b, e.Else)
	case *IndexAccess:
		formatExpr(b, e.Collection)
		b.WriteByte('[')
		formatExpr(b, e.Index)
		b.WriteByte(']')
	case *PropertyAccess:
		formatExpr(b, e.Object)
		b.WriteString("." + e.Property)
	}
}

func formatBinary(b *strings.Builder, left Expr, op string, right Expr) {
	b.WriteByte('(')
	formatExpr(b, left)
	b.WriteString(" " + op + " ")
	formatExpr(b, right)
	b.WriteByte(')')
}

// ParseTemplate splits a string containing ${name} placeholders into parts.
// An unterminated placeholder is kept as literal text.
func ParseTemplate(s string) []TemplatePart {
	var parts []TemplatePart
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			break
		}
		name := strings.TrimSpace(s[start+2 : start+end])
		if start > 0 {
			parts = append(parts, Text(s[:start]))
		}
		if name == "" {
			parts = append(parts, Text(s[start:start+end+1]))
		} else {
			parts = append(parts, Var(name))
		}
		s = s[start+end+1:]
	}
	if s != "" {
		parts = append(parts, Text(s))
	}
	return parts
}

// HasPlaceholder reports whether s contains at least one ${name} placeholder.
func HasPlaceholder(s string) bool {
	for _, part := range ParseTemplate(s) {
		if part.IsVariable() {
			return true
		}
	}
	return false
}
