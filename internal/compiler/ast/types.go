package ast

import "strings"

// TypeExpr is a type annotation: a primitive, a generic instantiation or a
// reference to a named type.
type TypeExpr interface {
	String() string
	typeExpr()
}

// Primitive enumerates the built-in scalar types.
type Primitive int

const (
	PrimitiveString Primitive = iota
	PrimitiveInt
	PrimitiveFloat
	PrimitiveBool
	PrimitiveNull
)

func (p Primitive) String() string {
	switch p {
	case PrimitiveInt:
		return "int"
	case PrimitiveFloat:
		return "float"
	case PrimitiveBool:
		return "bool"
	case PrimitiveNull:
		return "null"
	}
	return "string"
}

// PrimitiveByName maps the surface names string|int|float|bool.
func PrimitiveByName(name string) (Primitive, bool) {
	switch name {
	case "string":
		return PrimitiveString, true
	case "int":
		return PrimitiveInt, true
	case "float":
		return PrimitiveFloat, true
	case "bool":
		return PrimitiveBool, true
	}
	return 0, false
}

// PrimitiveType is a TypeExpr for a primitive.
type PrimitiveType struct {
	Primitive Primitive
}

func (p *PrimitiveType) typeExpr() {}

func (p *PrimitiveType) String() string {
	return p.Primitive.String()
}

// GenericType is a parameterised type such as list<string>.
type GenericType struct {
	Name string
	Args []TypeExpr
}

func (g *GenericType) typeExpr() {}

func (g *GenericType) String() string {
	args := make([]string, len(g.Args))
	for i, arg := range g.Args {
		args[i] = arg.String()
	}
	return g.Name + "<" + strings.Join(args, ", ") + ">"
}

// ReferenceType names a user-defined or built-in type resolved at validation.
type ReferenceType struct {
	Name string
}

func (r *ReferenceType) typeExpr() {}

func (r *ReferenceType) String() string {
	return r.Name
}

// Convenience constructors

// String returns the string primitive type.
func String() TypeExpr { return &PrimitiveType{Primitive: PrimitiveString} }

// Int returns the int primitive type.
func Int() TypeExpr { return &PrimitiveType{Primitive: PrimitiveInt} }

// Float returns the float primitive type.
func Float() TypeExpr { return &PrimitiveType{Primitive: PrimitiveFloat} }

// Bool returns the bool primitive type.
func Bool() TypeExpr { return &PrimitiveType{Primitive: PrimitiveBool} }

// Null returns the null primitive type.
func Null() TypeExpr { return &PrimitiveType{Primitive: PrimitiveNull} }

// Generic builds a generic instantiation.
func Generic(name string, args ...TypeExpr) TypeExpr {
	return &GenericType{Name: name, Args: args}
}

// Reference builds a named type reference.
func Reference(name string) TypeExpr { return &ReferenceType{Name: name} }

// IsPrimitive reports whether t is the given primitive.
func IsPrimitive(t TypeExpr, p Primitive) bool {
	prim, ok := t.(*PrimitiveType)
	return ok && prim.Primitive == p
}

// TypeEqual reports structural equality of two type expressions.
func TypeEqual(a, b TypeExpr) bool {
	switch at := a.(type) {
	case *PrimitiveType:
		bt, ok := b.(*PrimitiveType)
		return ok && at.Primitive == bt.Primitive
	case *ReferenceType:
		bt, ok := b.(*ReferenceType)
		return ok && at.Name == bt.Name
	case *GenericType:
		bt, ok := b.(*GenericType)
		if !ok || at.Name != bt.Name || len(at.Args) != len(bt.Args) {
			return false
		}
		for i := range at.Args {
			if !TypeEqual(at.Args[i], bt.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}
