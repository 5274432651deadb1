// Package ast defines the data model produced by the SIGMOS parser: the
// specification document and its nested fields, expressions, events,
// constraints, lifecycle hooks and type expressions. Every node is plain
// data; the type checker and runtime only read it.
package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/copyleftdev/sigmos/internal/compiler/lexer"
)

// SourceLocation tracks the position of an AST node in source code
type SourceLocation struct {
	Line   int // Line number (1-indexed)
	Column int // Column number (1-indexed)
}

// Node is the base interface for all AST nodes
type Node interface {
	Location() SourceLocation
	node()
}

// Spec is the root of a parsed specification.
type Spec struct {
	Name        string
	Version     Version
	Description string
	Inputs      []*FieldDef
	Computed    []*ComputedField
	Events      []*EventDef
	Constraints []*ConstraintDef
	Lifecycle   []*LifecycleDef
	Extensions  []*ExtensionDef
	Types       []*TypeDef
	Loc         SourceLocation
}

func (s *Spec) node() {}

// Location returns the position of the spec keyword.
func (s *Spec) Location() SourceLocation {
	return s.Loc
}

// Input returns the input field with the given name.
func (s *Spec) Input(name string) (*FieldDef, bool) {
	for _, field := range s.Inputs {
		if field.Name == name {
			return field, true
		}
	}
	return nil, false
}

// Version is a semantic version without pre-release or build metadata.
type Version struct {
	Major int
	Minor int
	Patch *int
}

// NewVersion builds a version; pass a negative patch to omit it.
func NewVersion(major, minor, patch int) Version {
	v := Version{Major: major, Minor: minor}
	if patch >= 0 {
		v.Patch = &patch
	}
	return v
}

// String renders major.minor[.patch].
func (v Version) String() string {
	if v.Patch != nil {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, *v.Patch)
	}
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// ParseVersion accepts "1.0", "2.1.3" and the same forms prefixed with v.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimPrefix(s, "v"), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Version{}, fmt.Errorf("invalid version %q: expected major.minor[.patch]", s)
	}

	numbers := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || part == "" || part[0] == '+' {
			return Version{}, fmt.Errorf("invalid version %q: component %q is not a number", s, part)
		}
		numbers[i] = n
	}

	if len(numbers) == 3 {
		return NewVersion(numbers[0], numbers[1], numbers[2]), nil
	}
	return NewVersion(numbers[0], numbers[1], -1), nil
}

// VersionFromToken converts the literal carried by a lexer version token.
func VersionFromToken(v lexer.Version) Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch}
}

// FieldDef is an input field declaration.
type FieldDef struct {
	Name      string
	Type      TypeExpr
	Modifiers []Modifier
	Loc       SourceLocation
}

func (f *FieldDef) node() {}

// Location returns the source location of the field.
func (f *FieldDef) Location() SourceLocation {
	return f.Loc
}

// HasModifier reports whether the field carries a modifier of the given kind.
func (f *FieldDef) HasModifier(kind ModifierKind) bool {
	for _, m := range f.Modifiers {
		if m.Kind == kind {
			return true
		}
	}
	return false
}

// ModifierKind enumerates the closed set of field modifiers.
type ModifierKind int

const (
	ModifierOptional ModifierKind = iota
	ModifierReadonly
	ModifierDefault
	ModifierComputed
	ModifierSecret
	ModifierGenerate
	ModifierRef
)

var modifierNames = map[ModifierKind]string{
	ModifierOptional: "optional",
	ModifierReadonly: "readonly",
	ModifierDefault:  "default",
	ModifierComputed: "computed",
	ModifierSecret:   "secret",
	ModifierGenerate: "generate",
	ModifierRef:      "ref",
}

func (k ModifierKind) String() string {
	if name, ok := modifierNames[k]; ok {
		return name
	}
	return fmt.Sprintf("modifier(%d)", int(k))
}

// ModifierKindByName resolves the surface keyword of a modifier.
func ModifierKindByName(name string) (ModifierKind, bool) {
	for kind, n := range modifierNames {
		if n == name {
			return kind, true
		}
	}
	return 0, false
}

// Modifier is a field modifier. Default carries an expression evaluated
// at input-processing time; Ref carries the referenced name.
type Modifier struct {
	Kind    ModifierKind
	Default Expr
	Ref     string
}

// String renders the modifier in surface syntax.
func (m Modifier) String() string {
	switch m.Kind {
	case ModifierDefault:
		return fmt.Sprintf("default(%s)", FormatExpr(m.Default))
	case ModifierRef:
		return fmt.Sprintf("ref(%s)", m.Ref)
	}
	return m.Kind.String()
}

// ComputedField is a named expression evaluated once per execution.
type ComputedField struct {
	Name       string
	Expression Expr
	Loc        SourceLocation
}

func (c *ComputedField) node() {}

// Location returns the source location of the computed field.
func (c *ComputedField) Location() SourceLocation {
	return c.Loc
}

// EventKind enumerates event triggers.
type EventKind int

const (
	EventOnCreate EventKind = iota
	EventOnChange
	EventOnError
	EventCustom
)

// EventType is an event trigger; Name is set for custom events.
type EventType struct {
	Kind EventKind
	Name string
}

// String renders the trigger as written in source.
func (e EventType) String() string {
	switch e.Kind {
	case EventOnCreate:
		return "on_create"
	case EventOnChange:
		return "on_change"
	case EventOnError:
		return "on_error"
	}
	return e.Name
}

// EventTypeByName maps a surface trigger name to its event type.
func EventTypeByName(name string) EventType {
	switch name {
	case "on_create":
		return EventType{Kind: EventOnCreate}
	case "on_change":
		return EventType{Kind: EventOnChange}
	case "on_error":
		return EventType{Kind: EventOnError}
	}
	return EventType{Kind: EventCustom, Name: name}
}

// EventDef binds a trigger parameter and runs an action when dispatched.
type EventDef struct {
	Type      EventType
	Parameter string
	Action    Action
	Loc       SourceLocation
}

func (e *EventDef) node() {}

// Location returns the source location of the event.
func (e *EventDef) Location() SourceLocation {
	return e.Loc
}

// ConstraintKind distinguishes assert from ensure constraints.
type ConstraintKind int

const (
	ConstraintAssert ConstraintKind = iota
	ConstraintEnsure
)

func (k ConstraintKind) String() string {
	if k == ConstraintEnsure {
		return "ensure"
	}
	return "assert"
}

// ConstraintDef is a boolean condition over the specification's values.
type ConstraintDef struct {
	Kind       ConstraintKind
	Expression Expr
	Loc        SourceLocation
}

func (c *ConstraintDef) node() {}

// Location returns the source location of the constraint.
func (c *ConstraintDef) Location() SourceLocation {
	return c.Loc
}

// LifecyclePhase is the point in execution a lifecycle action runs at.
type LifecyclePhase int

const (
	PhaseBefore LifecyclePhase = iota
	PhaseAfter
	PhaseFinally
)

func (p LifecyclePhase) String() string {
	switch p {
	case PhaseAfter:
		return "after"
	case PhaseFinally:
		return "finally"
	}
	return "before"
}

// LifecycleDef attaches an action to a lifecycle phase.
type LifecycleDef struct {
	Phase  LifecyclePhase
	Action Action
	Loc    SourceLocation
}

func (l *LifecycleDef) node() {}

// Location returns the source location of the lifecycle entry.
func (l *LifecycleDef) Location() SourceLocation {
	return l.Loc
}

// BuiltinObject is the pseudo-object that bare identifier actions call into.
const BuiltinObject = "builtin"

// Action is either a function call or a bare identifier.
type Action struct {
	Call       *FunctionCall
	Identifier string
}

// AsCall returns the call the action performs. A bare identifier becomes a
// zero-argument call on the builtin pseudo-object.
func (a Action) AsCall() *FunctionCall {
	if a.Call != nil {
		return a.Call
	}
	return &FunctionCall{Object: BuiltinObject, Method: a.Identifier}
}

// String renders the action in surface syntax.
func (a Action) String() string {
	if a.Call != nil {
		return FormatExpr(a.Call)
	}
	return a.Identifier
}

// ExtensionDef imports an external capability under a local name.
type ExtensionDef struct {
	Name       string
	ImportSpec string
	Loc        SourceLocation
}

func (e *ExtensionDef) node() {}

// Location returns the source location of the extension.
func (e *ExtensionDef) Location() SourceLocation {
	return e.Loc
}

// TypeDef declares a user type.
type TypeDef struct {
	Name       string
	Definition TypeExpr
	Loc        SourceLocation
}

func (t *TypeDef) node() {}

// Location returns the source location of the type definition.
func (t *TypeDef) Location() SourceLocation {
	return t.Loc
}

// TokenLocation converts a token position to a SourceLocation
func TokenLocation(token lexer.Token) SourceLocation {
	return SourceLocation{
		Line:   token.Line,
		Column: token.Column,
	}
}
