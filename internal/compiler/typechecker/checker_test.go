package typechecker

import (
	"errors"
	"strings"
	"testing"

	"github.com/copyleftdev/sigmos/internal/compiler/ast"
	"github.com/copyleftdev/sigmos/internal/compiler/parser"
)

func mustParse(t *testing.T, source string) *ast.Spec {
	t.Helper()
	spec, err := parser.ParseString(source)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	return spec
}

func TestIsValidType(t *testing.T) {
	tc := NewTypeChecker()
	if err := tc.RegisterType("User", ast.Generic("map", ast.String(), ast.String())); err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}

	tests := []struct {
		name  string
		typ   ast.TypeExpr
		valid bool
	}{
		{"primitive string", ast.String(), true},
		{"primitive null", ast.Null(), true},
		{"list of string", ast.Generic("list", ast.String()), true},
		{"list of int", ast.Generic("list", ast.Int()), true},
		{"map string string", ast.Generic("map", ast.String(), ast.String()), true},
		{"nested generic", ast.Generic("list", ast.Generic("map", ast.String(), ast.Reference("User"))), true},
		{"list wrong arity", ast.Generic("list", ast.String(), ast.Int()), false},
		{"map wrong arity", ast.Generic("map", ast.String()), false},
		{"unknown generic", ast.Generic("set", ast.String()), false},
		{"invalid argument", ast.Generic("list", ast.Reference("Missing")), false},
		{"registered reference", ast.Reference("User"), true},
		{"builtin reference", ast.Reference("list"), true},
		{"unknown reference", ast.Reference("Missing"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tc.IsValidType(tt.typ); got != tt.valid {
				t.Errorf("IsValidType(%s) = %v, want %v", tt.typ, got, tt.valid)
			}
		})
	}
}

func TestRegisterType(t *testing.T) {
	tc := NewTypeChecker()

	var typeErr *TypeError
	err := tc.RegisterType("list", ast.String())
	if !errors.As(err, &typeErr) || typeErr.Code != ErrBuiltinCollision {
		t.Errorf("Expected builtin collision, got %v", err)
	}

	err = tc.RegisterType("Broken", ast.Reference("Nowhere"))
	if !errors.As(err, &typeErr) || typeErr.Code != ErrUndefinedType {
		t.Errorf("Expected undefined type, got %v", err)
	}
	if tc.IsValidType(ast.Reference("Broken")) {
		t.Error("Failed registration must not add the type")
	}

	if err := tc.RegisterType("Email", ast.String()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := tc.RegisterType("Emails", ast.Generic("list", ast.Reference("Email"))); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestIsCompatible(t *testing.T) {
	tests := []struct {
		name       string
		expected   ast.TypeExpr
		actual     ast.TypeExpr
		compatible bool
	}{
		{"same primitive", ast.String(), ast.String(), true},
		{"int widens to float", ast.Float(), ast.Int(), true},
		{"float does not narrow to int", ast.Int(), ast.Float(), false},
		{"string vs int", ast.String(), ast.Int(), false},
		{"same generic", ast.Generic("list", ast.Int()), ast.Generic("list", ast.Int()), true},
		{"generic argument mismatch", ast.Generic("list", ast.Int()), ast.Generic("list", ast.String()), false},
		{"dynamic actual", ast.Bool(), Dynamic(), true},
		{"dynamic expected", Dynamic(), ast.Bool(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCompatible(tt.expected, tt.actual); got != tt.compatible {
				t.Errorf("IsCompatible(%s, %s) = %v, want %v", tt.expected, tt.actual, got, tt.compatible)
			}
		})
	}
}

func TestTypeOfExpression(t *testing.T) {
	tc := NewTypeChecker()
	ctx := NewTypeContext()
	ctx.Variables["count"] = ast.Int()
	ctx.Variables["ratio"] = ast.Float()
	ctx.Variables["name"] = ast.String()
	ctx.Variables["ready"] = ast.Bool()
	ctx.Variables["items"] = ast.Generic("Array", ast.String())

	num := func(v float64) ast.Expr { return &ast.NumberLiteral{Value: v} }
	ident := func(n string) ast.Expr { return &ast.Identifier{Name: n} }

	tests := []struct {
		name string
		expr ast.Expr
		want string
	}{
		{"string literal", &ast.StringLiteral{Value: "x"}, "string"},
		{"template", &ast.StringTemplate{Parts: []ast.TemplatePart{ast.Var("name")}}, "string"},
		{"integer literal is float", num(3), "float"},
		{"boolean", &ast.BooleanLiteral{Value: true}, "bool"},
		{"identifier", ident("count"), "int"},
		{"int plus int", &ast.Arithmetic{Op: ast.OpAdd, Left: ident("count"), Right: ident("count")}, "int"},
		{"int times float", &ast.Arithmetic{Op: ast.OpMultiply, Left: ident("count"), Right: ident("ratio")}, "float"},
		{"literal arithmetic", &ast.Arithmetic{Op: ast.OpAdd, Left: num(5), Right: num(3)}, "float"},
		{"comparison mixed operands", &ast.Comparison{Op: ast.OpLess, Left: ident("name"), Right: num(1)}, "bool"},
		{"logical", &ast.Logical{Op: ast.OpAnd, Left: ident("ready"), Right: &ast.BooleanLiteral{Value: false}}, "bool"},
		{"not", &ast.Not{Operand: ident("ready")}, "bool"},
		{"conditional takes then branch", &ast.Conditional{Condition: ident("ready"), Then: ident("name"), Else: num(1)}, "string"},
		{"index", &ast.IndexAccess{Collection: ident("items"), Index: ident("count")}, "string"},
		{"property", &ast.PropertyAccess{Object: ident("anything"), Property: "x"}, "string"},
		{"len", &ast.FunctionCall{Method: "len", Arguments: []ast.Argument{{Value: ident("name")}}}, "int"},
		{"abs", &ast.FunctionCall{Method: "abs", Arguments: []ast.Argument{{Value: num(-1)}}}, "float"},
		{"plugin call", &ast.FunctionCall{Object: "http", Method: "get"}, DynamicTypeName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tc.TypeOfExpression(tt.expr, ctx)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestTypeOfExpression_Errors(t *testing.T) {
	tc := NewTypeChecker()
	ctx := NewTypeContext()
	ctx.Variables["name"] = ast.String()
	ctx.Variables["count"] = ast.Int()
	ctx.Variables["list"] = ast.Generic("list", ast.String())

	ident := func(n string) ast.Expr { return &ast.Identifier{Name: n} }

	tests := []struct {
		name string
		expr ast.Expr
		code ErrorCode
	}{
		{"undefined variable", ident("missing"), ErrUndefinedVariable},
		{"string arithmetic", &ast.Arithmetic{Op: ast.OpAdd, Left: ident("name"), Right: ident("name")}, ErrInvalidBinaryOp},
		{"logical on string", &ast.Logical{Op: ast.OpOr, Left: ident("name"), Right: &ast.BooleanLiteral{}}, ErrInvalidBinaryOp},
		{"not on int", &ast.Not{Operand: ident("count")}, ErrInvalidUnaryOp},
		{"non-bool condition", &ast.Conditional{Condition: ident("name"), Then: ident("name"), Else: ident("name")}, ErrTypeMismatch},
		{"index on list", &ast.IndexAccess{Collection: ident("list"), Index: ident("count")}, ErrInvalidIndexOp},
		{"float index", &ast.IndexAccess{Collection: ident("list"), Index: &ast.NumberLiteral{Value: 0}}, ErrInvalidIndexOp},
		{"unknown builtin", &ast.FunctionCall{Method: "reverse"}, ErrUndefinedFunction},
		{"builtin arity", &ast.FunctionCall{Method: "len"}, ErrInvalidArgumentCount},
		{"undefined plugin argument", &ast.FunctionCall{Object: "http", Method: "get", Arguments: []ast.Argument{{Value: ident("nope")}}}, ErrUndefinedVariable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tc.TypeOfExpression(tt.expr, ctx)
			var typeErr *TypeError
			if !errors.As(err, &typeErr) {
				t.Fatalf("Expected *TypeError, got %v", err)
			}
			if typeErr.Code != tt.code {
				t.Errorf("Expected %s, got %s (%s)", tt.code, typeErr.Code, typeErr.Message)
			}
		})
	}
}

func TestRegisteredFunctionSignature(t *testing.T) {
	tc := NewTypeChecker()
	tc.RegisterFunction("math.max", FunctionSignature{
		Parameters: []ast.TypeExpr{ast.Float(), ast.Float()},
		ReturnType: ast.Float(),
	})

	spec := mustParse(t, `spec "Fn" v1.0 { computed: top: -> math.max(1, 2) bad: -> math.max(1) }`)
	err := tc.ValidateSpec(spec)

	var list ErrorList
	if !errors.As(err, &list) || len(list) != 1 {
		t.Fatalf("Expected exactly one error, got %v", err)
	}
	if list[0].Code != ErrInvalidArgumentCount {
		t.Errorf("Expected argument count error, got %s", list[0].Code)
	}
}

func TestValidateModifier(t *testing.T) {
	tc := NewTypeChecker()

	tests := []struct {
		name      string
		modifier  ast.Modifier
		fieldType ast.TypeExpr
		wantErr   bool
	}{
		{"string default", ast.Modifier{Kind: ast.ModifierDefault, Default: &ast.StringLiteral{Value: "x"}}, ast.String(), false},
		{"number default on float", ast.Modifier{Kind: ast.ModifierDefault, Default: &ast.NumberLiteral{Value: 1}}, ast.Float(), false},
		{"number default on int", ast.Modifier{Kind: ast.ModifierDefault, Default: &ast.NumberLiteral{Value: 1}}, ast.Int(), true},
		{"string default on bool", ast.Modifier{Kind: ast.ModifierDefault, Default: &ast.StringLiteral{Value: "x"}}, ast.Bool(), true},
		{"plugin default", ast.Modifier{Kind: ast.ModifierDefault, Default: &ast.FunctionCall{Object: "env", Method: "get"}}, ast.Int(), false},
		{"identifier default has no context", ast.Modifier{Kind: ast.ModifierDefault, Default: &ast.Identifier{Name: "other"}}, ast.String(), true},
		{"secret", ast.Modifier{Kind: ast.ModifierSecret}, ast.Int(), false},
		{"ref", ast.Modifier{Kind: ast.ModifierRef, Ref: "Nowhere"}, ast.String(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tc.ValidateModifier(tt.modifier, tt.fieldType)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateModifier() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSpec_Valid(t *testing.T) {
	source := `spec "Agent" v1.0 {
  description: "demo"
  inputs:
    name: string default("anon")
    score: float default(1.5)
    tags: Tags generate
    owner: Owner
  computed:
    greeting: -> "Hello ${name}"
    size: -> len(name)
    users: -> http.get(path: "/users")
  events:
    on_create(e): log.info(message: e)
  constraints:
    assert: size
  lifecycle:
    before: setup
    after: log.info(message: name)
    finally: log.info(message: greeting)
  types:
    Tags: list<string>
    Owner: map<string, Email>
    Email: string
}`

	if err := Check(mustParse(t, source)); err != nil {
		t.Fatalf("Expected valid spec, got: %v", err)
	}
}

func TestValidateSpec_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		code   ErrorCode
		cat    Category
	}{
		{"unknown field type", `spec "A" v1.0 { inputs: x: Missing }`, ErrUndefinedType, CategorySemantic},
		{"bad generic arity", `spec "A" v1.0 { inputs: x: map<string> }`, ErrUndefinedType, CategorySemantic},
		{"builtin collision", `spec "A" v1.0 { types: list: string }`, ErrBuiltinCollision, CategorySemantic},
		{"duplicate type", `spec "A" v1.0 { types: T: string T: int }`, ErrDuplicateType, CategorySemantic},
		{"invalid type definition", `spec "A" v1.0 { types: T: list<Nope> }`, ErrUndefinedType, CategorySemantic},
		{"default mismatch", `spec "A" v1.0 { inputs: x: bool default("yes") }`, ErrTypeMismatch, CategoryType},
		{"undefined variable in computed", `spec "A" v1.0 { computed: y: -> nope }`, ErrUndefinedVariable, CategoryType},
		{"computed cannot see computed", `spec "A" v1.0 { computed: a: -> "x" b: -> a }`, ErrUndefinedVariable, CategoryType},
		{"after cannot see computed", `spec "A" v1.0 { computed: a: -> "x" lifecycle: after: log.info(a) }`, ErrUndefinedVariable, CategoryType},
		{"unknown builtin", `spec "A" v1.0 { computed: y: -> shout("x") }`, ErrUndefinedFunction, CategoryType},
		{"empty extension import", `spec "A" v1.0 { extensions: http: "" }`, ErrInvalidExtension, CategorySemantic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(mustParse(t, tt.source))

			var list ErrorList
			if !errors.As(err, &list) || len(list) == 0 {
				t.Fatalf("Expected ErrorList, got %v", err)
			}
			if list[0].Code != tt.code {
				t.Errorf("Expected %s, got %s: %s", tt.code, list[0].Code, list[0].Message)
			}
			if list[0].Category != tt.cat {
				t.Errorf("Expected category %s, got %s", tt.cat, list[0].Category)
			}
			if list[0].Location.Line == 0 {
				t.Error("Expected error to carry a location")
			}
		})
	}
}

func TestValidateSpec_CollectsAllErrors(t *testing.T) {
	spec := mustParse(t, `spec "A" v1.0 { inputs: a: Nope b: bool default(1) computed: c: -> missing }`)

	err := Check(spec)
	var list ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("Expected ErrorList, got %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 errors, got %d: %v", len(list), list)
	}
}

func TestValidateSpec_Idempotent(t *testing.T) {
	tc := NewTypeChecker()
	spec := mustParse(t, `spec "A" v1.0 { inputs: t: T types: T: string }`)

	for i := 0; i < 2; i++ {
		if err := tc.ValidateSpec(spec); err != nil {
			t.Fatalf("Run %d: unexpected error: %v", i, err)
		}
	}
}

func TestTypeErrorFormatting(t *testing.T) {
	err := NewTypeMismatch(ast.SourceLocation{Line: 3, Column: 5}, ast.Bool(), ast.String(), "default value")

	if !strings.Contains(err.Error(), "expected bool, found string") {
		t.Errorf("Unexpected Error(): %s", err.Error())
	}
	formatted := err.Format()
	if !strings.Contains(formatted, "<source>:3:5: ERROR [TYP102]") {
		t.Errorf("Unexpected Format(): %s", formatted)
	}

	js, jsonErr := err.ToJSON()
	if jsonErr != nil {
		t.Fatalf("ToJSON failed: %v", jsonErr)
	}
	if !strings.Contains(js, `"category": "type"`) {
		t.Errorf("Expected category in JSON, got %s", js)
	}
}
