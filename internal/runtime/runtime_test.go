package runtime

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/sigmos/internal/compiler/ast"
	"github.com/copyleftdev/sigmos/internal/compiler/parser"
	"github.com/copyleftdev/sigmos/internal/plugin"
)

// recorder is a provider that records every call it receives.
type recorder struct {
	plugin.State
	name string

	mu    sync.Mutex
	calls []recordedCall
	fail  error
}

type recordedCall struct {
	method string
	args   map[string]any
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Initialize() error {
	r.MarkInitialized()
	return nil
}

func (r *recorder) Execute(method string, args map[string]any) (any, error) {
	if err := r.CheckInitialized(r.name); err != nil {
		return nil, err
	}
	if method == "missing" {
		return nil, plugin.MethodNotFound(r.name, method)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{method: method, args: args})
	if r.fail != nil {
		return nil, plugin.ExecutionFailed(r.name, method, r.fail)
	}
	if method == "count" {
		return len(r.calls), nil
	}
	return args, nil
}

// constant is a provider that returns a fixed value from every method.
type constant struct {
	name  string
	value any
}

func (c *constant) Name() string { return c.name }
func (c *constant) Initialize() error { return nil }
func (c *constant) Execute(string, map[string]any) (any, error) {
	return c.value, nil
}

func (r *recorder) methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.method
	}
	return out
}

func mustParse(t *testing.T, source string) *ast.Spec {
	t.Helper()
	spec, err := parser.ParseString(source)
	require.NoError(t, err)
	return spec
}

func TestExecute_AgentScenario(t *testing.T) {
	spec := mustParse(t, `spec "Agent" v1.0 { description: "demo" inputs: name: string computed: greeting: -> "Hello World" }`)

	rt := New()
	state, _ := rt.Context().State()
	assert.Equal(t, StateIdle, state)

	require.NoError(t, rt.Execute(spec))

	greeting, ok := rt.Context().Computed("greeting")
	require.True(t, ok)
	assert.Equal(t, "Hello World", greeting)

	name, ok := rt.Context().Variable("name")
	require.True(t, ok)
	assert.Nil(t, name)

	state, reason := rt.Context().State()
	assert.Equal(t, StateCompleted, state)
	assert.Empty(t, reason)
	assert.NotEmpty(t, rt.ExecutionID())
}

func TestExecute_Inputs(t *testing.T) {
	spec := mustParse(t, `spec "Inputs" v1.0 {
  inputs:
    title: string default("untitled")
    count: int default(3)
    id: string generate
    enabled: bool generate
    ratio: float generate
    tags: list<string> generate
    labels: map<string, string> generate
    owner: User generate
    supplied: string default("ignored")
    plain: string optional secret
    both: string default("first") generate
}`)

	rt := New()
	require.NoError(t, rt.SetInput("supplied", "given"))
	require.NoError(t, rt.Execute(spec))

	vars := rt.Context().Variables()
	assert.Equal(t, "untitled", vars["title"])
	assert.Equal(t, 3.0, vars["count"])
	assert.Equal(t, "generated", vars["id"])
	assert.Equal(t, false, vars["enabled"])
	assert.Equal(t, 0.0, vars["ratio"])
	assert.Equal(t, []any{}, vars["tags"])
	assert.Equal(t, map[string]any{}, vars["labels"])
	assert.Nil(t, vars["owner"])
	assert.Equal(t, "given", vars["supplied"])
	assert.Contains(t, vars, "plain")
	assert.Nil(t, vars["plain"])
	assert.Equal(t, "generated", vars["both"])
}

func TestExecute_ComputedUsesInputSnapshot(t *testing.T) {
	spec := &ast.Spec{
		Name:    "Computed",
		Version: ast.NewVersion(1, 0, -1),
		Inputs: []*ast.FieldDef{
			{Name: "name", Type: ast.String()},
			{Name: "age", Type: ast.Int()},
		},
		Computed: []*ast.ComputedField{
			{Name: "summary", Expression: &ast.StringTemplate{Parts: ast.ParseTemplate("${name} is ${age}")}},
			{Name: "next", Expression: arith(ast.OpAdd, ident("age"), num(1))},
			{Name: "chained", Expression: ident("next")},
		},
	}

	rt := New()
	require.NoError(t, rt.SetInputs(map[string]any{"name": "Alice", "age": 30}))
	require.NoError(t, rt.Execute(spec))

	computed := rt.Context().ComputedValues()
	assert.Equal(t, "Alice is 30", computed["summary"])
	assert.Equal(t, 31.0, computed["next"])
	// computed fields see only inputs
	assert.Equal(t, "${next}", computed["chained"])
}

func TestExecute_LifecycleOrder(t *testing.T) {
	spec := mustParse(t, `spec "Hooks" v1.0 {
  inputs:
    name: string default("Bob")
  computed:
    greeting: -> "Hi ${name}"
  lifecycle:
    before: audit.start(phase: "before", name)
    after: audit.finish(name, greeting)
    finally: audit.cleanup(greeting)
}`)

	audit := &recorder{name: "audit"}
	rt := New()
	require.NoError(t, rt.RegisterPlugin(audit))
	require.NoError(t, rt.Execute(spec))

	assert.Equal(t, []string{"start", "finish"}, audit.methods())

	// before runs ahead of input processing
	assert.Equal(t, map[string]any{"phase": "before", "arg_1": "${name}"}, audit.calls[0].args)
	// after sees inputs but not computed values
	assert.Equal(t, map[string]any{"arg_0": "Bob", "arg_1": "${greeting}"}, audit.calls[1].args)

	require.NoError(t, rt.Finalize(spec))
	assert.Equal(t, []string{"start", "finish", "cleanup"}, audit.methods())
	// finally sees the full bindings
	assert.Equal(t, map[string]any{"arg_0": "Hi Bob"}, audit.calls[2].args)
}

func TestExecute_IdentifierActionUsesBuiltinObject(t *testing.T) {
	spec := mustParse(t, `spec "Builtin" v1.0 { lifecycle: before: warmup }`)

	rt := New()
	err := rt.Execute(spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownFunction)
	assert.Contains(t, err.Error(), "builtin.warmup")

	builtin := &recorder{name: ast.BuiltinObject}
	require.NoError(t, rt.RegisterPlugin(builtin))
	require.NoError(t, rt.Execute(spec))
	assert.Equal(t, []string{"warmup"}, builtin.methods())
}

func TestExecute_FailureMarksState(t *testing.T) {
	spec := &ast.Spec{
		Name:    "Broken",
		Version: ast.NewVersion(1, 0, -1),
		Computed: []*ast.ComputedField{
			{Name: "ok", Expression: num(1)},
			{Name: "bad", Expression: arith(ast.OpDivide, num(1), num(0))},
		},
	}

	rt := New()
	err := rt.Execute(spec)
	require.ErrorIs(t, err, ErrDivisionByZero)

	state, reason := rt.Context().State()
	assert.Equal(t, StateFailed, state)
	assert.Contains(t, reason, "Division by zero")

	_, ok := rt.Context().Computed("ok")
	assert.False(t, ok, "computed results are not written when a later field fails")

	// a second run starts over
	spec.Computed = spec.Computed[:1]
	require.NoError(t, rt.Execute(spec))
	state, reason = rt.Context().State()
	assert.Equal(t, StateCompleted, state)
	assert.Empty(t, reason)
}

func TestEvaluate_PluginDispatch(t *testing.T) {
	svc := &recorder{name: "svc"}
	rt := New()
	require.NoError(t, rt.RegisterPlugin(svc, "service"))

	expr := &ast.FunctionCall{Object: "service", Method: "send", Arguments: []ast.Argument{
		{Value: str("first")},
		{Name: "to", Value: ident("user")},
		{Value: arith(ast.OpAdd, num(1), num(2))},
	}}
	got, err := rt.EvaluateExpressionWithContext(expr, map[string]any{"user": "alice"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"arg_0": "first", "to": "alice", "arg_2": 3.0}, got)

	// provider results are normalized to runtime values
	got, err = rt.EvaluateExpressionWithContext(call("svc", "count"), nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	_, err = rt.EvaluateExpressionWithContext(call("svc", "missing"), nil)
	assert.ErrorIs(t, err, ErrUnknownFunction)
	assert.ErrorIs(t, err, plugin.ErrMethodNotFound)

	require.NoError(t, rt.Registry().Disable("svc"))
	_, err = rt.EvaluateExpressionWithContext(call("svc", "send"), nil)
	assert.ErrorIs(t, err, plugin.ErrDisabled)
	var rtErr *Error
	require.ErrorAs(t, err, &rtErr)
	assert.Equal(t, KindPlugin, rtErr.Kind)
	require.NoError(t, rt.Registry().Enable("svc"))

	svc.fail = errors.New("boom")
	_, err = rt.EvaluateExpressionWithContext(call("svc", "send"), nil)
	assert.ErrorIs(t, err, ErrPluginFailed)
	assert.ErrorIs(t, err, plugin.ErrExecutionFailed)
}

func TestDispatchEvent(t *testing.T) {
	spec := mustParse(t, `spec "Events" v1.0 {
  inputs:
    name: string default("Ann")
  events:
    on_create(evt): audit.created(evt, name)
    on_change(change): audit.changed(change)
    deployed(target): audit.deployed(target)
    on_create(evt): audit.again()
}`)

	audit := &recorder{name: "audit"}
	rt := New()
	require.NoError(t, rt.RegisterPlugin(audit))
	require.NoError(t, rt.Execute(spec))
	assert.Empty(t, audit.methods(), "execute does not dispatch events")

	n, err := rt.DispatchEvent(spec, ast.EventType{Kind: ast.EventOnCreate}, map[string]any{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, map[string]any{"arg_0": map[string]any{"id": 1.0}, "arg_1": "Ann"}, audit.calls[0].args)

	n, err = rt.DispatchEvent(spec, ast.EventTypeByName("deployed"), "prod")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = rt.DispatchEvent(spec, ast.EventType{Kind: ast.EventOnError}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, rt.Update(spec, "name", "Bea"))
	last := audit.calls[len(audit.calls)-1]
	assert.Equal(t, "changed", last.method)
	assert.Equal(t, map[string]any{"field": "name", "old": "Ann", "new": "Bea"}, last.args["arg_0"])

	assert.ErrorIs(t, rt.Update(spec, "nope", 1), ErrUnknownField)

	audit.fail = errors.New("down")
	_, err = rt.DispatchEvent(spec, ast.EventTypeByName("deployed"), "prod")
	var rtErr *Error
	require.ErrorAs(t, err, &rtErr)
	assert.Equal(t, KindEvent, rtErr.Kind)
}

func TestUpdate_Readonly(t *testing.T) {
	spec := mustParse(t, `spec "RO" v1.0 { inputs: id: string readonly generate }`)
	rt := New()
	require.NoError(t, rt.Execute(spec))

	err := rt.Update(spec, "id", "changed")
	assert.ErrorIs(t, err, ErrReadonlyField)
	v, _ := rt.Context().Variable("id")
	assert.Equal(t, "generated", v)
}

func TestCheckConstraints(t *testing.T) {
	spec := &ast.Spec{
		Name:    "Limits",
		Version: ast.NewVersion(1, 0, -1),
		Inputs:  []*ast.FieldDef{{Name: "count", Type: ast.Int()}},
		Computed: []*ast.ComputedField{
			{Name: "double", Expression: arith(ast.OpMultiply, ident("count"), num(2))},
		},
		Constraints: []*ast.ConstraintDef{
			{Kind: ast.ConstraintAssert, Expression: cmp(ast.OpGreater, ident("count"), num(0))},
			{Kind: ast.ConstraintEnsure, Expression: cmp(ast.OpLess, ident("double"), num(10))},
		},
	}

	rt := New()
	require.NoError(t, rt.SetInput("count", 3))
	require.NoError(t, rt.Execute(spec))
	assert.NoError(t, rt.CheckConstraints(spec))

	require.NoError(t, rt.SetInput("count", 0))
	require.NoError(t, rt.Execute(spec))
	err := rt.CheckConstraints(spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConstraintViolated)
	assert.Contains(t, err.Error(), "assert failed: (count > 0)")
	assert.NotContains(t, err.Error(), "ensure")

	require.NoError(t, rt.SetInput("count", -10))
	require.NoError(t, rt.Execute(spec))
	err = rt.CheckConstraints(spec)
	assert.Contains(t, err.Error(), "assert failed")
	assert.NotContains(t, err.Error(), "ensure failed")
}

func TestFinalize_CollectsFailures(t *testing.T) {
	spec := mustParse(t, `spec "Fin" v1.0 { lifecycle: finally: a.one() finally: b.two() }`)
	rt := New()

	err := rt.Finalize(spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.one")
	assert.Contains(t, err.Error(), "b.two")

	var rtErr *Error
	require.ErrorAs(t, err, &rtErr)
	assert.Equal(t, KindLifecycle, rtErr.Kind)
}

func TestParseInputValue(t *testing.T) {
	tests := []struct {
		typ     ast.TypeExpr
		raw     string
		want    any
		wantErr bool
	}{
		{ast.String(), "42", "42", false},
		{ast.Int(), "42", 42.0, false},
		{ast.Float(), "1.5", 1.5, false},
		{ast.Int(), "x", nil, true},
		{ast.Bool(), "true", true, false},
		{ast.Bool(), "maybe", nil, true},
		{ast.Generic("list", ast.String()), `["a","b"]`, []any{"a", "b"}, false},
		{ast.Reference("User"), `{"id":1}`, map[string]any{"id": 1.0}, false},
		{ast.Reference("Code"), "plain", "plain", false},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String()+"/"+tt.raw, func(t *testing.T) {
			got, err := ParseInputValue(tt.typ, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSnapshot(t *testing.T) {
	spec := mustParse(t, `spec "Agent" v1.0 { inputs: name: string computed: greeting: -> "Hello ${name}" }`)
	rt := New()
	require.NoError(t, rt.SetInput("name", "Zoe"))
	require.NoError(t, rt.Execute(spec))

	snap := rt.Snapshot()
	assert.Equal(t, rt.ExecutionID(), snap.ExecutionID)
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, "Zoe", snap.Variables["name"])
	assert.Equal(t, "Hello Zoe", snap.Computed["greeting"])
}

func TestExecutionContext_ConcurrentReaders(t *testing.T) {
	spec := mustParse(t, `spec "Agent" v1.0 { inputs: name: string default("x") computed: greeting: -> "hi" }`)
	rt := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = rt.Context().Bindings()
			_, _ = rt.Context().State()
		}()
	}
	require.NoError(t, rt.Execute(spec))
	wg.Wait()
}

func TestExecute_NonFiniteNumbersFail(t *testing.T) {
	overflow := &ast.Spec{
		Name:    "Big",
		Version: ast.NewVersion(1, 0, -1),
		Computed: []*ast.ComputedField{
			{Name: "big", Expression: arith(ast.OpMultiply, num(1e308), num(10))},
		},
	}

	tests := []struct {
		name string
		spec *ast.Spec
		want error
	}{
		{"overflowing arithmetic", overflow, ErrInvalidNumber},
		{"plugin infinity", mustParse(t, `spec "Big" v1.0 { computed: big: -> js.eval("Infinity") }`), ErrPluginFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := New()
			require.NoError(t, rt.RegisterPlugin(&constant{name: "js", value: math.Inf(1)}))

			err := rt.Execute(tt.spec)
			require.ErrorIs(t, err, tt.want)

			state, _ := rt.Context().State()
			assert.Equal(t, StateFailed, state)

			// the snapshot stays encodable for history and JSON output
			_, err = json.Marshal(rt.Snapshot())
			assert.NoError(t, err)
		})
	}
}

func TestEvaluateExpression_UsesEmptyContext(t *testing.T) {
	rt := New()
	require.NoError(t, rt.SetInput("name", "Ada"))
	require.NoError(t, rt.Execute(mustParse(t, `spec "Named" v1.0 { inputs: name: string }`)))

	got, err := rt.EvaluateExpression(ident("name"))
	require.NoError(t, err)
	assert.Equal(t, "${name}", got)

	got, err = rt.EvaluateExpressionWithContext(ident("name"), rt.Context().Variables())
	require.NoError(t, err)
	assert.Equal(t, "Ada", got)
}
