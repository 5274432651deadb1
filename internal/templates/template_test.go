package templates

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/copyleftdev/sigmos/internal/compiler/parser"
	"github.com/copyleftdev/sigmos/internal/compiler/typechecker"
)

func TestTemplateValidation(t *testing.T) {
	file := []*TemplateFile{{TargetPath: "test.txt", Content: "test"}}

	tests := []struct {
		name    string
		tmpl    *Template
		wantErr bool
	}{
		{
			name:    "valid template",
			tmpl:    &Template{Name: "test", Version: "1.0.0", Files: file},
			wantErr: false,
		},
		{
			name:    "missing name",
			tmpl:    &Template{Version: "1.0.0", Files: file},
			wantErr: true,
		},
		{
			name:    "missing version",
			tmpl:    &Template{Name: "test", Files: file},
			wantErr: true,
		},
		{
			name:    "no files",
			tmpl:    &Template{Name: "test", Version: "1.0.0"},
			wantErr: true,
		},
		{
			name: "duplicate variable names",
			tmpl: &Template{
				Name:    "test",
				Version: "1.0.0",
				Variables: []*TemplateVariable{
					{Name: "var1", Type: VariableTypeString},
					{Name: "var1", Type: VariableTypeString},
				},
				Files: file,
			},
			wantErr: true,
		},
		{
			name: "select variable without options",
			tmpl: &Template{
				Name:      "test",
				Version:   "1.0.0",
				Variables: []*TemplateVariable{{Name: "choice", Type: VariableTypeSelect}},
				Files:     file,
			},
			wantErr: true,
		},
		{
			name: "empty file content",
			tmpl: &Template{
				Name:    "test",
				Version: "1.0.0",
				Files:   []*TemplateFile{{TargetPath: "empty.txt"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tmpl.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func newContext(name string, tmpl *Template) *TemplateContext {
	return &TemplateContext{
		Name:      name,
		Module:    "github.com/copyleftdev/sigmos",
		Variables: tmpl.Defaults(),
		Timestamp: time.Now(),
	}
}

func TestEngineExecutePluginTemplate(t *testing.T) {
	tmpl := NewPluginTemplate()
	ctx := newContext("rate-limiter", tmpl)
	ctx.Variables["description"] = "Token bucket limiter"
	ctx.Variables["network"] = true

	dir := t.TempDir()
	written, err := NewEngine().Execute(tmpl, ctx, dir)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []string{
		filepath.Join("rate_limiter", "rate_limiter.go"),
		filepath.Join("rate_limiter", "rate_limiter_test.go"),
	}
	if len(written) != len(want) {
		t.Fatalf("Execute() wrote %v, want %v", written, want)
	}
	for i := range want {
		if written[i] != want[i] {
			t.Errorf("written[%d] = %s, want %s", i, written[i], want[i])
		}
	}

	source, err := os.ReadFile(filepath.Join(dir, want[0]))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	for _, fragment := range []string{
		"package rate_limiter",
		`const DefaultName = "rate_limiter"`,
		`"github.com/copyleftdev/sigmos/internal/plugin"`,
		`Description: "Token bucket limiter",`,
		"RequiresNetwork: true",
		"// Provider is the Rate Limiter capability provider.",
		"`mapstructure:\"name\" yaml:\"name\"`",
	} {
		if !strings.Contains(string(source), fragment) {
			t.Errorf("generated source missing %q", fragment)
		}
	}
}

func TestEngineExecuteSkipsConditionalFiles(t *testing.T) {
	tmpl := NewPluginTemplate()
	ctx := newContext("audit", tmpl)
	ctx.Variables["tests"] = false

	dir := t.TempDir()
	written, err := NewEngine().Execute(tmpl, ctx, dir)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("Execute() wrote %v, want one file", written)
	}
	if _, err := os.Stat(filepath.Join(dir, "audit", "audit_test.go")); !os.IsNotExist(err) {
		t.Errorf("test file should not exist, stat error = %v", err)
	}
}

func TestSpecTemplateProducesValidSpec(t *testing.T) {
	tmpl := NewSpecTemplate()
	ctx := newContext("welcome mat", tmpl)
	ctx.Variables["version"] = "2.1"

	dir := t.TempDir()
	written, err := NewEngine().Execute(tmpl, ctx, dir)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("Execute() wrote %v, want spec and config", written)
	}

	source, err := os.ReadFile(filepath.Join(dir, "welcome_mat.sigmos"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	spec, err := parser.ParseString(string(source))
	if err != nil {
		t.Fatalf("generated spec does not parse: %v\n%s", err, source)
	}
	if spec.Name != "WelcomeMat" {
		t.Errorf("spec name = %q, want WelcomeMat", spec.Name)
	}
	if spec.Version.String() != "2.1" {
		t.Errorf("spec version = %s, want 2.1", spec.Version)
	}
	if err := typechecker.Check(spec); err != nil {
		t.Errorf("generated spec does not type check: %v", err)
	}
}

func TestEngineExecuteRequiredVariable(t *testing.T) {
	tmpl := NewSpecTemplate()
	ctx := newContext("demo", tmpl)
	delete(ctx.Variables, "version")

	if _, err := NewEngine().Execute(tmpl, ctx, t.TempDir()); err == nil {
		t.Error("Execute() should fail without a required variable")
	}
}

func TestEngineExecuteRejectsEscapingPaths(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"parent traversal", "../outside.txt"},
		{"nested traversal", "a/../../outside.txt"},
		{"absolute", "/tmp/outside.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := &Template{
				Name:    "escape",
				Version: "1.0.0",
				Files:   []*TemplateFile{{TargetPath: tt.path, Content: "x"}},
			}
			ctx := &TemplateContext{Name: "escape", Variables: map[string]any{}}
			if _, err := NewEngine().Execute(tmpl, ctx, t.TempDir()); err == nil {
				t.Errorf("Execute() should reject %s", tt.path)
			}
		})
	}
}

func TestEngineRenderMissingVariable(t *testing.T) {
	ctx := &TemplateContext{Name: "demo", Variables: map[string]any{}}
	if _, err := NewEngine().Render("{{.Variables.nope}}", ctx); err == nil {
		t.Error("Render() should fail for a missing variable")
	}

	got, err := NewEngine().Render(`{{default "x" (index .Variables "nope")}}-{{upper .Name}}`, ctx)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got != "x-DEMO" {
		t.Errorf("Render() = %q, want x-DEMO", got)
	}
}

func TestNameHelpers(t *testing.T) {
	tests := []struct {
		in    string
		title string
		camel string
		snake string
	}{
		{"rate-limiter", "Rate Limiter", "RateLimiter", "rate_limiter"},
		{"RateLimiter", "Rate Limiter", "RateLimiter", "rate_limiter"},
		{"audit", "Audit", "Audit", "audit"},
		{"web hook_v2", "Web Hook V2", "WebHookV2", "web_hook_v2"},
		{"", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Title(tt.in); got != tt.title {
				t.Errorf("Title(%q) = %q, want %q", tt.in, got, tt.title)
			}
			if got := Camel(tt.in); got != tt.camel {
				t.Errorf("Camel(%q) = %q, want %q", tt.in, got, tt.camel)
			}
			if got := Snake(tt.in); got != tt.snake {
				t.Errorf("Snake(%q) = %q, want %q", tt.in, got, tt.snake)
			}
		})
	}
}

func TestBuiltinRegistry(t *testing.T) {
	registry := NewBuiltinRegistry()

	list := registry.List()
	if len(list) != 2 || list[0].Name != PluginTemplateName || list[1].Name != SpecTemplateName {
		t.Fatalf("List() = %v, want plugin and spec", list)
	}
	if !registry.Exists(SpecTemplateName) {
		t.Error("Exists(spec) = false")
	}
	if _, err := registry.Get("missing"); err == nil {
		t.Error("Get() should fail for an unknown template")
	}
	if err := registry.Register(NewPluginTemplate()); err == nil {
		t.Error("Register() should fail for a duplicate template")
	}
}
