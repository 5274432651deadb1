// Package templates renders the scaffolds produced by `sigmos plugin new` and
// `sigmos init`.
package templates

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"
	"unicode"
)

// VariableType represents the type of template variable
type VariableType string

const (
	VariableTypeString  VariableType = "string"
	VariableTypeBool    VariableType = "bool"
	VariableTypeSelect  VariableType = "select"
	VariableTypeConfirm VariableType = "confirm"
)

// Template is a named set of files rendered into a target directory.
type Template struct {
	Name        string
	Description string
	Version     string
	Variables   []*TemplateVariable
	Files       []*TemplateFile
	Directories []string
}

// TemplateVariable represents a configurable variable in a template
type TemplateVariable struct {
	Name        string
	Description string
	Type        VariableType
	Default     any
	Required    bool
	Options     []string
	Prompt      string
}

// TemplateFile represents a file in a template
type TemplateFile struct {
	TargetPath string
	Content    string
	Template   bool   // Use template engine
	Condition  string // Rendered; the file is written only when it yields "true"
}

// TemplateContext contains all data for template execution
type TemplateContext struct {
	Name      string
	Module    string
	Variables map[string]any
	Timestamp time.Time
}

// Engine is the template rendering engine
type Engine struct {
	funcs template.FuncMap
}

// NewEngine creates a new template engine
func NewEngine() *Engine {
	return &Engine{
		funcs: template.FuncMap{
			"upper":   strings.ToUpper,
			"lower":   strings.ToLower,
			"title":   Title,
			"camel":   Camel,
			"snake":   Snake,
			"year":    func() int { return time.Now().Year() },
			"quote":   strconv.Quote,
			"default": defaultValue,
		},
	}
}

func defaultValue(def, val any) any {
	if val == nil || val == "" {
		return def
	}
	return val
}

// Execute renders tmpl into targetDir and returns the written paths relative
// to targetDir.
func (e *Engine) Execute(tmpl *Template, ctx *TemplateContext, targetDir string) ([]string, error) {
	if err := e.validateContext(tmpl, ctx); err != nil {
		return nil, fmt.Errorf("invalid template context: %w", err)
	}

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create target directory: %w", err)
	}

	for _, dir := range tmpl.Directories {
		fullPath, err := e.resolve(dir, ctx, targetDir)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(fullPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", fullPath, err)
		}
	}

	var written []string
	for _, file := range tmpl.Files {
		if file.Condition != "" {
			ok, err := e.evaluateCondition(file.Condition, ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to evaluate condition for %s: %w", file.TargetPath, err)
			}
			if !ok {
				continue
			}
		}

		fullPath, err := e.resolve(file.TargetPath, ctx, targetDir)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create parent directory for %s: %w", fullPath, err)
		}

		content := file.Content
		if file.Template {
			content, err = e.renderString(file.Content, ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to render template %s: %w", file.TargetPath, err)
			}
		}

		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			return nil, fmt.Errorf("failed to write file %s: %w", fullPath, err)
		}

		rel, err := filepath.Rel(targetDir, fullPath)
		if err != nil {
			rel = fullPath
		}
		written = append(written, rel)
	}

	return written, nil
}

// resolve renders a target path and rejects anything that escapes targetDir.
func (e *Engine) resolve(raw string, ctx *TemplateContext, targetDir string) (string, error) {
	rendered, err := e.renderString(raw, ctx)
	if err != nil {
		return "", fmt.Errorf("failed to render path %s: %w", raw, err)
	}

	rendered = filepath.Clean(rendered)
	if filepath.IsAbs(rendered) {
		return "", fmt.Errorf("invalid path: %s attempts to write outside target directory", raw)
	}

	fullPath := filepath.Join(targetDir, rendered)
	root := filepath.Clean(targetDir) + string(filepath.Separator)
	if !strings.HasPrefix(filepath.Clean(fullPath)+string(filepath.Separator), root) {
		return "", fmt.Errorf("invalid path: %s attempts to write outside target directory", raw)
	}
	return fullPath, nil
}

// Render renders a single template string against ctx.
func (e *Engine) Render(tmplStr string, ctx *TemplateContext) (string, error) {
	return e.renderString(tmplStr, ctx)
}

func (e *Engine) renderString(tmplStr string, ctx *TemplateContext) (string, error) {
	tmpl, err := template.New("").Funcs(e.funcs).Option("missingkey=error").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// validateContext validates that all required variables are provided
func (e *Engine) validateContext(tmpl *Template, ctx *TemplateContext) error {
	if ctx == nil {
		return fmt.Errorf("context is required")
	}
	for _, v := range tmpl.Variables {
		if !v.Required {
			continue
		}
		val, ok := ctx.Variables[v.Name]
		if !ok || val == "" {
			return fmt.Errorf("required variable %s not provided", v.Name)
		}
	}
	return nil
}

func (e *Engine) evaluateCondition(condition string, ctx *TemplateContext) (bool, error) {
	result, err := e.renderString(condition, ctx)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(result) == "true", nil
}

// Defaults returns a variable map holding each variable's default value.
func (t *Template) Defaults() map[string]any {
	vars := make(map[string]any, len(t.Variables))
	for _, v := range t.Variables {
		if v.Default != nil {
			vars[v.Name] = v.Default
		}
	}
	return vars
}

// Validate validates a template structure
func (t *Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if t.Version == "" {
		return fmt.Errorf("template version is required")
	}
	if len(t.Files) == 0 {
		return fmt.Errorf("template must have at least one file")
	}

	varNames := make(map[string]bool)
	for _, v := range t.Variables {
		if v.Name == "" {
			return fmt.Errorf("variable name is required")
		}
		if varNames[v.Name] {
			return fmt.Errorf("duplicate variable name: %s", v.Name)
		}
		varNames[v.Name] = true

		if v.Type == VariableTypeSelect && len(v.Options) == 0 {
			return fmt.Errorf("select variable %s must have options", v.Name)
		}
	}

	for _, f := range t.Files {
		if f.TargetPath == "" {
			return fmt.Errorf("file target path is required")
		}
		if f.Content == "" {
			return fmt.Errorf("file content is required for %s", f.TargetPath)
		}
	}

	return nil
}

// words splits an identifier at lower-to-upper case changes and at any rune
// that is neither a letter nor a digit.
func words(s string) []string {
	var out []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return out
}

// Title upper-cases the first letter of each word: "rate limiter" becomes
// "Rate Limiter".
func Title(s string) string {
	ws := words(s)
	for i, w := range ws {
		ws[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(ws, " ")
}

// Camel converts s to an exported Go identifier: "rate-limiter" becomes
// "RateLimiter".
func Camel(s string) string {
	return strings.ReplaceAll(Title(s), " ", "")
}

// Snake converts s to a lower-case identifier: "RateLimiter" becomes
// "rate_limiter".
func Snake(s string) string {
	ws := words(s)
	for i, w := range ws {
		ws[i] = strings.ToLower(w)
	}
	return strings.Join(ws, "_")
}
