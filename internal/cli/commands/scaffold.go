package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"

	"github.com/copyleftdev/sigmos/internal/cli/ui"
	"github.com/copyleftdev/sigmos/internal/templates"
)

// scaffoldOptions selects a template and the values to render it with.
type scaffoldOptions struct {
	Template string
	Name     string
	Module   string
	Dir      string

	// Preset holds values given as flags; they are never prompted for
	Preset map[string]any

	// Interactive prompts for the name and every variable not preset
	Interactive bool
}

// scaffold renders a builtin template and reports the written files.
func scaffold(w io.Writer, opts scaffoldOptions) ([]string, error) {
	tmpl, err := templates.NewBuiltinRegistry().Get(opts.Template)
	if err != nil {
		return nil, err
	}

	name := opts.Name
	if name == "" {
		if !opts.Interactive {
			return nil, fmt.Errorf("a name is required")
		}
		prompt := &survey.Input{Message: "Name:"}
		if err := survey.AskOne(prompt, &name, survey.WithValidator(survey.Required)); err != nil {
			return nil, err
		}
	}
	if templates.Snake(name) == "" {
		return nil, fmt.Errorf("invalid name %q", name)
	}

	vars, err := collectVariables(tmpl, opts.Preset, opts.Interactive)
	if err != nil {
		return nil, err
	}

	ctx := &templates.TemplateContext{
		Name:      name,
		Module:    opts.Module,
		Variables: vars,
		Timestamp: time.Now(),
	}
	written, err := templates.NewEngine().Execute(tmpl, ctx, opts.Dir)
	if err != nil {
		return nil, err
	}

	ui.WriteSuccess(w, fmt.Sprintf("Created %s %q in %s", tmpl.Name, name, opts.Dir), noColor)
	for _, path := range written {
		fmt.Fprintf(w, "  %s\n", path)
	}
	return written, nil
}

// collectVariables resolves each template variable from preset, a prompt, or
// its default, in that order.
func collectVariables(tmpl *templates.Template, preset map[string]any, interactive bool) (map[string]any, error) {
	vars := tmpl.Defaults()
	for _, v := range tmpl.Variables {
		if value, ok := preset[v.Name]; ok {
			vars[v.Name] = value
			continue
		}
		if !interactive {
			continue
		}

		message := v.Prompt
		if message == "" {
			message = v.Description + ":"
		}

		switch v.Type {
		case templates.VariableTypeConfirm, templates.VariableTypeBool:
			def, _ := v.Default.(bool)
			value := def
			if err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &value); err != nil {
				return nil, err
			}
			vars[v.Name] = value

		case templates.VariableTypeSelect:
			var value string
			prompt := &survey.Select{Message: message, Options: v.Options}
			if def, ok := v.Default.(string); ok {
				prompt.Default = def
			}
			if err := survey.AskOne(prompt, &value); err != nil {
				return nil, err
			}
			vars[v.Name] = value

		default:
			var value string
			prompt := &survey.Input{Message: message}
			if v.Default != nil {
				prompt.Default = fmt.Sprint(v.Default)
			}
			var askOpts []survey.AskOpt
			if v.Required {
				askOpts = append(askOpts, survey.WithValidator(survey.Required))
			}
			if err := survey.AskOne(prompt, &value, askOpts...); err != nil {
				return nil, err
			}
			vars[v.Name] = value
		}
	}
	return vars, nil
}

// moduleFromGoMod returns the module path declared in dir/go.mod, or "".
func moduleFromGoMod(dir string) string {
	f, err := os.Open(filepath.Join(dir, "go.mod"))
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, "module "); ok {
			return strings.Trim(strings.TrimSpace(rest), `"`)
		}
	}
	return ""
}
