package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/russross/blackfriday/v2"
	"github.com/spf13/cobra"

	"github.com/copyleftdev/sigmos/internal/cli/ui"
	"github.com/copyleftdev/sigmos/internal/compiler/ast"
	"github.com/copyleftdev/sigmos/internal/transpile"
)

var describeFormat string

// NewDescribeCommand creates the describe command
func NewDescribeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe FILE",
		Short: "Summarize a specification",
		Long: `Print a summary of a SIGMOS specification: its declarations per
section with their types, modifiers and expressions.

Examples:
  sigmos describe greeter.sigmos
  sigmos describe greeter.sigmos --format markdown > GREETER.md
  sigmos describe greeter.sigmos --format html > greeter.html`,
		Args: cobra.ExactArgs(1),
		RunE: runDescribe,
	}

	cmd.Flags().StringVarP(&describeFormat, "format", "f", "text", "Output format (text, markdown, html)")

	return cmd
}

func runDescribe(cmd *cobra.Command, args []string) error {
	switch describeFormat {
	case "text", "markdown", "md", "html":
	default:
		return fmt.Errorf("unsupported format %q (want text, markdown or html)", describeFormat)
	}

	f, err := loadSpec(cmd, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch describeFormat {
	case "markdown", "md":
		_, err = io.WriteString(out, describeMarkdown(f.Spec))
	case "html":
		html := blackfriday.Run([]byte(describeMarkdown(f.Spec)),
			blackfriday.WithExtensions(blackfriday.CommonExtensions))
		_, err = out.Write(html)
	default:
		describeText(out, f.Spec)
	}
	return err
}

func describeText(w io.Writer, spec *ast.Spec) {
	ui.Header(w, fmt.Sprintf("%s v%s", spec.Name, spec.Version), noColor)
	if spec.Description != "" {
		fmt.Fprintln(w, spec.Description)
	}
	fmt.Fprintln(w)

	counts := transpile.Count(spec)
	summary := ui.NewKeyValueTable(w, noColor)
	summary.AddRow("Inputs", fmt.Sprint(counts.Inputs))
	summary.AddRow("Computed", fmt.Sprint(counts.Computed))
	summary.AddRow("Events", fmt.Sprint(counts.Events))
	summary.AddRow("Constraints", fmt.Sprint(counts.Constraints))
	summary.AddRow("Lifecycle", fmt.Sprint(counts.Lifecycle))
	summary.AddRow("Extensions", fmt.Sprint(counts.Extensions))
	summary.AddRow("Types", fmt.Sprint(counts.Types))
	summary.Render()

	for _, section := range describeSections(spec) {
		if len(section.rows) == 0 {
			continue
		}
		fmt.Fprintln(w)
		ui.Header(w, section.title, noColor)
		table := ui.NewTable(w, noColor, section.headers...)
		for _, row := range section.rows {
			table.AddRow(row...)
		}
		table.Render()
	}
}

func describeMarkdown(spec *ast.Spec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s v%s\n\n", spec.Name, spec.Version)
	if spec.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", spec.Description)
	}

	for _, section := range describeSections(spec) {
		if len(section.rows) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", section.title)
		fmt.Fprintf(&b, "| %s |\n", strings.Join(section.headers, " | "))
		fmt.Fprintf(&b, "|%s\n", strings.Repeat(" --- |", len(section.headers)))
		for _, row := range section.rows {
			cells := make([]string, len(row))
			for i, cell := range row {
				cells[i] = markdownCell(cell, i > 0)
			}
			fmt.Fprintf(&b, "| %s |\n", strings.Join(cells, " | "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// markdownCell escapes pipes and renders code cells in backticks.
func markdownCell(s string, code bool) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "|", `\|`)
	if code {
		return "`" + s + "`"
	}
	return s
}

type describeSection struct {
	title   string
	headers []string
	rows    [][]string
}

func describeSections(spec *ast.Spec) []describeSection {
	inputs := describeSection{title: "Inputs", headers: []string{"Name", "Type", "Modifiers"}}
	for _, field := range spec.Inputs {
		mods := make([]string, len(field.Modifiers))
		for i, m := range field.Modifiers {
			mods[i] = m.String()
		}
		inputs.rows = append(inputs.rows, []string{field.Name, field.Type.String(), strings.Join(mods, " ")})
	}

	computed := describeSection{title: "Computed", headers: []string{"Name", "Expression"}}
	for _, c := range spec.Computed {
		computed.rows = append(computed.rows, []string{c.Name, ast.FormatExpr(c.Expression)})
	}

	events := describeSection{title: "Events", headers: []string{"Trigger", "Action"}}
	for _, e := range spec.Events {
		events.rows = append(events.rows, []string{fmt.Sprintf("%s(%s)", e.Type, e.Parameter), e.Action.String()})
	}

	constraints := describeSection{title: "Constraints", headers: []string{"Kind", "Expression"}}
	for _, c := range spec.Constraints {
		constraints.rows = append(constraints.rows, []string{c.Kind.String(), ast.FormatExpr(c.Expression)})
	}

	lifecycle := describeSection{title: "Lifecycle", headers: []string{"Phase", "Action"}}
	for _, l := range spec.Lifecycle {
		lifecycle.rows = append(lifecycle.rows, []string{l.Phase.String(), l.Action.String()})
	}

	extensions := describeSection{title: "Extensions", headers: []string{"Name", "Import"}}
	for _, e := range spec.Extensions {
		extensions.rows = append(extensions.rows, []string{e.Name, e.ImportSpec})
	}

	types := describeSection{title: "Types", headers: []string{"Name", "Definition"}}
	for _, t := range spec.Types {
		types.rows = append(types.rows, []string{t.Name, t.Definition.String()})
	}

	return []describeSection{inputs, computed, events, constraints, lifecycle, extensions, types}
}
