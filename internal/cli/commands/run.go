package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/copyleftdev/sigmos/internal/cli/ui"
	"github.com/copyleftdev/sigmos/internal/compiler/ast"
	"github.com/copyleftdev/sigmos/internal/history"
	"github.com/copyleftdev/sigmos/internal/runner"
	"github.com/copyleftdev/sigmos/internal/runtime"
)

var (
	runInputs           []string
	runCheckConstraints bool
	runHistory          bool
	runFormat           string
	runPrompt           bool
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Execute a specification",
		Long: `Execute a SIGMOS specification with the configured plugins.

The run command will:
  1. Parse and type check the specification
  2. Install the builtin provider and every enabled plugin
  3. Run before actions, resolve inputs, evaluate computed fields, run after actions
  4. Check constraints (if --check-constraints is set)
  5. Run finally actions and print the execution record

Input values are parsed according to the declared field type; lists and
maps are given as JSON.

Examples:
  sigmos run greeter.sigmos --input name=Ada
  sigmos run deploy.sigmos -i replicas=3 -i 'tags=["a","b"]' --check-constraints
  sigmos run greeter.sigmos --prompt --format json`,
		Args: cobra.ExactArgs(1),
		RunE: runRun,
	}

	cmd.Flags().StringArrayVarP(&runInputs, "input", "i", nil, "Input value as name=value (repeatable)")
	cmd.Flags().BoolVar(&runCheckConstraints, "check-constraints", false, "Evaluate asserts and ensures after execution")
	cmd.Flags().BoolVar(&runHistory, "history", false, "Record the execution in the history database")
	cmd.Flags().StringVarP(&runFormat, "format", "f", "text", "Output format (text, json)")
	cmd.Flags().BoolVar(&runPrompt, "prompt", false, "Prompt for required inputs that were not supplied")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	if runFormat != "text" && runFormat != "json" {
		return fmt.Errorf("unsupported format %q (want text or json)", runFormat)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer logger.Sync()

	f, err := loadSpec(cmd, args[0])
	if err != nil {
		return err
	}

	raw, err := parseInputPairs(runInputs)
	if err != nil {
		return err
	}
	if runPrompt {
		if err := promptInputs(f.Spec, raw); err != nil {
			return err
		}
	}
	inputs, err := runner.ParseInputs(f.Spec, raw)
	if err != nil {
		return err
	}

	opts := runner.Options{
		Inputs:           inputs,
		CheckConstraints: runCheckConstraints,
		Plugins:          cfg.Plugins,
		Logger:           logger,
	}
	if runHistory || cfg.History.Enabled {
		store, err := openHistory(cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.History = store
		opts.Keep = cfg.History.Keep
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	record, runErr := runner.Run(ctx, f.Spec, opts)
	if record == nil {
		return runErr
	}
	logger.Debug("execution finished",
		zap.String("execution_id", record.ID),
		zap.String("state", record.State))

	out := cmd.OutOrStdout()
	if runFormat == "json" {
		if err := writeJSON(out, record); err != nil {
			return err
		}
	} else {
		printRecord(out, record)
	}

	if runErr != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), ui.ExecutionError(f.Spec.Name, runErr, noColor))
		return fmt.Errorf("execution of %s failed", f.Spec.Name)
	}
	return nil
}

// parseInputPairs splits name=value flags. A repeated name keeps the last value.
func parseInputPairs(pairs []string) (map[string]string, error) {
	raw := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid input %q (want name=value)", pair)
		}
		raw[name] = value
	}
	return raw, nil
}

// needsValue reports whether field has no way to get a value unless supplied.
func needsValue(field *ast.FieldDef) bool {
	return !field.HasModifier(ast.ModifierOptional) &&
		!field.HasModifier(ast.ModifierDefault) &&
		!field.HasModifier(ast.ModifierGenerate)
}

// promptInputs asks for every required input missing from raw.
func promptInputs(spec *ast.Spec, raw map[string]string) error {
	for _, field := range spec.Inputs {
		if _, ok := raw[field.Name]; ok || !needsValue(field) {
			continue
		}

		message := fmt.Sprintf("%s (%s):", field.Name, field.Type)
		if p, ok := field.Type.(*ast.PrimitiveType); ok && p.Primitive == ast.PrimitiveBool {
			var value bool
			if err := survey.AskOne(&survey.Confirm{Message: message}, &value); err != nil {
				return err
			}
			raw[field.Name] = fmt.Sprint(value)
			continue
		}

		var value string
		prompt := &survey.Input{Message: message}
		if field.HasModifier(ast.ModifierSecret) {
			if err := survey.AskOne(&survey.Password{Message: message}, &value, survey.WithValidator(survey.Required)); err != nil {
				return err
			}
		} else if err := survey.AskOne(prompt, &value, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
		raw[field.Name] = value
	}
	return nil
}

// printRecord renders an execution record for the terminal.
func printRecord(w io.Writer, record *history.Record) {
	ui.Header(w, fmt.Sprintf("%s v%s", record.Spec, record.Version), noColor)

	state := color.New(color.FgGreen, color.Bold)
	if record.State != runtime.StateCompleted.String() {
		state = color.New(color.FgRed, color.Bold)
	}
	if noColor {
		state.DisableColor()
	}

	summary := ui.NewKeyValueTable(w, noColor)
	summary.AddRow("Execution", record.ID)
	summary.AddRow("State", state.Sprint(record.State))
	if record.Failure != "" {
		summary.AddRow("Failure", record.Failure)
	}
	summary.AddRow("Duration", record.Duration().Round(time.Microsecond).String())
	summary.Render()

	printValues(w, "Inputs", record.Inputs)
	printValues(w, "Computed", record.Computed)
}

func printValues(w io.Writer, title string, values map[string]any) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintln(w)
	ui.Header(w, title, noColor)

	table := ui.NewKeyValueTable(w, noColor)
	for _, name := range runtime.SortedKeys(values) {
		table.AddRow(name, runtime.Render(values[name]))
	}
	table.Render()
}
