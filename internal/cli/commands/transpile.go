package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/sigmos/internal/cli/ui"
	"github.com/copyleftdev/sigmos/internal/transpile"
)

var (
	transpileTo     string
	transpileOutput string
)

// NewTranspileCommand creates the transpile command
func NewTranspileCommand() *cobra.Command {
	formats := make([]string, 0, len(transpile.Formats()))
	for _, f := range transpile.Formats() {
		formats = append(formats, string(f))
	}

	cmd := &cobra.Command{
		Use:   "transpile FILE",
		Short: "Export a specification as JSON, YAML or TOML",
		Long: `Export a validated SIGMOS specification as a structured document.

Without --output the document is written to stdout.

Examples:
  sigmos transpile greeter.sigmos
  sigmos transpile greeter.sigmos --to yaml
  sigmos transpile greeter.sigmos --to toml -o greeter.toml`,
		Args: cobra.ExactArgs(1),
		RunE: runTranspile,
	}

	cmd.Flags().StringVarP(&transpileTo, "to", "t", "json", fmt.Sprintf("Output format (%s)", strings.Join(formats, ", ")))
	cmd.Flags().StringVarP(&transpileOutput, "output", "o", "", "Output file")

	return cmd
}

func runTranspile(cmd *cobra.Command, args []string) error {
	format, err := transpile.ParseFormat(transpileTo)
	if err != nil {
		return err
	}

	f, err := loadSpec(cmd, args[0])
	if err != nil {
		return err
	}

	data, err := transpile.Transpile(f.Spec, format)
	if err != nil {
		return err
	}

	if transpileOutput == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	if err := os.WriteFile(transpileOutput, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", transpileOutput, err)
	}
	ui.WriteSuccess(cmd.ErrOrStderr(), fmt.Sprintf("Wrote %s", transpileOutput), noColor)
	return nil
}
