package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/sigmos/internal/cli/ui"
	cerrors "github.com/copyleftdev/sigmos/internal/compiler/errors"
)

var validateFormat string

// validateResult is the JSON shape of one validated file.
type validateResult struct {
	File    string            `json:"file"`
	Valid   bool              `json:"valid"`
	Spec    string            `json:"spec,omitempty"`
	Version string            `json:"version,omitempty"`
	Errors  cerrors.ErrorList `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Parse and type check specifications",
		Long: `Parse and type check one or more SIGMOS specifications.

Diagnostics are printed with the offending source lines. The command
exits non-zero when any file has errors; warnings alone do not fail.

Examples:
  sigmos validate service.sigmos
  sigmos validate specs/*.sigmos --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: runValidate,
	}

	cmd.Flags().StringVarP(&validateFormat, "format", "f", "text", "Output format (text, json)")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	switch validateFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported format %q (want text or json)", validateFormat)
	}

	results := make([]validateResult, 0, len(args))
	failed := 0
	for _, path := range args {
		f, err := readSpec(path)
		if err != nil {
			return err
		}

		result := validateResult{File: path, Valid: f.Valid(), Errors: f.Diagnostics}
		if f.Spec != nil {
			result.Spec = f.Spec.Name
			result.Version = f.Spec.Version.String()
		}
		if !result.Valid {
			failed++
		}
		results = append(results, result)

		if validateFormat == "text" {
			if f.Err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), ui.SpecErrors(path, f.Source, f.Err, noColor))
			}
			if result.Valid {
				ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("%s: %s v%s is valid", path, result.Spec, result.Version), noColor)
			}
		}
	}

	if validateFormat == "json" {
		if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed validation", failed, len(args))
	}
	return nil
}
