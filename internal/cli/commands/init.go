package commands

import (
	"github.com/spf13/cobra"

	"github.com/copyleftdev/sigmos/internal/templates"
)

var (
	initDir         string
	initDescription string
	initVersion     string
	initNoConfig    bool
	initYes         bool
)

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [NAME]",
		Short: "Create a starter specification",
		Long: `Create a starter SIGMOS specification and a sigmos.yaml.

Values not given as flags are prompted for unless --yes is set.

Examples:
  sigmos init welcome-mat
  sigmos init welcome-mat --version 2.0 --no-config --yes`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInit,
	}

	cmd.Flags().StringVarP(&initDir, "dir", "d", ".", "Target directory")
	cmd.Flags().StringVar(&initDescription, "description", "", "Spec description")
	cmd.Flags().StringVar(&initVersion, "version", "", "Initial spec version (default 1.0)")
	cmd.Flags().BoolVar(&initNoConfig, "no-config", false, "Do not write sigmos.yaml")
	cmd.Flags().BoolVarP(&initYes, "yes", "y", false, "Accept defaults without prompting")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	opts := scaffoldOptions{
		Template:    templates.SpecTemplateName,
		Dir:         initDir,
		Preset:      map[string]any{},
		Interactive: !initYes,
	}
	if len(args) == 1 {
		opts.Name = args[0]
	}
	if cmd.Flags().Changed("description") {
		opts.Preset["description"] = initDescription
	}
	if cmd.Flags().Changed("version") {
		opts.Preset["version"] = initVersion
	}
	if initNoConfig {
		opts.Preset["config"] = false
	}

	_, err := scaffold(cmd.OutOrStdout(), opts)
	return err
}
