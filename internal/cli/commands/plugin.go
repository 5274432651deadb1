package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/sigmos/internal/cli/ui"
	"github.com/copyleftdev/sigmos/internal/plugin/providers"
	"github.com/copyleftdev/sigmos/internal/templates"
)

const defaultModule = "github.com/copyleftdev/sigmos"

var (
	pluginNewDir         string
	pluginNewModule      string
	pluginNewDescription string
	pluginNewAuthor      string
	pluginNewNetwork     bool
	pluginNewTests       bool
	pluginNewYes         bool
)

// NewPluginCommand creates the plugin command group
func NewPluginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Manage capability providers",
	}

	cmd.AddCommand(newPluginListCommand())
	cmd.AddCommand(newPluginNewCommand())

	return cmd
}

func newPluginListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the configured providers",
		Long: `List the builtin provider and every plugin enabled in sigmos.yaml,
with the methods each one exposes.`,
		Args: cobra.NoArgs,
		RunE: runPluginList,
	}
}

func runPluginList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	entries, err := providers.Catalog(cfg.Plugins)
	if err != nil {
		return err
	}

	table := ui.NewTable(cmd.OutOrStdout(), noColor, "NAME", "VERSION", "NETWORK", "METHODS", "DESCRIPTION")
	for _, e := range entries {
		network := "no"
		if e.Capabilities.RequiresNetwork {
			network = "yes"
		}
		table.AddRow(e.Metadata.Name, e.Metadata.Version, network, strings.Join(e.Metadata.Methods, ", "), e.Metadata.Description)
	}
	table.Render()
	return nil
}

func newPluginNewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new [NAME]",
		Short: "Scaffold a capability provider package",
		Long: `Scaffold a new capability provider package implementing the plugin
interface, with a test file.

The Go module path is read from go.mod in the current directory unless
--module is given. Values not given as flags are prompted for unless
--yes is set.

Examples:
  sigmos plugin new rate-limiter
  sigmos plugin new geoip --dir internal/plugin --network --yes`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPluginNew,
	}

	cmd.Flags().StringVarP(&pluginNewDir, "dir", "d", ".", "Directory the package is created in")
	cmd.Flags().StringVar(&pluginNewModule, "module", "", "Go module path (default: from go.mod)")
	cmd.Flags().StringVar(&pluginNewDescription, "description", "", "Provider description")
	cmd.Flags().StringVar(&pluginNewAuthor, "author", "", "Provider author")
	cmd.Flags().BoolVar(&pluginNewNetwork, "network", false, "Provider requires network access")
	cmd.Flags().BoolVar(&pluginNewTests, "tests", true, "Generate a test file")
	cmd.Flags().BoolVarP(&pluginNewYes, "yes", "y", false, "Accept defaults without prompting")

	return cmd
}

func runPluginNew(cmd *cobra.Command, args []string) error {
	module := pluginNewModule
	if module == "" {
		module = moduleFromGoMod(".")
	}
	if module == "" {
		module = defaultModule
	}

	opts := scaffoldOptions{
		Template:    templates.PluginTemplateName,
		Module:      module,
		Dir:         pluginNewDir,
		Preset:      map[string]any{},
		Interactive: !pluginNewYes,
	}
	if len(args) == 1 {
		opts.Name = args[0]
	}

	flags := cmd.Flags()
	if flags.Changed("description") {
		opts.Preset["description"] = pluginNewDescription
	}
	if flags.Changed("author") {
		opts.Preset["author"] = pluginNewAuthor
	}
	if flags.Changed("network") {
		opts.Preset["network"] = pluginNewNetwork
	}
	if flags.Changed("tests") {
		opts.Preset["tests"] = pluginNewTests
	}

	if _, err := scaffold(cmd.OutOrStdout(), opts); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.Info("Register the provider in internal/plugin/providers to enable it.", noColor))
	return nil
}
