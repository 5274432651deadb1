package commands

import (
	"github.com/spf13/cobra"

	"github.com/copyleftdev/sigmos/internal/lsp"
	"github.com/copyleftdev/sigmos/internal/plugin/providers"
)

// NewLSPCommand creates the LSP command
func NewLSPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: `Start the SIGMOS Language Server Protocol (LSP) server.

This command starts an LSP server that provides IDE integration features including:
  • Code completion for sections, types, modifiers, builtins and plugin methods
  • Diagnostics (syntax and type errors)
  • Go-to-definition
  • Hover information
  • Find references
  • Document and workspace symbols

The LSP server communicates via JSON-RPC over stdin/stdout.
It is typically started automatically by your editor/IDE.`,
		Args: cobra.NoArgs,
		RunE: runLSP,
	}
}

func runLSP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer logger.Sync()

	entries, err := providers.Catalog(cfg.Plugins)
	if err != nil {
		return err
	}

	server := lsp.NewServer(
		lsp.WithLogger(logger.Named("lsp")),
		lsp.WithPlugins(providers.Metadata(entries)),
	)

	ctx, cancel := signalContext(cmd)
	defer cancel()

	return server.Run(ctx)
}
