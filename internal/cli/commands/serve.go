package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/copyleftdev/sigmos/internal/server"
)

var (
	serveHost    string
	servePort    int
	serveHistory bool
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the SIGMOS HTTP API.

Endpoints:
  GET    /health            Liveness
  GET    /plugins           Configured providers
  POST   /validate          Parse and type check {"source": "..."}
  POST   /transpile         Export {"source": "...", "format": "yaml"}
  POST   /execute           Run {"source": "...", "inputs": {...}, "check_constraints": true}
  GET    /executions        Recorded executions (with history enabled)
  GET    /executions/{id}   One execution
  DELETE /executions/{id}   Delete an execution

Examples:
  sigmos serve
  sigmos serve --port 9090 --history`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default: server.host)")
	cmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (default: server.port)")
	cmd.Flags().BoolVar(&serveHistory, "history", false, "Record executions in the history database")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer logger.Sync()

	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}

	opts := []server.Option{server.WithLogger(logger.Named("server"))}
	if serveHistory || cfg.History.Enabled {
		store, err := openHistory(cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, server.WithHistory(store))
	}

	srv, err := server.New(cfg, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	addr := cfg.Server.Addr()
	fmt.Fprintf(cmd.OutOrStdout(), "Serving SIGMOS API on http://%s\n", addr)
	logger.Info("starting server", zap.String("addr", addr), zap.Bool("history", serveHistory || cfg.History.Enabled))
	return srv.ListenAndServe(ctx, addr)
}
