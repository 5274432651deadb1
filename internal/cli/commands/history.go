package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/sigmos/internal/cli/ui"
	"github.com/copyleftdev/sigmos/internal/history"
)

var (
	historySpec   string
	historyLimit  int
	historyFormat string
	historyKeep   int
)

// NewHistoryCommand creates the history command group
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded executions",
		Long: `Inspect executions recorded by 'sigmos run --history' or by the HTTP API.

Records are read from history.path in sigmos.yaml. Secret inputs are
stored only as digests.`,
	}

	cmd.PersistentFlags().StringVarP(&historyFormat, "format", "f", "text", "Output format (text, json)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List executions, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistoryList,
	}
	list.Flags().StringVar(&historySpec, "spec", "", "Only list executions of this spec")
	list.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of executions (0 for all)")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show one execution",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow,
	}

	remove := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete one execution",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryDelete,
	}

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest executions",
		Args:  cobra.NoArgs,
		RunE:  runHistoryPrune,
	}
	prune.Flags().IntVar(&historyKeep, "keep", 0, "Executions to keep (default: history.keep)")

	cmd.AddCommand(list, show, remove, prune)
	return cmd
}

// historyEnv is what history subcommands run against.
type historyEnv struct {
	ctx   context.Context
	store *history.Store
	keep  int
}

// withHistory opens the configured history database around fn.
func withHistory(cmd *cobra.Command, fn func(historyEnv) error) error {
	if historyFormat != "text" && historyFormat != "json" {
		return fmt.Errorf("unsupported format %q (want text or json)", historyFormat)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer logger.Sync()

	store, err := openHistory(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	return fn(historyEnv{ctx: ctx, store: store, keep: cfg.History.Keep})
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	return withHistory(cmd, func(h historyEnv) error {
		records, err := h.store.List(h.ctx, historySpec, historyLimit)
		if err != nil {
			return err
		}
		if historyFormat == "json" {
			return writeJSON(cmd.OutOrStdout(), records)
		}

		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), ui.Info("No executions recorded.", noColor))
			return nil
		}
		table := ui.NewTable(cmd.OutOrStdout(), noColor, "ID", "SPEC", "VERSION", "STATE", "STARTED", "DURATION")
		for _, r := range records {
			table.AddRow(r.ID, r.Spec, r.Version, r.State,
				r.StartedAt.Local().Format(time.DateTime),
				r.Duration().Round(time.Microsecond).String())
		}
		table.Render()
		return nil
	})
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	return withHistory(cmd, func(h historyEnv) error {
		record, err := h.store.Get(h.ctx, args[0])
		if err != nil {
			return err
		}
		if historyFormat == "json" {
			return writeJSON(cmd.OutOrStdout(), record)
		}
		printRecord(cmd.OutOrStdout(), record)
		return nil
	})
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	return withHistory(cmd, func(h historyEnv) error {
		if err := h.store.Delete(h.ctx, args[0]); err != nil {
			return err
		}
		ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Deleted execution %s", args[0]), noColor)
		return nil
	})
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	return withHistory(cmd, func(h historyEnv) error {
		keep := historyKeep
		if !cmd.Flags().Changed("keep") {
			keep = h.keep
		}
		deleted, err := h.store.Prune(h.ctx, keep)
		if err != nil {
			return err
		}
		ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Deleted %d execution(s)", deleted), noColor)
		return nil
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
