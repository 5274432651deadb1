package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/copyleftdev/sigmos/internal/cli/config"
	"github.com/copyleftdev/sigmos/internal/cli/ui"
	"github.com/copyleftdev/sigmos/internal/compiler/ast"
	cerrors "github.com/copyleftdev/sigmos/internal/compiler/errors"
	"github.com/copyleftdev/sigmos/internal/compiler/parser"
	"github.com/copyleftdev/sigmos/internal/compiler/typechecker"
	"github.com/copyleftdev/sigmos/internal/history"
	"github.com/copyleftdev/sigmos/internal/logging"
)

// specFile is a specification read from disk and analyzed.
type specFile struct {
	Path   string
	Source string

	// Spec is nil when the source does not parse
	Spec *ast.Spec

	// Err is the parse or type checking error, which may hold only warnings
	Err         error
	Diagnostics cerrors.ErrorList
}

// Valid reports whether the spec parsed and type checked without errors.
func (f *specFile) Valid() bool {
	return f.Spec != nil && !f.Diagnostics.HasErrors()
}

// readSpec reads and analyzes path. Only I/O failures are returned as errors.
func readSpec(path string) (*specFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	f := &specFile{Path: path, Source: string(data)}
	spec, err := parser.ParseString(f.Source)
	if err == nil {
		f.Spec = spec
		err = typechecker.Check(spec)
	}
	if err != nil {
		f.Err = err
		f.Diagnostics = cerrors.Classify(err).AttachSource(path, f.Source)
	}
	return f, nil
}

// loadSpec reads path, prints its diagnostics to stderr, and fails unless
// the spec is valid.
func loadSpec(cmd *cobra.Command, path string) (*specFile, error) {
	f, err := readSpec(path)
	if err != nil {
		return nil, err
	}
	if f.Err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), ui.SpecErrors(path, f.Source, f.Err, noColor))
	}
	if !f.Valid() {
		errs, _ := f.Diagnostics.ErrorCount()
		return nil, fmt.Errorf("%s has %d error(s)", path, errs)
	}
	return f, nil
}

// loadConfig loads the configuration selected by --config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), nil, noColor))
		return nil, fmt.Errorf("invalid configuration")
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the command logger from the log section.
func newLogger(cfg *config.Config) *zap.Logger {
	return logging.Must(cfg.Log)
}

// openHistory opens the configured history database, creating its directory.
func openHistory(cfg *config.Config, logger *zap.Logger) (*history.Store, error) {
	if dir := filepath.Dir(cfg.History.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	return history.Open(cfg.History.Path, logger.Named("history"))
}

// signalContext derives a context from the command that is cancelled on
// SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
