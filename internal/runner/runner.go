// Package runner executes a parsed spec end to end: it installs the
// configured providers on a fresh runtime, supplies inputs, runs the
// execution, optional constraint checks and finally actions, and records
// the outcome.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/sigmos/internal/cli/config"
	"github.com/copyleftdev/sigmos/internal/compiler/ast"
	"github.com/copyleftdev/sigmos/internal/history"
	"github.com/copyleftdev/sigmos/internal/plugin/providers"
	"github.com/copyleftdev/sigmos/internal/runtime"
)

// Options configures one execution.
type Options struct {
	// Inputs are supplied before execution and win over defaults
	Inputs map[string]any

	// CheckConstraints evaluates asserts and ensures after a successful run
	CheckConstraints bool

	Plugins config.PluginsConfig
	Logger  *zap.Logger

	// History, when set, receives the record. Keep > 0 prunes older records.
	History *history.Store
	Keep    int

	// Now replaces time.Now
	Now func() time.Time
}

// Run executes spec and returns its record. The record is returned even when
// execution fails so callers can report the partial state; err is the
// execution, constraint or finally failure, joined.
func Run(ctx context.Context, spec *ast.Spec, opts Options) (*history.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	rt := runtime.New(runtime.WithLogger(logger.Named("runtime")))
	closer, err := providers.Install(rt, opts.Plugins, logger.Named("plugin"))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Warn("close providers", zap.Error(err))
		}
	}()

	if err := rt.SetInputs(opts.Inputs); err != nil {
		return nil, err
	}

	started := now()
	runErr := rt.Execute(spec)

	var checkErr error
	if runErr == nil && opts.CheckConstraints {
		checkErr = rt.CheckConstraints(spec)
	}

	finalErr := rt.Finalize(spec)
	if finalErr != nil {
		finalErr = fmt.Errorf("finally: %w", finalErr)
	}

	record := history.NewRecord(spec, rt.Snapshot(), started, now())
	if checkErr != nil {
		record.State = runtime.StateFailed.String()
		record.Failure = checkErr.Error()
	}

	if opts.History != nil {
		if err := save(ctx, opts.History, record, opts.Keep); err != nil {
			logger.Warn("record execution", zap.String("execution_id", record.ID), zap.Error(err))
		}
	}

	return record, errors.Join(runErr, checkErr, finalErr)
}

func save(ctx context.Context, store *history.Store, record *history.Record, keep int) error {
	if err := store.Save(ctx, record); err != nil {
		return err
	}
	if keep > 0 {
		if _, err := store.Prune(ctx, keep); err != nil {
			return err
		}
	}
	return nil
}

// ParseInputs converts name=value pairs into typed input values using the
// declared field types. Names the spec does not declare are rejected.
func ParseInputs(spec *ast.Spec, raw map[string]string) (map[string]any, error) {
	values := make(map[string]any, len(raw))
	for name, text := range raw {
		field, ok := spec.Input(name)
		if !ok {
			return nil, fmt.Errorf("unknown input %q", name)
		}
		value, err := runtime.ParseInputValue(field.Type, text)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		values[name] = value
	}
	return values, nil
}
