package main

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"descant/internal/engine"
	"descant/internal/lockmgr"
	"descant/internal/logging"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the Processor loop until interrupted (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcessor(cmd, ctx, true)
		},
	}
}

func newRunOnceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Claim and process the single oldest job, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcessor(cmd, ctx, false)
		},
	}
}

// runProcessor implements spec §6.5's `run`/`run-once`: load config, acquire
// the singleton lock, build the Engine, and either loop or process one job.
func runProcessor(cmd *cobra.Command, cmdCtx *commandContext, loop bool) error {
	ctx := commandContextBackground(cmd)

	snapshot, err := cmdCtx.ensureSnapshot()
	if err != nil {
		return &exitError{code: exitConfigInvalid, err: err}
	}
	cfg := snapshot.Current()

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		LogDir: cfg.Paths.LogDir,
	})
	if err != nil {
		return &exitError{code: exitFatalFS, err: err}
	}

	lock := lockmgr.NewProcessLock(filepath.Join(cfg.Paths.LogDir, "descant-processor.lock"))
	if err := lock.Acquire(); err != nil {
		if errors.Is(err, lockmgr.ErrAlreadyRunning) || errors.Is(err, lockmgr.ErrForeignLock) {
			return &exitError{code: exitAlreadyRunning, err: err, silent: true}
		}
		return &exitError{code: exitFatalFS, err: err}
	}
	defer func() { _ = lock.Release() }()

	eng, err := engine.New(snapshot, logger)
	if err != nil {
		return &exitError{code: exitFatalFS, err: err}
	}
	defer func() { _ = eng.Close() }()

	p := eng.Processor()
	if !loop {
		if _, err := p.RunOnce(ctx); err != nil {
			return &exitError{code: exitInternal, err: err}
		}
		return nil
	}
	if err := p.Run(ctx); err != nil {
		return &exitError{code: exitInternal, err: err}
	}
	return nil
}

// commandContextBackground returns cmd's context, falling back to a
// background context for callers (and tests) that never set one.
func commandContextBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
