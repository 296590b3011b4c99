package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"descant/internal/engine"
	"descant/internal/eventlog"
	"descant/internal/logging"
	"descant/internal/syncrouter"
	"descant/internal/syncrouter/seen"
)

func newSyncDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-daemon",
		Short: "Run the Sync Router loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncDaemon(cmd, ctx)
		},
	}
}

func newSyncOnceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-once <manifest.json>",
		Short: "Sync the artifacts of one manifest, then exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncOnce(cmd, ctx, args[0])
		},
	}
}

// runSyncDaemon implements spec §6.5's `sync-daemon`: the Sync Router can
// run standalone, split from the Processor across processes.
func runSyncDaemon(cmd *cobra.Command, cmdCtx *commandContext) error {
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

	eng, err := engine.New(snapshot, logger)
	if err != nil {
		return &exitError{code: exitFatalFS, err: err}
	}
	defer func() { _ = eng.Close() }()

	if err := eng.Router().Run(ctx); err != nil {
		return &exitError{code: exitInternal, err: err}
	}
	return nil
}

// runSyncOnce implements spec §6.5's `sync-once <manifest.json>`: a direct
// seen-store + Router construction over manifestPath, without touching the
// Processor's queue or working directories at all.
func runSyncOnce(cmd *cobra.Command, cmdCtx *commandContext, manifestPath string) error {
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

	events, err := eventlog.Open(cfg.Paths.LogDir)
	if err != nil {
		return &exitError{code: exitFatalFS, err: err}
	}
	defer func() { _ = events.Close() }()

	seenDB, err := seen.Open(cfg.Paths.DBPath)
	if err != nil {
		return &exitError{code: exitFatalFS, err: err}
	}
	defer func() { _ = seenDB.Close() }()

	router := syncrouter.New(snapshot, seenDB, events, logger)
	if err := router.SyncManifest(ctx, manifestPath); err != nil {
		return &exitError{code: exitInternal, err: err}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "synced %s\n", manifestPath)
	return nil
}
