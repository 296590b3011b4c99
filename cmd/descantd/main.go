// Command descantd is the bare daemon entrypoint: load config, acquire the
// process singleton lock, and run the Processor and Sync Router loops side
// by side until signaled, per spec §5's "two goroutines within one process
// by default." It carries none of cmd/descant's cobra argument surface,
// mirroring the split between the teacher's cmd/spindled (daemon) and
// cmd/spindle (CLI) binaries.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"descant/internal/config"
	"descant/internal/engine"
	"descant/internal/lockmgr"
	"descant/internal/logging"
)

const (
	exitOK             = 0
	exitConfigInvalid  = 2
	exitAlreadyRunning = 3
	exitFatalFS        = 4
	exitInternal       = 64
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx))
}

func run(ctx context.Context) int {
	snapshot, _, err := config.NewSnapshot("")
	if err != nil {
		log.Printf("load config: %v", err)
		return exitConfigInvalid
	}
	cfg := snapshot.Current()

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		LogDir: cfg.Paths.LogDir,
	})
	if err != nil {
		log.Printf("init logger: %v", err)
		return exitFatalFS
	}

	lock := lockmgr.NewProcessLock(filepath.Join(cfg.Paths.LogDir, "descantd.lock"))
	if err := lock.Acquire(); err != nil {
		if errors.Is(err, lockmgr.ErrAlreadyRunning) || errors.Is(err, lockmgr.ErrForeignLock) {
			// spec §7 AlreadyRunning: exit non-zero, emit no event.
			return exitAlreadyRunning
		}
		logger.Error("acquire process lock", logging.Error(err))
		return exitFatalFS
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("release process lock", logging.Error(err))
		}
	}()

	eng, err := engine.New(snapshot, logger)
	if err != nil {
		logger.Error("build engine", logging.Error(err))
		return exitFatalFS
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Warn("close engine", logging.Error(err))
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := eng.Processor().Run(ctx); err != nil {
			logger.Error("processor loop exited", logging.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := eng.Router().Run(ctx); err != nil {
			logger.Error("sync router loop exited", logging.Error(err))
		}
	}()

	<-ctx.Done()
	wg.Wait()
	logger.Info("descantd shutting down")
	return exitOK
}
