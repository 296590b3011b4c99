// Package engine wires the Processor and Sync Router loops to one loaded
// configuration snapshot, shared event log, and shared database handles, so
// both cmd/descantd (the bare daemon) and cmd/descant's subcommands (run,
// run-once, sync-daemon, sync-once) build an identical runtime from a single
// constructor. Grounded on the teacher's cmd/spindled/main.go wiring
// (config -> logger -> store -> workflow manager -> daemon), narrowed to
// this repository's two independent loops instead of one stage pipeline.
package engine

import (
	"fmt"
	"log/slog"

	"descant/internal/config"
	"descant/internal/eventlog"
	"descant/internal/processor"
	"descant/internal/queueconsumer"
	"descant/internal/syncrouter"
	"descant/internal/syncrouter/seen"
)

// Engine owns the long-lived handles (event log, seen-store, queue consumer)
// that back one or both of the Processor and Sync Router loops.
type Engine struct {
	snapshot *config.Snapshot
	logger   *slog.Logger

	events *eventlog.Log
	seenDB *seen.Store

	consumer *queueconsumer.Consumer
}

// New loads the directories a run needs and opens the event log and seen
// store. Close must be called once the caller is done with the Engine.
func New(snapshot *config.Snapshot, logger *slog.Logger) (*Engine, error) {
	cfg := snapshot.Current()
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("engine: ensure directories: %w", err)
	}

	events, err := eventlog.Open(cfg.Paths.LogDir)
	if err != nil {
		return nil, fmt.Errorf("engine: open event log: %w", err)
	}

	seenDB, err := seen.Open(cfg.Paths.DBPath)
	if err != nil {
		_ = events.Close()
		return nil, fmt.Errorf("engine: open seen store: %w", err)
	}

	queues := make(map[string]string, len(cfg.Queues))
	order := make([]string, 0, len(cfg.Queues))
	for _, q := range cfg.Queues {
		queues[q.Name] = q.Root
		order = append(order, q.Name)
	}
	consumer := queueconsumer.New(queues, order, cfg.Paths.Working, cfg.Paths.ArchiveDir)

	return &Engine{
		snapshot: snapshot,
		logger:   logger,
		events:   events,
		seenDB:   seenDB,
		consumer: consumer,
	}, nil
}

// Close releases the event log and seen store.
func (e *Engine) Close() error {
	err1 := e.events.Close()
	err2 := e.seenDB.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Processor builds a Processor bound to this Engine's shared state.
func (e *Engine) Processor() *processor.Processor {
	return processor.New(e.snapshot, e.consumer, e.events, e.logger)
}

// Router builds a Sync Router bound to this Engine's shared state.
func (e *Engine) Router() *syncrouter.Router {
	return syncrouter.New(e.snapshot, e.seenDB, e.events, e.logger)
}
