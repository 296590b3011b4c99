// Package processor implements the end-to-end job pipeline: chunk plan,
// separate, merge, encode/tag, publish, manifest — grounded on the
// teacher's internal/workflow.Manager run loop (poll, claim, execute,
// archive) and original_source/app/worker.py's per-job stage sequence, per
// spec §4.6.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"descant/internal/bundle"
	"descant/internal/config"
	"descant/internal/eventlog"
	"descant/internal/lockmgr"
	"descant/internal/mediatool"
	"descant/internal/pipelineerr"
	"descant/internal/queueconsumer"
	"descant/internal/separator"
)

// State names a step in the per-job state machine of spec §4.6.
type State string

const (
	StateClaimed    State = "CLAIMED"
	StateResolving  State = "RESOLVING"
	StateChunking   State = "CHUNKING"
	StateSeparating State = "SEPARATING"
	StateMerging    State = "MERGING"
	StateEncoding   State = "ENCODING"
	StatePublished  State = "PUBLISHED"
	StateArchived   State = "ARCHIVED"
)

// Failed builds the terminal FAILED/<reason> state name, per spec §4.6.
func Failed(reason string) State { return State("FAILED/" + reason) }

// Processor owns one long-running claim/execute/archive loop.
type Processor struct {
	snapshot *config.Snapshot
	consumer *queueconsumer.Consumer
	events   *eventlog.Log
	logger   *slog.Logger

	lastAlbum string
}

// New constructs a Processor. consumer and events are long-lived and shared
// across RunOnce calls so album stickiness and the event stream survive
// across iterations.
func New(snapshot *config.Snapshot, consumer *queueconsumer.Consumer, events *eventlog.Log, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{snapshot: snapshot, consumer: consumer, events: events, logger: logger}
}

// Run polls for work until ctx is canceled, sleeping PollIntervalSec between
// empty polls, grounded on the teacher's runLane select/time.After pattern.
func (p *Processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		processed, err := p.RunOnce(ctx)
		if err != nil {
			p.logger.Error("job processing failed", slog.String("error", err.Error()))
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(p.snapshot.Current().Sync.PollIntervalSec) * time.Second):
		}
	}
}

// RunOnce discovers and claims at most one job, runs it to completion or
// failure, and archives the source bundle. It returns processed=false when
// there was nothing claimable.
func (p *Processor) RunOnce(ctx context.Context) (processed bool, err error) {
	candidates, err := p.consumer.Discover()
	if err != nil {
		return false, fmt.Errorf("processor: discover: %w", err)
	}
	if len(candidates) == 0 {
		return false, nil
	}

	cand, ok := queueconsumer.Next(candidates, p.lastAlbum, p.albumKeyOf)
	if !ok {
		return false, nil
	}

	claim, err := p.consumer.Claim(cand)
	if err != nil {
		// Lost the race to another consumer; try again on the next poll.
		return false, nil
	}

	cfg := p.snapshot.Current()
	job, loadErr := newJob(cfg, claim, p.logger, p.events)
	if loadErr != nil {
		p.handleUnloadable(claim, loadErr)
		return true, nil
	}

	state, runErr := job.run(ctx)
	p.lastAlbum = job.albumKey()
	p.emit(job, state, runErr)
	p.archive(job, state, runErr)

	if runErr != nil {
		return true, runErr
	}
	return true, nil
}

// albumKeyOf peeks at a candidate's job.json (without claiming it) to
// determine its album identity for the stickiness rule in spec §4.5. A
// candidate that fails to parse simply never matches.
func (p *Processor) albumKeyOf(cand queueconsumer.Candidate) string {
	b, err := bundle.Load(cand.Dir)
	if err != nil || b.Artist == "" || b.Album == "" {
		return ""
	}
	return b.Artist + "/" + b.Album
}

func (p *Processor) handleUnloadable(claim queueconsumer.Claimed, err error) {
	p.logger.Error("unreadable job bundle", slog.String("job_id", claim.JobID), slog.String("error", err.Error()))
	_ = p.events.Write(eventlog.EventSkippedCorrupt, map[string]any{
		"job_id": claim.JobID,
		"error":  err.Error(),
	})
	if archErr := p.consumer.Archive(claim, queueconsumer.DispositionFailedCorrupt); archErr != nil {
		p.logger.Error("failed to archive unreadable bundle", slog.String("error", archErr.Error()))
	}
}

func (p *Processor) emit(j *job, state State, runErr error) {
	if j.alreadyRelocated || j.eventEmitted {
		return
	}
	if runErr != nil {
		_ = p.events.Write(eventlog.EventChunkFailed, map[string]any{
			"job_id": j.bundle.JobID,
			"state":  string(state),
			"error":  runErr.Error(),
		})
		return
	}
	_ = p.events.Write(eventlog.EventProcessed, map[string]any{
		"job_id": j.bundle.JobID,
		"artist": j.resolvedArtist,
		"album":  j.resolvedAlbum,
		"title":  j.resolvedTitle,
	})
}

func (p *Processor) archive(j *job, state State, runErr error) {
	if j.alreadyRelocated {
		return
	}
	disposition := queueconsumer.DispositionSuccess
	if runErr != nil {
		disposition = queueconsumer.Disposition("failed/" + pipelineerr.ArchiveSubdir(runErr))
		if errors.Is(runErr, pipelineerr.ErrCorruptInput) {
			disposition = queueconsumer.DispositionFailedCorrupt
		}
	}
	if err := p.consumer.Archive(j.claim, disposition); err != nil {
		p.logger.Error("failed to archive job bundle",
			slog.String("job_id", j.bundle.JobID), slog.String("error", err.Error()))
	}
}

// newJob loads the bundle claimed at claim.Dir and wires the adapters it
// needs for the duration of one run.
func newJob(cfg *config.Config, claim queueconsumer.Claimed, logger *slog.Logger, events *eventlog.Log) (*job, error) {
	b, err := bundle.Load(claim.Dir)
	if err != nil {
		return nil, err
	}
	tool := mediatool.New(time.Duration(cfg.Processing.TimeoutSec) * time.Second)
	tool.FFmpegBin = cfg.Processing.FFmpegBinary
	tool.FFprobeBin = cfg.Processing.FFprobeBinary
	sep := separator.New(cfg.Processing.SeparatorBinary, cfg.Processing.Model)

	return &job{
		cfg:           cfg,
		claim:         claim,
		bundle:        b,
		tool:          tool,
		sep:           sep,
		logger:        logger,
		events:        events,
		albumLockRoot: filepath.Join(cfg.Paths.Working, "locks"),
	}, nil
}

func (j *job) albumKey() string {
	if j.bundle.IsAlbum() {
		return j.resolvedArtist + "/" + j.resolvedAlbum
	}
	return ""
}

// AlbumLockFor exposes lockmgr construction so the Processor and tests share
// the same key derivation without importing lockmgr directly into this file.
func AlbumLockFor(locksDir, sourceDir string) *lockmgr.AlbumLock {
	return lockmgr.NewAlbumLock(locksDir, sourceDir)
}
