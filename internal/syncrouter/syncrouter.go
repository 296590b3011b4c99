// Package syncrouter implements the Sync Router loop: polling OUTPUTS_DIR
// for manifest.json files, matching each artifact against the configured
// route table, and dispatching transfers to the configured backend, per
// spec §4.8. Grounded on
// original_source/services/nas_sync_service/manifest_processor.py's
// ManifestWatcher/RouteResolver/ManifestProcessor, restructured into the
// Processor's poll-loop idiom (internal/processor) rather than the
// original's standalone service script.
package syncrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"descant/internal/config"
	"descant/internal/eventlog"
	"descant/internal/manifest"
	"descant/internal/pipelineerr"
	"descant/internal/syncrouter/backend"
	"descant/internal/syncrouter/seen"
)

// Router owns the long-running manifest poll/route/sync loop.
type Router struct {
	snapshot *config.Snapshot
	seenDB   *seen.Store
	events   *eventlog.Log
	logger   *slog.Logger
}

// New constructs a Router.
func New(snapshot *config.Snapshot, seenDB *seen.Store, events *eventlog.Log, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{snapshot: snapshot, seenDB: seenDB, events: events, logger: logger}
}

// Run polls until ctx is canceled, sleeping PollIntervalSec between passes,
// grounded on the same select/time.After shape as processor.Processor.Run.
func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error("sync pass failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(r.snapshot.Current().Sync.PollIntervalSec) * time.Second):
		}
	}
}

// RunOnce discovers every manifest.json under OUTPUTS_DIR and processes
// each independently: a transient failure on one manifest never blocks the
// others, per spec §5's ordering guarantee.
func (r *Router) RunOnce(ctx context.Context) (processed int, err error) {
	cfg := r.snapshot.Current()
	manifestPaths, err := discoverManifests(cfg.Paths.OutputsDir)
	if err != nil {
		return 0, fmt.Errorf("syncrouter: discover manifests: %w", err)
	}

	be, err := backend.New(ctx, backendConfig(cfg.Sync))
	if err != nil {
		return 0, fmt.Errorf("syncrouter: construct backend: %w", err)
	}

	for _, mp := range manifestPaths {
		if err := r.processManifest(ctx, cfg, be, mp); err != nil {
			r.logger.Error("process manifest", slog.String("manifest", mp), slog.String("error", err.Error()))
			continue
		}
		processed++
	}
	return processed, nil
}

// SyncManifest processes exactly one manifest file, for the `sync-once` CLI
// command of spec §6.5, independent of OUTPUTS_DIR discovery.
func (r *Router) SyncManifest(ctx context.Context, manifestPath string) error {
	cfg := r.snapshot.Current()
	be, err := backend.New(ctx, backendConfig(cfg.Sync))
	if err != nil {
		return fmt.Errorf("syncrouter: construct backend: %w", err)
	}
	return r.processManifest(ctx, cfg, be, manifestPath)
}

func discoverManifests(outputsDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(outputsDir, "*", "manifest.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func backendConfig(s config.Sync) backend.Config {
	return backend.Config{
		Method:               s.Method,
		RsyncBandwidthLimit: s.RsyncBandwidthLimit,
		RsyncCompress:       s.RsyncCompress,
		S3Bucket:            s.S3Bucket,
		S3Prefix:            s.S3Prefix,
		S3Region:            s.S3Region,
		S3Endpoint:          s.S3Endpoint,
		SCPHost:             s.SCPHost,
		SCPUser:             s.SCPUser,
		SCPKey:              s.SCPKey,
	}
}

// processManifest implements spec §4.8 steps 1-7 for a single manifest.
func (r *Router) processManifest(ctx context.Context, cfg *config.Config, be backend.Backend, manifestPath string) error {
	jobDir := filepath.Dir(manifestPath)
	jobID := filepath.Base(jobDir)

	if dropped, err := r.seenDB.IsManifestDropped(ctx, jobID); err == nil && dropped {
		return nil
	}

	m, loadErr := loadManifest(manifestPath)
	if loadErr != nil {
		r.writeEvent(eventlog.EventSyncSkipped, map[string]any{
			"job_id": jobID,
			"reason": "invalid_manifest",
			"error":  loadErr.Error(),
		})
		return r.seenDB.MarkManifestDropped(ctx, jobID)
	}

	for _, artifact := range m.Artifacts {
		route, ok := resolveRoute(cfg.Sync.Routes, artifact)
		if !ok {
			if cfg.Sync.SkipOnMissingRemote {
				r.writeEvent(eventlog.EventSyncSkipped, map[string]any{
					"job_id": jobID,
					"path":   artifact.Path,
					"reason": "no_route",
				})
				continue
			}
			r.writeEvent(eventlog.EventSyncFailed, map[string]any{
				"job_id": jobID,
				"path":   artifact.Path,
				"reason": "missing_route",
			})
			return r.seenDB.MarkManifestDropped(ctx, jobID)
		}

		if err := r.syncArtifact(ctx, cfg, be, jobID, jobDir, route, artifact); err != nil {
			r.logger.Warn("artifact sync failed", slog.String("job_id", jobID), slog.String("path", artifact.Path), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (r *Router) syncArtifact(ctx context.Context, cfg *config.Config, be backend.Backend, jobID, jobDir string, route config.Route, artifact manifest.Artifact) error {
	label := artifact.Label
	if label == "" {
		label = artifact.Variant
	}

	localPath := filepath.Join(jobDir, artifact.Path)
	if _, err := os.Stat(localPath); err != nil {
		r.writeEvent(eventlog.EventSyncFailed, map[string]any{
			"job_id": jobID,
			"path":   artifact.Path,
			"reason": "artifact_missing",
		})
		return err
	}

	alreadySynced, err := r.seenDB.IsSynced(ctx, jobID, artifact.Path, artifact.SHA256)
	if err == nil && alreadySynced && !cfg.Sync.DryRun {
		return nil
	}

	remotePath := expandRemoteRoots(route.To, cfg.Sync.RemoteRoots)

	syncErr := be.Sync(ctx, localPath, remotePath, label, cfg.Sync.DryRun)
	if syncErr != nil {
		r.writeEvent(eventlog.EventSyncFailed, map[string]any{
			"job_id": jobID,
			"path":   artifact.Path,
			"remote": remotePath,
			"error":  syncErr.Error(),
		})
		if errors.Is(syncErr, pipelineerr.ErrSyncTransient) {
			return syncErr
		}
		return r.seenDB.MarkManifestDropped(ctx, jobID)
	}

	r.writeEvent(eventlog.EventSyncSuccess, map[string]any{
		"job_id": jobID,
		"path":   artifact.Path,
		"remote": remotePath,
	})
	if !cfg.Sync.DryRun {
		_ = r.seenDB.MarkSynced(ctx, jobID, artifact.Path, artifact.SHA256)
	}
	return nil
}

func (r *Router) writeEvent(name string, fields map[string]any) {
	if r.events == nil {
		return
	}
	_ = r.events.Write(name, fields)
}

func loadManifest(path string) (*manifest.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.JobID == "" || m.SourceType == "" {
		return nil, fmt.Errorf("manifest missing required fields")
	}
	return &m, nil
}

// resolveRoute walks routes in declaration order; a route matches when
// every non-empty field it specifies equals the artifact's, per spec §4.8
// step 2: "a missing field in the route matches anything."
func resolveRoute(routes []config.Route, artifact manifest.Artifact) (config.Route, bool) {
	for _, route := range routes {
		if route.Kind != "" && route.Kind != string(artifact.Kind) {
			continue
		}
		if route.Variant != "" && route.Variant != artifact.Variant {
			continue
		}
		return route, true
	}
	return config.Route{}, false
}

// expandRemoteRoots replaces every ${remoteRoots.KEY} placeholder in
// template with the configured root, per spec §4.8 step 3.
func expandRemoteRoots(template string, roots map[string]string) string {
	result := template
	for key, value := range roots {
		placeholder := fmt.Sprintf("${remoteRoots.%s}", key)
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}
