package processor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"descant/internal/bundle"
	"descant/internal/chunkplan"
	"descant/internal/config"
	"descant/internal/eventlog"
	"descant/internal/fsutil"
	"descant/internal/manifest"
	"descant/internal/mediatool"
	"descant/internal/metaheuristics"
	"descant/internal/pipelineerr"
	"descant/internal/queueconsumer"
	"descant/internal/separator"
)

// job carries the mutable state of one claimed bundle through every stage.
type job struct {
	cfg    *config.Config
	claim  queueconsumer.Claimed
	bundle *bundle.Bundle
	tool   *mediatool.Tool
	sep    *separator.Separator
	logger *slog.Logger

	albumLockRoot string
	work          *fsutil.ScopedWorkdir
	events        *eventlog.Log

	resolvedArtist string
	resolvedAlbum  string
	resolvedTitle  string
	coverPath      string

	plan chunkplan.Plan

	artifacts        []manifest.Artifact
	mergedStem       map[separator.StemKey]string
	alreadyRelocated bool

	// eventEmitted is set once a stage has already written its own
	// failure event (plan_exceeded, chunk_failed) so the Processor's
	// generic post-run emit doesn't also log a second, less specific one.
	eventEmitted bool

	loggedSkippedFiles bool
}

// run executes every stage of spec §4.6 in order, returning the state the
// job reached and, on failure, the error that stopped it.
func (j *job) run(ctx context.Context) (State, error) {
	work, err := fsutil.NewScopedWorkdir(j.cfg.Paths.Working, fmt.Sprintf("job_%s", j.claim.JobID))
	if err != nil {
		return Failed("workdir"), err
	}
	j.work = work
	defer func() {
		_ = j.work.Close(false)
	}()

	if err := j.resolveMetadata(); err != nil {
		return Failed("metadata"), err
	}
	j.resolveCover()

	if key := j.albumKey(); key != "" {
		lock := AlbumLockFor(j.albumLockRoot, key)
		acquired, lockErr := lock.TryAcquire()
		if lockErr != nil {
			j.logger.Warn("album lock unavailable", slog.String("album", key), slog.String("error", lockErr.Error()))
		} else if acquired {
			defer func() {
				_ = lock.Release()
			}()
		}
	}

	total, err := j.tool.ProbeDuration(ctx, j.sourceAudioPath())
	if err != nil {
		j.handleCorrupt(err)
		return Failed("corrupt"), err
	}

	plan, err := chunkplan.Build(total, chunkplan.Params{
		ChunkSeconds:    j.cfg.Processing.ChunkSeconds,
		OverlapSeconds:  j.cfg.Processing.ChunkOverlapSec,
		ChunkMax:        j.cfg.Processing.ChunkMax,
		ChunkingEnabled: j.cfg.Processing.ChunkingEnabled,
	})
	if err != nil {
		_ = j.writeEvent(eventlog.EventPlanExceeded, map[string]any{
			"job_id":    j.claim.JobID,
			"total":     total,
			"chunk_max": j.cfg.Processing.ChunkMax,
			"error":     err.Error(),
		})
		j.eventEmitted = true
		return Failed("plan_exceeded"), err
	}
	j.plan = plan

	chunkPaths, err := j.extractChunks(ctx)
	if err != nil {
		return Failed("extract"), err
	}

	stemRoots, err := j.separateChunks(ctx, chunkPaths)
	if err != nil {
		return Failed(pipelineerr.ArchiveSubdir(err)), err
	}

	mergedByStem, err := j.mergeStems(ctx, stemRoots)
	if err != nil {
		return Failed("merge"), err
	}

	if err := j.buildAndEncodeVariants(ctx, mergedByStem); err != nil {
		return Failed("encode"), err
	}

	if err := j.publish(); err != nil {
		return Failed("publish"), err
	}

	if j.cfg.Library.Enabled {
		if err := j.organizeLibrary(); err != nil {
			j.logger.Warn("library organize failed", slog.String("error", err.Error()))
		}
	}

	return StatePublished, nil
}

// sourceAudioPath returns the file the pipeline separates. For an
// audio_files album bundle (spec §6.1, len>1) only the first file is
// processed; the single-output §6.2 layout has no slot for tracks 2..N, so
// they are skipped rather than silently dropped without a trace.
func (j *job) sourceAudioPath() string {
	files := j.bundle.AudioFilePaths()
	if len(files) == 0 {
		return ""
	}
	if len(files) > 1 && !j.loggedSkippedFiles {
		j.loggedSkippedFiles = true
		j.logger.Warn("album bundle has multiple audio files; only the first is processed",
			slog.String("job_id", j.claim.JobID),
			slog.String("used", files[0]),
			slog.Any("skipped", files[1:]))
	}
	return filepath.Join(j.bundle.Dir, files[0])
}

// resolveMetadata implements spec §4.6 step 1: bundle fields first (already
// the retriever's own tag resolution), then folder/filename heuristics.
func (j *job) resolveMetadata() error {
	j.resolvedArtist = j.bundle.Artist
	j.resolvedAlbum = j.bundle.Album
	j.resolvedTitle = j.bundle.Title

	if j.resolvedArtist != "" && j.resolvedAlbum != "" && j.resolvedTitle != "" {
		return nil
	}

	if j.resolvedArtist == "" || j.resolvedAlbum == "" {
		if artist, album, ok := metaheuristics.FromFolderName(filepath.Base(j.bundle.Dir)); ok {
			if j.resolvedArtist == "" {
				j.resolvedArtist = artist
			}
			if j.resolvedAlbum == "" {
				j.resolvedAlbum = album
			}
		}
	}

	if j.resolvedTitle == "" {
		files := j.bundle.AudioFilePaths()
		if len(files) > 0 {
			resolved := metaheuristics.FromNestedPath(files[0])
			if j.resolvedArtist == "" {
				j.resolvedArtist = resolved.Artist
			}
			if j.resolvedAlbum == "" {
				j.resolvedAlbum = resolved.Album
			}
			j.resolvedTitle = resolved.Title
		}
	}
	return nil
}

// resolveCover implements spec §4.6 step 2: prefer an image file in the
// source directory, else the bundle's declared cover_path, else none.
func (j *job) resolveCover() {
	if found := metaheuristics.FindCover(j.bundle.Dir); found != "" {
		j.coverPath = found
		return
	}
	if j.bundle.CoverPath != "" {
		j.coverPath = filepath.Join(j.bundle.Dir, j.bundle.CoverPath)
	}
}

// handleCorrupt implements spec §4.6's CorruptInput branch: move the source
// to ARCHIVE_DIR/rejects or QUARANTINE_DIR and emit skipped_corrupt. No
// partial manifest is written.
func (j *job) handleCorrupt(err error) {
	dest := j.cfg.Paths.Quarantine
	if j.cfg.Recovery.CorruptDest == "archive" {
		dest = filepath.Join(j.cfg.Paths.ArchiveDir, "rejects")
	}
	destPath := filepath.Join(dest, filepath.Base(j.claim.Dir))
	if moveErr := fsutil.SafeMove(j.claim.Dir, destPath); moveErr != nil {
		j.logger.Error("failed to move corrupt input", slog.String("error", moveErr.Error()))
		return
	}
	_ = j.writeEvent(eventlog.EventSkippedCorrupt, map[string]any{
		"source":      j.claim.Dir,
		"destination": destPath,
		"error":       err.Error(),
	})
	// The source is already relocated to archive/quarantine; the
	// Processor must not also try to move it into archive/failed/corrupt.
	j.alreadyRelocated = true
}

type chunkFile struct {
	path  string
	index int
}

func (j *job) extractChunks(ctx context.Context) ([]chunkFile, error) {
	chunkDir := filepath.Join(j.work.Path, "chunks")
	if err := fsutil.EnsureDir(chunkDir); err != nil {
		return nil, err
	}
	src := j.sourceAudioPath()
	out := make([]chunkFile, 0, j.plan.Count())
	for i, c := range j.plan.Chunks {
		dest := filepath.Join(chunkDir, fmt.Sprintf("chunk_%03d.wav", i))
		if err := j.tool.ExtractChunk(ctx, src, dest, c.Start, c.Duration, j.cfg.Processing.SampleRate); err != nil {
			return nil, err
		}
		out = append(out, chunkFile{path: dest, index: i})
	}
	if err := j.writeEvent(eventlog.EventPlanned, map[string]any{
		"job_id":      j.claim.JobID,
		"total":       j.plan.TotalDuration,
		"chunk_count": j.plan.Count(),
	}); err != nil {
		j.logger.Warn("failed to write planned event", slog.String("error", err.Error()))
	}
	return out, nil
}

// writeEvent writes through the shared event log when one was wired in;
// tests that exercise job in isolation may leave it nil.
func (j *job) writeEvent(name string, fields map[string]any) error {
	if j.events == nil {
		return nil
	}
	return j.events.Write(name, fields)
}

// separateChunks runs the separator over every chunk, retrying a failed
// chunk up to MaxRetries before giving up on the whole job, per spec §4.6
// step 5.
func (j *job) separateChunks(ctx context.Context, chunks []chunkFile) ([]string, error) {
	timeout := time.Duration(j.cfg.Processing.TimeoutSec) * time.Second
	roots := make([]string, len(chunks))
	for _, c := range chunks {
		outDir := filepath.Join(j.work.Path, "separated", fmt.Sprintf("chunk_%03d", c.index))

		var lastErr error
		for attempt := 0; attempt <= j.cfg.Processing.MaxRetries; attempt++ {
			_ = os.RemoveAll(outDir)
			root, err := j.sep.Separate(ctx, c.path, outDir, timeout)
			if err == nil {
				roots[c.index] = root
				lastErr = nil
				break
			}
			lastErr = err
			if !pipelineerr.IsRetryable(err) {
				break
			}
		}
		if lastErr != nil {
			_ = j.writeEvent(eventlog.EventChunkFailed, map[string]any{
				"job_id": j.claim.JobID,
				"chunk":  c.index,
				"error":  lastErr.Error(),
			})
			j.eventEmitted = true
			return nil, lastErr
		}
	}
	return roots, nil
}

// mergeStems concatenates each stem's chunks back into one track with
// crossfades, per spec §4.6 step 6, returning a path per stem key actually
// present across the separated chunks.
func (j *job) mergeStems(ctx context.Context, stemRoots []string) (map[separator.StemKey]string, error) {
	mergedDir := filepath.Join(j.work.Path, "merged")
	if err := fsutil.EnsureDir(mergedDir); err != nil {
		return nil, err
	}

	keys := []separator.StemKey{separator.StemVocals, separator.StemDrums, separator.StemBass, separator.StemOther}
	out := make(map[separator.StemKey]string, len(keys))

	for _, key := range keys {
		var parts []string
		for _, root := range stemRoots {
			p := separator.StemPath(root, key)
			if _, err := os.Stat(p); err == nil {
				parts = append(parts, p)
			}
		}
		if len(parts) != len(stemRoots) {
			continue // this model run didn't produce this stem at all.
		}
		dest := filepath.Join(mergedDir, string(key)+".wav")
		if err := j.tool.CrossfadeConcat(ctx, parts, dest, j.cfg.Processing.CrossfadeMs); err != nil {
			return nil, err
		}
		out[key] = dest
	}

	if len(out) == 0 {
		// A two-stem model run (vocals + accompaniment) produces none of
		// the four named stems; fall back to merging the accompaniment
		// track directly, per spec §4.2's two-stem-mode allowance.
		var parts []string
		for _, root := range stemRoots {
			p := separator.AccompanimentPath(root)
			if p == "" {
				parts = nil
				break
			}
			parts = append(parts, p)
		}
		if len(parts) == len(stemRoots) {
			dest := filepath.Join(mergedDir, string(separator.StemAccompaniment)+".wav")
			if err := j.tool.CrossfadeConcat(ctx, parts, dest, j.cfg.Processing.CrossfadeMs); err != nil {
				return nil, err
			}
			out[separator.StemAccompaniment] = dest
		}
	}

	if len(out) == 0 {
		return nil, pipelineerr.Wrap(pipelineerr.ErrOutputMissing, "processor", "merge_stems", "no stems available to merge", nil)
	}
	return out, nil
}

// variantStemKeys maps a requested variant to the stems mixed to produce
// it, grounded on original_source/app/audio.py's CODE_MAP (V/D/B/O) and
// spec §4.6 step 7: "generate them by mixing the appropriate stem
// combinations without re-running separation."
var variantStemKeys = map[bundle.Variant][]separator.StemKey{
	bundle.VariantInstrumental: {separator.StemDrums, separator.StemBass, separator.StemOther},
	bundle.VariantNoDrums:      {separator.StemVocals, separator.StemBass, separator.StemOther},
	bundle.VariantDrumsOnly:    {separator.StemDrums},
}

func (j *job) buildAndEncodeVariants(ctx context.Context, mergedByStem map[separator.StemKey]string) error {
	variantsDir := filepath.Join(j.work.Path, "variants")
	if err := fsutil.EnsureDir(variantsDir); err != nil {
		return err
	}

	comment := mediatool.BuildComment(j.cfg.Processing.Model, j.cfg.Processing.SampleRate, j.cfg.Processing.BitDepth)
	mode := mediatool.EncodeV0
	if j.cfg.Processing.MP3Encoding == "cbr320" {
		mode = mediatool.EncodeCBR320
	}

	for _, variant := range j.bundle.ResolvedVariants() {
		keys, ok := variantStemKeys[variant]
		if !ok {
			continue
		}
		var stemPaths []string
		for _, k := range keys {
			if p, ok := mergedByStem[k]; ok {
				stemPaths = append(stemPaths, p)
			}
		}
		if len(stemPaths) == 0 && variant == bundle.VariantInstrumental {
			// Two-stem separation runs never populate drums/bass/other, only
			// the merged accompaniment track; that track already is the
			// instrumental mix.
			if p, ok := mergedByStem[separator.StemAccompaniment]; ok {
				stemPaths = []string{p}
			}
		}
		if len(stemPaths) == 0 {
			continue
		}

		mixed := filepath.Join(variantsDir, string(variant)+".wav")
		if len(stemPaths) == 1 {
			if err := fsutil.SafeMove(stemPaths[0], mixed); err != nil {
				return err
			}
		} else if err := j.tool.MixStems(ctx, stemPaths, mixed); err != nil {
			return err
		}

		encoded := filepath.Join(variantsDir, string(variant)+".mp3")
		if err := j.tool.EncodeMP3(ctx, mixed, encoded, mode); err != nil {
			return err
		}

		if err := mediatool.WriteTags(encoded, mediatool.TagSet{
			Artist:  j.resolvedArtist,
			Album:   j.resolvedAlbum,
			Title:   j.resolvedTitle,
			Comment: comment,
		}, j.coverBytes(), j.coverMIME()); err != nil {
			return err
		}

		sum, err := sha256File(encoded)
		if err != nil {
			return err
		}

		duration, _ := j.tool.ProbeDuration(ctx, encoded)
		j.artifacts = append(j.artifacts, manifest.Artifact{
			Kind:        manifest.KindAudio,
			Variant:     string(variant),
			Label:       variantLabel(variant),
			Path:        filepath.Join("files", string(variant)+".mp3"),
			Codec:       "mp3",
			Container:   "mp3",
			DurationSec: duration,
			SHA256:      sum,
		})
	}

	if j.cfg.Variants.PreserveStems {
		j.mergedStem = mergedByStem
		for key := range mergedByStem {
			j.artifacts = append(j.artifacts, manifest.Artifact{
				Kind:    manifest.KindStem,
				Variant: string(key),
				Label:   string(key),
				Path:    filepath.Join("files", "stems", string(key)+".wav"),
			})
		}
	}

	if len(j.artifacts) == 0 {
		return pipelineerr.Wrap(pipelineerr.ErrEncodeFailed, "processor", "build_variants", "no variants produced", nil)
	}
	return nil
}

func variantLabel(v bundle.Variant) string {
	switch v {
	case bundle.VariantInstrumental:
		return "Instrumental"
	case bundle.VariantNoDrums:
		return "No Drums"
	case bundle.VariantDrumsOnly:
		return "Drums Only"
	default:
		return string(v)
	}
}

func (j *job) coverBytes() []byte {
	if j.coverPath == "" {
		return nil
	}
	data, _, err := mediatool.ReadCoverBytes(j.coverPath)
	if err != nil {
		return nil
	}
	return data
}

func (j *job) coverMIME() string {
	switch filepath.Ext(j.coverPath) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// publish implements spec §4.6 steps 9 and 11: stage files/ and
// manifest.json under a sibling <job_id>.tmp/ directory, then promote both
// together with one fsutil.PublishAtomic call.
func (j *job) publish() error {
	tmpDir := filepath.Join(j.cfg.Paths.OutputsDir, j.claim.JobID+bundle.TempSuffix)
	filesDir := filepath.Join(tmpDir, "files")
	if err := fsutil.EnsureDir(filesDir); err != nil {
		return err
	}

	variantsDir := filepath.Join(j.work.Path, "variants")
	for _, a := range j.artifacts {
		var src string
		switch a.Kind {
		case manifest.KindAudio:
			src = filepath.Join(variantsDir, a.Variant+".mp3")
		case manifest.KindStem:
			src = j.mergedStem[separator.StemKey(a.Variant)]
		default:
			continue
		}
		if src == "" {
			continue
		}
		dst := filepath.Join(tmpDir, a.Path)
		if err := fsutil.EnsureDir(filepath.Dir(dst)); err != nil {
			return err
		}
		if err := fsutil.SafeMove(src, dst); err != nil {
			return err
		}
	}

	if j.coverPath != "" {
		coverDest := filepath.Join(filesDir, "cover"+filepath.Ext(j.coverPath))
		if data, _, err := mediatool.ReadCoverBytes(j.coverPath); err == nil {
			if err := os.WriteFile(coverDest, data, 0o644); err == nil {
				j.artifacts = append(j.artifacts, manifest.Artifact{
					Kind: manifest.KindCover, Variant: "source", Label: "Cover",
					Path: filepath.Join("files", filepath.Base(coverDest)),
				})
			}
		}
	}

	m := manifest.Build(j.claim.JobID, j.bundle.SourceType, j.resolvedArtist, j.resolvedAlbum, j.resolvedTitle,
		j.artifacts, j.bundle.Provenance, true, j.cfg.Variants.PreserveStems, timeNow())
	if err := manifest.WriteInto(tmpDir, m); err != nil {
		return err
	}

	finalDir := filepath.Join(j.cfg.Paths.OutputsDir, j.claim.JobID)
	if err := fsutil.PublishAtomic(tmpDir, finalDir); err != nil {
		if fsutil.ErrAlreadyPublished(err) {
			return pipelineerr.Wrap(pipelineerr.ErrPublishConflict, "processor", "publish", finalDir, err)
		}
		return err
	}

	_ = j.writeEvent(eventlog.EventManifestWritten, map[string]any{
		"job_id": j.claim.JobID,
		"path":   filepath.Join(finalDir, "manifest.json"),
	})
	return nil
}

// organizeLibrary implements spec §4.6 step 10: a legacy-compatible copy at
// MUSIC_LIBRARY/<artist>/<album>/<title>.mp3, limited to the instrumental
// variant, which is the one the legacy layout expects.
func (j *job) organizeLibrary() error {
	var src string
	for _, a := range j.artifacts {
		if a.Kind == manifest.KindAudio && a.Variant == string(bundle.VariantInstrumental) {
			src = filepath.Join(j.cfg.Paths.OutputsDir, j.claim.JobID, a.Path)
			break
		}
	}
	if src == "" {
		return nil
	}
	dest := filepath.Join(j.cfg.Paths.Library,
		fsutil.SanitizeName(j.resolvedArtist),
		fsutil.SanitizeName(j.resolvedAlbum),
		fsutil.SanitizeName(j.resolvedTitle)+".mp3")
	if err := fsutil.EnsureDir(filepath.Dir(dest)); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

var timeNow = func() time.Time { return time.Now() }
