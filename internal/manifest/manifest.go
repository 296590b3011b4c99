// Package manifest builds and persists the per-job manifest describing all
// produced artifacts, grounded on original_source/app/manifest_generator.py
// and spec §4.7/§6.2.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"descant/internal/fsutil"
)

// ArtifactKind classifies one manifest entry.
type ArtifactKind string

const (
	KindAudio    ArtifactKind = "audio"
	KindVideo    ArtifactKind = "video"
	KindStem     ArtifactKind = "stem"
	KindCover    ArtifactKind = "cover"
	KindMetadata ArtifactKind = "metadata"
)

// Artifact is one produced file, classified by (kind, variant), per spec §3.
type Artifact struct {
	Kind        ArtifactKind `json:"kind"`
	Variant     string       `json:"variant"`
	Label       string       `json:"label"`
	Path        string       `json:"path"`
	Codec       string       `json:"codec,omitempty"`
	Container   string       `json:"container,omitempty"`
	DurationSec float64      `json:"duration_sec,omitempty"`
	SHA256      string       `json:"sha256,omitempty"`
}

// Manifest is the committed, never-mutated record of one successful job.
type Manifest struct {
	JobID       string         `json:"job_id"`
	SourceType  string         `json:"source_type"`
	ProcessedAt time.Time      `json:"processed_at"`
	Artist      string         `json:"artist"`
	Album       string         `json:"album"`
	Title       string         `json:"title"`
	Artifacts   []Artifact     `json:"artifacts"`
	Provenance  map[string]any `json:"provenance,omitempty"`

	StemsGenerated bool `json:"stems_generated"`
	StemsPreserved bool `json:"stems_preserved"`
}

// Build assembles a Manifest from a completed job's outputs. processedAt is
// truncated to second precision and expressed in UTC, per spec §4.7.
func Build(jobID, sourceType, artist, album, title string, artifacts []Artifact, provenance map[string]any, stemsGenerated, stemsPreserved bool, processedAt time.Time) Manifest {
	return Manifest{
		JobID:          jobID,
		SourceType:     sourceType,
		ProcessedAt:    processedAt.UTC().Truncate(time.Second),
		Artist:         artist,
		Album:          album,
		Title:          title,
		Artifacts:      artifacts,
		Provenance:     provenance,
		StemsGenerated: stemsGenerated,
		StemsPreserved: stemsPreserved,
	}
}

// Encode produces the deterministic, newline-terminated byte form of m:
// UTF-8, keys sorted. Go's encoding/json preserves struct declaration order
// for objects, so Encode round-trips through a generic map to force
// lexicographic key ordering, per spec §4.7.
func Encode(m Manifest) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("manifest: marshal: %w", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("manifest: normalize: %w", err)
	}
	sorted, err := json.MarshalIndent(generic, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("manifest: marshal sorted: %w", err)
	}
	return append(sorted, '\n'), nil
}

// WriteInto writes m as manifest.json inside tmpDir, the staging directory
// the Processor later promotes as a whole via fsutil.PublishAtomic. The
// manifest is never published on its own: spec §4.6 step 9/11 builds
// files/ and manifest.json together under <job_id>.tmp/ and promotes them
// in one atomic rename, which is what makes invariant 1 in spec §8 hold.
func WriteInto(tmpDir string, m Manifest) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	if err := fsutil.EnsureDir(tmpDir); err != nil {
		return fmt.Errorf("manifest: ensure tmp dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "manifest.json"), data, 0o644); err != nil {
		return fmt.Errorf("manifest: write: %w", err)
	}
	return nil
}
