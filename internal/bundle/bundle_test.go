package bundle_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"descant/internal/bundle"
)

func writeJobJSON(t *testing.T, dir string, fields map[string]any) {
	t.Helper()
	data, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal job.json: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "job.json"), data, 0o644); err != nil {
		t.Fatalf("write job.json: %v", err)
	}
}

func TestLoadPreservesUnknownKeysAsProvenance(t *testing.T) {
	dir := t.TempDir()
	writeJobJSON(t, dir, map[string]any{
		"job_id":      "job_1",
		"source_type": "youtube",
		"audio_path":  "source.flac",
		"youtube_id":  "abc123",
		"retrieved_at": "2026-01-01T00:00:00Z",
	})

	b, err := bundle.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Provenance["youtube_id"] != "abc123" {
		t.Fatalf("expected youtube_id preserved in provenance, got %v", b.Provenance)
	}
	if _, ok := b.Provenance["job_id"]; ok {
		t.Fatal("expected a known key not to leak into provenance")
	}
}

func TestLoadRequiresJobIDSourceTypeAndAudio(t *testing.T) {
	cases := []map[string]any{
		{"source_type": "youtube", "audio_path": "a.flac"},
		{"job_id": "job_1", "audio_path": "a.flac"},
		{"job_id": "job_1", "source_type": "youtube"},
	}
	for _, fields := range cases {
		dir := t.TempDir()
		writeJobJSON(t, dir, fields)
		if _, err := bundle.Load(dir); err == nil {
			t.Errorf("expected validation error for %+v", fields)
		}
	}
}

func TestResolvedVariantsDefaultsToInstrumental(t *testing.T) {
	b := &bundle.Bundle{}
	got := b.ResolvedVariants()
	if len(got) != 1 || got[0] != bundle.VariantInstrumental {
		t.Fatalf("expected default [instrumental], got %v", got)
	}
}

func TestResolvedVariantsHonorsExplicitList(t *testing.T) {
	b := &bundle.Bundle{Variants: []string{"no_drums", "drums_only"}}
	got := b.ResolvedVariants()
	want := []bundle.Variant{bundle.VariantNoDrums, bundle.VariantDrumsOnly}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestAudioFilePathsPrefersAudioFiles(t *testing.T) {
	b := &bundle.Bundle{AudioPath: "single.flac", AudioFiles: []string{"1.flac", "2.flac"}}
	got := b.AudioFilePaths()
	if len(got) != 2 {
		t.Fatalf("expected audio_files to take precedence, got %v", got)
	}
}

func TestIsAlbumRequiresMultipleAudioFiles(t *testing.T) {
	single := &bundle.Bundle{AudioPath: "a.flac"}
	if single.IsAlbum() {
		t.Fatal("expected a single audio_path bundle not to be an album")
	}
	album := &bundle.Bundle{AudioFiles: []string{"1.flac", "2.flac"}}
	if !album.IsAlbum() {
		t.Fatal("expected a multi-file bundle to be an album")
	}
}

func TestIsTempDetectsSuffix(t *testing.T) {
	if !bundle.IsTemp("job_1.tmp") {
		t.Fatal("expected .tmp suffix to be detected")
	}
	if bundle.IsTemp("job_1") {
		t.Fatal("expected no false positive without the suffix")
	}
}
