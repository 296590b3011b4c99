// Package bundle defines the JobBundle schema a retriever publishes into a
// queue root, grounded on original_source/app/job_bundle.py and spec §6.1.
package bundle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Variant names a stem-mix output the Processor may be asked to produce.
type Variant string

const (
	VariantInstrumental Variant = "instrumental"
	VariantNoDrums      Variant = "no_drums"
	VariantDrumsOnly    Variant = "drums_only"
)

// DefaultVariants is used when a bundle omits the variants field.
func DefaultVariants() []Variant { return []Variant{VariantInstrumental} }

// TempSuffix marks a bundle directory as still being written by a retriever;
// such directories are invisible to the Queue Consumer.
const TempSuffix = ".tmp"

// Bundle is the in-memory, validated form of job.json plus the directory it
// was loaded from.
type Bundle struct {
	Dir string `json:"-"`

	JobID      string   `json:"job_id"`
	SourceType string   `json:"source_type"`
	Artist     string   `json:"artist,omitempty"`
	Album      string   `json:"album,omitempty"`
	Title      string   `json:"title,omitempty"`
	AudioPath  string   `json:"audio_path,omitempty"`
	AudioFiles []string `json:"audio_files,omitempty"`
	VideoPath  string   `json:"video_path,omitempty"`
	CoverPath  string   `json:"cover_path,omitempty"`
	Variants   []string `json:"variants,omitempty"`

	// Provenance holds every unknown top-level key verbatim, per spec §6.1:
	// "Unknown keys MUST be preserved by the Processor and copied into the
	// manifest."
	Provenance map[string]any `json:"-"`
}

// knownKeys lists the job.json fields this package interprets directly; any
// other top-level key is folded into Provenance.
var knownKeys = map[string]struct{}{
	"job_id": {}, "source_type": {}, "artist": {}, "album": {}, "title": {},
	"audio_path": {}, "audio_files": {}, "video_path": {}, "cover_path": {}, "variants": {},
}

// Load reads and validates job.json from dir. It fails with a descriptive
// error when required fields (job_id, source_type, and one of
// audio_path/audio_files) are missing, which the Processor treats as a
// schema-class CorruptInput per spec §9.
func Load(dir string) (*Bundle, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "job.json"))
	if err != nil {
		return nil, fmt.Errorf("read job.json: %w", err)
	}

	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("parse job.json: %w", err)
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("parse job.json provenance: %w", err)
	}
	prov := make(map[string]any)
	for k, v := range generic {
		if _, known := knownKeys[k]; !known {
			prov[k] = v
		}
	}
	b.Provenance = prov
	b.Dir = dir

	if err := b.validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

func (b *Bundle) validate() error {
	if strings.TrimSpace(b.JobID) == "" {
		return fmt.Errorf("job.json: job_id is required")
	}
	if strings.TrimSpace(b.SourceType) == "" {
		return fmt.Errorf("job.json: source_type is required")
	}
	if strings.TrimSpace(b.AudioPath) == "" && len(b.AudioFiles) == 0 {
		return fmt.Errorf("job.json: audio_path or audio_files is required")
	}
	return nil
}

// IsTemp reports whether dirName marks a bundle still being written.
func IsTemp(dirName string) bool {
	return strings.HasSuffix(dirName, TempSuffix)
}

// ResolvedVariants returns the requested variant set, or the default when
// the bundle's variants field was empty.
func (b *Bundle) ResolvedVariants() []Variant {
	if len(b.Variants) == 0 {
		return DefaultVariants()
	}
	out := make([]Variant, 0, len(b.Variants))
	for _, v := range b.Variants {
		out = append(out, Variant(v))
	}
	return out
}

// AudioFilePaths returns the ordered list of audio files relative to Dir,
// whether the bundle used the single audio_path form or the album
// audio_files form.
func (b *Bundle) AudioFilePaths() []string {
	if len(b.AudioFiles) > 0 {
		return b.AudioFiles
	}
	if b.AudioPath != "" {
		return []string{b.AudioPath}
	}
	return nil
}

// IsAlbum reports whether this bundle carries more than one audio file.
func (b *Bundle) IsAlbum() bool {
	return len(b.AudioFiles) > 1
}
