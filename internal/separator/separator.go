// Package separator wraps the external vocal-separation tool (a Demucs-class
// CLI), grounded on original_source/app/audio.py's run_demucs_once and spec
// §4.2. The adapter never retries internally; retry policy lives in the
// Processor.
package separator

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"descant/internal/exectool"
	"descant/internal/pipelineerr"
)

// StemKey names one of the four stems a 4-stem model produces, per
// original_source/app/audio.py's STEM_KEYS.
type StemKey string

const (
	StemVocals StemKey = "vocals"
	StemDrums  StemKey = "drums"
	StemBass   StemKey = "bass"
	StemOther  StemKey = "other"
)

// stemKeys lists the stems searched for when locating a model's output
// directory, in the same order original_source probes for them.
var stemKeys = []StemKey{StemVocals, StemDrums, StemBass, StemOther}

// StemAccompaniment is a synthetic key for the merged output of a two-stem
// separation run's accompaniment track (AccompanimentPath). No model
// writes a file under this name; it exists so the instrumental variant can
// be produced from a two-stem run the same way it is from a 4-stem one.
const StemAccompaniment StemKey = "accompaniment"

// accompanimentNames lists conventional two-stem-mode output filenames, used
// as a fallback when a model was run with a vocals/no-vocals split instead
// of the full 4-stem set.
var accompanimentNames = []string{"no_vocals.wav", "accompaniment.wav"}

// Separator invokes the external tool and locates its stem outputs.
type Separator struct {
	Binary string
	Model  string
}

// New constructs a Separator for the given model.
func New(binary, model string) *Separator {
	if binary == "" {
		binary = "demucs"
	}
	return &Separator{Binary: binary, Model: model}
}

// Separate runs the tool on chunkWav, bounded by timeout (0 means no bound),
// and returns the directory holding its stem output files (vocals.wav,
// drums.wav, bass.wav, other.wav, or a two-stem no_vocals.wav), grounded on
// original_source/app/audio.py's run_demucs_once.
func (s *Separator) Separate(ctx context.Context, chunkWav, outDir string, timeout time.Duration) (string, error) {
	res, err := exectool.Run(ctx, timeout, s.Binary, "-n", s.Model, "-o", outDir, chunkWav)
	if err != nil {
		if errors.Is(err, exectool.ErrTimeout) {
			return "", pipelineerr.Wrap(pipelineerr.ErrSeparationTimeout, "separator", "separate", chunkWav, err)
		}
		return "", pipelineerr.Wrap(pipelineerr.ErrSeparationFailed, "separator", "separate", res.Combined, err)
	}

	root, err := FindStemRoot(outDir)
	if err != nil {
		return "", pipelineerr.Wrap(pipelineerr.ErrOutputMissing, "separator", "separate", outDir, err)
	}
	return root, nil
}

// FindStemRoot walks outDir recursively for the first directory containing
// any known stem file, mirroring run_demucs_once's "find first subdir
// containing stems" search.
func FindStemRoot(outDir string) (string, error) {
	var root string
	err := filepath.WalkDir(outDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if root != "" || d.IsDir() {
			return nil
		}
		name := d.Name()
		for _, k := range stemKeys {
			if name == string(k)+".wav" {
				root = filepath.Dir(path)
				return filepath.SkipAll
			}
		}
		for _, candidate := range accompanimentNames {
			if name == candidate {
				root = filepath.Dir(path)
				return filepath.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if root == "" {
		return "", errors.New("no stem output found under " + outDir)
	}
	return root, nil
}

// StemPath returns the conventional path to key's WAV file under root. The
// caller should verify existence before use: not every model produces every
// stem.
func StemPath(root string, key StemKey) string {
	return filepath.Join(root, string(key)+".wav")
}

// AccompanimentPath returns the path to a two-stem-mode accompaniment file
// under root, or "" if none of the conventional names exist there.
func AccompanimentPath(root string) string {
	for _, candidate := range accompanimentNames {
		p := filepath.Join(root, candidate)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
