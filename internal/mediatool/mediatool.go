// Package mediatool wraps ffmpeg/ffprobe behind a typed adapter, grounded on
// the teacher's internal/services/drapto client and the command shapes in
// original_source/app/audio.py. Every invocation goes through exectool so
// timeouts and combined-output capture stay uniform with the separator
// adapter.
package mediatool

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"descant/internal/exectool"
	"descant/internal/pipelineerr"
)

// EncodeMode selects the MP3 encoding profile.
type EncodeMode string

const (
	EncodeV0     EncodeMode = "v0"
	EncodeCBR320 EncodeMode = "cbr320"
)

// Tool probes, extracts, concatenates, and encodes audio via ffmpeg/ffprobe.
type Tool struct {
	FFmpegBin  string
	FFprobeBin string
	Timeout    time.Duration
}

// New constructs a Tool with sensible binary defaults.
func New(timeout time.Duration) *Tool {
	return &Tool{FFmpegBin: "ffmpeg", FFprobeBin: "ffprobe", Timeout: timeout}
}

type ffprobeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeDuration returns the duration in seconds of path, failing with
// pipelineerr.ErrCorruptInput when ffprobe reports no usable stream.
func (t *Tool) ProbeDuration(ctx context.Context, path string) (float64, error) {
	res, err := exectool.Run(ctx, t.Timeout, t.FFprobeBin,
		"-v", "error", "-show_entries", "format=duration", "-of", "json", path)
	if err != nil {
		return 0, pipelineerr.Wrap(pipelineerr.ErrCorruptInput, "mediatool", "probe_duration", path, err)
	}
	var parsed ffprobeFormat
	if err := json.Unmarshal([]byte(res.Combined), &parsed); err != nil {
		return 0, pipelineerr.Wrap(pipelineerr.ErrCorruptInput, "mediatool", "probe_duration", "unparseable ffprobe output", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(parsed.Format.Duration), 64)
	if err != nil {
		return 0, pipelineerr.Wrap(pipelineerr.ErrCorruptInput, "mediatool", "probe_duration", "no usable stream", err)
	}
	return seconds, nil
}

// ExtractChunk writes an exact-boundary WAV slice of src to out.
func (t *Tool) ExtractChunk(ctx context.Context, src, out string, start, duration float64, sampleRate int) error {
	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", start),
		"-t", fmt.Sprintf("%.3f", duration),
		"-i", src,
		"-c:a", "pcm_s16le",
		"-ar", strconv.Itoa(sampleRate),
		out,
	}
	if _, err := exectool.Run(ctx, t.Timeout, t.FFmpegBin, args...); err != nil {
		return pipelineerr.Wrap(pipelineerr.ErrExtractFailed, "mediatool", "extract_chunk", src, err)
	}
	return nil
}

// CrossfadeConcat produces a single track from ordered parts. With N parts
// there are N-1 equal-length acrossfade regions of fadeMs, built by folding
// pairwise the way original_source/app/audio.py's concat_with_crossfades
// does: crossfade part[0] with part[1], then the result with part[2], and so
// on, so only one pairwise filter graph is ever needed.
func (t *Tool) CrossfadeConcat(ctx context.Context, parts []string, out string, fadeMs int) error {
	if len(parts) == 0 {
		return pipelineerr.Wrap(pipelineerr.ErrEncodeFailed, "mediatool", "crossfade_concat", "no parts given", nil)
	}
	if len(parts) == 1 {
		if _, err := exectool.Run(ctx, t.Timeout, t.FFmpegBin, "-y", "-i", parts[0], "-c", "copy", out); err != nil {
			return pipelineerr.Wrap(pipelineerr.ErrEncodeFailed, "mediatool", "crossfade_concat", "single-part copy", err)
		}
		return nil
	}

	fadeSec := float64(fadeMs) / 1000.0
	current := parts[0]
	dir := filepath.Dir(out)
	for i := 1; i < len(parts); i++ {
		next := parts[i]
		var dest string
		if i == len(parts)-1 {
			dest = out
		} else {
			dest = filepath.Join(dir, fmt.Sprintf("_xfade_%03d.wav", i))
		}
		args := []string{
			"-y", "-i", current, "-i", next,
			"-filter_complex", fmt.Sprintf("acrossfade=d=%.3f", fadeSec),
			dest,
		}
		if _, err := exectool.Run(ctx, t.Timeout, t.FFmpegBin, args...); err != nil {
			return pipelineerr.Wrap(pipelineerr.ErrEncodeFailed, "mediatool", "crossfade_concat",
				fmt.Sprintf("crossfade part %d", i), err)
		}
		current = dest
	}
	return nil
}

// EncodeMP3 converts a WAV source to MP3 per mode, tagging is done separately
// via WriteTags.
func (t *Tool) EncodeMP3(ctx context.Context, srcWav, out string, mode EncodeMode) error {
	args := []string{"-y", "-i", srcWav, "-codec:a", "libmp3lame"}
	switch mode {
	case EncodeV0:
		args = append(args, "-q:a", "0")
	case EncodeCBR320:
		args = append(args, "-b:a", "320k")
	default:
		return pipelineerr.Wrap(pipelineerr.ErrEncodeFailed, "mediatool", "encode_mp3",
			fmt.Sprintf("unknown mode %q", mode), nil)
	}
	args = append(args, "-id3v2_version", "3", out)
	if _, err := exectool.Run(ctx, t.Timeout, t.FFmpegBin, args...); err != nil {
		return pipelineerr.Wrap(pipelineerr.ErrEncodeFailed, "mediatool", "encode_mp3", srcWav, err)
	}
	return nil
}

// MixStems amixes the given stem WAV files into a single PCM WAV, grounded
// on original_source/app/audio.py's mix_selected_stems.
func (t *Tool) MixStems(ctx context.Context, stemPaths []string, out string) error {
	if len(stemPaths) == 0 {
		return pipelineerr.Wrap(pipelineerr.ErrEncodeFailed, "mediatool", "mix_stems", "no stems selected", nil)
	}
	args := []string{"-y"}
	for _, p := range stemPaths {
		args = append(args, "-i", p)
	}
	args = append(args,
		"-filter_complex", fmt.Sprintf("amix=inputs=%d:normalize=0", len(stemPaths)),
		"-c:a", "pcm_s16le", out,
	)
	if _, err := exectool.Run(ctx, t.Timeout, t.FFmpegBin, args...); err != nil {
		return pipelineerr.Wrap(pipelineerr.ErrEncodeFailed, "mediatool", "mix_stems", out, err)
	}
	return nil
}
