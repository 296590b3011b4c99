package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// SampleConfig returns the embedded reference configuration file, written
// out by `descant config init`.
func SampleConfig() string { return sampleConfig }

// Paths enumerates the directory configuration of spec §6.4.
type Paths struct {
	Incoming   string `toml:"incoming"`
	Working    string `toml:"working"`
	OutputsDir string `toml:"outputs_dir"`
	Library    string `toml:"music_library"`
	ArchiveDir string `toml:"archive_dir"`
	Quarantine string `toml:"quarantine_dir"`
	LogDir     string `toml:"log_dir"`
	DBPath     string `toml:"db_path"`
}

// Queue is one named queue root, per spec §6.1's multi-queue discovery.
type Queue struct {
	Name string `toml:"name"`
	Root string `toml:"root"`
}

// Processing holds the tunables of spec §6.4's "Processing" group.
type Processing struct {
	Model           string  `toml:"model"`
	SampleRate      int     `toml:"sample_rate"`
	BitDepth        int     `toml:"bit_depth"`
	MP3Encoding     string  `toml:"mp3_encoding"` // v0 | cbr320
	ChunkingEnabled bool    `toml:"chunking_enabled"`
	ChunkSeconds    float64 `toml:"chunk_seconds"`
	ChunkOverlapSec float64 `toml:"chunk_overlap_sec"`
	CrossfadeMs     int     `toml:"crossfade_ms"`
	ChunkMax        int     `toml:"chunk_max"`
	TimeoutSec      int     `toml:"timeout_sec"`
	MaxRetries      int     `toml:"max_retries"`
	SeparatorBinary string  `toml:"separator_binary"`
	FFmpegBinary    string  `toml:"ffmpeg_binary"`
	FFprobeBinary   string  `toml:"ffprobe_binary"`
}

// Variants holds the variant-generation configuration of spec §6.4.
type Variants struct {
	Enabled       []string `toml:"enabled"`
	PreserveStems bool     `toml:"preserve_stems"`
}

// Recovery configures where corrupt input is diverted, per spec §4.6/§7.
type Recovery struct {
	CorruptDest string `toml:"corrupt_dest"` // archive | quarantine
}

// Route is one Sync Router routing rule, per spec §4.8/§6.4.
type Route struct {
	Kind    string `toml:"kind"`
	Variant string `toml:"variant"`
	To      string `toml:"to"`
}

// Sync holds the Sync Router configuration of spec §6.4.
type Sync struct {
	Method              string            `toml:"method"` // rsync | s3 | scp | local
	Routes              []Route           `toml:"routes"`
	RemoteRoots         map[string]string `toml:"remote_roots"`
	SkipOnMissingRemote bool              `toml:"skip_on_missing_remote"`
	DryRun              bool              `toml:"dry_run"`
	PollIntervalSec     int               `toml:"poll_interval_sec"`

	RsyncBandwidthLimit string `toml:"rsync_bandwidth_limit"`
	RsyncCompress        bool   `toml:"rsync_compress"`

	S3Bucket   string `toml:"s3_bucket"`
	S3Prefix   string `toml:"s3_prefix"`
	S3Region   string `toml:"s3_region"`
	S3Endpoint string `toml:"s3_endpoint"`

	SCPHost string `toml:"scp_host"`
	SCPUser string `toml:"scp_user"`
	SCPKey  string `toml:"scp_key"`
}

// Library controls the optional legacy-layout organize step of spec §4.6
// step 10.
type Library struct {
	Enabled bool `toml:"enabled"`
}

// Logging controls log format/level, grounded on the teacher's Logging
// section.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the full, validated configuration.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Queues     []Queue    `toml:"queues"`
	Processing Processing `toml:"processing"`
	Variants   Variants   `toml:"variants"`
	Recovery   Recovery   `toml:"recovery"`
	Sync       Sync       `toml:"sync"`
	Library    Library    `toml:"library"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/descant/config.toml")
}

// Load locates, parses, normalizes, and validates a configuration file.
// When path is empty, Load checks the default user config path and then a
// project-local descant.toml before falling back to Default() alone.
func Load(path string) (cfg *Config, resolvedPath string, exists bool, err error) {
	c := Default()

	resolvedPath, exists, err = resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		data, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("config: read %s: %w", resolvedPath, err)
		}
		if err := toml.Unmarshal(data, &c); err != nil {
			return nil, "", false, fmt.Errorf("config: parse %s: %w", resolvedPath, err)
		}
	}

	if err := c.normalize(); err != nil {
		return nil, "", false, fmt.Errorf("config: normalize: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, "", false, fmt.Errorf("config: validate: %w", err)
	}
	return &c, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/descant/config.toml")
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("descant.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the package's path expansion rules to other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// EnsureDirectories creates the directories the pipeline writes to.
// Library is created on a best-effort basis so the daemon can still run
// when external storage (e.g. a NAS mount) is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.Working, c.Paths.OutputsDir, c.Paths.LogDir, c.Paths.ArchiveDir, c.Paths.Quarantine} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.Library) != "" {
		_ = os.MkdirAll(c.Paths.Library, 0o755)
	}
	return nil
}

// Snapshot is an atomically-swappable pointer to the current configuration,
// per spec §9's reload contract: a process-wide immutable snapshot swapped
// on Reload() so in-flight jobs keep whatever they captured at start.
type Snapshot struct {
	value atomic.Pointer[Config]
	path  string
}

// NewSnapshot loads path (see Load) and wraps the result in a Snapshot.
func NewSnapshot(path string) (*Snapshot, string, error) {
	cfg, resolvedPath, _, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	s := &Snapshot{path: resolvedPath}
	s.value.Store(cfg)
	return s, resolvedPath, nil
}

// Current returns the currently active configuration.
func (s *Snapshot) Current() *Config { return s.value.Load() }

// Reload re-reads the configuration file and, if it parses and validates,
// atomically swaps the snapshot. Callers holding derived state (e.g. a
// Sync Router's compiled route table) must re-derive it after Reload
// returns nil.
func (s *Snapshot) Reload() error {
	cfg, _, _, err := Load(s.path)
	if err != nil {
		return err
	}
	s.value.Store(cfg)
	return nil
}
