package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeQueues()
	c.normalizeProcessing()
	c.normalizeVariants()
	c.normalizeRecovery()
	if err := c.normalizeSync(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.Incoming, err = expandPath(c.Paths.Incoming); err != nil {
		return fmt.Errorf("paths.incoming: %w", err)
	}
	if c.Paths.Working, err = expandPath(c.Paths.Working); err != nil {
		return fmt.Errorf("paths.working: %w", err)
	}
	if c.Paths.OutputsDir, err = expandPath(c.Paths.OutputsDir); err != nil {
		return fmt.Errorf("paths.outputs_dir: %w", err)
	}
	if c.Paths.Library, err = expandPath(c.Paths.Library); err != nil {
		return fmt.Errorf("paths.music_library: %w", err)
	}
	if c.Paths.ArchiveDir, err = expandPath(c.Paths.ArchiveDir); err != nil {
		return fmt.Errorf("paths.archive_dir: %w", err)
	}
	if c.Paths.Quarantine, err = expandPath(c.Paths.Quarantine); err != nil {
		return fmt.Errorf("paths.quarantine_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.DBPath, err = expandPath(c.Paths.DBPath); err != nil {
		return fmt.Errorf("paths.db_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeQueues() {
	for i := range c.Queues {
		c.Queues[i].Name = strings.TrimSpace(c.Queues[i].Name)
		if expanded, err := expandPath(c.Queues[i].Root); err == nil {
			c.Queues[i].Root = expanded
		}
	}
	if len(c.Queues) == 0 {
		c.Queues = []Queue{{Name: "default", Root: c.Paths.Incoming}}
	}
}

func (c *Config) normalizeProcessing() {
	p := &c.Processing
	p.Model = strings.TrimSpace(p.Model)
	if p.Model == "" {
		p.Model = defaultModel
	}
	p.MP3Encoding = strings.ToLower(strings.TrimSpace(p.MP3Encoding))
	if p.MP3Encoding == "" {
		p.MP3Encoding = defaultMP3Encoding
	}
	if p.SampleRate == 0 {
		p.SampleRate = defaultSampleRate
	}
	if p.BitDepth == 0 {
		p.BitDepth = defaultBitDepth
	}
	if p.ChunkSeconds == 0 {
		p.ChunkSeconds = defaultChunkSeconds
	}
	if p.ChunkOverlapSec == 0 {
		p.ChunkOverlapSec = defaultChunkOverlapSec
	}
	if p.CrossfadeMs == 0 {
		p.CrossfadeMs = defaultCrossfadeMs
	}
	if p.ChunkMax == 0 {
		p.ChunkMax = defaultChunkMax
	}
	if p.TimeoutSec == 0 {
		p.TimeoutSec = defaultTimeoutSec
	}
	if p.SeparatorBinary == "" {
		p.SeparatorBinary = defaultSeparatorBinary
	}
	if p.FFmpegBinary == "" {
		p.FFmpegBinary = defaultFFmpegBinary
	}
	if p.FFprobeBinary == "" {
		p.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeVariants() {
	cleaned := make([]string, 0, len(c.Variants.Enabled))
	for _, v := range c.Variants.Enabled {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			cleaned = append(cleaned, v)
		}
	}
	if len(cleaned) == 0 {
		cleaned = []string{"instrumental"}
	}
	c.Variants.Enabled = cleaned
}

func (c *Config) normalizeRecovery() {
	c.Recovery.CorruptDest = strings.ToLower(strings.TrimSpace(c.Recovery.CorruptDest))
	if c.Recovery.CorruptDest == "" {
		c.Recovery.CorruptDest = defaultCorruptDest
	}
}

func (c *Config) normalizeSync() error {
	s := &c.Sync
	s.Method = strings.ToLower(strings.TrimSpace(s.Method))
	if s.Method == "" {
		s.Method = defaultSyncMethod
	}
	if s.PollIntervalSec == 0 {
		s.PollIntervalSec = defaultSyncPollIntervalSec
	}
	if s.RemoteRoots == nil {
		s.RemoteRoots = map[string]string{}
	}

	if s.SCPKey == "" {
		if v, ok := os.LookupEnv("DESCANT_SCP_KEY"); ok {
			s.SCPKey = v
		}
	}
	if s.S3Region == "" {
		if v, ok := os.LookupEnv("DESCANT_S3_REGION"); ok {
			s.S3Region = v
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
