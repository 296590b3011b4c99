package config

import (
	"errors"
	"fmt"
)

var validMP3Encodings = map[string]bool{"v0": true, "cbr320": true}
var validCorruptDests = map[string]bool{"archive": true, "quarantine": true}
var validSyncMethods = map[string]bool{"rsync": true, "scp": true, "s3": true, "local": true}

// Validate ensures the configuration is internally consistent and usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateQueues(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateRecovery(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.Working == "" {
		return errors.New("paths.working must be set")
	}
	if c.Paths.OutputsDir == "" {
		return errors.New("paths.outputs_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateQueues() error {
	if len(c.Queues) == 0 {
		return errors.New("at least one queue must be configured")
	}
	seen := make(map[string]bool, len(c.Queues))
	for _, q := range c.Queues {
		if q.Name == "" {
			return errors.New("queues: name must not be empty")
		}
		if q.Root == "" {
			return fmt.Errorf("queues.%s: root must not be empty", q.Name)
		}
		if seen[q.Name] {
			return fmt.Errorf("queues: duplicate queue name %q", q.Name)
		}
		seen[q.Name] = true
	}
	return nil
}

func (c *Config) validateProcessing() error {
	p := c.Processing
	if !validMP3Encodings[p.MP3Encoding] {
		return fmt.Errorf("processing.mp3_encoding must be one of v0, cbr320 (got %q)", p.MP3Encoding)
	}
	if p.SampleRate <= 0 {
		return errors.New("processing.sample_rate must be positive")
	}
	if p.BitDepth != 16 && p.BitDepth != 24 {
		return fmt.Errorf("processing.bit_depth must be 16 or 24 (got %d)", p.BitDepth)
	}
	if p.ChunkingEnabled {
		if p.ChunkSeconds <= 0 {
			return errors.New("processing.chunk_seconds must be positive when chunking_enabled")
		}
		if p.ChunkOverlapSec < 0 || p.ChunkOverlapSec >= p.ChunkSeconds {
			return errors.New("processing.chunk_overlap_sec must be non-negative and smaller than chunk_seconds")
		}
		if p.ChunkMax < 0 {
			return errors.New("processing.chunk_max must not be negative")
		}
	}
	if p.CrossfadeMs < 0 {
		return errors.New("processing.crossfade_ms must not be negative")
	}
	if p.TimeoutSec <= 0 {
		return errors.New("processing.timeout_sec must be positive")
	}
	if p.MaxRetries < 0 {
		return errors.New("processing.max_retries must not be negative")
	}
	return nil
}

func (c *Config) validateRecovery() error {
	if !validCorruptDests[c.Recovery.CorruptDest] {
		return fmt.Errorf("recovery.corrupt_dest must be one of archive, quarantine (got %q)", c.Recovery.CorruptDest)
	}
	return nil
}

func (c *Config) validateSync() error {
	s := c.Sync
	if !validSyncMethods[s.Method] {
		return fmt.Errorf("sync.method must be one of rsync, scp, s3, local (got %q)", s.Method)
	}
	if s.PollIntervalSec <= 0 {
		return errors.New("sync.poll_interval_sec must be positive")
	}
	switch s.Method {
	case "s3":
		if s.S3Bucket == "" {
			return errors.New("sync.s3_bucket must be set when sync.method is s3")
		}
	case "scp":
		if s.SCPHost == "" {
			return errors.New("sync.scp_host must be set when sync.method is scp")
		}
	}
	for _, route := range s.Routes {
		if route.To == "" {
			return errors.New("sync.routes: to must not be empty")
		}
	}
	return nil
}
