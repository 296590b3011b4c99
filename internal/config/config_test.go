package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"descant/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWorking := filepath.Join(tempHome, ".local", "share", "descant", "working")
	if cfg.Paths.Working != wantWorking {
		t.Fatalf("unexpected working dir: got %q want %q", cfg.Paths.Working, wantWorking)
	}
	if cfg.Processing.MP3Encoding != "v0" {
		t.Fatalf("unexpected default mp3 encoding: %q", cfg.Processing.MP3Encoding)
	}
	if len(cfg.Queues) != 1 || cfg.Queues[0].Name != "default" {
		t.Fatalf("unexpected default queues: %+v", cfg.Queues)
	}
	if cfg.Sync.Method != "local" {
		t.Fatalf("unexpected default sync method: %q", cfg.Sync.Method)
	}
}

func TestLoadParsesFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(tempHome, "config.toml")
	contents := `
[paths]
working = "~/work"
outputs_dir = "~/out"
log_dir = "~/logs"

[processing]
mp3_encoding = "cbr320"
chunk_max = 0

[sync]
method = "s3"
s3_bucket = "music-archive"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, path)
	}
	if cfg.Processing.MP3Encoding != "cbr320" {
		t.Fatalf("unexpected mp3 encoding: %q", cfg.Processing.MP3Encoding)
	}
	if cfg.Sync.Method != "s3" {
		t.Fatalf("unexpected sync method: %q", cfg.Sync.Method)
	}
	if cfg.Sync.S3Bucket != "music-archive" {
		t.Fatalf("unexpected s3 bucket: %q", cfg.Sync.S3Bucket)
	}
}

func TestValidateRejectsUnknownMP3Encoding(t *testing.T) {
	cfg := config.Default()
	cfg.Processing.MP3Encoding = "flac"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown mp3 encoding")
	}
}

func TestValidateRequiresS3Bucket(t *testing.T) {
	cfg := config.Default()
	cfg.Sync.Method = "s3"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing s3 bucket")
	}
}

func TestValidateRejectsDuplicateQueueNames(t *testing.T) {
	cfg := config.Default()
	cfg.Queues = append(cfg.Queues, config.Queue{Name: "default", Root: "/tmp/other"})
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for duplicate queue name")
	}
}
