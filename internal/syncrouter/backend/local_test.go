package backend_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"descant/internal/pipelineerr"
	"descant/internal/syncrouter/backend"
)

func TestLocalBackendCopiesFileIntoRemoteDir(t *testing.T) {
	srcDir := t.TempDir()
	remoteDir := t.TempDir()

	src := filepath.Join(srcDir, "instrumental.mp3")
	if err := os.WriteFile(src, []byte("audio bytes"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	b := &backend.LocalBackend{}
	if err := b.Sync(context.Background(), src, remoteDir, "instrumental", false); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(remoteDir, "instrumental.mp3"))
	if err != nil {
		t.Fatalf("read copied file: %v", err)
	}
	if string(got) != "audio bytes" {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestLocalBackendDryRunDoesNotCopy(t *testing.T) {
	srcDir := t.TempDir()
	remoteDir := t.TempDir()

	src := filepath.Join(srcDir, "instrumental.mp3")
	if err := os.WriteFile(src, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	b := &backend.LocalBackend{}
	if err := b.Sync(context.Background(), src, remoteDir, "instrumental", true); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if _, err := os.Stat(filepath.Join(remoteDir, "instrumental.mp3")); err == nil {
		t.Fatal("expected dry-run to skip the copy")
	}
}

func TestLocalBackendMissingSourceIsTransient(t *testing.T) {
	b := &backend.LocalBackend{}
	err := b.Sync(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"), t.TempDir(), "instrumental", false)
	if err == nil {
		t.Fatal("expected an error for a missing source file")
	}
	if !errors.Is(err, pipelineerr.ErrSyncTransient) {
		t.Fatalf("expected ErrSyncTransient, got %v", err)
	}
}

func TestBackendNewDefaultsToLocal(t *testing.T) {
	be, err := backend.New(context.Background(), backend.Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := be.(*backend.LocalBackend); !ok {
		t.Fatalf("expected LocalBackend for empty method, got %T", be)
	}
}

func TestBackendNewRejectsUnknownMethod(t *testing.T) {
	if _, err := backend.New(context.Background(), backend.Config{Method: "carrier-pigeon"}); err == nil {
		t.Fatal("expected an error for an unknown sync method")
	}
}
