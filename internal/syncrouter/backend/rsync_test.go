package backend_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"descant/internal/pipelineerr"
	"descant/internal/syncrouter/backend"
)

// installFakeBinary puts an executable shell script named name on PATH that
// records its argv to recordPath and exits 0, so backend.Sync tests can
// assert on the command line built without depending on the real rsync/scp
// binaries being installed.
func installFakeBinary(t *testing.T, name string) (recordPath string) {
	t.Helper()
	binDir := t.TempDir()
	recordPath = filepath.Join(t.TempDir(), "argv.txt")

	script := "#!/bin/sh\necho \"$@\" > " + recordPath + "\nexit 0\n"
	scriptPath := filepath.Join(binDir, name)
	if err := os.WriteFile(scriptPath, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake %s: %v", name, err)
	}

	t.Setenv("PATH", binDir+":"+os.Getenv("PATH"))
	return recordPath
}

func TestRsyncBackendInvokesRsyncWithExpectedFlags(t *testing.T) {
	recordPath := installFakeBinary(t, "rsync")

	src := filepath.Join(t.TempDir(), "instrumental.mp3")
	if err := os.WriteFile(src, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	b := &backend.RsyncBackend{BandwidthLimit: "2000", Compress: true}
	if err := b.Sync(context.Background(), src, "/mnt/nas/Instrumental", "instrumental", false); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	data, err := os.ReadFile(recordPath)
	if err != nil {
		t.Fatalf("read recorded argv: %v", err)
	}
	argv := string(data)
	for _, want := range []string{"-av", "-z", "--bwlimit", "2000", "/mnt/nas/Instrumental"} {
		if !strings.Contains(argv, want) {
			t.Errorf("expected argv to contain %q, got %q", want, argv)
		}
	}
}

func TestRsyncBackendMissingSourceIsTransient(t *testing.T) {
	installFakeBinary(t, "rsync")
	b := &backend.RsyncBackend{}
	err := b.Sync(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"), "/mnt/nas", "instrumental", false)
	if err == nil {
		t.Fatal("expected an error for a missing source file")
	}
	if !errors.Is(err, pipelineerr.ErrSyncTransient) {
		t.Fatalf("expected ErrSyncTransient, got %v", err)
	}
}
