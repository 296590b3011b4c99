package exectool

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesCombinedOutputAndExitCode(t *testing.T) {
	restore := fakeCommand(t, "echo from-stdout\necho from-stderr >&2\nexit 1")
	defer restore()

	res, err := Run(context.Background(), 0, "ignored")
	if err == nil {
		t.Fatal("expected a non-zero exit to return an error")
	}
	if res.ExitCode == 0 {
		t.Fatalf("expected non-zero exit code, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Combined, "from-stdout") || !strings.Contains(res.Combined, "from-stderr") {
		t.Fatalf("expected combined stdout and stderr, got %q", res.Combined)
	}
}

func TestRunSucceeds(t *testing.T) {
	restore := fakeCommand(t, "echo ok")
	defer restore()

	res, err := Run(context.Background(), time.Second, "ignored")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d", res.ExitCode)
	}
}

func TestRunTimesOut(t *testing.T) {
	restore := fakeCommand(t, "sleep 5")
	defer restore()

	_, err := Run(context.Background(), 10*time.Millisecond, "ignored")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

// fakeCommand overrides commandContext to run script via /bin/sh -c instead
// of the name/args Run was called with, letting tests control exit behavior
// without depending on a real separator/ffmpeg binary being installed.
func fakeCommand(t *testing.T, script string) func() {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "/bin/sh", "-c", script)
	}
	return func() { commandContext = original }
}
