package lockmgr_test

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"descant/internal/lockmgr"
)

func TestProcessLockAcquireThenReleaseAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "descant.lock")

	first := lockmgr.NewProcessLock(path)
	if err := first.Acquire(); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	second := lockmgr.NewProcessLock(path)
	if err := second.Acquire(); err != nil {
		t.Fatalf("second Acquire after release: %v", err)
	}
	_ = second.Release()
}

func TestProcessLockRefusesWhileHeldBySameHostLivePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "descant.lock")

	holder := lockmgr.NewProcessLock(path)
	if err := holder.Acquire(); err != nil {
		t.Fatalf("holder Acquire: %v", err)
	}
	defer holder.Release()

	other := lockmgr.NewProcessLock(path)
	err := other.Acquire()
	if !errors.Is(err, lockmgr.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestProcessLockTakesOverDeadLocalHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "descant.lock")
	hostname, err := os.Hostname()
	if err != nil {
		t.Fatalf("os.Hostname: %v", err)
	}

	// A pid that is virtually certain not to be alive on this host.
	deadPID := 1 << 30
	content := hostname + ":" + strconv.Itoa(deadPID)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("seed stale lock file: %v", err)
	}

	taker := lockmgr.NewProcessLock(path)
	if err := taker.Acquire(); err != nil {
		t.Fatalf("expected takeover of dead local holder, got %v", err)
	}
	_ = taker.Release()
}

func TestProcessLockRefusesForeignHost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "descant.lock")
	if err := os.WriteFile(path, []byte("some-other-host:123"), 0o644); err != nil {
		t.Fatalf("seed foreign lock file: %v", err)
	}

	lock := lockmgr.NewProcessLock(path)
	if err := lock.Acquire(); !errors.Is(err, lockmgr.ErrForeignLock) {
		t.Fatalf("expected ErrForeignLock, got %v", err)
	}
}
