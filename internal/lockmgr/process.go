// Package lockmgr implements the two exclusion locks the Processor holds: the
// process singleton lock (one Processor per host) and the per-album lock
// (no two tracks of the same album run concurrently), grounded on the
// teacher's internal/daemon flock usage, generalized to the host:pid content
// rules spec §4.4 requires.
package lockmgr

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned by ProcessLock.Acquire when a live holder on
// this host already owns the lock.
var ErrAlreadyRunning = fmt.Errorf("already running")

// ErrForeignLock is returned when the lock is held by a different host; such
// a lock is never taken over.
var ErrForeignLock = fmt.Errorf("lock held by a different host")

// ProcessLock is the singleton lock described in spec §4.4: file content is
// "<hostname>:<pid>".
type ProcessLock struct {
	path string
	file *flock.Flock
}

// NewProcessLock constructs (without acquiring) a singleton lock at path.
func NewProcessLock(path string) *ProcessLock {
	return &ProcessLock{path: path, file: flock.New(path)}
}

// Acquire implements the rules of spec §4.4:
//  1. Absent lock file: write it and proceed.
//  2. Same hostname, live pid: refuse with ErrAlreadyRunning.
//  3. Same hostname, dead pid: take over.
//  4. Different hostname: refuse with ErrForeignLock, never take over.
//  5. Legacy numeric-only content is treated as local.
func (p *ProcessLock) Acquire() error {
	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("lockmgr: resolve hostname: %w", err)
	}

	raw, readErr := os.ReadFile(p.path)
	if readErr == nil {
		holderHost, holderPID, legacy := parseLockContent(strings.TrimSpace(string(raw)))
		if legacy {
			holderHost = hostname
		}
		if holderHost != hostname {
			return ErrForeignLock
		}
		if holderPID > 0 && holderPID != os.Getpid() && processAlive(holderPID) {
			return ErrAlreadyRunning
		}
		// Dead local holder, or this process's own released lock: take over
		// below; the flock still refuses while another handle holds it.
	} else if !os.IsNotExist(readErr) {
		return fmt.Errorf("lockmgr: read lock file: %w", readErr)
	}

	ok, err := p.file.TryLock()
	if err != nil {
		return fmt.Errorf("lockmgr: flock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	content := fmt.Sprintf("%s:%d", hostname, os.Getpid())
	if err := os.WriteFile(p.path, []byte(content), 0o644); err != nil {
		_ = p.file.Unlock()
		return fmt.Errorf("lockmgr: write lock file: %w", err)
	}
	return nil
}

// Release unlocks the process lock. It does not remove the file, since the
// content check on next Acquire is what governs takeover.
func (p *ProcessLock) Release() error {
	return p.file.Unlock()
}

func parseLockContent(content string) (host string, pid int, legacy bool) {
	if content == "" {
		return "", 0, false
	}
	if idx := strings.LastIndex(content, ":"); idx >= 0 {
		host = content[:idx]
		pid, _ = strconv.Atoi(content[idx+1:])
		return host, pid, false
	}
	// Legacy numeric-only content: interpreted as local.
	if n, err := strconv.Atoi(content); err == nil {
		return "", n, true
	}
	return "", 0, false
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On POSIX, FindProcess always succeeds; signal 0 probes liveness
	// without affecting the process.
	return proc.Signal(syscallSig0) == nil
}

// albumLockKey derives a stable, filesystem-safe key for an album's source
// directory.
func albumLockKey(sourceDir string) string {
	sum := sha256.Sum256([]byte(sourceDir))
	return hex.EncodeToString(sum[:])[:16]
}
