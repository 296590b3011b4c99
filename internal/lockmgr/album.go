package lockmgr

import (
	"fmt"
	"os"
	"path/filepath"
)

// AlbumLock is the advisory, Processor-goroutines-only lock that enforces
// "no two tracks of the same album run concurrently" per spec §4.4. Unlike
// ProcessLock it is never used to refuse a second host.
type AlbumLock struct {
	dir    string
	file   string
	sourceDir string
}

// NewAlbumLock returns a lock keyed by sourceDir, with its marker file under
// locksDir.
func NewAlbumLock(locksDir, sourceDir string) *AlbumLock {
	key := albumLockKey(sourceDir)
	return &AlbumLock{
		dir:       locksDir,
		file:      filepath.Join(locksDir, key+".album.lock"),
		sourceDir: sourceDir,
	}
}

// TryAcquire creates the marker file exclusively, returning false if another
// holder already owns it.
func (a *AlbumLock) TryAcquire() (bool, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return false, fmt.Errorf("album lock: ensure dir: %w", err)
	}
	f, err := os.OpenFile(a.file, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("album lock: create marker: %w", err)
	}
	defer f.Close()
	_, err = f.WriteString(a.sourceDir)
	if err != nil {
		return false, fmt.Errorf("album lock: write marker: %w", err)
	}
	return true, nil
}

// Release removes the marker file.
func (a *AlbumLock) Release() error {
	err := os.Remove(a.file)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
