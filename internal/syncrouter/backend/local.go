package backend

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"descant/internal/fsutil"
	"descant/internal/pipelineerr"
)

// LocalBackend copies into a local (or NAS-mounted) directory, grounded on
// syncer.py's LocalBackend: the artifact is copied INTO remotePath, the way
// rsync with a trailing slash on the source copies contents rather than
// renaming the source itself.
type LocalBackend struct{}

func (b *LocalBackend) Sync(ctx context.Context, localPath, remotePath, label string, dryRun bool) error {
	if _, err := os.Stat(localPath); err != nil {
		return pipelineerr.Wrap(pipelineerr.ErrSyncTransient, "backend/local", "sync", label, err)
	}
	if dryRun {
		return nil
	}

	dest := filepath.Join(remotePath, filepath.Base(localPath))
	if err := fsutil.EnsureDir(remotePath); err != nil {
		return pipelineerr.Wrap(pipelineerr.ErrSyncTransient, "backend/local", "sync", label, err)
	}
	if _, err := os.Stat(dest); err == nil {
		if err := os.RemoveAll(dest); err != nil {
			return pipelineerr.Wrap(pipelineerr.ErrSyncTransient, "backend/local", "sync", label, err)
		}
	}
	if err := copyPath(localPath, dest); err != nil {
		return pipelineerr.Wrap(pipelineerr.ErrSyncTransient, "backend/local", "sync", label, err)
	}
	return nil
}

func copyPath(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFile(src, dst)
	}
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := fsutil.EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
