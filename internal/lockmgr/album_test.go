package lockmgr_test

import (
	"testing"

	"descant/internal/lockmgr"
)

func TestAlbumLockExclusion(t *testing.T) {
	locksDir := t.TempDir()

	a := lockmgr.NewAlbumLock(locksDir, "Artist/Album")
	acquired, err := a.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if !acquired {
		t.Fatal("expected the first acquire to succeed")
	}

	b := lockmgr.NewAlbumLock(locksDir, "Artist/Album")
	acquired, err = b.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if acquired {
		t.Fatal("expected a concurrent acquire on the same album to fail")
	}

	if err := a.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	acquired, err = b.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire after release: %v", err)
	}
	if !acquired {
		t.Fatal("expected acquire to succeed after the holder released")
	}
}

func TestAlbumLockDistinctAlbumsDoNotConflict(t *testing.T) {
	locksDir := t.TempDir()

	a := lockmgr.NewAlbumLock(locksDir, "Artist/AlbumA")
	b := lockmgr.NewAlbumLock(locksDir, "Artist/AlbumB")

	if ok, err := a.TryAcquire(); err != nil || !ok {
		t.Fatalf("TryAcquire a: ok=%v err=%v", ok, err)
	}
	if ok, err := b.TryAcquire(); err != nil || !ok {
		t.Fatalf("TryAcquire b: ok=%v err=%v", ok, err)
	}
}

func TestAlbumLockReleaseOnUnheldLockIsNoop(t *testing.T) {
	locksDir := t.TempDir()
	lock := lockmgr.NewAlbumLock(locksDir, "Artist/Album")
	if err := lock.Release(); err != nil {
		t.Fatalf("expected releasing a never-acquired lock to be a no-op, got %v", err)
	}
}
