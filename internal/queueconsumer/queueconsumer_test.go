package queueconsumer_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"descant/internal/queueconsumer"
)

func writeJobBundle(t *testing.T, root, jobID string, mtime time.Time) string {
	t.Helper()
	dir := filepath.Join(root, "job_"+jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	jobJSON := `{"job_id":"` + jobID + `","source_type":"youtube","audio_path":"audio.flac"}`
	if err := os.WriteFile(filepath.Join(dir, "job.json"), []byte(jobJSON), 0o644); err != nil {
		t.Fatalf("write job.json: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "audio.flac"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if err := os.Chtimes(filepath.Join(dir, "job.json"), mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	return dir
}

func TestDiscoverOrdersByModTimeThenJobID(t *testing.T) {
	root := t.TempDir()
	base := time.Now().Add(-time.Hour)
	writeJobBundle(t, root, "b", base)
	writeJobBundle(t, root, "a", base)
	writeJobBundle(t, root, "c", base.Add(time.Minute))

	c := queueconsumer.New(map[string]string{"default": root}, []string{"default"}, t.TempDir(), t.TempDir())
	candidates, err := c.Discover()
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}
	if candidates[0].JobID != "a" || candidates[1].JobID != "b" || candidates[2].JobID != "c" {
		t.Fatalf("unexpected order: %+v", candidates)
	}
}

func TestDiscoverSkipsTempAndIncompleteBundles(t *testing.T) {
	root := t.TempDir()
	writeJobBundle(t, root, "ready", time.Now())

	tempDir := filepath.Join(root, "job_writing.tmp")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}

	incomplete := filepath.Join(root, "job_incomplete")
	if err := os.MkdirAll(incomplete, 0o755); err != nil {
		t.Fatalf("mkdir incomplete: %v", err)
	}

	c := queueconsumer.New(map[string]string{"default": root}, []string{"default"}, t.TempDir(), t.TempDir())
	candidates, err := c.Discover()
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(candidates) != 1 || candidates[0].JobID != "ready" {
		t.Fatalf("unexpected candidates: %+v", candidates)
	}
}

func TestClaimMovesIntoWorkingRoot(t *testing.T) {
	queueRoot := t.TempDir()
	workingRoot := t.TempDir()
	dir := writeJobBundle(t, queueRoot, "x1", time.Now())

	c := queueconsumer.New(map[string]string{"default": queueRoot}, []string{"default"}, workingRoot, t.TempDir())
	cand := queueconsumer.Candidate{QueueName: "default", Dir: dir, JobID: "x1"}

	claimed, err := c.Claim(cand)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("expected source directory to be gone after claim")
	}
	if _, err := os.Stat(filepath.Join(claimed.Dir, "job.json")); err != nil {
		t.Fatalf("expected job.json at claimed location: %v", err)
	}
}

func TestClaimFailsWhenAlreadyClaimed(t *testing.T) {
	queueRoot := t.TempDir()
	workingRoot := t.TempDir()
	dir := writeJobBundle(t, queueRoot, "race", time.Now())

	c := queueconsumer.New(map[string]string{"default": queueRoot}, []string{"default"}, workingRoot, t.TempDir())
	cand := queueconsumer.Candidate{QueueName: "default", Dir: dir, JobID: "race"}

	if _, err := c.Claim(cand); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := c.Claim(cand); err == nil {
		t.Fatal("expected second claim of the same candidate to fail")
	}
}

func TestArchiveMovesToDisposition(t *testing.T) {
	workingRoot := t.TempDir()
	archiveRoot := t.TempDir()
	dir := filepath.Join(workingRoot, "job_done")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	c := queueconsumer.New(nil, nil, workingRoot, archiveRoot)
	claimed := queueconsumer.Claimed{QueueName: "default", Dir: dir, JobID: "done"}

	if err := c.Archive(claimed, queueconsumer.DispositionSuccess); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if _, err := os.Stat(filepath.Join(archiveRoot, "success", "job_done")); err != nil {
		t.Fatalf("expected archived directory: %v", err)
	}
}

func TestNextPrefersAlbumStickiness(t *testing.T) {
	candidates := []queueconsumer.Candidate{
		{JobID: "other-album-1"},
		{JobID: "sticky-2"},
		{JobID: "sticky-1"},
	}
	albumOf := func(c queueconsumer.Candidate) string {
		if c.JobID == "sticky-1" || c.JobID == "sticky-2" {
			return "Artist/Album"
		}
		return "Other/Album"
	}

	next, ok := queueconsumer.Next(candidates, "Artist/Album", albumOf)
	if !ok {
		t.Fatal("expected a candidate")
	}
	if next.JobID != "sticky-2" {
		t.Fatalf("expected first sticky candidate in scan order, got %q", next.JobID)
	}
}
