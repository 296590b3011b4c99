// Package queueconsumer discovers, claims, and archives job bundles across
// a set of named queue roots, grounded on
// original_source/app/queue_consumer.py's QueueConsumer and spec §4.5.
// Unlike the teacher's SQLite-backed internal/queue, this queue is
// filesystem-native: the rename that moves a bundle out of a queue root *is*
// the claim, so two consumers racing for the same job can never both win.
package queueconsumer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"descant/internal/bundle"
	"descant/internal/fsutil"
)

// Candidate is one discovered, unclaimed job bundle.
type Candidate struct {
	QueueName string
	Dir       string
	JobID     string
	ModTime   int64 // unix nanoseconds, oldest file mtime in the bundle
}

// Claimed is a bundle that has been moved into the working root.
type Claimed struct {
	QueueName string
	Dir       string
	JobID     string
}

// Disposition names the archive subdirectory a claim resolves to.
type Disposition string

const (
	DispositionSuccess          Disposition = "success"
	DispositionFailedSeparation Disposition = "failed/separation"
	DispositionFailedCorrupt    Disposition = "failed/corrupt"
	DispositionFailedPublish    Disposition = "failed/publish"
)

// Consumer scans a fixed, ordered set of named queue roots.
type Consumer struct {
	queues      []queueRoot
	workingRoot string
	archiveRoot string
}

type queueRoot struct {
	name string
	root string
}

// New constructs a Consumer. Discover scans the queue roots in the order
// given by order, then sorts the candidates of all queues together, so queue
// order does not break ties.
func New(queues map[string]string, order []string, workingRoot, archiveRoot string) *Consumer {
	c := &Consumer{workingRoot: workingRoot, archiveRoot: archiveRoot}
	for _, name := range order {
		if root, ok := queues[name]; ok {
			c.queues = append(c.queues, queueRoot{name: name, root: root})
		}
	}
	return c
}

// Discover scans every queue root and returns claimable jobs ordered by the
// oldest modification time of any file in the bundle, breaking ties on
// job_id, per spec §4.5.
func (c *Consumer) Discover() ([]Candidate, error) {
	var all []Candidate
	for _, q := range c.queues {
		entries, err := os.ReadDir(q.root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("queueconsumer: scan %s: %w", q.root, err)
		}
		for _, e := range entries {
			if !e.IsDir() || bundle.IsTemp(e.Name()) {
				continue
			}
			dir := filepath.Join(q.root, e.Name())
			if !isReady(dir) {
				continue
			}
			mtime, err := oldestModTime(dir)
			if err != nil {
				continue
			}
			jobID := strings.TrimPrefix(e.Name(), "job_")
			all = append(all, Candidate{
				QueueName: q.name,
				Dir:       dir,
				JobID:     jobID,
				ModTime:   mtime,
			})
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].ModTime != all[j].ModTime {
			return all[i].ModTime < all[j].ModTime
		}
		return all[i].JobID < all[j].JobID
	})
	return all, nil
}

// Next returns the next candidate to claim, giving priority to a job from
// afterAlbum (the artist/album of a just-claimed bundle) when one is
// available, per spec §4.5's album-stickiness rule: "When a claimed album
// still has queued siblings, the Processor gives the same album priority
// over other candidates until the album is exhausted." afterAlbum may be
// empty, meaning no preference.
func Next(candidates []Candidate, afterAlbum string, albumOf func(Candidate) string) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	if afterAlbum != "" {
		for _, cand := range candidates {
			if albumOf(cand) == afterAlbum {
				return cand, true
			}
		}
	}
	return candidates[0], true
}

// isReady mirrors original_source's _is_job_ready: job.json must exist and
// be a regular file, and the directory must not carry the temp suffix
// (already filtered by the caller, checked again defensively here).
func isReady(dir string) bool {
	if bundle.IsTemp(filepath.Base(dir)) {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, "job.json"))
	return err == nil && !info.IsDir()
}

func oldestModTime(dir string) (int64, error) {
	var oldest int64
	found := false
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		t := info.ModTime().UnixNano()
		if !found || t < oldest {
			oldest = t
			found = true
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if !found {
		info, err := os.Stat(dir)
		if err != nil {
			return 0, err
		}
		return info.ModTime().UnixNano(), nil
	}
	return oldest, nil
}

// Claim moves cand's bundle directory into the working root under the name
// job_<job_id>. The rename is the claim: if another consumer
// already moved or deleted the source directory, os.Rename fails and the
// caller should move on to the next candidate.
func (c *Consumer) Claim(cand Candidate) (Claimed, error) {
	dest := filepath.Join(c.workingRoot, fmt.Sprintf("job_%s", cand.JobID))
	if err := fsutil.EnsureDir(c.workingRoot); err != nil {
		return Claimed{}, fmt.Errorf("queueconsumer: ensure working root: %w", err)
	}
	if err := os.Rename(cand.Dir, dest); err != nil {
		return Claimed{}, fmt.Errorf("queueconsumer: claim %s: %w", cand.JobID, err)
	}
	return Claimed{QueueName: cand.QueueName, Dir: dest, JobID: cand.JobID}, nil
}

// Archive moves a claimed bundle's directory to archive/<disposition>/,
// per spec §4.5.
func (c *Consumer) Archive(claim Claimed, disposition Disposition) error {
	destDir := filepath.Join(c.archiveRoot, filepath.FromSlash(string(disposition)))
	if err := fsutil.EnsureDir(destDir); err != nil {
		return fmt.Errorf("queueconsumer: ensure archive dir: %w", err)
	}
	dest := filepath.Join(destDir, filepath.Base(claim.Dir))
	if _, err := os.Stat(dest); err == nil {
		if err := os.RemoveAll(dest); err != nil {
			return fmt.Errorf("queueconsumer: clear existing archive entry: %w", err)
		}
	}
	if err := os.Rename(claim.Dir, dest); err != nil {
		return fmt.Errorf("queueconsumer: archive %s: %w", claim.JobID, err)
	}
	return nil
}
