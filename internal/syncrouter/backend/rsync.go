package backend

import (
	"context"
	"errors"
	"os"
	"strings"

	"descant/internal/exectool"
	"descant/internal/pipelineerr"
)

// RsyncBackend syncs via the rsync binary, grounded on syncer.py's
// RsyncBackend.
type RsyncBackend struct {
	BandwidthLimit string
	Compress       bool
}

func (b *RsyncBackend) Sync(ctx context.Context, localPath, remotePath, label string, dryRun bool) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.ErrSyncTransient, "backend/rsync", "sync", label, err)
	}

	args := []string{"-av"}
	if b.Compress {
		args = append(args, "-z")
	}
	if b.BandwidthLimit != "" && b.BandwidthLimit != "0" {
		args = append(args, "--bwlimit", b.BandwidthLimit)
	}
	if dryRun {
		args = append(args, "--dry-run")
	}

	localArg := localPath
	if info.IsDir() && !strings.HasSuffix(localArg, "/") {
		localArg += "/"
	}
	args = append(args, localArg, remotePath)

	res, err := exectool.Run(ctx, transferTimeout, "rsync", args...)
	if err != nil {
		if errors.Is(err, exectool.ErrTimeout) {
			return pipelineerr.Wrap(pipelineerr.ErrSyncTransient, "backend/rsync", "sync", label+": timed out", err)
		}
		return pipelineerr.Wrap(pipelineerr.ErrSyncTransient, "backend/rsync", "sync", label+": "+res.Combined, err)
	}
	return nil
}
