package backend

import (
	"context"
	"errors"
	"fmt"
	"os"

	"descant/internal/exectool"
	"descant/internal/pipelineerr"
)

// ScpBackend syncs via the scp binary, grounded on syncer.py's ScpBackend.
type ScpBackend struct {
	Host string
	User string
	Key  string
}

func (b *ScpBackend) Sync(ctx context.Context, localPath, remotePath, label string, dryRun bool) error {
	if _, err := os.Stat(localPath); err != nil {
		return pipelineerr.Wrap(pipelineerr.ErrSyncTransient, "backend/scp", "sync", label, err)
	}

	target := fmt.Sprintf("%s@%s:%s", b.User, b.Host, remotePath)
	args := []string{"-r"}
	if b.Key != "" {
		args = append(args, "-i", b.Key)
	}
	args = append(args, localPath, target)

	if dryRun {
		return nil
	}

	res, err := exectool.Run(ctx, transferTimeout, "scp", args...)
	if err != nil {
		if errors.Is(err, exectool.ErrTimeout) {
			return pipelineerr.Wrap(pipelineerr.ErrSyncTransient, "backend/scp", "sync", label+": timed out", err)
		}
		return pipelineerr.Wrap(pipelineerr.ErrSyncTransient, "backend/scp", "sync", label+": "+res.Combined, err)
	}
	return nil
}
