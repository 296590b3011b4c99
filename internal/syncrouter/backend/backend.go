// Package backend implements the four Sync Router transfer backends,
// grounded line-for-line on
// original_source/services/nas_sync_service/syncer.py's SyncBackend
// subclasses, per spec §4.8/§6.4.
package backend

import (
	"context"
	"fmt"
	"time"
)

// transferTimeout bounds a single artifact transfer, mirroring syncer.py's
// subprocess.run(..., timeout=3600).
const transferTimeout = time.Hour

// Backend transfers one local file or directory to a backend-specific
// remote destination.
type Backend interface {
	// Sync transfers localPath to remotePath. label is used for logging
	// only. dryRun performs validation and logging without transferring.
	Sync(ctx context.Context, localPath, remotePath, label string, dryRun bool) error
}

// Config carries the subset of config.Sync a backend needs, passed by value
// so the syncrouter package never imports backend-specific config fields
// directly into its control flow.
type Config struct {
	Method string

	RsyncBandwidthLimit string
	RsyncCompress       bool

	S3Bucket   string
	S3Prefix   string
	S3Region   string
	S3Endpoint string

	SCPHost string
	SCPUser string
	SCPKey  string
}

// New constructs the backend named by cfg.Method.
func New(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Method {
	case "", "local":
		return &LocalBackend{}, nil
	case "rsync":
		return &RsyncBackend{BandwidthLimit: cfg.RsyncBandwidthLimit, Compress: cfg.RsyncCompress}, nil
	case "scp":
		return &ScpBackend{Host: cfg.SCPHost, User: cfg.SCPUser, Key: cfg.SCPKey}, nil
	case "s3":
		return newS3Backend(ctx, cfg)
	default:
		return nil, fmt.Errorf("backend: unknown sync method %q", cfg.Method)
	}
}
