package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"descant/internal/pipelineerr"
)

// S3Backend uploads to S3-compatible object storage, grounded on syncer.py's
// S3Backend — the idiomatic Go AWS SDK in place of boto3.
type S3Backend struct {
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

func newS3Backend(ctx context.Context, cfg Config) (*S3Backend, error) {
	optFns := []func(*awsconfig.LoadOptions) error{}
	if cfg.S3Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.S3Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("backend/s3: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = &cfg.S3Endpoint
		}
	})

	return &S3Backend{
		bucket:   cfg.S3Bucket,
		prefix:   strings.TrimSuffix(cfg.S3Prefix, "/"),
		uploader: manager.NewUploader(client),
	}, nil
}

func (b *S3Backend) Sync(ctx context.Context, localPath, remotePath, label string, dryRun bool) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.ErrSyncTransient, "backend/s3", "sync", label, err)
	}

	key := strings.TrimPrefix(remotePath, "/")
	if b.prefix != "" {
		key = b.prefix + "/" + key
	}

	if dryRun {
		return nil
	}

	if !info.IsDir() {
		return b.uploadFile(ctx, localPath, key, label)
	}

	return filepath.Walk(localPath, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localPath, path)
		if err != nil {
			return err
		}
		return b.uploadFile(ctx, path, key+"/"+filepath.ToSlash(rel), label)
	})
}

func (b *S3Backend) uploadFile(ctx context.Context, path, key, label string) error {
	f, err := os.Open(path)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.ErrSyncTransient, "backend/s3", "upload", label, err)
	}
	defer f.Close()

	_, err = b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
		Body:   f,
	})
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.ErrSyncTransient, "backend/s3", "upload", label+": "+key, err)
	}
	return nil
}
