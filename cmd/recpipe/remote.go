package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rushteam/recpipe/config"
	"github.com/rushteam/recpipe/remote"
)

// openSyncer 按后端构造对象存储与 Syncer；backend 为空时取配置中的后端
func openSyncer(ctx context.Context, c *config.Config, backend string) (*remote.Syncer, remote.ObjectStore, error) {
	if backend == "" {
		backend = c.RemoteBackend()
	}
	switch backend {
	case "s3":
		store, err := remote.NewS3Store(ctx, remote.S3Config{
			Bucket:          c.AWS.BucketName,
			Region:          firstNonEmpty(c.AWS.Region, os.Getenv("aws_region")),
			Endpoint:        c.AWS.Endpoint,
			AccessKeyID:     os.Getenv("aws_access_key_id"),
			SecretAccessKey: os.Getenv("aws_secret_access_key"),
		})
		if err != nil {
			return nil, nil, err
		}
		return remote.NewSyncer(store, c.AWS.Prefix), store, nil
	case "gcs":
		store, err := remote.NewGCSStore(ctx, remote.GCSConfig{
			Bucket:   c.GCS.BucketName,
			Endpoint: c.GCS.Endpoint,
		})
		if err != nil {
			return nil, nil, err
		}
		return remote.NewSyncer(store, c.GCS.Prefix), store, nil
	case "":
		return nil, nil, fmt.Errorf("no remote backend configured (set aws.bucket_name or gcs.bucket_name)")
	default:
		return nil, nil, fmt.Errorf("unknown remote backend %q (want s3 or gcs)", backend)
	}
}
