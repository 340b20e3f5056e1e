// Package remote 把本地产物目录同步到对象存储（S3 或 GCS），并能原样拉回。
package remote

import (
	"context"
	"io"
)

// ObjectStore 对象存储的最小接口
type ObjectStore interface {
	// PutObject 上传对象，size 未知时传 -1
	PutObject(ctx context.Context, key string, r io.Reader, size int64) error
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	// ListObjects 列出以 prefix 开头的全部 key
	ListObjects(ctx context.Context, prefix string) ([]string, error)
	// URI 返回对象的完整地址，如 s3://bucket/key
	URI(key string) string
	Close() error
}
