package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/pkg/logging"
	"github.com/rushteam/recpipe/pkg/metrics"
)

// FileError 单个文件的同步失败
type FileError struct {
	Path string
	Key  string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s -> %s: %v", e.Path, e.Key, e.Err)
}

// SyncReport 一次同步的结果。单个文件失败只记录，不中断整批。
type SyncReport struct {
	Transferred []string
	Failed      []FileError
}

// Syncer 把产物目录逐文件同步到对象存储。
//
// 对象 key 为 {prefix}_{父目录名}/{文件名}，根目录下的文件父目录名即根目录名，
// 因此拉回时本地根目录应与上传时同名。
type Syncer struct {
	store   ObjectStore
	prefix  string
	retry   Retry
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// SyncerOption Syncer 选项
type SyncerOption func(*Syncer)

// WithRetry 设置单文件重试策略
func WithRetry(r Retry) SyncerOption {
	return func(s *Syncer) { s.retry = r }
}

// WithBreakerSettings 替换默认熔断配置
func WithBreakerSettings(st gobreaker.Settings) SyncerOption {
	return func(s *Syncer) { s.breaker = gobreaker.NewCircuitBreaker[struct{}](st) }
}

func NewSyncer(store ObjectStore, prefix string, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		store:  store,
		prefix: prefix,
		retry:  DefaultRetry,
	}
	s.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "remote-sync",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		// 连续 5 次失败后熔断
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key 返回本地文件对应的对象 key
func (s *Syncer) Key(dir, file string) string {
	return s.prefix + "_" + filepath.Base(dir) + "/" + file
}

// Upload 广度优先遍历 root，逐文件上传
func (s *Syncer) Upload(ctx context.Context, root string) (*SyncReport, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, core.NewArtifactError(root, err)
	}
	if !info.IsDir() {
		return nil, core.NewArtifactError(root, fmt.Errorf("not a directory"))
	}

	log := logging.Stage("sync")
	report := &SyncReport{}
	queue := []string{root}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			report.Failed = append(report.Failed, FileError{Path: dir, Err: core.NewArtifactError(dir, err)})
			continue
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, e := range entries {
			local := filepath.Join(dir, e.Name())
			if e.IsDir() {
				queue = append(queue, local)
				continue
			}
			// 写入中的临时文件
			if strings.HasPrefix(e.Name(), ".") {
				continue
			}
			if err := ctx.Err(); err != nil {
				return report, err
			}

			key := s.Key(dir, e.Name())
			err := s.retry.Do(ctx, "upload "+key, func() error {
				_, err := s.breaker.Execute(func() (struct{}, error) {
					return struct{}{}, s.put(ctx, local, key)
				})
				return err
			})
			metrics.RecordTransfer("upload", err)
			if err != nil {
				log.Warn().Err(err).Str("file", local).Str("key", key).Msg("upload failed")
				report.Failed = append(report.Failed, FileError{Path: local, Key: key, Err: core.NewRemoteError(key, err)})
				continue
			}
			report.Transferred = append(report.Transferred, s.store.URI(key))
		}
	}

	log.Info().Int("uploaded", len(report.Transferred)).Int("failed", len(report.Failed)).Msg("upload finished")
	return report, nil
}

func (s *Syncer) put(ctx context.Context, local, key string) error {
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	return s.store.PutObject(ctx, key, f, info.Size())
}

// Download 拉取 {prefix}_ 开头的对象，{prefix}_{dir}/{file} 还原到 root/{dir}/{file}；
// dir 与 root 同名的对象还原到 root 下
func (s *Syncer) Download(ctx context.Context, root string) (*SyncReport, error) {
	keys, err := s.store.ListObjects(ctx, s.prefix+"_")
	if err != nil {
		return nil, core.NewRemoteError(s.prefix+"_", err)
	}
	sort.Strings(keys)

	log := logging.Stage("sync")
	report := &SyncReport{}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		local, ok := s.localPath(root, key)
		if !ok {
			log.Debug().Str("key", key).Msg("skipping key outside artifact layout")
			continue
		}
		err := s.retry.Do(ctx, "download "+key, func() error {
			_, err := s.breaker.Execute(func() (struct{}, error) {
				return struct{}{}, s.get(ctx, key, local)
			})
			return err
		})
		metrics.RecordTransfer("download", err)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("download failed")
			report.Failed = append(report.Failed, FileError{Path: local, Key: key, Err: core.NewRemoteError(key, err)})
			continue
		}
		report.Transferred = append(report.Transferred, local)
	}

	log.Info().Int("downloaded", len(report.Transferred)).Int("failed", len(report.Failed)).Msg("download finished")
	return report, nil
}

func (s *Syncer) localPath(root, key string) (string, bool) {
	rest := strings.TrimPrefix(key, s.prefix+"_")
	dir, file := path.Split(rest)
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" || file == "" || strings.Contains(dir, "/") || dir == ".." || file == ".." {
		return "", false
	}
	if dir == filepath.Base(root) {
		return filepath.Join(root, file), true
	}
	return filepath.Join(root, dir, file), true
}

func (s *Syncer) get(ctx context.Context, key, local string) error {
	rc, err := s.store.GetObject(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return err
	}
	tmp := local + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, local)
}

// Notify 产物发布后上传整个目录。单文件失败已记录在日志和指标中，不视为运行失败。
func (s *Syncer) Notify(ctx context.Context, root string) error {
	report, err := s.Upload(ctx, root)
	if err != nil {
		return err
	}
	if len(report.Failed) > 0 {
		logging.Warn().Int("failed", len(report.Failed)).Msg("some artifacts were not uploaded")
	}
	return nil
}
