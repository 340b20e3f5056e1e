package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/recpipe/core"
)

// memStore 内存对象存储，failures 记录每个 key 还需失败的次数
type memStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failures map[string]int
	puts     int
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, failures: map[string]int{}}
}

func (m *memStore) PutObject(ctx context.Context, key string, r io.Reader, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if n := m.failures[key]; n != 0 {
		if n > 0 {
			m.failures[key] = n - 1
		}
		return errors.New("injected failure")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memStore) URI(key string) string { return "mem://bucket/" + key }
func (m *memStore) Close() error          { return nil }

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

var tree = map[string]string{
	"manifest.yaml":                        "run_id: r1\n",
	"Collaborative_Filtering/best_cf.json": `{"n":1}`,
	"Data/test_data.csv":                   "a,b\n",
	"Data/train_data.csv":                  "a,b\n1,2\n",
}

var fastRetry = WithRetry(Retry{MaxAttempts: 3, BaseDelay: time.Millisecond})

func TestSyncer_UploadDownload(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "artifacts")
	writeTree(t, root, tree)
	// 临时文件不上传
	writeTree(t, root, map[string]string{"Data/.final_df.csv.123": "partial"})

	store := newMemStore()
	s := NewSyncer(store, "amazon", fastRetry)
	report, err := s.Upload(ctx, root)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	want := []string{
		"mem://bucket/amazon_artifacts/manifest.yaml",
		"mem://bucket/amazon_Collaborative_Filtering/best_cf.json",
		"mem://bucket/amazon_Data/test_data.csv",
		"mem://bucket/amazon_Data/train_data.csv",
	}
	if len(report.Failed) != 0 || len(report.Transferred) != len(want) {
		t.Fatalf("report = %+v", report)
	}
	for i := range want {
		if report.Transferred[i] != want[i] {
			t.Errorf("uploaded[%d] = %s, want %s", i, report.Transferred[i], want[i])
		}
	}

	dst := filepath.Join(t.TempDir(), "artifacts")
	got, err := s.Download(ctx, dst)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if len(got.Transferred) != len(tree) {
		t.Fatalf("downloaded %d files", len(got.Transferred))
	}
	for rel, content := range tree {
		data, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(rel)))
		if err != nil || string(data) != content {
			t.Errorf("%s = %q, %v", rel, data, err)
		}
	}
}

func TestSyncer_RetryAndFailure(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "artifacts")
	writeTree(t, root, tree)

	store := newMemStore()
	store.failures["amazon_Data/test_data.csv"] = 2   // 重试后成功
	store.failures["amazon_Data/train_data.csv"] = -1 // 一直失败

	report, err := NewSyncer(store, "amazon", fastRetry).Upload(ctx, root)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(report.Transferred) != 3 {
		t.Errorf("transferred = %v", report.Transferred)
	}
	if len(report.Failed) != 1 || report.Failed[0].Key != "amazon_Data/train_data.csv" {
		t.Fatalf("failed = %+v", report.Failed)
	}
	if !core.IsRemoteError(report.Failed[0].Err) {
		t.Errorf("failure should be a remote error: %v", report.Failed[0].Err)
	}
	if _, ok := store.objects["amazon_Data/test_data.csv"]; !ok {
		t.Errorf("retried file was not uploaded")
	}
}

func TestSyncer_BreakerOpens(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "artifacts")
	files := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		files["Data/"+name+".csv"] = name
	}
	writeTree(t, root, files)

	store := newMemStore()
	for name := range files {
		store.failures["p_"+name] = -1
	}
	s := NewSyncer(store, "p",
		WithRetry(Retry{MaxAttempts: 1}),
		WithBreakerSettings(gobreaker.Settings{
			Name:        "test",
			Timeout:     time.Hour,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 2 },
		}))
	report, err := s.Upload(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Failed) != 5 {
		t.Fatalf("failed = %d", len(report.Failed))
	}
	// 熔断后不再调用存储
	if store.puts != 2 {
		t.Errorf("puts = %d, want 2", store.puts)
	}
	if !errors.Is(report.Failed[4].Err, gobreaker.ErrOpenState) {
		t.Errorf("last failure = %v", report.Failed[4].Err)
	}
}

func TestSyncer_Errors(t *testing.T) {
	s := NewSyncer(newMemStore(), "p")
	if _, err := s.Upload(context.Background(), filepath.Join(t.TempDir(), "missing")); !core.IsArtifactIO(err) {
		t.Errorf("missing root: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	root := filepath.Join(t.TempDir(), "artifacts")
	writeTree(t, root, tree)
	if _, err := s.Upload(ctx, root); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled upload: %v", err)
	}
}

func TestSyncer_LocalPath(t *testing.T) {
	s := NewSyncer(newMemStore(), "p")
	root := filepath.Join("x", "artifacts")
	tests := []struct {
		key  string
		want string
		ok   bool
	}{
		{"p_Data/a.csv", filepath.Join(root, "Data", "a.csv"), true},
		{"p_artifacts/manifest.yaml", filepath.Join(root, "manifest.yaml"), true},
		{"p_Data/", "", false},
		{"p_a/b/c.csv", "", false},
		{"p_../x.csv", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := s.localPath(root, tt.key)
			if ok != tt.ok || got != tt.want {
				t.Errorf("localPath = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
	keys := []string{s.Key(root, "m"), s.Key(filepath.Join(root, "Data"), "a.csv")}
	sort.Strings(keys)
	if keys[0] != "p_Data/a.csv" || keys[1] != "p_artifacts/m" {
		t.Errorf("keys = %v", keys)
	}
}
