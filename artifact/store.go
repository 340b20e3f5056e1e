package artifact

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/dataset"
)

// CSVWriter 可写成 CSV 的数据，Table 与用户拆分快照都满足
type CSVWriter interface {
	WriteCSV(w io.Writer) error
}

// Store 本地产物目录。每次写入先写临时文件再 rename，重复写入结果相同。
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root 返回产物根目录
func (s *Store) Root() string { return s.root }

// Path 返回相对路径对应的本地路径
func (s *Store) Path(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// Save 把 v 以 JSON 写入 rel，返回写入字节数
func (s *Store) Save(rel string, v any) (int, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return 0, core.NewArtifactError(rel, err)
	}
	return len(data), s.write(rel, data)
}

// SaveTable 把表写成 CSV，返回写入字节数
func (s *Store) SaveTable(rel string, t CSVWriter) (int, error) {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return 0, core.NewArtifactError(rel, err)
	}
	return buf.Len(), s.write(rel, buf.Bytes())
}

// Load 读取 JSON 产物
func (s *Store) Load(rel string, v any) error {
	data, err := os.ReadFile(s.Path(rel))
	if err != nil {
		return core.NewArtifactError(rel, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return core.NewArtifactError(rel, err)
	}
	return nil
}

// OpenTable 读取 CSV 表产物
func (s *Store) OpenTable(rel string) (*dataset.Table, error) {
	f, err := os.Open(s.Path(rel))
	if err != nil {
		return nil, core.NewArtifactError(rel, err)
	}
	defer f.Close()

	t, err := dataset.ReadTable(f)
	if err != nil {
		return nil, core.NewArtifactError(rel, err)
	}
	return t, nil
}

// Exists 判断产物是否存在
func (s *Store) Exists(rel string) bool {
	_, err := os.Stat(s.Path(rel))
	return err == nil
}

func (s *Store) write(rel string, data []byte) error {
	target := s.Path(rel)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return core.NewArtifactError(rel, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*")
	if err != nil {
		return core.NewArtifactError(rel, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return core.NewArtifactError(rel, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return core.NewArtifactError(rel, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return core.NewArtifactError(rel, err)
	}
	return nil
}
