package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/recpipe/core"
)

// Manifest 一次训练运行的清单，随产物一起发布
type Manifest struct {
	RunID     string             `yaml:"run_id"`
	CreatedAt string             `yaml:"created_at"`
	Rows      RowCounts          `yaml:"rows"`
	CF        *CFSummary         `yaml:"cf,omitempty"`
	CBF       *CBFSummary        `yaml:"cbf,omitempty"`
	Artifacts []ManifestArtifact `yaml:"artifacts"`
}

// RowCounts 各阶段行数
type RowCounts struct {
	Raw          int `yaml:"raw"`
	Preprocessed int `yaml:"preprocessed"`
	Dropped      int `yaml:"dropped"`
	Expanded     int `yaml:"expanded"`
	Train        int `yaml:"train"`
	Test         int `yaml:"test"`
}

// CFSummary 协同过滤最优参数
type CFSummary struct {
	NFactors int     `yaml:"n_factors"`
	LrAll    float64 `yaml:"lr_all"`
	RegAll   float64 `yaml:"reg_all"`
	RMSE     float64 `yaml:"rmse"`
	TestRMSE float64 `yaml:"test_rmse"`
	GridSize int     `yaml:"grid_size"`
}

// CBFSummary 内容模型概要
type CBFSummary struct {
	Features   int      `yaml:"features"`
	Trees      int      `yaml:"trees"`
	TestRMSE   float64  `yaml:"test_rmse"`
	Categories []string `yaml:"categories"`
}

// ManifestArtifact 单个产物文件
type ManifestArtifact struct {
	Path   string `yaml:"path"`
	Bytes  int64  `yaml:"bytes"`
	SHA256 string `yaml:"sha256"`
}

// AddFiles 计算产物的大小与摘要并按路径排序写入清单
func (m *Manifest) AddFiles(s *Store, rels ...string) error {
	for _, rel := range rels {
		sum, n, err := digest(s.Path(rel))
		if err != nil {
			return core.NewArtifactError(rel, err)
		}
		m.Artifacts = append(m.Artifacts, ManifestArtifact{Path: rel, Bytes: n, SHA256: sum})
	}
	sort.Slice(m.Artifacts, func(i, j int) bool { return m.Artifacts[i].Path < m.Artifacts[j].Path })
	return nil
}

// WriteManifest 写入 manifest.yaml
func (s *Store) WriteManifest(m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return core.NewArtifactError(ManifestFile, err)
	}
	return s.write(ManifestFile, data)
}

// ReadManifest 读取 manifest.yaml
func (s *Store) ReadManifest() (*Manifest, error) {
	data, err := os.ReadFile(s.Path(ManifestFile))
	if err != nil {
		return nil, core.NewArtifactError(ManifestFile, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, core.NewArtifactError(ManifestFile, err)
	}
	return &m, nil
}

func digest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
