package artifact

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/dataset"
	"github.com/rushteam/recpipe/model"
)

func sampleTable() *dataset.Table {
	t := dataset.NewTable([]string{"Computers", "Electronics"})
	t.Rows = []dataset.TrainingRow{
		{ProductID: "P1", DiscountedPrice: 399, DiscountPercentage: 64, Rating: 4.2, UserID: "U1", UserName: "a", ReviewTitle: "good", Category: 0},
		{ProductID: "P2", DiscountedPrice: 199, DiscountPercentage: 43, Rating: 3.9, UserID: "U2", UserName: "b", ReviewTitle: "ok cable", Category: 1},
	}
	return t
}

func TestStore_SaveLoad(t *testing.T) {
	s := NewStore(t.TempDir())

	svd := &model.SVD{
		Config:      model.DefaultSVDConfig(),
		GlobalMean:  4,
		ScaleMax:    5,
		Users:       []string{"U1"},
		Items:       []string{"P1"},
		UserBias:    []float64{0.1},
		ItemBias:    []float64{-0.2},
		UserFactors: [][]float64{{0.5}},
		ItemFactors: [][]float64{{0.4}},
	}
	svd.Config.NFactors = 1
	n, err := s.Save(BestCF, svd)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n == 0 {
		t.Errorf("Save wrote 0 bytes")
	}

	var got model.SVD
	if err := s.Load(BestCF, &got); err != nil {
		t.Fatalf("Load: %v", err)
	}
	p, err := got.Predict("U1", "P1")
	if err != nil || math.Abs(p-4.1) > 1e-9 {
		t.Errorf("reloaded Predict = %v, %v; want 4.1", p, err)
	}

	// 重复写入结果不变，且不留临时文件
	if _, err := s.Save(BestCF, svd); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(filepath.Join(s.Root(), DirCF))
	if len(entries) != 1 {
		t.Errorf("expected a single file in %s, got %d", DirCF, len(entries))
	}
}

func TestStore_Table(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, err := s.SaveTable(FinalTable, sampleTable()); err != nil {
		t.Fatalf("SaveTable: %v", err)
	}
	got, err := s.OpenTable(FinalTable)
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}
	if got.Len() != 2 || len(got.Categories) != 2 || got.Rows[1].Category != 1 {
		t.Errorf("table not restored: %+v", got)
	}
	if !s.Exists(FinalTable) || s.Exists(TrainTable) {
		t.Errorf("Exists mismatch")
	}
}

func TestStore_Errors(t *testing.T) {
	s := NewStore(t.TempDir())
	var v map[string]any
	if err := s.Load(BestCBF, &v); !core.IsArtifactIO(err) {
		t.Errorf("missing artifact: %v", err)
	}
	if _, err := s.OpenTable(TestTable); !core.IsArtifactIO(err) {
		t.Errorf("missing table: %v", err)
	}

	// 根目录是普通文件时无法创建子目录
	file := filepath.Join(t.TempDir(), "root")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(file).Save(BestCF, v); !core.IsArtifactIO(err) {
		t.Errorf("unwritable root: %v", err)
	}
}

func TestManifest(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, err := s.SaveTable(TrainTable, sampleTable()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveTable(FinalTable, sampleTable()); err != nil {
		t.Fatal(err)
	}

	m := &Manifest{
		RunID: "r1",
		Rows:  RowCounts{Raw: 3, Preprocessed: 2, Dropped: 1, Train: 1, Test: 1},
		CF:    &CFSummary{NFactors: 10, LrAll: 0.005, RegAll: 0.02, RMSE: 0.91, GridSize: 4},
	}
	if err := m.AddFiles(s, TrainTable, FinalTable); err != nil {
		t.Fatalf("AddFiles: %v", err)
	}
	if m.Artifacts[0].Path != FinalTable || len(m.Artifacts[0].SHA256) != 64 {
		t.Errorf("artifacts = %+v", m.Artifacts)
	}
	// 内容相同的文件摘要相同
	if m.Artifacts[0].SHA256 != m.Artifacts[1].SHA256 {
		t.Errorf("identical files should share a digest")
	}
	if err := s.WriteManifest(m); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	got, err := s.ReadManifest()
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if got.RunID != "r1" || got.CF.NFactors != 10 || got.Rows.Dropped != 1 || len(got.Artifacts) != 2 {
		t.Errorf("manifest = %+v", got)
	}

	if err := m.AddFiles(s, TestTable); !core.IsArtifactIO(err) {
		t.Errorf("missing file digest: %v", err)
	}
}
