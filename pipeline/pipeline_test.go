package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rushteam/recpipe/artifact"
	"github.com/rushteam/recpipe/config"
	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/dataset"
	"github.com/rushteam/recpipe/model"
	"github.com/rushteam/recpipe/recall"
	"github.com/rushteam/recpipe/store"
)

// writeRaw 生成 n 行原始数据，一级类目在 Computers 与 Electronics 间交替
func writeRaw(t *testing.T, path string, n int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(dataset.RawColumns); err != nil {
		t.Fatal(err)
	}
	titles := []string{"Great product", "Value for money", "Not bad", "Stopped working!"}
	for i := 0; i < n; i++ {
		p := i % 10
		category := "Computers&Accessories|Cables|USBCables"
		if p%2 == 1 {
			category = "Electronics|Mobiles|Chargers"
		}
		rec := []string{
			fmt.Sprintf("P%02d", p),
			fmt.Sprintf("Product %d", p),
			category,
			fmt.Sprintf("₹%d", 199+20*p),
			fmt.Sprintf("₹1,%03d", 99+10*p),
			fmt.Sprintf("%d%%", 10+5*p),
			fmt.Sprintf("%.1f", 1+float64((i*7)%40)/10),
			fmt.Sprintf("%d,%03d", 1+p, 100+i),
			"Fast charging; durable",
			fmt.Sprintf("U%02d", i%20),
			fmt.Sprintf("Name%d", i%20),
			fmt.Sprintf("R%03d", i),
			titles[i%len(titles)],
			"Works well",
			"https://img/" + fmt.Sprint(p),
			"https://p/" + fmt.Sprint(p),
		}
		if err := w.Write(rec); err != nil {
			t.Fatal(err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T, dataPath, root string) *config.Config {
	t.Helper()
	yml := fmt.Sprintf(`
data_loader:
  path: %s
train_test_config:
  test_size: 0.1
  random_state: 42
  training_cols: [user_id, product_id, rating]
model_building:
  - CF:
      - model: SVD
      - params:
          n_factors: [2, 4]
          lr_all: [0.01]
          reg_all: [0.02, 0.1]
      - options:
          n_epochs: 5
          cv: 3
          workers: 2
  - CBF:
      - numeric_params: [discounted_price, discount_percentage]
        text_params: review_title
        booster:
          n_estimators: 10
artifacts:
  root: %s
`, dataPath, root)
	cfg, err := config.Parse([]byte(yml))
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	return cfg
}

type recordingNotifier struct {
	roots []string
}

func (n *recordingNotifier) Notify(ctx context.Context, root string) error {
	n.roots = append(n.roots, root)
	return nil
}

func TestPipeline_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "amazon.csv")
	root := filepath.Join(dir, "artifacts")
	writeRaw(t, dataPath, 100)

	notifier := &recordingNotifier{}
	factors := store.NewMemoryStore()
	defer factors.Close()

	p, err := Default(testConfig(t, dataPath, root), Options{Notifier: notifier, FactorStore: factors})
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	run := NewRun()
	if err := p.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if run.Final.Len() != 100 || len(run.Final.CategoryColumns()) != 2 {
		t.Errorf("final table: %d rows, columns %v", run.Final.Len(), run.Final.CategoryColumns())
	}
	if run.Train.Len() != 90 || run.Test.Len() != 10 {
		t.Errorf("split = %d/%d, want 90/10", run.Train.Len(), run.Test.Len())
	}
	if len(notifier.roots) != 1 || notifier.roots[0] != root {
		t.Errorf("notifier calls = %v", notifier.roots)
	}
	if factors.Len() == 0 {
		t.Errorf("factors were not exported")
	}

	// 产物落盘并可重新加载
	s := artifact.NewStore(root)
	var svd model.SVD
	if err := s.Load(artifact.BestCF, &svd); err != nil {
		t.Fatalf("load cf: %v", err)
	}
	for _, tr := range run.Relation.Triples {
		v, err := svd.Predict(tr.UserID, tr.ProductID)
		if err != nil {
			t.Fatalf("Predict: %v", err)
		}
		if v < 0 || v > 5 {
			t.Errorf("cf prediction %v outside [0,5]", v)
		}
	}

	var cbf model.ContentModel
	if err := s.Load(artifact.BestCBF, &cbf); err != nil {
		t.Fatalf("load cbf: %v", err)
	}
	final, err := s.OpenTable(artifact.FinalTable)
	if err != nil {
		t.Fatalf("open final table: %v", err)
	}
	preds, err := cbf.Predict(final)
	if err != nil {
		t.Fatalf("cbf Predict: %v", err)
	}
	for _, v := range preds {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("cbf prediction not finite")
		}
	}

	var meta struct {
		Categories []string `json:"categories"`
	}
	if err := s.Load(artifact.FeatureMeta, &meta); err != nil {
		t.Fatal(err)
	}
	if len(meta.Categories) != 2 {
		t.Errorf("feature meta categories = %v", meta.Categories)
	}

	m, err := s.ReadManifest()
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.RunID != run.ID || m.Rows.Train != 90 || len(m.Artifacts) != 7 {
		t.Errorf("manifest = %+v", m)
	}

	reg, err := artifact.OpenRegistry(s.Path(artifact.RegistryFile))
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()
	runs, err := reg.List(context.Background(), 0)
	if err != nil || len(runs) != 1 || runs[0].Status != StatusSucceeded {
		t.Errorf("registry = %+v, %v", runs, err)
	}

	// 推理侧
	res, err := (&recall.ContentRecommender{Model: &cbf}).Recommend(context.Background(), "U00", final, 5)
	if err != nil {
		t.Fatalf("content Recommend: %v", err)
	}
	if len(res.Items) == 0 || len(res.Items) > 5 {
		t.Errorf("content recommendations = %v", res.Items)
	}
}

func TestPipeline_FailFast(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "artifacts")
	notifier := &recordingNotifier{}

	p, err := Default(testConfig(t, filepath.Join(dir, "missing.csv"), root), Options{Notifier: notifier})
	if err != nil {
		t.Fatal(err)
	}
	err = p.Execute(context.Background(), NewRun())
	if !core.IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if _, statErr := os.Stat(root); !os.IsNotExist(statErr) {
		t.Errorf("artifact root should not exist after a failed run")
	}
	if len(notifier.roots) != 0 {
		t.Errorf("notifier must not run after failure")
	}
}

type failingStore struct {
	*store.MemoryStore
}

func (failingStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	return errors.New("connection refused")
}

func TestPipeline_FactorExportFailure(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "amazon.csv")
	root := filepath.Join(dir, "artifacts")
	writeRaw(t, dataPath, 100)

	// 已有 runs.db 时失败会被登记
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	regPath := filepath.Join(root, artifact.RegistryFile)
	reg, err := artifact.OpenRegistry(regPath)
	if err != nil {
		t.Fatal(err)
	}
	reg.Close()

	mem := store.NewMemoryStore()
	defer mem.Close()
	notifier := &recordingNotifier{}
	p, err := Default(testConfig(t, dataPath, root), Options{Notifier: notifier, FactorStore: failingStore{mem}})
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	run := NewRun()
	if err := p.Execute(context.Background(), run); err == nil {
		t.Fatal("expected factor export failure")
	}
	if len(notifier.roots) != 0 {
		t.Errorf("notifier called after failure: %v", notifier.roots)
	}

	reg, err = artifact.OpenRegistry(regPath)
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()
	runs, err := reg.List(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != run.ID || runs[0].Status != StatusFailed {
		t.Errorf("registry = %+v, want one failed run %s", runs, run.ID)
	}
}

func TestDefault_BadFilter(t *testing.T) {
	cfg := testConfig(t, "x.csv", t.TempDir())
	cfg.DataLoader.Filter = "row.rating >"
	if _, err := Default(cfg, Options{}); !core.IsConfigurationError(err) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}
