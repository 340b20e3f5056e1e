package model

import (
	"context"
	"math"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/rushteam/recpipe/feature"
)

// stepData: y 在 x0 = 0.475 处跳变；x1 是只在偶数行出现的负值噪声
func stepData() ([]feature.SparseRow, []float64) {
	var X []feature.SparseRow
	var y []float64
	for i := 0; i < 20; i++ {
		var row feature.SparseRow
		if i > 0 {
			row = append(row, feature.Entry{Index: 0, Value: float64(i) / 20})
		}
		if i%2 == 0 {
			row = append(row, feature.Entry{Index: 1, Value: -1})
		}
		X = append(X, row)
		if i >= 10 {
			y = append(y, 3)
		} else {
			y = append(y, 1)
		}
	}
	return X, y
}

func TestGBDT_FitStep(t *testing.T) {
	X, y := stepData()
	g := NewGradientBoostedTrees(DefaultBoosterConfig())
	if err := g.Fit(context.Background(), X, y, 2); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if g.BaseScore != 2 {
		t.Errorf("BaseScore = %v, want label mean 2", g.BaseScore)
	}
	if len(g.Trees) != 100 {
		t.Errorf("trees = %d", len(g.Trees))
	}

	root := g.Trees[0].Nodes[0]
	if root.Leaf || root.Feature != 0 || math.Abs(root.Threshold-0.475) > 1e-12 {
		t.Errorf("first split = %+v, want feature 0 at 0.475", root)
	}
	for i, row := range X {
		p := g.PredictRow(row)
		if math.IsNaN(p) || math.IsInf(p, 0) {
			t.Fatalf("row %d prediction not finite", i)
		}
		if math.Abs(p-y[i]) > 1e-3 {
			t.Errorf("row %d: pred %v, want %v", i, p, y[i])
		}
	}
}

func TestGBDT_NegativeAndZeroValues(t *testing.T) {
	// 标签只由负值特征决定：有 x1=-1 的行为 0，其余为 1
	X, _ := stepData()
	y := make([]float64, len(X))
	for i := range X {
		if i%2 != 0 {
			y[i] = 1
		}
	}
	cfg := DefaultBoosterConfig()
	cfg.MaxDepth = 1
	g := NewGradientBoostedTrees(cfg)
	if err := g.Fit(context.Background(), X, y, 2); err != nil {
		t.Fatal(err)
	}
	root := g.Trees[0].Nodes[0]
	if root.Feature != 1 || root.Threshold != -0.5 {
		t.Fatalf("root split = %+v, want feature 1 at -0.5", root)
	}
	if got := g.PredictRow(feature.SparseRow{{Index: 1, Value: -1}}); math.Abs(got) > 1e-3 {
		t.Errorf("pred for x1=-1 = %v", got)
	}
	if got := g.PredictRow(nil); math.Abs(got-1) > 1e-3 {
		t.Errorf("pred for empty row = %v", got)
	}
}

func TestGBDT_MaxDepth(t *testing.T) {
	X, y := stepData()
	// 标签加上逐行扰动，迫使树尽量生长
	for i := range y {
		y[i] += float64(i%7) * 0.1
	}
	cfg := DefaultBoosterConfig()
	cfg.MaxDepth = 2
	cfg.NEstimators = 5
	g := NewGradientBoostedTrees(cfg)
	if err := g.Fit(context.Background(), X, y, 2); err != nil {
		t.Fatal(err)
	}
	for ti, tree := range g.Trees {
		if d := depth(&tree, 0); d > 2 {
			t.Errorf("tree %d depth %d exceeds 2", ti, d)
		}
	}
}

func depth(t *Tree, id int) int {
	n := t.Nodes[id]
	if n.Leaf {
		return 0
	}
	return 1 + max(depth(t, n.Left), depth(t, n.Right))
}

func TestGBDT_JSONRoundTrip(t *testing.T) {
	X, y := stepData()
	cfg := DefaultBoosterConfig()
	cfg.NEstimators = 10
	g := NewGradientBoostedTrees(cfg)
	if err := g.Fit(context.Background(), X, y, 2); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	var loaded GradientBoostedTrees
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatal(err)
	}
	for i, row := range X {
		if a, b := g.PredictRow(row), loaded.PredictRow(row); a != b {
			t.Fatalf("row %d: %v != %v after round trip", i, a, b)
		}
	}
}

func TestGBDT_Errors(t *testing.T) {
	g := NewGradientBoostedTrees(DefaultBoosterConfig())
	if err := g.Fit(context.Background(), nil, nil, 1); err == nil {
		t.Errorf("expected error for empty input")
	}
	X, y := stepData()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Fit(ctx, X, y, 2); err == nil {
		t.Errorf("expected context error")
	}
}
