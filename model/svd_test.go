package model

import (
	"context"
	"fmt"
	"math"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/dataset"
)

func toyRelation() *dataset.Relation {
	rel := &dataset.Relation{ScaleMin: 0, ScaleMax: 5}
	for u := 0; u < 8; u++ {
		for i := 0; i < 6; i++ {
			if (u+i)%3 == 0 {
				continue
			}
			// 前半用户偏好前半商品
			r := 2.0
			if (u < 4) == (i < 3) {
				r = 4.5
			}
			rel.Triples = append(rel.Triples, dataset.RatingTriple{
				UserID: fmt.Sprintf("u%d", u), ProductID: fmt.Sprintf("p%d", i), Rating: r,
			})
		}
	}
	return rel
}

func TestSVD_FitPredict(t *testing.T) {
	cfg := DefaultSVDConfig()
	cfg.NFactors = 4
	cfg.NEpochs = 50
	cfg.LrAll = 0.02
	cfg.Seed = 1

	m := NewSVD(cfg)
	rel := toyRelation()
	if err := m.Fit(context.Background(), rel); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	var se float64
	for _, tr := range rel.Triples {
		p, err := m.Predict(tr.UserID, tr.ProductID)
		if err != nil {
			t.Fatalf("Predict(%s,%s): %v", tr.UserID, tr.ProductID, err)
		}
		if p < 0 || p > 5 {
			t.Errorf("prediction %v outside [0,5]", p)
		}
		se += (p - tr.Rating) * (p - tr.Rating)
	}
	rmse := math.Sqrt(se / float64(rel.Len()))
	if rmse > 0.5 {
		t.Errorf("training rmse %.3f too high", rmse)
	}

	// 相同 seed 结果一致
	m2 := NewSVD(cfg)
	_ = m2.Fit(context.Background(), rel)
	a, _ := m.Predict("u1", "p1")
	b, _ := m2.Predict("u1", "p1")
	if a != b {
		t.Errorf("fit not deterministic: %v vs %v", a, b)
	}
}

func TestSVD_Unknown(t *testing.T) {
	m := NewSVD(DefaultSVDConfig())
	if err := m.Fit(context.Background(), toyRelation()); err != nil {
		t.Fatal(err)
	}
	tests := []struct{ user, item string }{
		{"ghost", "p1"},
		{"u1", "ghost"},
		{"ghost", "ghost"},
	}
	for _, tt := range tests {
		t.Run(tt.user+"/"+tt.item, func(t *testing.T) {
			_, err := m.Predict(tt.user, tt.item)
			if !core.IsPredictionError(err) {
				t.Fatalf("expected PredictionError, got %v", err)
			}
			est := m.Estimate(tt.user, tt.item)
			if est < 0 || est > 5 {
				t.Errorf("fallback estimate %v outside scale", est)
			}
		})
	}
	if m.Estimate("ghost", "ghost") != m.clip(m.GlobalMean) {
		t.Errorf("fallback for fully unknown pair should be the global mean")
	}
}

func TestSVD_JSONRoundTrip(t *testing.T) {
	cfg := DefaultSVDConfig()
	cfg.NFactors = 3
	m := NewSVD(cfg)
	if err := m.Fit(context.Background(), toyRelation()); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var loaded SVD
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want, _ := m.Predict("u2", "p4")
	got, err := loaded.Predict("u2", "p4")
	if err != nil || got != want {
		t.Errorf("loaded Predict = %v, %v; want %v", got, err, want)
	}
}

func TestSVD_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewSVD(DefaultSVDConfig()).Fit(ctx, toyRelation()); err == nil {
		t.Errorf("expected context error")
	}
}
