package train

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/dataset"
	"github.com/rushteam/recpipe/model"
	"github.com/rushteam/recpipe/pkg/logging"
	"github.com/rushteam/recpipe/pkg/metrics"
)

// GridPoint 一组候选超参数
type GridPoint struct {
	NFactors int     `json:"n_factors" yaml:"n_factors"`
	LrAll    float64 `json:"lr_all" yaml:"lr_all"`
	RegAll   float64 `json:"reg_all" yaml:"reg_all"`
}

func (p GridPoint) String() string {
	return fmt.Sprintf("n_factors=%d lr_all=%g reg_all=%g", p.NFactors, p.LrAll, p.RegAll)
}

// GridScore 网格点的交叉验证结果
type GridScore struct {
	Point     GridPoint `json:"point" yaml:"point"`
	MeanRMSE  float64   `json:"mean_rmse" yaml:"mean_rmse"`
	FoldRMSEs []float64 `json:"fold_rmses" yaml:"fold_rmses"`
}

// Grid 展开笛卡尔积，顺序为 n_factors > lr_all > reg_all 嵌套
func Grid(nFactors []int, lrAll, regAll []float64) []GridPoint {
	points := make([]GridPoint, 0, len(nFactors)*len(lrAll)*len(regAll))
	for _, n := range nFactors {
		for _, lr := range lrAll {
			for _, reg := range regAll {
				points = append(points, GridPoint{NFactors: n, LrAll: lr, RegAll: reg})
			}
		}
	}
	return points
}

// CFResult 协同过滤训练结果
type CFResult struct {
	Model  *model.SVD
	Best   GridScore
	Scores []GridScore
}

// CFTrainer 网格搜索 + k 折交叉验证选择 SVD 超参数，再用最优参数在全量关系上重训。
//
// 各网格点在 errgroup 中并发评估，结果按网格下标写入，
// 选择时按网格顺序取 RMSE 最小者，相等时取先出现的。
type CFTrainer struct {
	Grid    []GridPoint
	Epochs  int
	Folds   int
	Workers int
	Seed    int64
}

func (t *CFTrainer) baseConfig(p GridPoint) model.SVDConfig {
	cfg := model.DefaultSVDConfig()
	cfg.NFactors = p.NFactors
	cfg.LrAll = p.LrAll
	cfg.RegAll = p.RegAll
	cfg.Seed = t.Seed
	if t.Epochs > 0 {
		cfg.NEpochs = t.Epochs
	}
	return cfg
}

// Fit 执行网格搜索并返回重训后的最优模型
func (t *CFTrainer) Fit(ctx context.Context, rel *dataset.Relation) (*CFResult, error) {
	if len(t.Grid) == 0 {
		return nil, core.NewConfigError("cf grid is empty")
	}
	k := t.Folds
	if k <= 0 {
		k = 5
	}
	if rel.Len() < k {
		return nil, core.NewDataError("cf: %d ratings cannot be split into %d folds", rel.Len(), k)
	}
	workers := t.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	log := logging.Stage("train_cf")
	folds := KFold(rel, k, t.Seed)
	scores := make([]GridScore, len(t.Grid))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for idx, point := range t.Grid {
		g.Go(func() error {
			score, err := t.crossValidate(gctx, point, folds)
			if err != nil {
				return fmt.Errorf("grid point %s: %w", point, err)
			}
			scores[idx] = score
			metrics.RecordGridPoint(point.NFactors, point.LrAll, point.RegAll, score.MeanRMSE)
			log.Debug().Stringer("params", point).Float64("rmse", score.MeanRMSE).Msg("grid point evaluated")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i].MeanRMSE < scores[best].MeanRMSE {
			best = i
		}
	}

	m := model.NewSVD(t.baseConfig(scores[best].Point))
	if err := m.Fit(ctx, rel); err != nil {
		return nil, fmt.Errorf("refit best model: %w", err)
	}

	metrics.CFBestRMSE.Set(scores[best].MeanRMSE)
	log.Info().
		Stringer("params", scores[best].Point).
		Float64("rmse", scores[best].MeanRMSE).
		Int("grid_size", len(scores)).
		Int("folds", k).
		Msg("selected cf model")

	return &CFResult{Model: m, Best: scores[best], Scores: scores}, nil
}

func (t *CFTrainer) crossValidate(ctx context.Context, p GridPoint, folds []Fold) (GridScore, error) {
	score := GridScore{Point: p, FoldRMSEs: make([]float64, len(folds))}
	var sum float64
	for f, fold := range folds {
		m := model.NewSVD(t.baseConfig(p))
		if err := m.Fit(ctx, fold.Train); err != nil {
			return score, err
		}
		pred := make([]float64, len(fold.Test))
		actual := make([]float64, len(fold.Test))
		for i, tr := range fold.Test {
			pred[i] = m.Estimate(tr.UserID, tr.ProductID)
			actual[i] = tr.Rating
		}
		score.FoldRMSEs[f] = RMSE(pred, actual)
		sum += score.FoldRMSEs[f]
	}
	score.MeanRMSE = sum / float64(len(folds))
	return score, nil
}
