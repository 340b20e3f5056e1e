// Package train 实现两个离线训练阶段：协同过滤的网格搜索交叉验证和内容模型拟合。
package train

import (
	"math"

	"github.com/rushteam/recpipe/dataset"
)

// Fold 一折数据
type Fold struct {
	Train *dataset.Relation
	Test  []dataset.RatingTriple
}

// KFold 打乱后切成 k 折，前 n%k 折各多 1 条。相同 seed 得到相同划分。
func KFold(rel *dataset.Relation, k int, seed int64) []Fold {
	n := rel.Len()
	if k > n {
		k = n
	}
	perm := dataset.Permutation(n, seed)

	folds := make([]Fold, 0, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		stop := start + size

		test := make([]dataset.RatingTriple, 0, size)
		train := &dataset.Relation{
			Triples:  make([]dataset.RatingTriple, 0, n-size),
			ScaleMin: rel.ScaleMin,
			ScaleMax: rel.ScaleMax,
		}
		for j, idx := range perm {
			if j >= start && j < stop {
				test = append(test, rel.Triples[idx])
			} else {
				train.Triples = append(train.Triples, rel.Triples[idx])
			}
		}
		folds = append(folds, Fold{Train: train, Test: test})
		start = stop
	}
	return folds
}

// RMSE 均方根误差
func RMSE(pred, actual []float64) float64 {
	if len(pred) == 0 {
		return 0
	}
	var se float64
	for i := range pred {
		d := pred[i] - actual[i]
		se += d * d
	}
	return math.Sqrt(se / float64(len(pred)))
}
