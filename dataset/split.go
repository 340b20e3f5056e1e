package dataset

import (
	"math"
	"math/rand/v2"

	"github.com/rushteam/recpipe/core"
)

// 评分量纲
const (
	RatingMin = 0.0
	RatingMax = 5.0
)

// RatingTriple 是协同过滤的一条 (用户, 商品, 评分)
type RatingTriple struct {
	UserID    string
	ProductID string
	Rating    float64
}

// Relation 是协同过滤训练输入：评分三元组 + 评分量纲
type Relation struct {
	Triples  []RatingTriple
	ScaleMin float64
	ScaleMax float64
}

func (r *Relation) Len() int { return len(r.Triples) }

// NewRelation 从表中投影出三元组，cols 依次为用户列、物品列、评分列
func NewRelation(t *Table, cols []string) (*Relation, error) {
	if len(cols) != 3 {
		return nil, core.NewConfigError("training columns must be [user, item, rating], got %v", cols)
	}
	for _, c := range cols {
		if !t.HasColumn(c) {
			return nil, core.NewConfigError("training column %s not found in table", c)
		}
	}
	if !t.IsNumeric(cols[2]) {
		return nil, core.NewConfigError("rating column %s is not numeric", cols[2])
	}

	rel := &Relation{Triples: make([]RatingTriple, t.Len()), ScaleMin: RatingMin, ScaleMax: RatingMax}
	for i := range t.Rows {
		u, err := t.String(i, cols[0])
		if err != nil {
			return nil, err
		}
		item, err := t.String(i, cols[1])
		if err != nil {
			return nil, err
		}
		r, err := t.Float(i, cols[2])
		if err != nil {
			return nil, err
		}
		rel.Triples[i] = RatingTriple{UserID: u, ProductID: item, Rating: r}
	}
	return rel, nil
}

// TrainTestSplit 按 seed 随机打乱后划分训练/测试集，不分层。
// 测试集大小为 ceil(testSize*n)，两侧都不能为空。
// 返回训练集上的评分关系、训练表、测试表。
func TrainTestSplit(t *Table, testSize float64, seed int64, trainingCols []string) (*Relation, *Table, *Table, error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, nil, core.NewConfigError("test_size must be in (0,1), got %v", testSize)
	}
	n := t.Len()
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest == 0 || nTrain <= 0 {
		return nil, nil, nil, core.NewDataError("cannot split %d rows with test_size %v", n, testSize)
	}

	perm := Permutation(n, seed)
	test := t.Subset(perm[:nTest])
	train := t.Subset(perm[nTest:])

	rel, err := NewRelation(train, trainingCols)
	if err != nil {
		return nil, nil, nil, err
	}
	return rel, train, test, nil
}

// Permutation 返回 [0,n) 的确定性随机排列
func Permutation(n int, seed int64) []int {
	rng := rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
	return rng.Perm(n)
}
