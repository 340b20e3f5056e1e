package model

import (
	"context"
	"math/rand/v2"

	json "github.com/goccy/go-json"

	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/dataset"
)

// SVDConfig 带偏置矩阵分解的超参数，默认值与常用实现一致
type SVDConfig struct {
	NFactors   int     `json:"n_factors"`
	NEpochs    int     `json:"n_epochs"`
	InitMean   float64 `json:"init_mean"`
	InitStdDev float64 `json:"init_std_dev"`
	LrAll      float64 `json:"lr_all"`
	RegAll     float64 `json:"reg_all"`
	Seed       int64   `json:"seed"`
}

// DefaultSVDConfig 返回默认超参数
func DefaultSVDConfig() SVDConfig {
	return SVDConfig{
		NFactors:   100,
		NEpochs:    20,
		InitMean:   0,
		InitStdDev: 0.1,
		LrAll:      0.005,
		RegAll:     0.02,
	}
}

// SVD 带偏置的矩阵分解（Funk SVD），SGD 训练。
//
// 预测公式：
//
//	r̂(u,i) = μ + b_u + b_i + q_i·p_u
//
// 结果裁剪到评分量纲 [ScaleMin, ScaleMax]。
// 训练完成后只读，可并发调用 Predict。
type SVD struct {
	Config     SVDConfig `json:"config"`
	GlobalMean float64   `json:"global_mean"`
	ScaleMin   float64   `json:"scale_min"`
	ScaleMax   float64   `json:"scale_max"`

	// Users/Items 按首次出现顺序排列的原始 ID，下标即内部 ID
	Users       []string    `json:"users"`
	Items       []string    `json:"items"`
	UserBias    []float64   `json:"user_bias"`
	ItemBias    []float64   `json:"item_bias"`
	UserFactors [][]float64 `json:"user_factors"`
	ItemFactors [][]float64 `json:"item_factors"`

	userIndex map[string]int
	itemIndex map[string]int
}

func NewSVD(cfg SVDConfig) *SVD {
	return &SVD{Config: cfg}
}

func (m *SVD) Name() string { return "svd" }

// Fit 在评分关系上训练。每个 epoch 之间检查 ctx。
func (m *SVD) Fit(ctx context.Context, rel *dataset.Relation) error {
	if rel.Len() == 0 {
		return core.NewDataError("svd: empty training relation")
	}
	cfg := m.Config
	m.ScaleMin, m.ScaleMax = rel.ScaleMin, rel.ScaleMax
	m.userIndex = make(map[string]int)
	m.itemIndex = make(map[string]int)
	m.Users, m.Items = m.Users[:0], m.Items[:0]

	// 按用户分组，迭代顺序为 用户首次出现顺序 -> 该用户的评分顺序
	type rating struct {
		item int
		r    float64
	}
	var byUser [][]rating
	var sum float64
	for _, t := range rel.Triples {
		u, ok := m.userIndex[t.UserID]
		if !ok {
			u = len(m.Users)
			m.userIndex[t.UserID] = u
			m.Users = append(m.Users, t.UserID)
			byUser = append(byUser, nil)
		}
		i, ok := m.itemIndex[t.ProductID]
		if !ok {
			i = len(m.Items)
			m.itemIndex[t.ProductID] = i
			m.Items = append(m.Items, t.ProductID)
		}
		byUser[u] = append(byUser[u], rating{item: i, r: t.Rating})
		sum += t.Rating
	}
	m.GlobalMean = sum / float64(rel.Len())

	rng := rand.New(rand.NewPCG(uint64(cfg.Seed), 0x5851f42d4c957f2d))
	m.UserBias = make([]float64, len(m.Users))
	m.ItemBias = make([]float64, len(m.Items))
	m.UserFactors = randomMatrix(rng, len(m.Users), cfg.NFactors, cfg.InitMean, cfg.InitStdDev)
	m.ItemFactors = randomMatrix(rng, len(m.Items), cfg.NFactors, cfg.InitMean, cfg.InitStdDev)

	lr, reg := cfg.LrAll, cfg.RegAll
	for epoch := 0; epoch < cfg.NEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for u, ratings := range byUser {
			pu := m.UserFactors[u]
			for _, rt := range ratings {
				qi := m.ItemFactors[rt.item]
				dot := 0.0
				for f := range pu {
					dot += qi[f] * pu[f]
				}
				err := rt.r - (m.GlobalMean + m.UserBias[u] + m.ItemBias[rt.item] + dot)

				m.UserBias[u] += lr * (err - reg*m.UserBias[u])
				m.ItemBias[rt.item] += lr * (err - reg*m.ItemBias[rt.item])
				for f := range pu {
					puf, qif := pu[f], qi[f]
					pu[f] += lr * (err*qif - reg*puf)
					qi[f] += lr * (err*puf - reg*qif)
				}
			}
		}
	}
	return nil
}

func randomMatrix(rng *rand.Rand, rows, cols int, mean, std float64) [][]float64 {
	m := make([][]float64, rows)
	for r := range m {
		m[r] = make([]float64, cols)
		for c := range m[r] {
			m[r][c] = mean + std*rng.NormFloat64()
		}
	}
	return m
}

// Predict 返回裁剪后的预测评分；用户或商品未知时返回 PredictionError
func (m *SVD) Predict(userID, productID string) (float64, error) {
	u, okU := m.userIndex[userID]
	i, okI := m.itemIndex[productID]
	switch {
	case !okU && !okI:
		return 0, core.NewPredictionError(userID, productID, "user and item are unknown")
	case !okU:
		return 0, core.NewPredictionError(userID, productID, "user is unknown")
	case !okI:
		return 0, core.NewPredictionError(userID, productID, "item is unknown")
	}
	return m.clip(m.raw(u, i)), nil
}

// Estimate 与 Predict 相同，但对未知用户/商品回退到 μ + 已知偏置，
// 用于交叉验证打分
func (m *SVD) Estimate(userID, productID string) float64 {
	u, okU := m.userIndex[userID]
	i, okI := m.itemIndex[productID]
	est := m.GlobalMean
	if okU {
		est += m.UserBias[u]
	}
	if okI {
		est += m.ItemBias[i]
	}
	if okU && okI {
		est += dot(m.UserFactors[u], m.ItemFactors[i])
	}
	return m.clip(est)
}

func (m *SVD) raw(u, i int) float64 {
	return m.GlobalMean + m.UserBias[u] + m.ItemBias[i] + dot(m.UserFactors[u], m.ItemFactors[i])
}

func (m *SVD) clip(v float64) float64 {
	return min(max(v, m.ScaleMin), m.ScaleMax)
}

func dot(a, b []float64) float64 {
	s := 0.0
	for k := range a {
		s += a[k] * b[k]
	}
	return s
}

// UnmarshalJSON 反序列化后重建 ID 索引
func (m *SVD) UnmarshalJSON(data []byte) error {
	type plain SVD
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = SVD(p)
	m.userIndex = make(map[string]int, len(m.Users))
	for u, id := range m.Users {
		m.userIndex[id] = u
	}
	m.itemIndex = make(map[string]int, len(m.Items))
	for i, id := range m.Items {
		m.itemIndex[id] = i
	}
	if len(m.UserFactors) != len(m.Users) || len(m.ItemFactors) != len(m.Items) ||
		len(m.UserBias) != len(m.Users) || len(m.ItemBias) != len(m.Items) {
		return core.NewDataError("svd: factor dimensions do not match id lists")
	}
	return nil
}

var _ RatingModel = (*SVD)(nil)
