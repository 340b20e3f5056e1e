package recall

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/model"
	"github.com/rushteam/recpipe/pkg/metrics"
	"github.com/rushteam/recpipe/rerank"
)

// FactorRecord 一个用户或商品的偏置与隐向量
type FactorRecord struct {
	Bias    float64   `json:"bias"`
	Factors []float64 `json:"factors"`
}

// FactorMeta 打分所需的全局参数
type FactorMeta struct {
	GlobalMean float64 `json:"global_mean"`
	ScaleMin   float64 `json:"scale_min"`
	ScaleMax   float64 `json:"scale_max"`
	NFactors   int     `json:"n_factors"`
	RunID      string  `json:"run_id,omitempty"`
}

// 存储 key 布局
// 用户隐向量：{KeyPrefix}:user:{userID}
// 物品隐向量：{KeyPrefix}:item:{itemID}
// 所有物品列表：{KeyPrefix}:items
// 全局参数：{KeyPrefix}:meta
func userKey(prefix, id string) string { return prefix + ":user:" + id }
func itemKey(prefix, id string) string { return prefix + ":item:" + id }
func itemsKey(prefix string) string    { return prefix + ":items" }
func metaKey(prefix string) string     { return prefix + ":meta" }

// FactorPublisher 把 SVD 的隐向量写入 core.Store（通常是 Redis），供在线服务读取
type FactorPublisher struct {
	Store     core.Store
	KeyPrefix string
	// TTL 秒，0 表示不过期
	TTL int
}

// Publish 写入全部用户、商品隐向量，最后写 items 与 meta
func (p *FactorPublisher) Publish(ctx context.Context, svd *model.SVD, runID string) error {
	prefix := p.KeyPrefix
	if prefix == "" {
		prefix = "mf"
	}

	kvs := make(map[string][]byte, len(svd.Users)+len(svd.Items))
	for u, id := range svd.Users {
		data, err := json.Marshal(FactorRecord{Bias: svd.UserBias[u], Factors: svd.UserFactors[u]})
		if err != nil {
			return err
		}
		kvs[userKey(prefix, id)] = data
	}
	for i, id := range svd.Items {
		data, err := json.Marshal(FactorRecord{Bias: svd.ItemBias[i], Factors: svd.ItemFactors[i]})
		if err != nil {
			return err
		}
		kvs[itemKey(prefix, id)] = data
	}
	if err := p.Store.BatchSet(ctx, kvs, p.TTL); err != nil {
		return fmt.Errorf("publish factors to %s: %w", p.Store.Name(), err)
	}

	items, err := json.Marshal(svd.Items)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(FactorMeta{
		GlobalMean: svd.GlobalMean,
		ScaleMin:   svd.ScaleMin,
		ScaleMax:   svd.ScaleMax,
		NFactors:   svd.Config.NFactors,
		RunID:      runID,
	})
	if err != nil {
		return err
	}
	return p.Store.BatchSet(ctx, map[string][]byte{
		itemsKey(prefix): items,
		metaKey(prefix):  meta,
	}, p.TTL)
}

// StoreMFAdapter 是基于 core.Store 接口的矩阵分解存储适配器。
// 从 Redis 等存储中读取 FactorPublisher 写入的隐向量并打分。
type StoreMFAdapter struct {
	store core.Store

	// KeyPrefix 是存储 key 的前缀
	KeyPrefix string
}

// NewStoreMFAdapter 创建一个基于 core.Store 的矩阵分解适配器。
func NewStoreMFAdapter(s core.Store, keyPrefix string) *StoreMFAdapter {
	if keyPrefix == "" {
		keyPrefix = "mf"
	}
	return &StoreMFAdapter{
		store:     s,
		KeyPrefix: keyPrefix,
	}
}

func (a *StoreMFAdapter) Name() string {
	return "store_mf_adapter"
}

func (a *StoreMFAdapter) get(ctx context.Context, key string, v any) (bool, error) {
	data, err := a.store.Get(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Meta 读取全局参数
func (a *StoreMFAdapter) Meta(ctx context.Context) (*FactorMeta, error) {
	var m FactorMeta
	ok, err := a.get(ctx, metaKey(a.KeyPrefix), &m)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeNotFound, "factor meta not published under "+a.KeyPrefix)
	}
	return &m, nil
}

// GetAllItems 返回已发布的商品 ID
func (a *StoreMFAdapter) GetAllItems(ctx context.Context) ([]string, error) {
	var items []string
	if _, err := a.get(ctx, itemsKey(a.KeyPrefix), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Score 与 SVD.Predict 结果一致；用户或商品未发布时返回 PredictionError
func (a *StoreMFAdapter) Score(ctx context.Context, userID, itemID string) (float64, error) {
	meta, err := a.Meta(ctx)
	if err != nil {
		return 0, err
	}
	var u, i FactorRecord
	okU, err := a.get(ctx, userKey(a.KeyPrefix, userID), &u)
	if err != nil {
		return 0, err
	}
	okI, err := a.get(ctx, itemKey(a.KeyPrefix, itemID), &i)
	if err != nil {
		return 0, err
	}
	switch {
	case !okU && !okI:
		return 0, core.NewPredictionError(userID, itemID, "user and item are unknown")
	case !okU:
		return 0, core.NewPredictionError(userID, itemID, "user is unknown")
	case !okI:
		return 0, core.NewPredictionError(userID, itemID, "item is unknown")
	}

	return estimate(meta, &u, &i), nil
}

// Recommend 对已发布的全部商品打分取 Top-N。
// 用户未发布时返回 PredictionError；单个商品缺失记为 ItemError。
func (a *StoreMFAdapter) Recommend(ctx context.Context, userID string, n int) (*Result, error) {
	if n <= 0 {
		n = DefaultTopN
	}
	meta, err := a.Meta(ctx)
	if err != nil {
		return nil, err
	}
	var u FactorRecord
	ok, err := a.get(ctx, userKey(a.KeyPrefix, userID), &u)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.NewPredictionError(userID, "", "user is unknown")
	}
	items, err := a.GetAllItems(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(items))
	for k, id := range items {
		keys[k] = itemKey(a.KeyPrefix, id)
	}
	vals, err := a.store.BatchGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	res := &Result{UserID: userID, Model: a.Name()}
	scored := make([]rerank.Scored, 0, len(items))
	for k, id := range items {
		data, ok := vals[keys[k]]
		if !ok {
			metrics.PredictionFailures.WithLabelValues(a.Name()).Inc()
			res.Errors = append(res.Errors, ItemError{ProductID: id, Err: core.NewPredictionError(userID, id, "item is unknown")})
			continue
		}
		var rec FactorRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[k], err)
		}
		scored = append(scored, rerank.Scored{ID: id, Score: estimate(meta, &u, &rec)})
	}
	res.Items = (&rerank.TopN{N: n}).Apply(scored)
	return res, nil
}

// estimate 与 SVD.Predict 的计算顺序保持一致
func estimate(meta *FactorMeta, u, i *FactorRecord) float64 {
	dot := 0.0
	for k := range u.Factors {
		dot += u.Factors[k] * i.Factors[k]
	}
	est := meta.GlobalMean + u.Bias + i.Bias + dot
	return min(max(est, meta.ScaleMin), meta.ScaleMax)
}
