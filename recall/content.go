package recall

import (
	"context"

	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/dataset"
	"github.com/rushteam/recpipe/model"
	"github.com/rushteam/recpipe/rerank"
)

// ContentRecommender 基于内容的推荐：对用户未交互过的商品行用内容模型打分。
//
// 核心思想："用户喜欢具有某些特征的物品，推荐具有相似特征的其他物品"
type ContentRecommender struct {
	Model *model.ContentModel
}

func (r *ContentRecommender) Name() string {
	return "recall.content"
}

// Recommend table 为带 one-hot 列的全量表。
// 用户不在表中返回 PredictionError；推理表缺少训练期列时返回 SchemaDriftError。
func (r *ContentRecommender) Recommend(ctx context.Context, userID string, table *dataset.Table, n int) (*Result, error) {
	if table == nil || table.Len() == 0 {
		return nil, core.NewDataError("content recommendation needs a non-empty table")
	}
	if n <= 0 {
		n = DefaultTopN
	}

	seen := make(map[string]struct{})
	for i := range table.Rows {
		if table.Rows[i].UserID == userID {
			seen[table.Rows[i].ProductID] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, core.NewPredictionError(userID, "", "user has no interactions")
	}

	var idx []int
	for i := range table.Rows {
		if _, ok := seen[table.Rows[i].ProductID]; !ok {
			idx = append(idx, i)
		}
	}
	res := &Result{UserID: userID, Model: r.Model.Name()}
	if len(idx) == 0 {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := table.Subset(idx)
	preds, err := r.Model.Predict(candidates)
	if err != nil {
		return nil, err
	}
	scored := make([]rerank.Scored, len(preds))
	for i, p := range preds {
		scored[i] = rerank.Scored{ID: candidates.Rows[i].ProductID, Score: p}
	}
	res.Items = (&rerank.TopN{N: n}).Apply(scored)
	return res, nil
}
