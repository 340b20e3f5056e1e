package recall

import (
	"context"

	"github.com/rushteam/recpipe/model"
	"github.com/rushteam/recpipe/pkg/logging"
	"github.com/rushteam/recpipe/pkg/metrics"
	"github.com/rushteam/recpipe/rerank"
)

// CFRecommender 对给定商品全集逐个预测评分，取 Top-N。
//
// 核心思想："相似口味的用户给出相近的评分"，评分来自训练好的 SVD。
type CFRecommender struct {
	Model model.RatingModel
}

func (r *CFRecommender) Name() string {
	return "recall.cf"
}

// Recommend 未知用户或商品记为 ItemError，其余照常打分
func (r *CFRecommender) Recommend(ctx context.Context, userID string, productIDs []string, n int) (*Result, error) {
	if n <= 0 {
		n = DefaultTopN
	}
	res := &Result{UserID: userID, Model: r.Model.Name()}
	scored := make([]rerank.Scored, 0, len(productIDs))
	for _, pid := range productIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score, err := r.Model.Predict(userID, pid)
		if err != nil {
			metrics.PredictionFailures.WithLabelValues(r.Model.Name()).Inc()
			res.Errors = append(res.Errors, ItemError{ProductID: pid, Err: err})
			continue
		}
		scored = append(scored, rerank.Scored{ID: pid, Score: score})
	}
	res.Items = (&rerank.TopN{N: n}).Apply(scored)

	if len(res.Errors) > 0 {
		logging.Debug().Str("user_id", userID).Int("failed", len(res.Errors)).Msg("cf predictions skipped")
	}
	return res, nil
}
