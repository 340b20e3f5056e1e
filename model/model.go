package model

import "github.com/rushteam/recpipe/dataset"

// RatingModel 是协同过滤模型的最小抽象：输入 (用户, 商品)，输出预测评分。
// 用户或商品不在训练集中时返回 PredictionError，由调用方按条目收集。
type RatingModel interface {
	Name() string
	Predict(userID, productID string) (float64, error)
}

// TableModel 是内容模型的最小抽象：对训练表格式的输入逐行打分。
type TableModel interface {
	Name() string
	Predict(t *dataset.Table) ([]float64, error)
}
