package train

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/dataset"
	"github.com/rushteam/recpipe/feature"
	"github.com/rushteam/recpipe/model"
	"github.com/rushteam/recpipe/pkg/logging"
)

// ContentTrainer 拟合内容模型：数值列 StandardScaler，文本列各自 TF-IDF，
// 拼接后训练梯度提升树。所有变换只在训练集上拟合。
type ContentTrainer struct {
	NumericColumns []string
	TextColumns    []string
	Booster        model.BoosterConfig
	// RunID 写入特征元数据的模型版本
	RunID string
}

// Fit 在训练表上拟合，标签为 rating
func (t *ContentTrainer) Fit(ctx context.Context, train *dataset.Table) (*model.ContentModel, error) {
	if len(t.NumericColumns) == 0 || len(t.TextColumns) == 0 {
		return nil, core.NewConfigError("content model needs numeric and text feature columns")
	}
	for _, col := range append(append([]string{}, t.NumericColumns...), t.TextColumns...) {
		if col == dataset.ColRating {
			return nil, core.NewConfigError("label column %s cannot be a feature", col)
		}
		if !train.HasColumn(col) {
			return nil, core.NewConfigError("feature column %s not found in training table", col)
		}
	}
	for _, col := range t.TextColumns {
		if train.IsNumeric(col) {
			return nil, core.NewConfigError("text feature %s is numeric", col)
		}
	}

	scaler, err := feature.FitStandardScaler(train, t.NumericColumns)
	if err != nil {
		return nil, err
	}

	vectorizers := make([]*feature.TfidfVectorizer, len(t.TextColumns))
	for j, col := range t.TextColumns {
		docs := make([]string, train.Len())
		for i := range train.Rows {
			docs[i], _ = train.String(i, col)
		}
		vectorizers[j] = feature.FitTfidf(col, docs)
	}

	m := &model.ContentModel{
		Scaler:      scaler,
		Vectorizers: vectorizers,
		Booster:     model.NewGradientBoostedTrees(t.Booster),
	}
	X, err := m.Transform(train)
	if err != nil {
		return nil, err
	}
	y := make([]float64, train.Len())
	for i := range train.Rows {
		y[i] = train.Rows[i].Rating
	}

	log := logging.Stage("train_cbf")
	start := time.Now()
	if err := m.Booster.Fit(ctx, X, y, m.NumFeatures()); err != nil {
		return nil, fmt.Errorf("fit booster: %w", err)
	}

	columns := m.FeatureColumns()
	m.Meta = feature.FeatureMetadata{
		FeatureColumns: columns,
		FeatureCount:   len(columns),
		NumericColumns: t.NumericColumns,
		TextColumns:    t.TextColumns,
		Categories:     train.Categories,
		LabelColumn:    dataset.ColRating,
		ModelVersion:   t.RunID,
		Normalized:     true,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
	}

	log.Info().
		Int("rows", train.Len()).
		Int("features", len(columns)).
		Int("trees", len(m.Booster.Trees)).
		Dur("elapsed", time.Since(start)).
		Msg("fitted content model")
	return m, nil
}
