package model

import (
	"github.com/rushteam/recpipe/dataset"
	"github.com/rushteam/recpipe/feature"
)

// ContentModel 基于内容的评分模型：数值列标准化 + 文本列 TF-IDF 拼接后
// 输入梯度提升树。序列化后包含全部拟合参数，推理侧无需重新拟合。
type ContentModel struct {
	Meta        feature.FeatureMetadata    `json:"meta"`
	Scaler      *feature.StandardScaler    `json:"scaler"`
	Vectorizers []*feature.TfidfVectorizer `json:"vectorizers"`
	Booster     *GradientBoostedTrees      `json:"booster"`
}

func (m *ContentModel) Name() string { return "cbf" }

// NumFeatures 拼接后的特征维度
func (m *ContentModel) NumFeatures() int {
	n := len(m.Scaler.Columns)
	for _, v := range m.Vectorizers {
		n += v.Size()
	}
	return n
}

// FeatureColumns 按特征下标返回列名
func (m *ContentModel) FeatureColumns() []string {
	cols := make([]string, 0, m.NumFeatures())
	for _, c := range m.Scaler.Columns {
		cols = append(cols, "num__"+c)
	}
	for _, v := range m.Vectorizers {
		for _, term := range v.Terms() {
			cols = append(cols, "text__"+v.Column+"__"+term)
		}
	}
	return cols
}

// Transform 把表转换为稀疏特征矩阵，列顺序与 FeatureColumns 一致
func (m *ContentModel) Transform(t *dataset.Table) ([]feature.SparseRow, error) {
	out := make([]feature.SparseRow, t.Len())
	for i := range t.Rows {
		num, err := m.Scaler.Transform(t, i)
		if err != nil {
			return nil, err
		}
		row := make(feature.SparseRow, 0, len(num)+8)
		for j, v := range num {
			if v != 0 {
				row = append(row, feature.Entry{Index: j, Value: v})
			}
		}
		offset := len(num)
		for _, vec := range m.Vectorizers {
			doc, err := t.String(i, vec.Column)
			if err != nil {
				return nil, err
			}
			for _, e := range vec.Transform(doc) {
				row = append(row, feature.Entry{Index: offset + e.Index, Value: e.Value})
			}
			offset += vec.Size()
		}
		out[i] = row
	}
	return out, nil
}

// Predict 先做 schema 校验，再逐行打分。缺少训练期列时返回 SchemaDriftError。
func (m *ContentModel) Predict(t *dataset.Table) ([]float64, error) {
	if err := m.Meta.Validate(t); err != nil {
		return nil, err
	}
	X, err := m.Transform(t)
	if err != nil {
		return nil, err
	}
	preds := make([]float64, len(X))
	for i, row := range X {
		preds[i] = m.Booster.PredictRow(row)
	}
	return preds, nil
}

var _ TableModel = (*ContentModel)(nil)
