package feature

import (
	"strings"

	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/dataset"
)

// FeatureMetadata 特征元数据，对应 Content_Based_Filtering/feature_meta.json。
// 训练时记录类目词表与特征列，推理前用 Validate 检查输入表是否发生 schema 漂移。
type FeatureMetadata struct {
	// FeatureColumns 模型输入列名（按顺序）：num__<列> 后接 text__<列>__<词>
	FeatureColumns []string `json:"feature_columns"`
	// FeatureCount 特征数量
	FeatureCount int `json:"feature_count"`
	// NumericColumns 数值特征列（可包含 one-hot 列）
	NumericColumns []string `json:"numeric_columns"`
	// TextColumns 文本特征列
	TextColumns []string `json:"text_columns"`
	// Categories 训练期一级类目词表
	Categories []string `json:"categories"`
	// LabelColumn 标签列名
	LabelColumn string `json:"label_column"`
	// ModelVersion 模型版本（训练 run id）
	ModelVersion string `json:"model_version"`
	// Normalized 数值列是否做了标准化
	Normalized bool `json:"normalized"`
	// CreatedAt 创建时间（RFC3339）
	CreatedAt string `json:"created_at"`
}

// CategoryColumns 训练期 one-hot 列名
func (m *FeatureMetadata) CategoryColumns() []string {
	cols := make([]string, len(m.Categories))
	for i, c := range m.Categories {
		cols[i] = dataset.CategoryColumn(c)
	}
	return cols
}

// Validate 检查推理表是否包含训练期的全部 one-hot 列和特征列，
// 缺失时返回 SchemaDriftError。推理表多出的类目不影响预测。
func (m *FeatureMetadata) Validate(t *dataset.Table) error {
	var missing []string
	for _, col := range m.CategoryColumns() {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	for _, col := range m.NumericColumns {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	for _, col := range m.TextColumns {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return core.NewSchemaDriftError("inference table is missing training-time columns: %s",
			strings.Join(missing, ", "))
	}
	return nil
}
