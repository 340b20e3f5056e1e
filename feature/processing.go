package feature

import (
	"math"

	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/dataset"
)

// FeatureScaler 特征标准化参数，每个特征对应一个 ScalerParams
type FeatureScaler map[string]ScalerParams

// 小于该值的标准差视为 0（10 倍机器精度）
const zeroStd = 10 * 2.220446049250313e-16

// ScalerParams 标准化参数
type ScalerParams struct {
	// Mean 均值
	Mean float64 `json:"mean"`
	// Std 总体标准差；为 0 时按 1 处理
	Std float64 `json:"std"`
}

// StandardScaler Z-score 标准化（Standardization）
// 公式: z = (x - μ) / σ，σ 为总体标准差（ddof=0）
type StandardScaler struct {
	Columns []string      `json:"columns"`
	Params  FeatureScaler `json:"params"`
}

// FitStandardScaler 在训练表上拟合数值列的均值和标准差
func FitStandardScaler(t *dataset.Table, columns []string) (*StandardScaler, error) {
	if t.Len() == 0 {
		return nil, core.NewDataError("cannot fit scaler on an empty table")
	}
	s := &StandardScaler{Columns: columns, Params: make(FeatureScaler, len(columns))}
	n := float64(t.Len())
	for _, col := range columns {
		if !t.IsNumeric(col) {
			return nil, core.NewConfigError("numeric feature %s is not a numeric column", col)
		}
		var sum float64
		for i := range t.Rows {
			v, _ := t.Float(i, col)
			sum += v
		}
		mean := sum / n
		var ss float64
		for i := range t.Rows {
			v, _ := t.Float(i, col)
			ss += (v - mean) * (v - mean)
		}
		s.Params[col] = ScalerParams{Mean: mean, Std: math.Sqrt(ss / n)}
	}
	return s, nil
}

// NormalizeValueWithKey 标准化单个值
func (s *StandardScaler) NormalizeValueWithKey(col string, v float64) float64 {
	p := s.Params[col]
	std := p.Std
	if std < zeroStd {
		std = 1
	}
	return (v - p.Mean) / std
}

// Transform 返回第 i 行按 Columns 顺序标准化后的值
func (s *StandardScaler) Transform(t *dataset.Table, i int) ([]float64, error) {
	out := make([]float64, len(s.Columns))
	for j, col := range s.Columns {
		v, err := t.Float(i, col)
		if err != nil {
			return nil, err
		}
		out[j] = s.NormalizeValueWithKey(col, v)
	}
	return out, nil
}
