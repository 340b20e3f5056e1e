package feature

import (
	"sort"

	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/dataset"
)

// OneHotEncoder One-Hot 编码（独热编码）
// 将类别特征转换为二进制向量，每个类别对应一个维度，列名为 <Prefix>_<类别>。
type OneHotEncoder struct {
	Prefix     string   // 特征名前缀
	Categories []string // 有序、去重后的类别列表

	index map[string]int
}

// NewOneHotEncoder 从取值集合构建编码器，类别按字典序排列
func NewOneHotEncoder(prefix string, values []string) *OneHotEncoder {
	seen := make(map[string]struct{}, len(values))
	categories := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		categories = append(categories, v)
	}
	sort.Strings(categories)

	e := &OneHotEncoder{Prefix: prefix, Categories: categories, index: make(map[string]int, len(categories))}
	for i, c := range categories {
		e.index[c] = i
	}
	return e
}

// Columns 返回编码后的列名
func (e *OneHotEncoder) Columns() []string {
	cols := make([]string, len(e.Categories))
	for i, c := range e.Categories {
		cols[i] = e.Prefix + "_" + c
	}
	return cols
}

// Index 返回类别下标
func (e *OneHotEncoder) Index(value string) (int, bool) {
	i, ok := e.index[value]
	return i, ok
}

// CategoryEncoder 把展开后的交互记录编码为训练表：
// 按一级类目做 one-hot，并丢弃不参与训练的列
// （product_name、img_link、product_link、末级类目、rating_count、review_id、
// about_product、actual_price、review_content）。
//
// 词表取自当前批次，跨批次不稳定，推理侧需用 FeatureMetadata 校验。
type CategoryEncoder struct{}

func (CategoryEncoder) Encode(rows []dataset.Interaction) (*dataset.Table, error) {
	if len(rows) == 0 {
		return nil, core.NewDataError("no rows to encode")
	}

	values := make([]string, len(rows))
	for i := range rows {
		values[i] = rows[i].FirstCategory
	}
	enc := NewOneHotEncoder(dataset.CategoryPrefix, values)

	t := dataset.NewTable(enc.Categories)
	t.Rows = make([]dataset.TrainingRow, len(rows))
	for i := range rows {
		r := &rows[i]
		pos, _ := enc.Index(r.FirstCategory)
		t.Rows[i] = dataset.TrainingRow{
			ProductID:          r.ProductID,
			DiscountedPrice:    r.DiscountedPrice,
			DiscountPercentage: r.DiscountPercentage,
			Rating:             r.Rating,
			UserID:             r.UserID,
			UserName:           r.UserName,
			ReviewTitle:        r.ReviewTitle,
			Category:           pos,
		}
	}
	return t, nil
}
