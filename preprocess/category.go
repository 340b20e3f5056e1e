package preprocess

import (
	"strings"

	"github.com/rushteam/recpipe/dataset"
)

// SplitCategory 拆分 "A|B|C" 形式的类目路径，返回首段和末段；
// 只有一段时两者相同
func SplitCategory(path string) (first, last string) {
	first, _, _ = strings.Cut(path, "|")
	if i := strings.LastIndexByte(path, '|'); i >= 0 {
		return first, path[i+1:]
	}
	return first, first
}

// SplitCategories 原地填充 FirstCategory/LastCategory
func SplitCategories(rows []dataset.Interaction) {
	for i := range rows {
		rows[i].FirstCategory, rows[i].LastCategory = SplitCategory(rows[i].Category)
	}
}
