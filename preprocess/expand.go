package preprocess

import (
	"strings"

	"github.com/rushteam/recpipe/dataset"
)

// ExpandStats 展开统计
type ExpandStats struct {
	Input  int
	Output int
	// MismatchedRows 三个多值字段长度不一致的源行数
	MismatchedRows int
	// DroppedEntries 因截断到最短长度而丢失的条目数（按最长字段计）
	DroppedEntries int
}

// Expand 把 user_id/user_name/review_title 中逗号分隔的多值按位置 zip 展开，
// 每个用户一行，其余字段原样复制。长度不一致时截断到最短，不报错。
func Expand(rows []dataset.Interaction) ([]dataset.Interaction, ExpandStats) {
	stats := ExpandStats{Input: len(rows)}
	out := make([]dataset.Interaction, 0, len(rows))

	for i := range rows {
		src := &rows[i]
		ids := strings.Split(src.UserID, ",")
		names := strings.Split(src.UserName, ",")
		titles := strings.Split(src.ReviewTitle, ",")

		n := min(len(ids), len(names), len(titles))
		if longest := max(len(ids), len(names), len(titles)); longest != n {
			stats.MismatchedRows++
			stats.DroppedEntries += longest - n
		}

		for j := 0; j < n; j++ {
			row := *src
			row.UserID = ids[j]
			row.UserName = names[j]
			row.ReviewTitle = titles[j]
			out = append(out, row)
		}
	}

	stats.Output = len(out)
	return out, stats
}
