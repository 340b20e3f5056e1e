// Package rerank 对打分结果做排序、去重和截断。
package rerank

import "sort"

// Scored 一条打分结果
type Scored struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// TopN 按分数降序排序后按 ID 去重（保留最高分），截取前 N 个。
//
// 示例：
//
//	top := (&rerank.TopN{N: 10}).Apply(scored)
type TopN struct {
	// N 要保留的数量
	// 如果 N <= 0，则返回全部去重结果
	N int
}

func (n *TopN) Name() string {
	return "rerank.topn"
}

// Apply 不修改入参。分数相同时保持输入顺序。
func (n *TopN) Apply(items []Scored) []Scored {
	sorted := make([]Scored, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	seen := make(map[string]struct{}, len(sorted))
	out := sorted[:0]
	for _, it := range sorted {
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
		if n.N > 0 && len(out) == n.N {
			break
		}
	}
	return out
}
