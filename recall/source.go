// Package recall 用训练好的模型为单个用户生成 Top-N 推荐。
package recall

import (
	"fmt"

	"github.com/rushteam/recpipe/rerank"
)

// DefaultTopN 默认返回数量
const DefaultTopN = 10

// ItemError 单个候选打分失败，不影响其他候选
type ItemError struct {
	ProductID string
	Err       error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("product %s: %v", e.ProductID, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// Result 推荐结果，Items 按分数降序且按商品去重
type Result struct {
	UserID string
	Model  string
	Items  []rerank.Scored
	Errors []ItemError
}
