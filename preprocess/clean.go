// Package preprocess 把原始记录清洗、展开为逐用户的交互记录。
package preprocess

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/dataset"
	"github.com/rushteam/recpipe/pkg/conv"
	"github.com/rushteam/recpipe/pkg/dsl"
)

// 行被丢弃的原因
const (
	DropMissingValue       = "missing_value"
	DropInvalidRatingCount = "invalid_rating_count"
	DropInvalidDiscount    = "invalid_discount_percentage"
	DropRatingOutOfRange   = "rating_out_of_range"
	DropFiltered           = "filtered"
)

var (
	// 非单词、非空白字符；\p{L}\p{N} 覆盖非 ASCII 字母数字
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	// 同上，但保留多值分隔符逗号
	punctuationKeepComma = regexp.MustCompile(`[^\p{L}\p{N}_\s,]`)
)

// PreprocessStats 清洗统计
type PreprocessStats struct {
	Input   int
	Output  int
	Dropped map[string]int
}

// DroppedTotal 返回被丢弃的总行数
func (s PreprocessStats) DroppedTotal() int {
	n := 0
	for _, v := range s.Dropped {
		n += v
	}
	return n
}

// Reasons 返回按名称排序的丢弃原因
func (s PreprocessStats) Reasons() []string {
	keys := make([]string, 0, len(s.Dropped))
	for k := range s.Dropped {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Preprocessor 清洗原始记录：
//   - 价格去掉 ₹ 和千分位后转 float，评分强制转数值，失败视为缺失
//   - 任意列缺失即整行丢弃
//   - rating_count 去千分位转整数，discount_percentage 去 % 转 float（0-100）
//   - product_name 小写；about_product/review_title/review_content 去标点后小写
//
// Filter 非空时，对清洗后的行再做一次 CEL 过滤。
type Preprocessor struct {
	Filter *dsl.RowFilter
}

// Process 清洗一批记录。行级问题只计数不报错；过滤表达式求值失败返回 ConfigurationError。
func (p *Preprocessor) Process(ctx context.Context, raw []dataset.RawRecord) ([]dataset.Interaction, PreprocessStats, error) {
	stats := PreprocessStats{Input: len(raw), Dropped: make(map[string]int)}
	out := make([]dataset.Interaction, 0, len(raw))

	for i := range raw {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
		}

		row, reason := clean(&raw[i])
		if reason != "" {
			stats.Dropped[reason]++
			continue
		}

		if p.Filter != nil {
			ok, err := p.Filter.Match(filterRow(&row))
			if err != nil {
				return nil, stats, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput,
					"data_loader.filter "+p.Filter.Expr(), err)
			}
			if !ok {
				stats.Dropped[DropFiltered]++
				continue
			}
		}
		out = append(out, row)
	}

	stats.Output = len(out)
	return out, stats, nil
}

func clean(r *dataset.RawRecord) (dataset.Interaction, string) {
	discounted, okDiscounted := conv.ParsePrice(r.DiscountedPrice)
	actual, okActual := conv.ParsePrice(r.ActualPrice)
	rating, okRating := conv.ParseNumber(r.Rating)
	if !okDiscounted || !okActual || !okRating {
		return dataset.Interaction{}, DropMissingValue
	}
	for _, cell := range r.Cells() {
		if conv.IsMissing(cell) {
			return dataset.Interaction{}, DropMissingValue
		}
	}

	count, ok := conv.ParseCount(r.RatingCount)
	if !ok {
		return dataset.Interaction{}, DropInvalidRatingCount
	}
	discountPct, ok := conv.ParsePercent(r.DiscountPercentage)
	if !ok {
		return dataset.Interaction{}, DropInvalidDiscount
	}
	if rating < dataset.RatingMin || rating > dataset.RatingMax {
		return dataset.Interaction{}, DropRatingOutOfRange
	}

	return dataset.Interaction{
		ProductID:          r.ProductID,
		ProductName:        strings.ToLower(r.ProductName),
		Category:           r.Category,
		DiscountedPrice:    discounted,
		ActualPrice:        actual,
		DiscountPercentage: discountPct,
		Rating:             rating,
		RatingCount:        count,
		AboutProduct:       normalizeText(r.AboutProduct, punctuation),
		UserID:             r.UserID,
		UserName:           r.UserName,
		ReviewID:           r.ReviewID,
		ReviewTitle:        normalizeText(r.ReviewTitle, punctuationKeepComma),
		ReviewContent:      normalizeText(r.ReviewContent, punctuation),
		ImgLink:            r.ImgLink,
		ProductLink:        r.ProductLink,
	}, ""
}

func normalizeText(s string, re *regexp.Regexp) string {
	return strings.ToLower(re.ReplaceAllString(s, ""))
}

// filterRow 构造 CEL 的 row 变量
func filterRow(r *dataset.Interaction) map[string]any {
	return map[string]any{
		dataset.ColProductID:          r.ProductID,
		dataset.ColProductName:        r.ProductName,
		dataset.ColCategory:           r.Category,
		dataset.ColDiscountedPrice:    r.DiscountedPrice,
		dataset.ColActualPrice:        r.ActualPrice,
		dataset.ColDiscountPercentage: r.DiscountPercentage,
		dataset.ColRating:             r.Rating,
		dataset.ColRatingCount:        r.RatingCount,
		dataset.ColAboutProduct:       r.AboutProduct,
		dataset.ColUserID:             r.UserID,
		dataset.ColUserName:           r.UserName,
		dataset.ColReviewID:           r.ReviewID,
		dataset.ColReviewTitle:        r.ReviewTitle,
		dataset.ColReviewContent:      r.ReviewContent,
	}
}
