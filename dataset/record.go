// Package dataset 定义训练流水线各阶段之间传递的数据结构：
// 原始记录、清洗后的交互记录、训练表以及评分三元组。
package dataset

// 原始 CSV 的列名，顺序即源文件列顺序
const (
	ColProductID          = "product_id"
	ColProductName        = "product_name"
	ColCategory           = "category"
	ColDiscountedPrice    = "discounted_price"
	ColActualPrice        = "actual_price"
	ColDiscountPercentage = "discount_percentage"
	ColRating             = "rating"
	ColRatingCount        = "rating_count"
	ColAboutProduct       = "about_product"
	ColUserID             = "user_id"
	ColUserName           = "user_name"
	ColReviewID           = "review_id"
	ColReviewTitle        = "review_title"
	ColReviewContent      = "review_content"
	ColImgLink            = "img_link"
	ColProductLink        = "product_link"

	ColFirstCategory = "First_category"
	ColLastCategory  = "Last_category"

	// CategoryPrefix 是 one-hot 列名前缀
	CategoryPrefix = "first_category"
)

// RawColumns 原始 CSV 必须包含的列
var RawColumns = []string{
	ColProductID, ColProductName, ColCategory, ColDiscountedPrice, ColActualPrice,
	ColDiscountPercentage, ColRating, ColRatingCount, ColAboutProduct, ColUserID,
	ColUserName, ColReviewID, ColReviewTitle, ColReviewContent, ColImgLink, ColProductLink,
}

// RawRecord 是一行未经处理的商品评论数据，所有字段保持字符串原样。
// user_id/user_name/review_title 等字段可能是逗号分隔的多值。
type RawRecord struct {
	ProductID          string
	ProductName        string
	Category           string
	DiscountedPrice    string
	ActualPrice        string
	DiscountPercentage string
	Rating             string
	RatingCount        string
	AboutProduct       string
	UserID             string
	UserName           string
	ReviewID           string
	ReviewTitle        string
	ReviewContent      string
	ImgLink            string
	ProductLink        string
}

// Cells 按 RawColumns 顺序返回所有单元格
func (r *RawRecord) Cells() []string {
	return []string{
		r.ProductID, r.ProductName, r.Category, r.DiscountedPrice, r.ActualPrice,
		r.DiscountPercentage, r.Rating, r.RatingCount, r.AboutProduct, r.UserID,
		r.UserName, r.ReviewID, r.ReviewTitle, r.ReviewContent, r.ImgLink, r.ProductLink,
	}
}

func (r *RawRecord) set(col, v string) {
	switch col {
	case ColProductID:
		r.ProductID = v
	case ColProductName:
		r.ProductName = v
	case ColCategory:
		r.Category = v
	case ColDiscountedPrice:
		r.DiscountedPrice = v
	case ColActualPrice:
		r.ActualPrice = v
	case ColDiscountPercentage:
		r.DiscountPercentage = v
	case ColRating:
		r.Rating = v
	case ColRatingCount:
		r.RatingCount = v
	case ColAboutProduct:
		r.AboutProduct = v
	case ColUserID:
		r.UserID = v
	case ColUserName:
		r.UserName = v
	case ColReviewID:
		r.ReviewID = v
	case ColReviewTitle:
		r.ReviewTitle = v
	case ColReviewContent:
		r.ReviewContent = v
	case ColImgLink:
		r.ImgLink = v
	case ColProductLink:
		r.ProductLink = v
	}
}

// Interaction 是清洗后的一条交互记录，数值字段已完成类型转换。
// 展开之后每条记录只对应一个用户。
type Interaction struct {
	ProductID          string
	ProductName        string
	Category           string
	DiscountedPrice    float64
	ActualPrice        float64
	DiscountPercentage float64
	Rating             float64
	RatingCount        int64
	AboutProduct       string
	UserID             string
	UserName           string
	ReviewID           string
	ReviewTitle        string
	ReviewContent      string
	ImgLink            string
	ProductLink        string

	// 由类目拆分阶段填充
	FirstCategory string
	LastCategory  string
}
