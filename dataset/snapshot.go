package dataset

import (
	"encoding/csv"
	"io"
	"strconv"
)

// SnapshotColumns user_split 快照的列：原始列去掉 category，末尾追加一级/末级类目
var SnapshotColumns = []string{
	ColProductID, ColProductName, ColDiscountedPrice, ColActualPrice,
	ColDiscountPercentage, ColRating, ColRatingCount, ColAboutProduct, ColUserID,
	ColUserName, ColReviewID, ColReviewTitle, ColReviewContent, ColImgLink, ColProductLink,
	ColFirstCategory, ColLastCategory,
}

// Interactions 是展开后的交互记录集合，实现 CSV 写出用于 user_split 快照
type Interactions []Interaction

func (s Interactions) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SnapshotColumns); err != nil {
		return err
	}
	for i := range s {
		r := &s[i]
		rec := []string{
			r.ProductID, r.ProductName, formatFloat(r.DiscountedPrice), formatFloat(r.ActualPrice),
			formatFloat(r.DiscountPercentage), formatFloat(r.Rating), strconv.FormatInt(r.RatingCount, 10),
			r.AboutProduct, r.UserID, r.UserName, r.ReviewID, r.ReviewTitle, r.ReviewContent,
			r.ImgLink, r.ProductLink, r.FirstCategory, r.LastCategory,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
