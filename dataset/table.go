package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rushteam/recpipe/core"
)

// BaseColumns 训练表中 one-hot 列之前的固定列
var BaseColumns = []string{
	ColProductID, ColDiscountedPrice, ColDiscountPercentage, ColRating,
	ColUserID, ColUserName, ColReviewTitle,
}

// TrainingRow 是训练表的一行。
// Category 是该行一级类目在 Table.Categories 中的下标，
// 因此每行恰好有一个 one-hot 指示位为 1。
type TrainingRow struct {
	ProductID          string
	DiscountedPrice    float64
	DiscountPercentage float64
	Rating             float64
	UserID             string
	UserName           string
	ReviewTitle        string
	Category           int
}

// Table 是进入模型训练的表：固定列 + 按类目词表展开的 one-hot 列。
// 词表有序，列名为 first_category_<类目>。
type Table struct {
	Categories []string
	Rows       []TrainingRow

	catIndex map[string]int
}

// NewTable 创建空表，categories 需已排序去重
func NewTable(categories []string) *Table {
	t := &Table{Categories: categories, catIndex: make(map[string]int, len(categories))}
	for i, c := range categories {
		t.catIndex[CategoryColumn(c)] = i
	}
	return t
}

// CategoryColumn 返回类目对应的 one-hot 列名
func CategoryColumn(category string) string {
	return CategoryPrefix + "_" + category
}

func (t *Table) Len() int { return len(t.Rows) }

// CategoryColumns 返回所有 one-hot 列名
func (t *Table) CategoryColumns() []string {
	cols := make([]string, len(t.Categories))
	for i, c := range t.Categories {
		cols[i] = CategoryColumn(c)
	}
	return cols
}

// Columns 返回完整列名（固定列在前）
func (t *Table) Columns() []string {
	return append(append([]string{}, BaseColumns...), t.CategoryColumns()...)
}

func (t *Table) categoryPos(col string) (int, bool) {
	if t.catIndex != nil {
		i, ok := t.catIndex[col]
		return i, ok
	}
	for i, c := range t.Categories {
		if CategoryColumn(c) == col {
			return i, true
		}
	}
	return 0, false
}

// HasColumn 判断列是否存在
func (t *Table) HasColumn(col string) bool {
	switch col {
	case ColProductID, ColDiscountedPrice, ColDiscountPercentage, ColRating,
		ColUserID, ColUserName, ColReviewTitle:
		return true
	}
	_, ok := t.categoryPos(col)
	return ok
}

// IsNumeric 判断列是否为数值列（one-hot 列视为 0/1 数值）
func (t *Table) IsNumeric(col string) bool {
	switch col {
	case ColDiscountedPrice, ColDiscountPercentage, ColRating:
		return true
	}
	_, ok := t.categoryPos(col)
	return ok
}

// Float 读取第 i 行数值列
func (t *Table) Float(i int, col string) (float64, error) {
	r := &t.Rows[i]
	switch col {
	case ColDiscountedPrice:
		return r.DiscountedPrice, nil
	case ColDiscountPercentage:
		return r.DiscountPercentage, nil
	case ColRating:
		return r.Rating, nil
	}
	if pos, ok := t.categoryPos(col); ok {
		if r.Category == pos {
			return 1, nil
		}
		return 0, nil
	}
	if t.HasColumn(col) {
		return 0, core.NewConfigError("column %s is not numeric", col)
	}
	return 0, core.NewConfigError("unknown column %s", col)
}

// String 读取第 i 行文本列，数值列按最短表示格式化
func (t *Table) String(i int, col string) (string, error) {
	r := &t.Rows[i]
	switch col {
	case ColProductID:
		return r.ProductID, nil
	case ColUserID:
		return r.UserID, nil
	case ColUserName:
		return r.UserName, nil
	case ColReviewTitle:
		return r.ReviewTitle, nil
	}
	v, err := t.Float(i, col)
	if err != nil {
		return "", err
	}
	return formatFloat(v), nil
}

// Subset 按下标取子表，共享类目词表
func (t *Table) Subset(idx []int) *Table {
	out := &Table{Categories: t.Categories, catIndex: t.catIndex, Rows: make([]TrainingRow, len(idx))}
	for j, i := range idx {
		out.Rows[j] = t.Rows[i]
	}
	return out
}

// WriteCSV 以 CSV 写出整张表，one-hot 列写作 True/False
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return err
	}
	rec := make([]string, len(BaseColumns)+len(t.Categories))
	for i := range t.Rows {
		r := &t.Rows[i]
		rec[0] = r.ProductID
		rec[1] = formatFloat(r.DiscountedPrice)
		rec[2] = formatFloat(r.DiscountPercentage)
		rec[3] = formatFloat(r.Rating)
		rec[4] = r.UserID
		rec[5] = r.UserName
		rec[6] = r.ReviewTitle
		for c := range t.Categories {
			if c == r.Category {
				rec[len(BaseColumns)+c] = "True"
			} else {
				rec[len(BaseColumns)+c] = "False"
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTable 读取 WriteCSV 写出的表。类目词表取自表头中的 one-hot 列，
// 每行必须恰好有一个指示位为真。
func ReadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, core.NewDataError("empty table: missing header")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	var categories []string
	var catCols []int
	prefix := CategoryPrefix + "_"
	for i, h := range header {
		index[h] = i
		if strings.HasPrefix(h, prefix) {
			categories = append(categories, strings.TrimPrefix(h, prefix))
			catCols = append(catCols, i)
		}
	}
	for _, col := range BaseColumns {
		if _, ok := index[col]; !ok {
			return nil, core.NewDataError("table missing column %s", col)
		}
	}

	t := NewTable(categories)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		row := TrainingRow{
			ProductID:   rec[index[ColProductID]],
			UserID:      rec[index[ColUserID]],
			UserName:    rec[index[ColUserName]],
			ReviewTitle: rec[index[ColReviewTitle]],
			Category:    -1,
		}
		for col, dst := range map[string]*float64{
			ColDiscountedPrice:    &row.DiscountedPrice,
			ColDiscountPercentage: &row.DiscountPercentage,
			ColRating:             &row.Rating,
		} {
			v, err := strconv.ParseFloat(rec[index[col]], 64)
			if err != nil {
				return nil, core.NewDataError("line %d: column %s: %v", line, col, err)
			}
			*dst = v
		}
		for c, i := range catCols {
			hot, err := parseIndicator(rec[i])
			if err != nil {
				return nil, core.NewDataError("line %d: column %s: %v", line, header[i], err)
			}
			if !hot {
				continue
			}
			if row.Category >= 0 {
				return nil, core.NewDataError("line %d: more than one category indicator set", line)
			}
			row.Category = c
		}
		if row.Category < 0 {
			return nil, core.NewDataError("line %d: no category indicator set", line)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func parseIndicator(s string) (bool, error) {
	switch s {
	case "1", "1.0":
		return true, nil
	case "0", "0.0":
		return false, nil
	}
	return strconv.ParseBool(s)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
