package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/rushteam/recpipe/core"
)

// ReadCSV 读取原始商品评论 CSV
func ReadCSV(path string) ([]RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.NewConfigError("data file %s does not exist", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadRecords(f)
}

// ReadRecords 从 r 读取原始记录。表头按列名匹配，多余的列忽略；
// 缺少必需列返回 DataQualityError，行内缺失的单元格视为空值。
func ReadRecords(r io.Reader) ([]RawRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, core.NewDataError("empty csv: missing header")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		// 去掉 BOM
		if i == 0 {
			h = trimBOM(h)
		}
		index[h] = i
	}
	for _, col := range RawColumns {
		if _, ok := index[col]; !ok {
			return nil, core.NewDataError("missing column %s", col)
		}
	}

	var out []RawRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(out)+1, err)
		}
		var rec RawRecord
		for _, col := range RawColumns {
			if i := index[col]; i < len(row) {
				rec.set(col, row[i])
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func trimBOM(s string) string {
	const bom = "\ufeff"
	if len(s) >= len(bom) && s[:len(bom)] == bom {
		return s[len(bom):]
	}
	return s
}
