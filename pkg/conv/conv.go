// Package conv 提供原始 CSV 单元格到数值的转换工具。
package conv

import (
	"math"
	"strconv"
	"strings"
)

// naTokens 与 pandas read_csv 默认识别为缺失值的取值一致
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsMissing 判断单元格是否为缺失值
func IsMissing(cell string) bool {
	_, ok := naTokens[cell]
	return ok
}

// ParsePrice 解析带货币符号和千分位的价格，如 "₹1,099" -> 1099
func ParsePrice(cell string) (float64, bool) {
	s := strings.ReplaceAll(cell, "₹", "")
	s = strings.ReplaceAll(s, ",", "")
	return ParseNumber(s)
}

// ParsePercent 解析 "64%" -> 64，保持 0-100 量纲
func ParsePercent(cell string) (float64, bool) {
	return ParseNumber(strings.TrimRight(cell, "%"))
}

// ParseCount 解析带千分位的整数，如 "24,269" -> 24269
func ParseCount(cell string) (int64, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(cell, ",", ""))
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// "1.0e3" 之类的浮点表示也接受，只要是整数
		f, ok := ParseNumber(s)
		if !ok || f != float64(int64(f)) {
			return 0, false
		}
		return int64(f), true
	}
	return v, true
}

// ParseNumber 宽松解析浮点数，NaN/Inf 与缺失值视为失败
func ParseNumber(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	if IsMissing(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
