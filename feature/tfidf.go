package feature

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// tokenPattern 两个及以上单词字符组成的 token
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Entry 稀疏向量中的一个非零元素
type Entry struct {
	Index int     `json:"i"`
	Value float64 `json:"v"`
}

// SparseRow 按 Index 升序排列的稀疏行
type SparseRow []Entry

// TfidfVectorizer 单个文本列的 TF-IDF 向量化器：
//   - 小写后按 tokenPattern 切词
//   - idf = ln((1+n)/(1+df)) + 1（平滑）
//   - 行向量 L2 归一化
//
// 词表按字典序编号，未登录词在 Transform 时忽略。
type TfidfVectorizer struct {
	Column     string         `json:"column"`
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
}

// Tokenize 切词
func Tokenize(doc string) []string {
	return tokenPattern.FindAllString(strings.ToLower(doc), -1)
}

// FitTfidf 在训练文档上拟合词表和 idf
func FitTfidf(column string, docs []string) *TfidfVectorizer {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, tok := range Tokenize(doc) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	v := &TfidfVectorizer{
		Column:     column,
		Vocabulary: make(map[string]int, len(terms)),
		IDF:        make([]float64, len(terms)),
	}
	n := float64(len(docs))
	for i, term := range terms {
		v.Vocabulary[term] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return v
}

// Size 返回词表大小
func (v *TfidfVectorizer) Size() int { return len(v.IDF) }

// Terms 按编号返回词表
func (v *TfidfVectorizer) Terms() []string {
	terms := make([]string, len(v.IDF))
	for term, i := range v.Vocabulary {
		terms[i] = term
	}
	return terms
}

// Transform 把文档转换为 L2 归一化的 tf-idf 稀疏向量
func (v *TfidfVectorizer) Transform(doc string) SparseRow {
	tf := make(map[int]float64)
	for _, tok := range Tokenize(doc) {
		if i, ok := v.Vocabulary[tok]; ok {
			tf[i]++
		}
	}
	if len(tf) == 0 {
		return nil
	}

	row := make(SparseRow, 0, len(tf))
	var norm float64
	for i, c := range tf {
		w := c * v.IDF[i]
		row = append(row, Entry{Index: i, Value: w})
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for j := range row {
		row[j].Value /= norm
	}
	sort.Slice(row, func(a, b int) bool { return row[a].Index < row[b].Index })
	return row
}
