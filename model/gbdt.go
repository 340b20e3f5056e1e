package model

import (
	"context"
	"sort"

	"github.com/rushteam/recpipe/core"
	"github.com/rushteam/recpipe/feature"
)

// BoosterConfig 梯度提升树超参数
type BoosterConfig struct {
	NEstimators    int     `json:"n_estimators"`
	MaxDepth       int     `json:"max_depth"`
	LearningRate   float64 `json:"learning_rate"`
	Lambda         float64 `json:"lambda"`
	MinChildWeight float64 `json:"min_child_weight"`
	Gamma          float64 `json:"gamma"`
}

// DefaultBoosterConfig 返回默认超参数（100 棵树、深度 6、eta 0.3、L2 正则 1）
func DefaultBoosterConfig() BoosterConfig {
	return BoosterConfig{
		NEstimators:    100,
		MaxDepth:       6,
		LearningRate:   0.3,
		Lambda:         1,
		MinChildWeight: 1,
	}
}

// TreeNode 回归树节点；非叶子节点 x < Threshold 走左子树
type TreeNode struct {
	Feature   int     `json:"f,omitempty"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"v,omitempty"`
}

// Tree 一棵回归树，Nodes[0] 为根
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// GradientBoostedTrees 平方损失的梯度提升回归树，按层精确贪心分裂。
//
// 分裂增益：
//
//	gain = ½ [G_L²/(H_L+λ) + G_R²/(H_R+λ) − G²/(H+λ)] − γ
//
// 叶子权重为 −G/(H+λ)·eta。稀疏输入中缺省的特征按 0 处理。
type GradientBoostedTrees struct {
	Config      BoosterConfig `json:"config"`
	BaseScore   float64       `json:"base_score"`
	NumFeatures int           `json:"num_features"`
	Trees       []Tree        `json:"trees"`
}

func NewGradientBoostedTrees(cfg BoosterConfig) *GradientBoostedTrees {
	return &GradientBoostedTrees{Config: cfg}
}

func (g *GradientBoostedTrees) Name() string { return "gbdt" }

type colEntry struct {
	row int
	val float64
}

// Fit 训练模型，X 为稀疏行，numFeatures 为特征总数
func (g *GradientBoostedTrees) Fit(ctx context.Context, X []feature.SparseRow, y []float64, numFeatures int) error {
	n := len(X)
	if n == 0 || n != len(y) {
		return core.NewDataError("gbdt: %d rows with %d labels", n, len(y))
	}
	g.NumFeatures = numFeatures
	g.Trees = g.Trees[:0]

	var sum float64
	for _, v := range y {
		sum += v
	}
	g.BaseScore = sum / float64(n)

	// 列存储，每列按取值升序
	cols := make([][]colEntry, numFeatures)
	for i, row := range X {
		for _, e := range row {
			if e.Value != 0 {
				cols[e.Index] = append(cols[e.Index], colEntry{row: i, val: e.Value})
			}
		}
	}
	for f := range cols {
		sort.SliceStable(cols[f], func(a, b int) bool { return cols[f][a].val < cols[f][b].val })
	}

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = g.BaseScore
	}
	grad := make([]float64, n)
	hess := make([]float64, n)

	for t := 0; t < g.Config.NEstimators; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range pred {
			grad[i] = pred[i] - y[i]
			hess[i] = 1
		}
		tree := g.buildTree(X, cols, grad, hess)
		for i, row := range X {
			pred[i] += tree.predict(row)
		}
		g.Trees = append(g.Trees, tree)
	}
	return nil
}

type nodeStat struct {
	g, h float64
	n    int
}

type split struct {
	gain      float64
	feature   int
	threshold float64
}

func (g *GradientBoostedTrees) buildTree(X []feature.SparseRow, cols [][]colEntry, grad, hess []float64) Tree {
	cfg := g.Config
	pos := make([]int, len(X))
	root := nodeStat{}
	for i := range X {
		root.g += grad[i]
		root.h += hess[i]
		root.n++
	}

	nodes := []TreeNode{{}}
	stats := []nodeStat{root}
	active := []int{0}

	for depth := 0; depth < cfg.MaxDepth && len(active) > 0; depth++ {
		best := make([]*split, len(nodes))
		isActive := make([]bool, len(nodes))
		for _, id := range active {
			isActive[id] = true
		}
		sc := newScanner(len(nodes), cfg)
		for f, col := range cols {
			sc.scan(f, col, pos, grad, hess, stats, isActive, best)
		}

		var next []int
		splitNodes := make(map[int]bool)
		for _, id := range active {
			sp := best[id]
			if sp == nil {
				nodes[id] = leaf(stats[id], cfg)
				continue
			}
			left, right := len(nodes), len(nodes)+1
			nodes[id] = TreeNode{Feature: sp.feature, Threshold: sp.threshold, Left: left, Right: right}
			nodes = append(nodes, TreeNode{}, TreeNode{})
			stats = append(stats, nodeStat{}, nodeStat{})
			splitNodes[id] = true
			next = append(next, left, right)
		}
		if len(next) == 0 {
			active = nil
			break
		}

		for i, row := range X {
			id := pos[i]
			if !splitNodes[id] {
				continue
			}
			nd := nodes[id]
			child := nd.Right
			if valueAt(row, nd.Feature) < nd.Threshold {
				child = nd.Left
			}
			pos[i] = child
			stats[child].g += grad[i]
			stats[child].h += hess[i]
			stats[child].n++
		}
		active = next
	}
	for _, id := range active {
		nodes[id] = leaf(stats[id], cfg)
	}
	return Tree{Nodes: nodes}
}

func leaf(s nodeStat, cfg BoosterConfig) TreeNode {
	return TreeNode{Leaf: true, Value: -s.g / (s.h + cfg.Lambda) * cfg.LearningRate}
}

// scanner 对单个特征按取值顺序扫描，同时维护所有活跃节点的左侧累计量
type scanner struct {
	cfg    BoosterConfig
	gl, hl []float64
	prev   []float64
	seen   []bool
	zeroed []bool
	gnz    []float64
	hnz    []float64
	nnz    []int
	touch  []int
}

func newScanner(numNodes int, cfg BoosterConfig) *scanner {
	return &scanner{
		cfg:    cfg,
		gl:     make([]float64, numNodes),
		hl:     make([]float64, numNodes),
		prev:   make([]float64, numNodes),
		seen:   make([]bool, numNodes),
		zeroed: make([]bool, numNodes),
		gnz:    make([]float64, numNodes),
		hnz:    make([]float64, numNodes),
		nnz:    make([]int, numNodes),
	}
}

func (s *scanner) reset() {
	for _, id := range s.touch {
		s.gl[id], s.hl[id], s.prev[id] = 0, 0, 0
		s.seen[id], s.zeroed[id] = false, false
		s.gnz[id], s.hnz[id], s.nnz[id] = 0, 0, 0
	}
	s.touch = s.touch[:0]
}

func (s *scanner) scan(f int, col []colEntry, pos []int, grad, hess []float64, stats []nodeStat, active []bool, best []*split) {
	s.reset()
	// 第一遍：每个节点在该特征上的非零部分
	for _, e := range col {
		id := pos[e.row]
		if !active[id] {
			continue
		}
		if s.nnz[id] == 0 {
			s.touch = append(s.touch, id)
		}
		s.gnz[id] += grad[e.row]
		s.hnz[id] += hess[e.row]
		s.nnz[id]++
	}

	// 第二遍：升序扫描，正数之前插入各节点的零值桶
	for _, e := range col {
		id := pos[e.row]
		if !active[id] {
			continue
		}
		if e.val > 0 && !s.zeroed[id] {
			s.addZero(f, id, stats, best)
		}
		s.step(f, id, e.val, grad[e.row], hess[e.row], stats, best)
	}
	for _, id := range s.touch {
		if !s.zeroed[id] {
			s.addZero(f, id, stats, best)
		}
	}
	// 完全为零的节点无法在该特征上分裂，无需处理
}

func (s *scanner) addZero(f, id int, stats []nodeStat, best []*split) {
	s.zeroed[id] = true
	zeros := stats[id].n - s.nnz[id]
	if zeros == 0 {
		return
	}
	s.step(f, id, 0, stats[id].g-s.gnz[id], stats[id].h-s.hnz[id], stats, best)
}

func (s *scanner) step(f, id int, v, g, h float64, stats []nodeStat, best []*split) {
	if s.seen[id] && v > s.prev[id] {
		s.evaluate(f, id, (s.prev[id]+v)/2, stats[id], best)
	}
	s.gl[id] += g
	s.hl[id] += h
	s.prev[id] = v
	s.seen[id] = true
}

func (s *scanner) evaluate(f, id int, threshold float64, st nodeStat, best []*split) {
	gl, hl := s.gl[id], s.hl[id]
	gr, hr := st.g-gl, st.h-hl
	if hl < s.cfg.MinChildWeight || hr < s.cfg.MinChildWeight {
		return
	}
	lambda := s.cfg.Lambda
	gain := 0.5*(gl*gl/(hl+lambda)+gr*gr/(hr+lambda)-st.g*st.g/(st.h+lambda)) - s.cfg.Gamma
	if gain <= 1e-12 {
		return
	}
	if b := best[id]; b == nil || gain > b.gain {
		best[id] = &split{gain: gain, feature: f, threshold: threshold}
	}
}

func (t *Tree) predict(row feature.SparseRow) float64 {
	id := 0
	for {
		nd := &t.Nodes[id]
		if nd.Leaf {
			return nd.Value
		}
		if valueAt(row, nd.Feature) < nd.Threshold {
			id = nd.Left
		} else {
			id = nd.Right
		}
	}
}

// valueAt 在按 Index 升序的稀疏行中查找特征值，不存在返回 0
func valueAt(row feature.SparseRow, f int) float64 {
	j := sort.Search(len(row), func(k int) bool { return row[k].Index >= f })
	if j < len(row) && row[j].Index == f {
		return row[j].Value
	}
	return 0
}

// PredictRow 对单行打分
func (g *GradientBoostedTrees) PredictRow(row feature.SparseRow) float64 {
	score := g.BaseScore
	for i := range g.Trees {
		score += g.Trees[i].predict(row)
	}
	return score
}
