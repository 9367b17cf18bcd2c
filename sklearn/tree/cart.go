package tree

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

const (
	// featureThreshold 以下の差しかない隣接値の間には分割を置かない
	featureThreshold = 1e-7
	// impurityEpsilon 以下の不純度のノードは純粋とみなす
	impurityEpsilon = 1e-12
)

// node is one entry of the flattened tree. Leaves have feature == -1.
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	depth     int
	nSamples  int
	impurity  float64
	// value は分類ならクラスごとの件数、回帰なら [sum, sum of squares]
	value []float64
}

func (n *node) isLeaf() bool { return n.feature < 0 }

// criterion scores the impurity of a node from its accumulated statistics.
type criterion interface {
	statsSize() int
	add(stats []float64, i int, sign float64)
	impurity(stats []float64, n float64) float64
}

type classCriterion struct {
	labels   []int // エンコード済みクラス番号
	nClasses int
	entropy  bool
}

func (c *classCriterion) statsSize() int { return c.nClasses }

func (c *classCriterion) add(stats []float64, i int, sign float64) {
	stats[c.labels[i]] += sign
}

func (c *classCriterion) impurity(stats []float64, n float64) float64 {
	if n <= 0 {
		return 0
	}
	if c.entropy {
		var h float64
		for _, cnt := range stats {
			if cnt > 0 {
				p := cnt / n
				h -= p * math.Log2(p)
			}
		}
		return h
	}
	g := 1.0
	for _, cnt := range stats {
		p := cnt / n
		g -= p * p
	}
	return g
}

type squaredErrorCriterion struct {
	y []float64
}

func (c *squaredErrorCriterion) statsSize() int { return 2 }

func (c *squaredErrorCriterion) add(stats []float64, i int, sign float64) {
	stats[0] += sign * c.y[i]
	stats[1] += sign * c.y[i] * c.y[i]
}

func (c *squaredErrorCriterion) impurity(stats []float64, n float64) float64 {
	if n <= 0 {
		return 0
	}
	mean := stats[0] / n
	v := stats[1]/n - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

// builder grows a CART tree depth first. Every split is a threshold on one
// feature (x <= threshold goes left) chosen to minimise the weighted child
// impurity.
type builder struct {
	cols [][]float64
	crit criterion

	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
	rng             *rand.Rand

	nodes       []node
	importances []float64
}

type split struct {
	feature     int
	threshold   float64
	improvement float64
	pos         int
}

func newBuilder(X mat.Matrix, crit criterion, p *params, maxFeatures int) *builder {
	rows, cols := X.Dims()
	columns := make([][]float64, cols)
	for j := 0; j < cols; j++ {
		columns[j] = make([]float64, rows)
		for i := 0; i < rows; i++ {
			columns[j][i] = X.At(i, j)
		}
	}
	return &builder{
		cols:            columns,
		crit:            crit,
		maxDepth:        p.maxDepth,
		minSamplesSplit: p.minSamplesSplit,
		minSamplesLeaf:  p.minSamplesLeaf,
		maxFeatures:     maxFeatures,
		rng:             rand.New(rand.NewSource(p.randomState)),
		importances:     make([]float64, cols),
	}
}

func (b *builder) buildTree(nSamples int) {
	idx := make([]int, nSamples)
	for i := range idx {
		idx[i] = i
	}
	b.build(idx, 0)

	var total float64
	for _, v := range b.importances {
		total += v
	}
	if total > 0 {
		for j := range b.importances {
			b.importances[j] /= total
		}
	}
}

func (b *builder) build(idx []int, depth int) int {
	stats := make([]float64, b.crit.statsSize())
	for _, i := range idx {
		b.crit.add(stats, i, 1)
	}
	n := len(idx)
	imp := b.crit.impurity(stats, float64(n))

	id := len(b.nodes)
	b.nodes = append(b.nodes, node{
		feature:  -1,
		depth:    depth,
		nSamples: n,
		impurity: imp,
		value:    stats,
	})

	if (b.maxDepth > 0 && depth >= b.maxDepth) ||
		n < b.minSamplesSplit ||
		n < 2*b.minSamplesLeaf ||
		imp <= impurityEpsilon {
		return id
	}

	best, order, ok := b.bestSplit(idx, stats, imp)
	if !ok {
		return id
	}

	left := append([]int(nil), order[:best.pos]...)
	right := append([]int(nil), order[best.pos:]...)
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)

	nd := &b.nodes[id]
	nd.feature = best.feature
	nd.threshold = best.threshold
	nd.left = l
	nd.right = r

	nl, nr := float64(len(left)), float64(len(right))
	b.importances[best.feature] += float64(n)*imp -
		nl*b.nodes[l].impurity - nr*b.nodes[r].impurity
	return id
}

// bestSplit scans candidate features and returns the best split together with
// idx ordered by that split's feature, so the caller can cut it at best.pos.
func (b *builder) bestSplit(idx []int, parent []float64, parentImp float64) (split, []int, bool) {
	n := len(idx)
	nf := len(b.cols)
	k := b.maxFeatures
	if k <= 0 || k > nf {
		k = nf
	}

	var features []int
	if k < nf {
		features = b.rng.Perm(nf)
	} else {
		features = make([]int, nf)
		for j := range features {
			features[j] = j
		}
	}

	best := split{feature: -1, improvement: math.Inf(-1)}
	var bestOrder []int
	order := make([]int, n)
	left := make([]float64, len(parent))
	right := make([]float64, len(parent))

	visited := 0
	for _, f := range features {
		// 規定数を調べ終えても有効な分割がなければ残りの特徴量も試す
		if visited >= k && best.feature >= 0 {
			break
		}
		col := b.cols[f]
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool { return col[order[a]] < col[order[c]] })
		if col[order[n-1]] <= col[order[0]]+featureThreshold {
			continue // 定数特徴量
		}
		visited++

		for i := range left {
			left[i] = 0
		}
		copy(right, parent)

		for pos := 1; pos < n; pos++ {
			i := order[pos-1]
			b.crit.add(left, i, 1)
			b.crit.add(right, i, -1)

			if col[order[pos]] <= col[i]+featureThreshold {
				continue
			}
			nl, nr := pos, n-pos
			if nl < b.minSamplesLeaf || nr < b.minSamplesLeaf {
				continue
			}
			child := (float64(nl)*b.crit.impurity(left, float64(nl)) +
				float64(nr)*b.crit.impurity(right, float64(nr))) / float64(n)
			improvement := parentImp - child
			if improvement > best.improvement {
				threshold := (col[i] + col[order[pos]]) / 2
				if threshold >= col[order[pos]] {
					threshold = col[i]
				}
				best = split{feature: f, threshold: threshold, improvement: improvement, pos: pos}
				bestOrder = append(bestOrder[:0], order...)
			}
		}
	}
	if best.feature < 0 {
		return best, nil, false
	}
	return best, bestOrder, true
}

// fittedTree is the immutable result of a build.
type fittedTree struct {
	nodes       []node
	importances []float64
}

func (t *fittedTree) apply(row []float64) *node {
	nd := &t.nodes[0]
	for !nd.isLeaf() {
		if row[nd.feature] <= nd.threshold {
			nd = &t.nodes[nd.left]
		} else {
			nd = &t.nodes[nd.right]
		}
	}
	return nd
}

func (t *fittedTree) depth() int {
	d := 0
	for i := range t.nodes {
		if t.nodes[i].depth > d {
			d = t.nodes[i].depth
		}
	}
	return d
}

func (t *fittedTree) nLeaves() int {
	n := 0
	for i := range t.nodes {
		if t.nodes[i].isLeaf() {
			n++
		}
	}
	return n
}
