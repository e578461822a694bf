package forest

import (
	"math"
	"math/rand"
	"sort"

	"delayrisk/domain/run"
)

// Node is one entry of a flattened tree. Internal nodes route x[Feature] <=
// Threshold to Left, everything else to Right. Leaves carry the share of
// positive training samples that reached them.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Leaf      bool    `json:"leaf"`
	Proba     float64 `json:"proba"`
	Samples   int     `json:"samples"`
}

// Tree is a CART tree stored in preorder; children always follow their parent.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// proba walks the tree for one row.
func (t *Tree) proba(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Proba
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i, d int) int
	walk = func(i, d int) int {
		n := t.Nodes[i]
		if n.Leaf {
			return d
		}
		return max(walk(n.Left, d+1), walk(n.Right, d+1))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0, 0)
}

// treeBuilder grows one tree. It is owned by a single goroutine.
type treeBuilder struct {
	X        [][]float64
	y        []int
	params   run.Hyperparameters
	mtry     int
	rng      *rand.Rand
	impurity func(pos, n int) float64
	nodes    []Node
}

func newTreeBuilder(X [][]float64, y []int, params run.Hyperparameters, mtry int, rng *rand.Rand) *treeBuilder {
	b := &treeBuilder{X: X, y: y, params: params, mtry: mtry, rng: rng, impurity: gini}
	if params.Criterion == run.CriterionEntropy {
		b.impurity = entropy
	}
	return b
}

type split struct {
	gain      float64
	feature   int
	threshold float64
	left      []int
	right     []int
}

func (b *treeBuilder) build(sample []int) Tree {
	b.nodes = b.nodes[:0]
	b.grow(sample, 0)
	return Tree{Nodes: append([]Node(nil), b.nodes...)}
}

// grow appends the subtree for idx and returns its position.
func (b *treeBuilder) grow(idx []int, depth int) int {
	pos := 0
	for _, i := range idx {
		pos += b.y[i]
	}
	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		Feature: -1,
		Left:    -1,
		Right:   -1,
		Leaf:    true,
		Proba:   float64(pos) / float64(len(idx)),
		Samples: len(idx),
	})

	if pos == 0 || pos == len(idx) ||
		len(idx) < b.params.MinSamplesSplit ||
		len(idx) < 2*b.params.MinSamplesLeaf ||
		(b.params.MaxDepth > 0 && depth >= b.params.MaxDepth) {
		return self
	}

	best, ok := b.bestSplit(idx, pos)
	if !ok {
		return self
	}

	left := b.grow(best.left, depth+1)
	right := b.grow(best.right, depth+1)
	b.nodes[self] = Node{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      left,
		Right:     right,
		Proba:     float64(pos) / float64(len(idx)),
		Samples:   len(idx),
	}
	return self
}

// candidateFeatures draws mtry distinct features by partial Fisher-Yates.
func (b *treeBuilder) candidateFeatures() []int {
	p := len(b.X[0])
	feats := make([]int, p)
	for j := range feats {
		feats[j] = j
	}
	if b.mtry >= p {
		return feats
	}
	for i := 0; i < b.mtry; i++ {
		j := i + b.rng.Intn(p-i)
		feats[i], feats[j] = feats[j], feats[i]
	}
	return feats[:b.mtry]
}

func (b *treeBuilder) bestSplit(idx []int, pos int) (split, bool) {
	n := len(idx)
	parent := b.impurity(pos, n)
	minLeaf := b.params.MinSamplesLeaf

	best := split{feature: -1}
	order := make([]int, n)

	for _, f := range b.candidateFeatures() {
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool { return b.X[order[a]][f] < b.X[order[c]][f] })

		leftPos := 0
		for s := 1; s < n; s++ {
			leftPos += b.y[order[s-1]]
			lo, hi := b.X[order[s-1]][f], b.X[order[s]][f]
			if lo == hi || s < minLeaf || n-s < minLeaf {
				continue
			}
			weighted := (float64(s)*b.impurity(leftPos, s) + float64(n-s)*b.impurity(pos-leftPos, n-s)) / float64(n)
			gain := parent - weighted
			if gain > best.gain+1e-12 {
				thr := lo + (hi-lo)/2
				if thr >= hi {
					thr = lo
				}
				best = split{gain: gain, feature: f, threshold: thr, left: nil, right: nil}
				best.left = append([]int(nil), order[:s]...)
				best.right = append([]int(nil), order[s:]...)
			}
		}
	}
	return best, best.feature >= 0
}

func gini(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 2 * p * (1 - p)
}

func entropy(pos, n int) float64 {
	if n == 0 || pos == 0 || pos == n {
		return 0
	}
	p := float64(pos) / float64(n)
	return -p*math.Log2(p) - (1-p)*math.Log2(1-p)
}
