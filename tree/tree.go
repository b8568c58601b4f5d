// tree implements classification and regression trees as described in
// Louppe, G. (2014) "Understanding Random Forests: From Theory to Practice" (PhD thesis)
// http://arxiv.org/abs/1407.7502
//
// Most of the algorithms implemented in this package come from chapter 3 of the
// thesis. The build follows Algorithm 3.2, the bestSplit method follows Algorithm 3.4.
package tree

import "math/rand"

type ImpurityMeasure int

const (
	Gini ImpurityMeasure = iota
	Entropy
)

// Tree holds the parameters and fitted nodes shared by Classifier and
// Regressor.
type Tree struct {
	Root        *Node
	MinSplit    int // min node size for split
	MinLeaf     int // min leaf size for split
	MaxDepth    int // max depth
	MaxFeatures int // number of features to consider for splitting
	NFeatures   int
	impurity    ImpurityMeasure
	randState   *rand.Rand
	v           valuer
}

// MinSplit limits the size for a node to be split vs marked as a leaf
func MinSplit(n int) func(*Tree) {
	return func(t *Tree) {
		t.MinSplit = n
	}
}

// MinLeaf limits the size of a child/leaf node for a split
// threshold to be considered
func MinLeaf(n int) func(*Tree) {
	return func(t *Tree) {
		t.MinLeaf = n
	}
}

// MaxDepth limits the depth of the fitted tree. Specifying -1 for n will
// grow a full tree, subject to MinLeaf and MinSplit constraints.
func MaxDepth(n int) func(*Tree) {
	return func(t *Tree) {
		t.MaxDepth = n
	}
}

// Impurity sets the impurity measure used to evaluate each candidate split.
// Only used by classification trees.
func Impurity(f ImpurityMeasure) func(*Tree) {
	return func(t *Tree) {
		t.impurity = f
	}
}

// MaxFeatures limits the number of features considered for splitting at each
// step. If not provided or -1 then all features are considered.
func MaxFeatures(n int) func(*Tree) {
	return func(t *Tree) {
		t.MaxFeatures = n
	}
}

// RandState sets the seed for the random number generator. Trees are seeded
// with 0 unless told otherwise.
func RandState(n int64) func(*Tree) {
	return func(t *Tree) {
		t.randState = rand.New(rand.NewSource(n))
	}
}

func newTree(options []func(*Tree)) Tree {
	t := Tree{
		MinSplit:    2,
		MinLeaf:     1,
		MaxDepth:    -1,
		MaxFeatures: -1,
		impurity:    Gini,
		randState:   rand.New(rand.NewSource(0)),
	}

	for _, opt := range options {
		opt(&t)
	}

	return t
}

// leaf walks x down to its terminal node.
func (t *Tree) leaf(x []float64) *Node {
	n := t.Root
	for !n.Leaf {
		if x[n.SplitVar] > n.SplitVal {
			n = n.Right
		} else {
			n = n.Left
		}
	}
	return n
}

// VarImp returns an estimate of the importance of the variables used to fit
// the tree: the total weighted impurity decrease per feature, normalized to
// sum to one. A tree that never split returns all zeros.
func (t *Tree) VarImp() []float64 {
	imp := make([]float64, t.NFeatures)
	if t.Root == nil {
		return imp
	}

	s := new(nodeStack)
	s.Push(t.Root)

	for !s.Empty() {
		n := s.Pop()

		if !n.Leaf {
			imp[n.SplitVar] += (float64(n.Samples)*n.Impurity -
				float64(n.Right.Samples)*n.Right.Impurity -
				float64(n.Left.Samples)*n.Left.Impurity)

			s.Push(n.Left)
			s.Push(n.Right)
		}
	}

	nSamples := float64(t.Root.Samples)
	total := 0.0
	for i := range imp {
		imp[i] /= nSamples
		total += imp[i]
	}

	if total <= 0 {
		return imp
	}

	// normalize
	for i := range imp {
		imp[i] /= total
	}

	return imp
}

// Depth returns the number of edges on the longest root to leaf path.
func (t *Tree) Depth() int {
	if t.Root == nil {
		return 0
	}
	type item struct {
		n *Node
		d int
	}
	deepest := 0
	s := []item{{t.Root, 0}}
	for len(s) > 0 {
		it := s[len(s)-1]
		s = s[:len(s)-1]
		if it.d > deepest {
			deepest = it.d
		}
		if !it.n.Leaf {
			s = append(s, item{it.n.Left, it.d + 1}, item{it.n.Right, it.d + 1})
		}
	}
	return deepest
}

// Leaves counts terminal nodes.
func (t *Tree) Leaves() int {
	if t.Root == nil {
		return 0
	}
	n := 0
	s := new(nodeStack)
	s.Push(t.Root)
	for !s.Empty() {
		node := s.Pop()
		if node.Leaf {
			n++
			continue
		}
		s.Push(node.Left)
		s.Push(node.Right)
	}
	return n
}

type Node struct {
	Left        *Node
	Right       *Node
	SplitVar    int
	SplitVal    float64
	ClassCounts []int   // classification only
	Value       float64 // regression only
	Impurity    float64
	Leaf        bool
	Samples     int
}

func (n *Node) setValue(v interface{}) {
	switch val := v.(type) {
	case []int:
		n.ClassCounts = val
	case float64:
		n.Value = val
	}
}

// lifo stack for walking fitted nodes
type nodeStack []*Node

func (s nodeStack) Empty() bool   { return len(s) == 0 }
func (s *nodeStack) Push(n *Node) { *s = append(*s, n) }
func (s *nodeStack) Pop() *Node {
	d := (*s)[len(*s)-1]
	*s = (*s)[:len(*s)-1]
	return d
}
