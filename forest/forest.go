// forest implements random forests as described in
// Louppe, G. (2014) "Understanding Random Forests: From Theory to Practice" (PhD thesis)
// http://arxiv.org/abs/1407.7502
//
// Most of the algorithms implemented in this package come from chapter 4 of the
// thesis. Every tree draws its bootstrap sample and feature subsets from its own
// random source seeded from the forest seed, so a fit is reproducible no matter
// how many workers are used.
package forest

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/wlattner/sdm/tree"
)

var (
	Gini    = tree.Gini
	Entropy = tree.Entropy
)

var (
	ErrEmpty    = errors.New("forest: no training examples")
	ErrMismatch = errors.New("forest: X and Y length mismatch")
)

type forestConfiger interface {
	setMinSplit(n int)
	setMinLeaf(n int)
	setMaxDepth(n int)
	setImpurity(f tree.ImpurityMeasure)
	setMaxFeatures(n int)
	setNumTrees(n int)
	setNumWorkers(n int)
	setComputeOOB()
	setSeed(n int64)
}

// Option configures a forest; it is accepted by NewClassifier.
type Option = func(forestConfiger)

// MinSplit limits the size for a node to be split vs marked as a leaf
func MinSplit(n int) func(forestConfiger) {
	return func(c forestConfiger) {
		c.setMinSplit(n)
	}
}

// MinLeaf limits the size of a child/leaf node for a split
// threshold to be considered
func MinLeaf(n int) func(forestConfiger) {
	return func(c forestConfiger) {
		c.setMinLeaf(n)
	}
}

// MaxDepth limits the depth of the fitted tree. Specifying -1 for n will
// grow a full tree, subject to MinLeaf and MinSplit constraints.
func MaxDepth(n int) func(forestConfiger) {
	return func(c forestConfiger) {
		c.setMaxDepth(n)
	}
}

// Impurity sets the impurity measure used to evaluate each candidate split.
// Currently Gini and Entropy are the only implemented options.
func Impurity(f tree.ImpurityMeasure) func(forestConfiger) {
	return func(c forestConfiger) {
		c.setImpurity(f)
	}
}

// MaxFeatures limits the number of features considered for splitting at each
// step. If not provided or -1 then √(# features) are considered.
func MaxFeatures(n int) func(forestConfiger) {
	return func(c forestConfiger) {
		c.setMaxFeatures(n)
	}
}

// NumTrees sets the number of trees used in the random forest.
func NumTrees(n int) func(forestConfiger) {
	return func(c forestConfiger) {
		c.setNumTrees(n)
	}
}

// NumWorkers sets the number of workers used to fit trees.
func NumWorkers(n int) func(forestConfiger) {
	return func(c forestConfiger) {
		c.setNumWorkers(n)
	}
}

// ComputeOOB computes the confusion matrix from out of bag samples
// for each tree.
func ComputeOOB() func(forestConfiger) {
	return func(c forestConfiger) {
		c.setComputeOOB()
	}
}

// Seed sets the seed all per-tree random sources are derived from.
func Seed(n int64) func(forestConfiger) {
	return func(c forestConfiger) {
		c.setSeed(n)
	}
}

type fitTree struct {
	id    int
	seed  int64
	t     *tree.Classifier
	inx   []int
	inBag []bool
}

// treeSeeds draws one seed per tree, in tree order.
func treeSeeds(seed int64, n int) []int64 {
	r := rand.New(rand.NewSource(seed))
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = r.Int63()
	}
	return seeds
}

func bootstrapInx(r *rand.Rand, n int) ([]int, []bool) {
	inBag := make([]bool, n)
	inx := make([]int, n)
	for i := range inx {
		id := r.Intn(n)
		inx[i] = id
		inBag[id] = true
	}
	return inx, inBag
}

type oobCtr struct {
	mu         sync.Mutex
	classVotes [][]int // array of nExample x nClasses
}

func newOOBCtr(nExample, nClasses int) *oobCtr {
	classVotes := make([][]int, nExample)
	for i := range classVotes {
		classVotes[i] = make([]int, nClasses)
	}
	return &oobCtr{classVotes: classVotes}
}

// accumulate oob predictions for a tree
func (o *oobCtr) update(X [][]float64, inBag []bool, t *tree.Classifier) {
	var inx []int
	for i, in := range inBag {
		if !in {
			inx = append(inx, i)
		}
	}

	pred := t.PredictID(X, inx)

	o.mu.Lock()
	defer o.mu.Unlock()
	for i, sampleInx := range inx {
		o.classVotes[sampleInx][pred[i]]++
	}
}

// compute confusion matrix and overall accuracy from oob predictions,
// examples that were in bag for every tree are skipped
func (o *oobCtr) compute(Y []int) ([][]int, float64) {
	confMat := make([][]int, len(o.classVotes[0]))
	for i := range confMat {
		confMat[i] = make([]int, len(o.classVotes[0]))
	}

	var n int
	for i, actual := range Y {
		// find max vote from forest
		maxClass := 0
		maxVotes := 0
		for class, nVotes := range o.classVotes[i] {
			if nVotes > maxVotes {
				maxVotes = nVotes
				maxClass = class
			}
		}
		if maxVotes == 0 {
			continue
		}

		confMat[actual][maxClass]++
		n++
	}

	if n == 0 {
		return confMat, 0
	}

	correctCt := 0
	for i := range confMat {
		correctCt += confMat[i][i]
	}

	return confMat, float64(correctCt) / float64(n)
}
