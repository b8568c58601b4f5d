package forest

import (
	"context"
	"math"
	"math/rand"

	"github.com/wlattner/sdm/tree"
)

type Classifier struct {
	NTrees          int
	MinSplit        int
	MinLeaf         int
	MaxDepth        int
	MaxFeatures     int
	Seed            int64
	Classes         []string
	Trees           []*tree.Classifier
	ConfusionMatrix [][]int
	Accuracy        float64
	NSample         int
	NFeatures       int
	impurity        tree.ImpurityMeasure
	nWorkers        int
	computeOOB      bool
}

// methods for the forestConfiger interface
func (c *Classifier) setMinSplit(n int)                  { c.MinSplit = n }
func (c *Classifier) setMinLeaf(n int)                   { c.MinLeaf = n }
func (c *Classifier) setMaxDepth(n int)                  { c.MaxDepth = n }
func (c *Classifier) setImpurity(f tree.ImpurityMeasure) { c.impurity = f }
func (c *Classifier) setMaxFeatures(n int)               { c.MaxFeatures = n }
func (c *Classifier) setNumTrees(n int)                  { c.NTrees = n }
func (c *Classifier) setNumWorkers(n int)                { c.nWorkers = n }
func (c *Classifier) setComputeOOB()                     { c.computeOOB = true }
func (c *Classifier) setSeed(n int64)                    { c.Seed = n }

// NewClassifier returns a configured/initialized random forest classifier.
// If no options are passed, the returned Classifier will be equivalent to
// the following call:
//
//	clf := NewClassifier(NumTrees(10), MaxFeatures(-1), MinSplit(2), MinLeaf(1),
//		MaxDepth(-1), Impurity(Gini), NumWorkers(1), Seed(0))
func NewClassifier(options ...func(forestConfiger)) *Classifier {
	f := &Classifier{
		NTrees:      10,
		MaxFeatures: -1,
		MinSplit:    2,
		MinLeaf:     1,
		MaxDepth:    -1,
		impurity:    Gini,
	}

	for _, opt := range options {
		opt(f)
	}

	return f
}

// Fit constructs a forest from fitting n trees from the provided features X, and
// labels Y.
func (f *Classifier) Fit(X [][]float64, Y []string) error {
	return f.FitContext(context.Background(), X, Y)
}

// FitContext is Fit with cancellation. Workers check ctx before each tree;
// once it is done the remaining trees are skipped and ctx.Err() is returned.
func (f *Classifier) FitContext(ctx context.Context, X [][]float64, Y []string) error {
	if len(X) == 0 || len(X[0]) == 0 {
		return ErrEmpty
	}
	if len(X) != len(Y) {
		return ErrMismatch
	}

	// labels as integer ids, ensure all trees know about all classes
	var yIDs []int
	uniq := make(map[string]int)
	var classes []string
	for _, val := range Y {
		id, ok := uniq[val]
		if !ok {
			id = len(uniq)
			uniq[val] = id
			classes = append(classes, val)
		}
		yIDs = append(yIDs, id)
	}
	f.Classes = classes
	f.NSample = len(yIDs)
	f.NFeatures = len(X[0])

	if f.NTrees < 1 {
		f.NTrees = 1
	}

	maxFeatures := f.MaxFeatures
	if maxFeatures < 0 {
		maxFeatures = int(math.Sqrt(float64(f.NFeatures)))
	}
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	f.Trees = make([]*tree.Classifier, f.NTrees)

	var oobClassCtr *oobCtr
	if f.computeOOB {
		oobClassCtr = newOOBCtr(len(Y), len(f.Classes))
	}

	in := make(chan *fitTree)
	out := make(chan *fitTree)

	nWorkers := f.nWorkers
	if nWorkers < 1 {
		nWorkers = 1
	}

	// start workers
	for i := 0; i < nWorkers; i++ {
		go func() {
			for w := range in {
				if ctx.Err() != nil {
					out <- w
					continue
				}
				r := rand.New(rand.NewSource(w.seed))
				w.inx, w.inBag = bootstrapInx(r, len(X))

				clf := tree.NewClassifier(tree.MinSplit(f.MinSplit), tree.MinLeaf(f.MinLeaf),
					tree.MaxDepth(f.MaxDepth), tree.Impurity(f.impurity), tree.MaxFeatures(maxFeatures),
					tree.RandState(r.Int63()))
				clf.FitInx(X, yIDs, w.inx, classes)

				w.t = clf

				if f.computeOOB {
					oobClassCtr.update(X, w.inBag, w.t)
				}

				// the bootstrap sample is not needed past this point
				w.inx, w.inBag = nil, nil

				out <- w
			}
		}()
	}

	// fill the queue
	go func() {
		for i, seed := range treeSeeds(f.Seed, f.NTrees) {
			in <- &fitTree{id: i, seed: seed}
		}
		close(in)
	}()

	for range f.Trees {
		w := <-out
		f.Trees[w.id] = w.t
	}
	if err := ctx.Err(); err != nil {
		f.Trees = nil
		return err
	}

	if f.computeOOB {
		f.ConfusionMatrix, f.Accuracy = oobClassCtr.compute(yIDs)
	}

	return nil
}

// Predict returns the most probable class id for each example. The id
// corresponds to the index of the class label in Classifier.Classes.
func (f *Classifier) Predict(X [][]float64) []int {
	classVotes := make([]int, len(f.Classes))
	maxClass := make([]int, len(X))

	for i, x := range X {
		for c := range classVotes {
			classVotes[c] = 0
		}
		for _, t := range f.Trees {
			classVotes[t.Class(x)]++
		}

		maxCt := 0
		for class, count := range classVotes {
			if count > maxCt {
				maxCt = count
				maxClass[i] = class
			}
		}
	}

	return maxClass
}

// PredictProb returns the class probability for each example. The indices of the
// return value correspond to Classifier.Classes.
func (f *Classifier) PredictProb(X [][]float64) [][]float64 {
	probs := make([][]float64, len(X))
	buf := make([]float64, len(f.Classes))

	for i, x := range X {
		probs[i] = make([]float64, len(f.Classes))
		for _, t := range f.Trees {
			buf = t.LeafProb(x, buf)
			for class, p := range buf {
				probs[i][class] += p / float64(len(f.Trees))
			}
		}
	}

	return probs
}

// ClassProb returns the probability of class id for a single example.
func (f *Classifier) ClassProb(x []float64, id int, buf []float64) float64 {
	var p float64
	for _, t := range f.Trees {
		buf = t.LeafProb(x, buf)
		p += buf[id]
	}
	return p / float64(len(f.Trees))
}

// VarImp returns importance scores for the model, the mean decrease in
// impurity averaged over all trees.
func (f *Classifier) VarImp() []float64 {
	imp := make([]float64, f.NFeatures)

	for _, t := range f.Trees {
		for inx, importance := range t.VarImp() {
			imp[inx] += importance / float64(len(f.Trees))
		}
	}

	return imp
}
