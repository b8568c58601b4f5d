package tree

// Classifier implements a decision tree classifier. The classifier
// should be initialized with NewClassifier.
type Classifier struct {
	Tree
	Classes []string
}

// NewClassifier returns a configured/initialized decision tree classifier.
// If no options are passed, the returned Classifier will be equivalent to the
// following call:
//
//	clf := NewClassifier(MinSplit(2), MinLeaf(1), MaxDepth(-1), Impurity(Gini), RandState(0))
func NewClassifier(options ...func(*Tree)) *Classifier {
	return &Classifier{Tree: newTree(options)}
}

// Fit constructs a tree from the provided features X, and labels Y.
func (t *Classifier) Fit(X [][]float64, Y []string) {
	// labels as integer ids
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

	inx := make([]int, len(Y))
	for i := range inx {
		inx[i] = i
	}

	t.FitInx(X, yIDs, inx, classes)
}

// FitInx constructs a tree as in Fit, but uses the inx slice to mask
// the examples in X and Y. The caller also needs to supply a slice of unique
// classes where the ith class corresponds to the integer id used in Y (a mapping
// of class id to class name). FitInx is intended to be used with a meta algorithm
// that relies on bootstrap sampling, such as a random forest.
func (t *Classifier) FitInx(X [][]float64, Y []int, inx []int, classes []string) {
	t.Classes = classes
	t.NFeatures = len(X[0])
	t.v = newClassValuer(Y, len(classes), t.impurity)
	t.build(X, inx)
}

// Predict returns the most probable class id for each example. The id
// corresponds to the index of the class label in Classifier.Classes.
func (t *Classifier) Predict(X [][]float64) []int {
	p := make([]int, len(X))
	for i := range p {
		p[i] = maxClass(t.leaf(X[i]).ClassCounts)
	}
	return p
}

// Class returns the most probable class id for a single example.
func (t *Classifier) Class(x []float64) int {
	return maxClass(t.leaf(x).ClassCounts)
}

// PredictID returns the most probable class id for each example in X
// referenced by inx. This function is intended for OOB error estimating.
func (t *Classifier) PredictID(X [][]float64, inx []int) []int {
	p := make([]int, len(inx))
	for i, id := range inx {
		p[i] = maxClass(t.leaf(X[id]).ClassCounts)
	}
	return p
}

// PredictProb returns the class probability for each example. The indices
// of the return value correspond to Classifier.Classes.
func (t *Classifier) PredictProb(X [][]float64) [][]float64 {
	p := make([][]float64, len(X))
	for i := range p {
		p[i] = t.LeafProb(X[i], nil)
	}
	return p
}

// LeafProb writes the class frequencies of the leaf reached by x into dst,
// allocating when dst is too short, and returns it.
func (t *Classifier) LeafProb(x []float64, dst []float64) []float64 {
	n := t.leaf(x)
	if len(dst) < len(n.ClassCounts) {
		dst = make([]float64, len(n.ClassCounts))
	}
	dst = dst[:len(n.ClassCounts)]
	for c := range dst {
		dst[c] = float64(n.ClassCounts[c]) / float64(n.Samples)
	}
	return dst
}

func maxClass(counts []int) int {
	maxCt := 0
	maxC := 0
	for class, count := range counts {
		if count > maxCt {
			maxCt = count
			maxC = class
		}
	}
	return maxC
}
