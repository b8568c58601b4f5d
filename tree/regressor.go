package tree

type Regressor struct {
	Tree
}

// NewRegressor returns a configured/initialized regression tree.
// If no options are passed, the returned Regressor will be equivalent to
// the following call:
//
//	reg := NewRegressor(MinSplit(2), MinLeaf(1), MaxDepth(-1), RandState(0))
func NewRegressor(options ...func(*Tree)) *Regressor {
	return &Regressor{Tree: newTree(options)}
}

// Fit constructs a tree from the provided features X, and targets Y.
func (r *Regressor) Fit(X [][]float64, Y []float64) {
	inx := make([]int, len(Y))
	for i := range inx {
		inx[i] = i
	}

	r.FitInx(X, Y, inx)
}

// FitInx constructs a tree as in Fit, but uses only the examples
// referenced in inx.
func (r *Regressor) FitInx(X [][]float64, Y []float64, inx []int) {
	r.NFeatures = len(X[0])
	r.v = newVarValuer(Y)
	r.build(X, inx)
}

// Predict returns the expected value for each example X.
func (r *Regressor) Predict(X [][]float64) []float64 {
	p := make([]float64, len(X))
	for i := range p {
		p[i] = r.leaf(X[i]).Value
	}
	return p
}
