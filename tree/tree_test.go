package tree

import (
	"math"
	"testing"
)

// x0 separates the classes, x1 is noise
var (
	sepX = [][]float64{
		{0.1, 5}, {0.2, 3}, {0.3, 9}, {0.4, 1}, {0.5, 7},
		{1.1, 2}, {1.2, 8}, {1.3, 4}, {1.4, 6}, {1.5, 0},
	}
	sepY = []string{"absence", "absence", "absence", "absence", "absence",
		"presence", "presence", "presence", "presence", "presence"}
)

func TestClassifierFitPredict(t *testing.T) {
	clf := NewClassifier()
	clf.Fit(sepX, sepY)

	for i, id := range clf.Predict(sepX) {
		if clf.Classes[id] != sepY[i] {
			t.Error("expected row", i, "to be", sepY[i], "got:", clf.Classes[id])
		}
	}

	probs := clf.PredictProb([][]float64{{0.0, 0}, {2.0, 0}})
	if probs[0][0] != 1 || probs[1][1] != 1 {
		t.Error("expected pure leaf probabilities, got:", probs)
	}

	if d := clf.Depth(); d != 1 {
		t.Error("expected a single split, got depth:", d)
	}
}

func TestClassifierVarImp(t *testing.T) {
	clf := NewClassifier()
	clf.Fit(sepX, sepY)

	imp := clf.VarImp()
	if len(imp) != 2 {
		t.Fatal("expected 2 importance scores, got:", len(imp))
	}
	if math.Abs(imp[0]+imp[1]-1) > 1e-9 {
		t.Error("expected importances to sum to 1, got:", imp)
	}
	if imp[0] < imp[1] {
		t.Error("expected x0 to dominate importance, got:", imp)
	}
}

func TestClassifierSingleLeafVarImp(t *testing.T) {
	clf := NewClassifier()
	clf.Fit([][]float64{{1, 2}, {3, 4}}, []string{"presence", "presence"})

	for _, v := range clf.VarImp() {
		if v != 0 {
			t.Error("expected zero importance for an unsplit tree, got:", v)
		}
	}
}

func TestClassifierDeterministic(t *testing.T) {
	a := NewClassifier(MaxFeatures(1), RandState(7))
	b := NewClassifier(MaxFeatures(1), RandState(7))
	a.Fit(sepX, sepY)
	b.Fit(sepX, sepY)

	pa := a.PredictProb(sepX)
	pb := b.PredictProb(sepX)
	for i := range pa {
		for c := range pa[i] {
			if pa[i][c] != pb[i][c] {
				t.Fatal("expected identical predictions for identical seeds at row", i)
			}
		}
	}
}

func TestRegressorStep(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}}
	Y := []float64{0, 0, 0, 1, 1, 1}

	reg := NewRegressor(MaxDepth(1))
	reg.Fit(X, Y)

	pred := reg.Predict([][]float64{{0}, {10}})
	if pred[0] != 0 || pred[1] != 1 {
		t.Error("expected step predictions [0 1], got:", pred)
	}
	if reg.Root.SplitVal != 3.5 {
		t.Error("expected threshold 3.5, got:", reg.Root.SplitVal)
	}
	if reg.Leaves() != 2 || reg.Depth() != 1 {
		t.Error("expected a stump, got leaves/depth:", reg.Leaves(), reg.Depth())
	}
}
