package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/wlattner/sdm/dataset"
	"github.com/wlattner/sdm/forest"
	"github.com/wlattner/sdm/tree"
)

// RandomForest is the Trainer for bagged CART forests. Zero values fall
// back to the forest package defaults.
type RandomForest struct {
	Trees       int    `json:"trees"`
	MaxFeatures int    `json:"max_features"`
	MinSplit    int    `json:"min_split"`
	MinLeaf     int    `json:"min_leaf"`
	MaxDepth    int    `json:"max_depth"`
	Impurity    string `json:"impurity"`
	Workers     int    `json:"workers"`
	OOB         bool   `json:"oob"`
}

// ParseImpurity maps "gini" or "entropy" to the tree measure.
func ParseImpurity(s string) (tree.ImpurityMeasure, error) {
	switch strings.ToLower(s) {
	case "", "gini":
		return tree.Gini, nil
	case "entropy":
		return tree.Entropy, nil
	}
	return tree.Gini, fmt.Errorf("invalid impurity measure %q", s)
}

// Train fits a forest on train. The seed fixes bootstrap samples and
// feature draws of every tree. Cancelling ctx stops the fit between trees.
func (rf RandomForest) Train(ctx context.Context, train *dataset.Dataset, seed int64) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if train.Len() == 0 {
		return nil, dataset.ErrNoData
	}

	imp, err := ParseImpurity(rf.Impurity)
	if err != nil {
		return nil, err
	}

	opts := []forest.Option{
		forest.Seed(seed),
		forest.Impurity(imp),
		forest.MaxFeatures(-1),
		forest.MaxDepth(-1),
	}
	if rf.Trees > 0 {
		opts = append(opts, forest.NumTrees(rf.Trees))
	}
	if rf.MaxFeatures != 0 {
		opts = append(opts, forest.MaxFeatures(rf.MaxFeatures))
	}
	if rf.MinSplit > 0 {
		opts = append(opts, forest.MinSplit(rf.MinSplit))
	}
	if rf.MinLeaf > 0 {
		opts = append(opts, forest.MinLeaf(rf.MinLeaf))
	}
	if rf.MaxDepth != 0 {
		opts = append(opts, forest.MaxDepth(rf.MaxDepth))
	}
	if rf.Workers > 0 {
		opts = append(opts, forest.NumWorkers(rf.Workers))
	}
	if rf.OOB {
		opts = append(opts, forest.ComputeOOB())
	}

	clf := forest.NewClassifier(opts...)
	if err := clf.FitContext(ctx, train.X(), Labels(train.Labels())); err != nil {
		return nil, err
	}

	return NewForest(clf, train.Names), nil
}

// Forest adapts a fitted forest.Classifier to Model.
type Forest struct {
	clf      *forest.Classifier
	names    []string
	presence int // class id of Presence, -1 when train had none
}

// NewForest wraps a fitted classifier whose columns are named by names.
func NewForest(clf *forest.Classifier, names []string) *Forest {
	f := &Forest{clf: clf, names: names, presence: -1}
	for id, c := range clf.Classes {
		if c == Presence {
			f.presence = id
		}
	}
	return f
}

func (f *Forest) Features() []string { return f.names }

// PresenceProb returns the share of tree votes for presence for every row.
func (f *Forest) PresenceProb(X [][]float64) []float64 {
	p := make([]float64, len(X))
	if f.presence < 0 {
		return p
	}
	buf := make([]float64, len(f.clf.Classes))
	for i, x := range X {
		p[i] = f.clf.ClassProb(x, f.presence, buf)
	}
	return p
}

func (f *Forest) Importance() []float64 { return f.clf.VarImp() }

// OOBAccuracy reports the out of bag accuracy when it was computed.
func (f *Forest) OOBAccuracy() (float64, bool) {
	if f.clf.ConfusionMatrix == nil {
		return 0, false
	}
	return f.clf.Accuracy, true
}
