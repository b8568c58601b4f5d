// Package model defines the classifier capabilities the pipeline depends on
// and the random forest implementation of them.
package model

import (
	"context"

	"github.com/wlattner/sdm/dataset"
)

// Class labels handed to the underlying classifier.
const (
	Presence = "presence"
	Absence  = "absence"
)

// Predictor maps feature vectors laid out as Features() to the probability
// of the presence class.
type Predictor interface {
	Features() []string
	PresenceProb(X [][]float64) []float64
}

// Model is a fitted classifier bound to a fixed feature schema. Importance
// is computed from the fitted model and is stable across calls.
type Model interface {
	Predictor
	Importance() []float64
}

// Trainer fits a fresh Model on a standardized training set.
type Trainer interface {
	Train(ctx context.Context, train *dataset.Dataset, seed int64) (Model, error)
}

// Func adapts a per-row function to a Predictor.
type Func struct {
	Names []string
	Fn    func(x []float64) float64
}

func (f Func) Features() []string { return f.Names }

func (f Func) PresenceProb(X [][]float64) []float64 {
	p := make([]float64, len(X))
	for i, x := range X {
		p[i] = f.Fn(x)
	}
	return p
}

// Labels converts presence flags to the classifier's string labels.
func Labels(presence []bool) []string {
	y := make([]string, len(presence))
	for i, p := range presence {
		if p {
			y[i] = Presence
		} else {
			y[i] = Absence
		}
	}
	return y
}
