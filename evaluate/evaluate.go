// Package evaluate scores a fitted model on held-out rows and ranks its
// features by importance.
package evaluate

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/wlattner/sdm/dataset"
	"github.com/wlattner/sdm/model"
)

// AUCResult is the area under the ROC curve. Computable is false when the
// labels hold a single class, in which case Value is meaningless.
type AUCResult struct {
	Value      float64 `json:"value"`
	Computable bool    `json:"computable"`
}

func (a AUCResult) String() string {
	if !a.Computable {
		return "not computable"
	}
	return fmt.Sprintf("%.4f", a.Value)
}

// AUC computes the area under the ROC curve of scores against labels.
func AUC(labels []bool, scores []float64) AUCResult {
	var pos, neg int
	for _, l := range labels {
		if l {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 || len(labels) != len(scores) {
		return AUCResult{}
	}

	y := append([]float64(nil), scores...)
	classes := append([]bool(nil), labels...)
	stat.SortWeightedLabeled(y, classes, nil)

	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return AUCResult{Value: integrate.Trapezoidal(fpr, tpr), Computable: true}
}

// FeatureScore pairs a feature with its importance.
type FeatureScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Rank returns the n most important features, highest first. Ties keep
// schema order. n <= 0 keeps every feature.
func Rank(names []string, importance []float64, n int) []FeatureScore {
	ranking := make([]FeatureScore, len(names))
	for i, name := range names {
		ranking[i] = FeatureScore{Name: name}
		if i < len(importance) {
			ranking[i].Score = importance[i]
		}
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Score > ranking[j].Score
	})
	if n > 0 && n < len(ranking) {
		ranking = ranking[:n]
	}
	return ranking
}

// Report is the evaluation of one model on a test set.
type Report struct {
	AUC     AUCResult      `json:"auc"`
	Ranking []FeatureScore `json:"ranking"`
}

// Evaluate scores m on test and ranks its top n features.
func Evaluate(ctx context.Context, m model.Model, test *dataset.Dataset, n int) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkSchema(m.Features(), test.Names); err != nil {
		return nil, err
	}

	probs := m.PresenceProb(test.X())
	return &Report{
		AUC:     AUC(test.Labels(), probs),
		Ranking: Rank(m.Features(), m.Importance(), n),
	}, nil
}

func checkSchema(want, got []string) error {
	if len(want) != len(got) {
		return fmt.Errorf("model has %d features, test set %d: %w", len(want), len(got), dataset.ErrSchemaMismatch)
	}
	for i := range want {
		if want[i] != got[i] {
			return fmt.Errorf("model feature %q, test set %q: %w", want[i], got[i], dataset.ErrSchemaMismatch)
		}
	}
	return nil
}
