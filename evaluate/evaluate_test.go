package evaluate

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wlattner/sdm/dataset"
	"github.com/wlattner/sdm/model"
)

type fixed struct {
	model.Func
	imp []float64
}

func (f fixed) Importance() []float64 { return f.imp }

func TestAUC(t *testing.T) {
	tests := []struct {
		name   string
		labels []bool
		scores []float64
		want   float64
	}{
		{"perfect", []bool{false, false, true, true}, []float64{0.1, 0.2, 0.8, 0.9}, 1},
		{"inverted", []bool{true, true, false, false}, []float64{0.1, 0.2, 0.8, 0.9}, 0},
		{"ties", []bool{false, true, false, true}, []float64{0.5, 0.5, 0.5, 0.5}, 0.5},
		{"mixed", []bool{false, true, false, true}, []float64{0.1, 0.2, 0.3, 0.4}, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AUC(tt.labels, tt.scores)
			require.True(t, got.Computable)
			assert.InDelta(t, tt.want, got.Value, 1e-12)
		})
	}
}

func TestAUCSingleClass(t *testing.T) {
	labels := make([]bool, 10)
	scores := make([]float64, 10)
	for i := range scores {
		scores[i] = float64(i) / 10
	}
	got := AUC(labels, scores)
	assert.False(t, got.Computable)
	assert.Equal(t, "not computable", got.String())

	for i := range labels {
		labels[i] = true
	}
	assert.False(t, AUC(labels, scores).Computable)
}

func TestEvaluateAllAbsence(t *testing.T) {
	X := make([][]float64, 10)
	for i := range X {
		X[i] = []float64{float64(i)}
	}
	test, err := dataset.New([]string{"a"}, X, make([]bool, 10))
	require.NoError(t, err)

	m := fixed{
		Func: model.Func{Names: []string{"a"}, Fn: func(x []float64) float64 { return x[0] / 10 }},
		imp:  []float64{1},
	}
	r, err := Evaluate(context.Background(), m, test, 5)
	require.NoError(t, err)
	assert.False(t, r.AUC.Computable)
	assert.Equal(t, []FeatureScore{{"a", 1}}, r.Ranking)
}

func TestEvaluateSchemaMismatch(t *testing.T) {
	test, err := dataset.New([]string{"b"}, [][]float64{{1}}, []bool{true})
	require.NoError(t, err)
	m := fixed{Func: model.Func{Names: []string{"a"}}}

	_, err = Evaluate(context.Background(), m, test, 5)
	assert.ErrorIs(t, err, dataset.ErrSchemaMismatch)
}

func TestRank(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e", "f", "g"}
	imp := []float64{0.05, 0.3, 0.1, 0.3, 0.05, 0.15, 0.05}

	got := Rank(names, imp, 5)
	want := []FeatureScore{{"b", 0.3}, {"d", 0.3}, {"f", 0.15}, {"c", 0.1}, {"a", 0.05}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rank() mismatch (-want +got):\n%s", diff)
	}

	assert.Len(t, Rank(names, imp, 0), len(names))
	assert.Len(t, Rank(names, imp, 10), len(names))
}
