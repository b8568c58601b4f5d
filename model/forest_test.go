package model

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wlattner/sdm/dataset"
	"github.com/wlattner/sdm/tree"
)

func separable(t *testing.T, n int, seed int64) *dataset.Dataset {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]bool, n)
	for i := range X {
		X[i] = []float64{r.Float64(), r.Float64(), r.Float64()}
		y[i] = X[i][0]+X[i][1] > 1
	}
	d, err := dataset.New([]string{"a", "b", "noise"}, X, y)
	require.NoError(t, err)
	return d
}

func TestRandomForestTrain(t *testing.T) {
	d := separable(t, 300, 1)
	rf := RandomForest{Trees: 50, OOB: true, Workers: 2}

	m, err := rf.Train(context.Background(), d, 42)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "noise"}, m.Features())
	assert.Len(t, m.Importance(), 3)

	probs := m.PresenceProb(d.X())
	correct := 0
	for i, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
		if (p > 0.5) == d.Rows[i].Presence {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(len(probs)), 0.9)

	acc, ok := m.(*Forest).OOBAccuracy()
	assert.True(t, ok)
	assert.Greater(t, acc, 0.7)
}

func TestRandomForestDeterministic(t *testing.T) {
	d := separable(t, 200, 7)
	X := separable(t, 50, 8).X()

	a, err := RandomForest{Trees: 20, Workers: 1}.Train(context.Background(), d, 42)
	require.NoError(t, err)
	b, err := RandomForest{Trees: 20, Workers: 4}.Train(context.Background(), d, 42)
	require.NoError(t, err)

	assert.Equal(t, a.PresenceProb(X), b.PresenceProb(X))
	assert.Equal(t, a.Importance(), b.Importance())
}

func TestRandomForestSingleClass(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}}

	absent, err := dataset.New([]string{"a"}, X, []bool{false, false, false, false})
	require.NoError(t, err)
	m, err := RandomForest{Trees: 5}.Train(context.Background(), absent, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, m.PresenceProb(X))

	present, err := dataset.New([]string{"a"}, X, []bool{true, true, true, true})
	require.NoError(t, err)
	m, err = RandomForest{Trees: 5}.Train(context.Background(), present, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1, 1}, m.PresenceProb(X))
}

func TestRandomForestErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RandomForest{}.Train(ctx, separable(t, 10, 1), 1)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = RandomForest{}.Train(context.Background(), &dataset.Dataset{Names: []string{"a"}}, 1)
	assert.ErrorIs(t, err, dataset.ErrNoData)

	_, err = RandomForest{Impurity: "variance"}.Train(context.Background(), separable(t, 10, 1), 1)
	assert.Error(t, err)
}

func TestParseImpurity(t *testing.T) {
	for in, want := range map[string]tree.ImpurityMeasure{"": tree.Gini, "Gini": tree.Gini, "entropy": tree.Entropy} {
		got, err := ParseImpurity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestFunc(t *testing.T) {
	f := Func{Names: []string{"a"}, Fn: func(x []float64) float64 { return x[0] / 2 }}
	assert.Equal(t, []float64{0.5, 1}, f.PresenceProb([][]float64{{1}, {2}}))
}
