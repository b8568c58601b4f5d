package explain

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wlattner/sdm/dataset"
	"github.com/wlattner/sdm/model"
)

func uniform(t *testing.T, n, p int, seed int64, label func(x []float64) bool) *dataset.Dataset {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	names := []string{"a", "b", "c", "d", "e"}[:p]
	X := make([][]float64, n)
	y := make([]bool, n)
	for i := range X {
		X[i] = make([]float64, p)
		for j := range X[i] {
			X[i][j] = r.Float64()
		}
		if label != nil {
			y[i] = label(X[i])
		}
	}
	d, err := dataset.New(names, X, y)
	require.NoError(t, err)
	return d
}

func linear(names []string, b float64, coef ...float64) model.Func {
	return model.Func{Names: names, Fn: func(x []float64) float64 {
		v := b
		for j, c := range coef {
			v += c * x[j]
		}
		return v
	}}
}

func TestALELinear(t *testing.T) {
	train := uniform(t, 300, 2, 1, nil)
	m := linear(train.Names, 0.1, 0.3, 0)

	curve, err := ALE{Bins: 8}.Effect(context.Background(), m, train, "a")
	require.NoError(t, err)

	assert.Equal(t, "a", curve.Feature)
	require.Len(t, curve.Points, 9)
	require.Len(t, curve.Counts, 8)
	assert.InDelta(t, 0, curve.Mean(), 1e-12)

	total := 0
	for _, c := range curve.Counts {
		total += c
	}
	assert.Equal(t, 300, total)

	for k := 1; k < len(curve.Points); k++ {
		lo, hi := curve.Points[k-1], curve.Points[k]
		assert.Less(t, lo.Value, hi.Value)
		assert.InDelta(t, 0.3*(hi.Value-lo.Value), hi.Effect-lo.Effect, 1e-12)
	}

	flat, err := ALE{Bins: 8}.Effect(context.Background(), m, train, "b")
	require.NoError(t, err)
	for _, p := range flat.Points {
		assert.InDelta(t, 0, p.Effect, 1e-12)
	}
}

func TestALEInteraction(t *testing.T) {
	train := uniform(t, 400, 3, 2, nil)
	m := model.Func{Names: train.Names, Fn: func(x []float64) float64 {
		return x[0] * x[1]
	}}

	curve, err := ALE{}.Effect(context.Background(), m, train, "a")
	require.NoError(t, err)
	assert.Len(t, curve.Points, 11)
	assert.InDelta(t, 0, curve.Mean(), 1e-12)
	assert.Greater(t, curve.Points[10].Effect, curve.Points[0].Effect)
}

func TestALERaw(t *testing.T) {
	train := uniform(t, 50, 2, 3, nil)
	stats := &dataset.Stats{Names: train.Names, Mean: []float64{10, 0}, Std: []float64{2, 1}}

	curve, err := ALE{Bins: 4}.Effect(context.Background(), linear(train.Names, 0, 1), train, "a")
	require.NoError(t, err)
	for _, p := range curve.Points {
		assert.Equal(t, p.Value, p.Raw)
	}

	curve.SetRaw(stats)
	for _, p := range curve.Points {
		assert.InDelta(t, 2*p.Value+10, p.Raw, 1e-12)
	}
}

func TestALEConstantFeature(t *testing.T) {
	d, err := dataset.New([]string{"a"}, [][]float64{{0}, {0}, {0}}, []bool{true, false, true})
	require.NoError(t, err)

	curve, err := ALE{}.Effect(context.Background(), linear(d.Names, 0, 1), d, "a")
	require.NoError(t, err)
	assert.Equal(t, []ALEPoint{{Value: 0, Raw: 0, Effect: 0}}, curve.Points)
	assert.Equal(t, 0.0, curve.Mean())
}

func TestALEErrors(t *testing.T) {
	train := uniform(t, 10, 2, 4, nil)
	_, err := ALE{}.Effect(context.Background(), linear(train.Names, 0), train, "z")
	assert.ErrorIs(t, err, dataset.ErrSchemaMismatch)

	_, err = ALE{}.Effect(context.Background(), linear([]string{"b", "a"}, 0), train, "a")
	assert.ErrorIs(t, err, dataset.ErrSchemaMismatch)
}

func TestIntervalOf(t *testing.T) {
	edges := []float64{0, 1, 2, 3}
	for v, want := range map[float64]int{0: 1, 0.5: 1, 1: 1, 1.5: 2, 2: 2, 3: 3} {
		assert.Equal(t, want, intervalOf(edges, v), "v=%v", v)
	}
}

func TestLimeLinear(t *testing.T) {
	bg := uniform(t, 500, 3, 5, nil)
	m := linear(bg.Names, 0.5, 0.1, -0.2, 0)
	inst := dataset.Observation{Index: 7, Features: []float64{0.4, 0.6, 0.5}, Coord: &dataset.Coord{X: 1, Y: 2}}

	l := Lime{Samples: 2000, TopK: 2}
	e, err := l.Explain(context.Background(), m, bg, inst, 42)
	require.NoError(t, err)

	_, s0 := meanStd(bg.Column(0))
	_, s1 := meanStd(bg.Column(1))

	assert.Equal(t, 7, e.Row)
	assert.Equal(t, inst.Coord, e.Coord)
	assert.InDelta(t, 0.5+0.04-0.12, e.Prob, 1e-12)
	assert.InDelta(t, e.Prob, e.LocalPred, 1e-3)
	assert.Greater(t, e.Score, 0.99)

	require.Len(t, e.Weights, 2)
	assert.Equal(t, "b", e.Weights[0].Name)
	assert.Equal(t, 0.6, e.Weights[0].Value)
	assert.InEpsilon(t, -0.2*s1, e.Weights[0].Weight, 0.02)
	assert.Equal(t, "a", e.Weights[1].Name)
	assert.InEpsilon(t, 0.1*s0, e.Weights[1].Weight, 0.02)

	again, err := l.Explain(context.Background(), m, bg, inst, 42)
	require.NoError(t, err)
	assert.Equal(t, e, again)
}

func TestLimeDefaults(t *testing.T) {
	l := Lime{}.withDefaults(4)
	assert.Equal(t, 5000, l.Samples)
	assert.Equal(t, 1.5, l.KernelWidth)
	assert.Equal(t, 1.0, l.Ridge)
	assert.Equal(t, 5, l.TopK)
}

func TestLimeConstantModel(t *testing.T) {
	bg := uniform(t, 100, 2, 6, nil)
	m := linear(bg.Names, 1)
	e, err := Lime{Samples: 200}.Explain(context.Background(), m, bg, bg.Rows[0], 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, e.Score)
	for _, w := range e.Weights {
		assert.InDelta(t, 0, w.Weight, 1e-12)
	}
}

func TestLimeSchemaMismatch(t *testing.T) {
	bg := uniform(t, 10, 2, 7, nil)
	_, err := Lime{}.Explain(context.Background(), linear(bg.Names, 0), bg, dataset.Observation{Features: []float64{1}}, 1)
	assert.ErrorIs(t, err, dataset.ErrSchemaMismatch)
}

func meanStd(x []float64) (float64, float64) {
	var m float64
	for _, v := range x {
		m += v
	}
	m /= float64(len(x))
	var ss float64
	for _, v := range x {
		ss += (v - m) * (v - m)
	}
	return m, math.Sqrt(ss / float64(len(x)))
}

func labelled(t *testing.T, presence ...bool) *dataset.Dataset {
	t.Helper()
	X := make([][]float64, len(presence))
	for i := range X {
		X[i] = []float64{float64(i)}
	}
	d, err := dataset.New([]string{"a"}, X, presence)
	require.NoError(t, err)
	return d
}

func TestSampleInstances(t *testing.T) {
	test := labelled(t, true, false, true, true, false, true, true)

	got, err := SampleInstances(test, 3, Never, 42)
	require.NoError(t, err)
	require.Len(t, got, 3)
	seen := map[int]bool{}
	for _, o := range got {
		assert.True(t, o.Presence)
		assert.False(t, seen[o.Index], "row %d drawn twice", o.Index)
		seen[o.Index] = true
	}

	again, err := SampleInstances(test, 3, Never, 42)
	require.NoError(t, err)
	assert.Equal(t, got, again)

	always, err := SampleInstances(test, 3, Always, 42)
	require.NoError(t, err)
	for _, o := range always {
		assert.True(t, o.Presence)
	}
}

func TestSampleInstancesFewPositives(t *testing.T) {
	test := labelled(t, false, true, false, true)

	_, err := SampleInstances(test, 3, Never, 1)
	assert.ErrorIs(t, err, dataset.ErrInsufficientPositives)

	got, err := SampleInstances(test, 3, Auto, 1)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, o := range got {
		assert.True(t, o.Presence)
	}
}

func TestSampleInstancesNoPositives(t *testing.T) {
	test := labelled(t, false, false, false)
	for _, p := range []ReplacePolicy{Never, Always, Auto} {
		_, err := SampleInstances(test, 3, p, 1)
		assert.ErrorIs(t, err, dataset.ErrInsufficientPositives, string(p))
	}
}

func TestParseReplacePolicy(t *testing.T) {
	p, err := ParseReplacePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Auto, p)

	p, err = ParseReplacePolicy("always")
	require.NoError(t, err)
	assert.Equal(t, Always, p)

	_, err = ParseReplacePolicy("sometimes")
	assert.Error(t, err)
}

func TestGlobalSurrogate(t *testing.T) {
	train := uniform(t, 200, 3, 8, nil)
	m := model.Func{Names: train.Names, Fn: func(x []float64) float64 {
		if x[1] > 0.5 {
			return 0.9
		}
		return 0.1
	}}

	s, err := GlobalSurrogate(context.Background(), m, train, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Depth)
	assert.LessOrEqual(t, s.Leaves, 4)
	assert.InDelta(t, 1, s.Fidelity, 1e-9)
	require.Len(t, s.Ranking, 3)
	assert.Equal(t, "b", s.Ranking[0].Name)
	assert.InDelta(t, 1, s.Ranking[0].Score, 1e-9)
}
