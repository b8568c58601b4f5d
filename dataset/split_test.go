package dataset

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 60 presence rows followed by 40 absence rows
func labelled(t *testing.T) *Dataset {
	t.Helper()
	X := make([][]float64, 100)
	y := make([]bool, 100)
	for i := range X {
		X[i] = []float64{float64(i)}
		y[i] = i < 60
	}
	d, err := New([]string{"Annual_mean_temp"}, X, y)
	require.NoError(t, err)
	return d
}

func TestSplitSizes(t *testing.T) {
	train, test, err := Split(labelled(t), 0.7, 42)
	require.NoError(t, err)

	assert.Equal(t, 70, train.Len())
	assert.Equal(t, 30, test.Len())
}

func TestSplitPartition(t *testing.T) {
	d := labelled(t)
	train, test, err := Split(d, 0.7, 42)
	require.NoError(t, err)

	all := append(train.Indices(), test.Indices()...)
	sort.Ints(all)
	if diff := cmp.Diff(d.Indices(), all); diff != "" {
		t.Errorf("rows not partitioned exactly once (-want +got):\n%s", diff)
	}
}

func TestSplitDeterministic(t *testing.T) {
	d := labelled(t)
	trainA, testA, err := Split(d, 0.7, 42)
	require.NoError(t, err)
	trainB, testB, err := Split(d, 0.7, 42)
	require.NoError(t, err)

	if diff := cmp.Diff(trainA.Indices(), trainB.Indices()); diff != "" {
		t.Errorf("train membership changed between runs (-a +b):\n%s", diff)
	}
	if diff := cmp.Diff(testA.Indices(), testB.Indices()); diff != "" {
		t.Errorf("test membership changed between runs (-a +b):\n%s", diff)
	}

	trainC, _, err := Split(d, 0.7, 7)
	require.NoError(t, err)
	assert.NotEqual(t, trainA.Indices(), trainC.Indices())
}

func TestSplitInvalid(t *testing.T) {
	d := labelled(t)
	for _, p := range []float64{0, 1, -0.5, 1.5} {
		_, _, err := Split(d, p, 1)
		assert.Error(t, err, "p=%v", p)
	}

	_, _, err := Split(&Dataset{Names: []string{"a"}}, 0.7, 1)
	assert.ErrorIs(t, err, ErrNoData)
}
