package dataset

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var occurrenceCSV = `"label","x","y","bio1","bio4","bio12"
1,-60.5,-3.1,26.1,45.2,2300
presence,-61.0,-2.9,25.8,50.1,2250
0,-70.2,5.4,18.3,120.4,900
background,-72.0,6.1,NA,130.0,850
absence,-55.1,-10.2,24.4,80.3,1500
`

func TestReadCSV(t *testing.T) {
	d, dropped, err := ReadCSV(strings.NewReader(occurrenceCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"bio1", "bio4", "bio12"}, d.Names)
	assert.Equal(t, 1, dropped)
	require.Equal(t, 4, d.Len())

	assert.True(t, d.Rows[0].Presence)
	assert.True(t, d.Rows[1].Presence)
	assert.False(t, d.Rows[2].Presence)
	assert.False(t, d.Rows[3].Presence)

	require.NotNil(t, d.Rows[3].Coord)
	assert.Equal(t, Coord{X: -55.1, Y: -10.2}, *d.Rows[3].Coord)
	assert.Equal(t, []float64{24.4, 80.3, 1500}, d.Rows[3].Features)

	// indices are dense after dropping
	assert.Equal(t, []int{0, 1, 2, 3}, d.Indices())

	p, a := d.Counts()
	assert.Equal(t, 2, p)
	assert.Equal(t, 2, a)
}

func TestReadCSVNoHeader(t *testing.T) {
	d, _, err := ReadCSV(strings.NewReader("1,0.5,2\n0,0.1,3\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"X1", "X2"}, d.Names)
	require.Equal(t, 2, d.Len())
	assert.Nil(t, d.Rows[0].Coord)
	assert.Equal(t, []float64{0.5, 2}, d.Rows[0].Features)
}

func TestReadCSVBadLabel(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader("label,bio1\nmaybe,3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadCSVBadValue(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader("label,bio1\n1,warm\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bio1"`)
}

func TestReadCSVInfinite(t *testing.T) {
	d, dropped, err := ReadCSV(strings.NewReader("label,bio1,bio12\n1,Inf,800\n0,12.5,-inf\n1,20.1,900\n"))
	require.NoError(t, err)

	assert.Equal(t, 2, dropped)
	require.Equal(t, 1, d.Len())
	assert.Equal(t, []float64{20.1, 900}, d.Rows[0].Features)

	stats, err := FitStats(d)
	require.NoError(t, err)
	for j := range stats.Names {
		assert.False(t, math.IsInf(stats.Mean[j], 0) || math.IsNaN(stats.Mean[j]))
	}
}
