package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wlattner/sdm/dataset"
)

const occurrences = `label,x,y,bio1,bio12
1,0.5,1.5,20.1,800
1,1.5,1.5,21.3,820
presence,0.5,0.5,19.8,NA
0,1.5,0.5,15.0,400
background,0.5,0.5,14.2,380
1,1.5,0.5,22.0,900
`

const band = `ncols 2
nrows 2
xllcorner 0
yllcorner 0
cellsize 1
NODATA_value -9999
1 2
3 -9999
`

func fixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	species := filepath.Join(root, "quercus_robur")
	climate := filepath.Join(root, "climate", "10m")
	require.NoError(t, os.MkdirAll(species, 0o755))
	require.NoError(t, os.MkdirAll(climate, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(species, "occurrences.csv"), []byte(occurrences), 0o644))
	for _, name := range []string{"bio1", "bio12"} {
		require.NoError(t, os.WriteFile(filepath.Join(climate, name+".asc"), []byte(band), 0o644))
	}
	return root
}

func TestSlug(t *testing.T) {
	for in, want := range map[string]string{
		"Quercus robur":       "quercus_robur",
		"  Fagus  sylvatica ": "fagus_sylvatica",
		"Abies alba (Mill.)":  "abies_alba_mill",
		"Pinus-cembra":        "pinus_cembra",
		"Larix decidua 2":     "larix_decidua_2",
	} {
		assert.Equal(t, want, Slug(in), in)
	}
}

func TestFilesFetch(t *testing.T) {
	p := NewFiles(fixture(t), 1, nil)

	res, err := p.Fetch(context.Background(), Request{Species: "Quercus robur"})
	require.NoError(t, err)

	assert.Equal(t, []string{"bio1", "bio12"}, res.Data.Names)
	assert.Equal(t, 5, res.Data.Len())
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, []string{"bio1", "bio12"}, res.Stack.Names)
	assert.Equal(t, 4, res.Stack.Cells())
	assert.Equal(t, []dataset.Coord{{X: 0.5, Y: 1.5}, {X: 1.5, Y: 1.5}, {X: 1.5, Y: 0.5}}, res.Presence)
	assert.Equal(t, []dataset.Coord{{X: 1.5, Y: 0.5}, {X: 0.5, Y: 0.5}}, res.Background)
}

func TestFilesFetchMaxRecords(t *testing.T) {
	p := NewFiles(fixture(t), 1, nil)

	res, err := p.Fetch(context.Background(), Request{Species: "Quercus robur", MaxRecords: 2, Resolution: "10m"})
	require.NoError(t, err)

	presence, absence := res.Data.Counts()
	assert.Equal(t, 2, presence)
	assert.Equal(t, 2, absence)
	for i, r := range res.Data.Rows {
		assert.Equal(t, i, r.Index)
	}
}

func TestFilesFetchErrors(t *testing.T) {
	root := fixture(t)

	_, err := NewFiles(root, 1, nil).Fetch(context.Background(), Request{Species: "Fagus sylvatica"})
	assert.ErrorIs(t, err, dataset.ErrNoData)

	_, err = NewFiles(root, 10, nil).Fetch(context.Background(), Request{Species: "Quercus robur"})
	assert.ErrorIs(t, err, dataset.ErrNoData)

	_, err = NewFiles(root, 1, nil).Fetch(context.Background(), Request{Species: "Quercus robur", Resolution: "5m"})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewFiles(root, 1, nil).Fetch(ctx, Request{Species: "Quercus robur"})
	assert.ErrorIs(t, err, context.Canceled)
}
