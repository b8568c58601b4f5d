// Package dataset holds labelled presence/absence observations, the feature
// dictionary used to name them, the normalizer and the train/test splitter.
package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData is returned when a species has no usable records.
	ErrNoData = errors.New("no usable records")
	// ErrSchemaMismatch is returned when feature names do not line up with
	// the dictionary, a raster or a fitted model.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrInsufficientPositives is returned when a sample of presence rows
	// cannot be drawn.
	ErrInsufficientPositives = errors.New("insufficient positive examples")
)

// Coord is a geographic location in the raster's coordinate system.
type Coord struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Observation is one labelled row. Index is the row's position in the
// dataset it was read from and survives splitting and subsetting.
type Observation struct {
	Index    int
	Features []float64
	Presence bool
	Coord    *Coord
}

// Dataset is an ordered collection of observations sharing one feature schema.
type Dataset struct {
	Names []string
	Rows  []Observation
}

// New builds a dataset from a feature matrix and labels, numbering rows in
// order.
func New(names []string, X [][]float64, presence []bool) (*Dataset, error) {
	if len(X) != len(presence) {
		return nil, fmt.Errorf("%d rows but %d labels: %w", len(X), len(presence), ErrSchemaMismatch)
	}
	d := &Dataset{Names: names, Rows: make([]Observation, len(X))}
	for i := range X {
		d.Rows[i] = Observation{Index: i, Features: X[i], Presence: presence[i]}
	}
	return d, d.Validate()
}

func (d *Dataset) Len() int { return len(d.Rows) }

// Validate checks that every row carries one value per feature name.
func (d *Dataset) Validate() error {
	for i, r := range d.Rows {
		if len(r.Features) != len(d.Names) {
			return fmt.Errorf("row %d has %d features, want %d: %w",
				i, len(r.Features), len(d.Names), ErrSchemaMismatch)
		}
	}
	return nil
}

// X returns the feature matrix. Rows share memory with the dataset.
func (d *Dataset) X() [][]float64 {
	X := make([][]float64, len(d.Rows))
	for i := range d.Rows {
		X[i] = d.Rows[i].Features
	}
	return X
}

// Labels returns the presence flag of every row.
func (d *Dataset) Labels() []bool {
	y := make([]bool, len(d.Rows))
	for i := range d.Rows {
		y[i] = d.Rows[i].Presence
	}
	return y
}

// Column copies feature j of every row.
func (d *Dataset) Column(j int) []float64 {
	col := make([]float64, len(d.Rows))
	for i := range d.Rows {
		col[i] = d.Rows[i].Features[j]
	}
	return col
}

// Feature returns the column index of name, or -1.
func (d *Dataset) Feature(name string) int {
	for j, n := range d.Names {
		if n == name {
			return j
		}
	}
	return -1
}

// Positives returns the positions (not Index values) of presence rows.
func (d *Dataset) Positives() []int {
	var pos []int
	for i := range d.Rows {
		if d.Rows[i].Presence {
			pos = append(pos, i)
		}
	}
	return pos
}

// Counts returns the number of presence and absence rows.
func (d *Dataset) Counts() (presence, absence int) {
	for i := range d.Rows {
		if d.Rows[i].Presence {
			presence++
		} else {
			absence++
		}
	}
	return presence, absence
}

// Subset returns the rows at positions idx, in that order. Observations
// are shared, not copied.
func (d *Dataset) Subset(idx []int) *Dataset {
	s := &Dataset{Names: d.Names, Rows: make([]Observation, len(idx))}
	for i, id := range idx {
		s.Rows[i] = d.Rows[id]
	}
	return s
}

// Indices returns the Index of every row.
func (d *Dataset) Indices() []int {
	idx := make([]int, len(d.Rows))
	for i := range d.Rows {
		idx[i] = d.Rows[i].Index
	}
	return idx
}
