// Package raster holds co-registered climate grids and the spatial
// predictor that turns them into a habitat suitability surface.
package raster

import (
	"errors"
	"fmt"
	"math"

	"github.com/wlattner/sdm/dataset"
)

// ErrExtentMismatch is returned when grids that must be co-registered are not.
var ErrExtentMismatch = errors.New("raster extent mismatch")

// Extent is the shape and placement of a grid. XLL and YLL locate the lower
// left corner of the lower left cell; rows are stored top to bottom.
type Extent struct {
	Cols     int     `json:"cols"`
	Rows     int     `json:"rows"`
	XLL      float64 `json:"xll"`
	YLL      float64 `json:"yll"`
	CellSize float64 `json:"cell_size"`
}

// Cells is the number of cells covered.
func (e Extent) Cells() int { return e.Cols * e.Rows }

// Cell returns the column and row containing (x, y), ok is false outside
// the extent.
func (e Extent) Cell(x, y float64) (col, row int, ok bool) {
	c := int(math.Floor((x - e.XLL) / e.CellSize))
	r := e.Rows - 1 - int(math.Floor((y-e.YLL)/e.CellSize))
	if c < 0 || c >= e.Cols || r < 0 || r >= e.Rows {
		return 0, 0, false
	}
	return c, r, true
}

// Center returns the coordinate at the middle of a cell.
func (e Extent) Center(col, row int) (x, y float64) {
	x = e.XLL + (float64(col)+0.5)*e.CellSize
	y = e.YLL + (float64(e.Rows-1-row)+0.5)*e.CellSize
	return x, y
}

// Grid is a single surface; missing cells are NaN.
type Grid struct {
	Extent
	Data []float64
}

// NewGrid returns a grid with every cell missing.
func NewGrid(e Extent) *Grid {
	g := &Grid{Extent: e, Data: make([]float64, e.Cells())}
	for i := range g.Data {
		g.Data[i] = math.NaN()
	}
	return g
}

// At returns the value of a cell.
func (g *Grid) At(col, row int) float64 { return g.Data[row*g.Cols+col] }

// Missing counts NaN cells.
func (g *Grid) Missing() int {
	n := 0
	for _, v := range g.Data {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Stack is a set of named bands over one extent.
type Stack struct {
	Extent
	Names []string
	Bands [][]float64
}

// NewStack returns an empty stack over e.
func NewStack(e Extent) *Stack {
	return &Stack{Extent: e}
}

// Add appends a band. Its extent must match the stack's.
func (s *Stack) Add(name string, g *Grid) error {
	if g.Extent != s.Extent {
		return fmt.Errorf("band %q: %w", name, ErrExtentMismatch)
	}
	if len(g.Data) != s.Cells() {
		return fmt.Errorf("band %q has %d cells, want %d: %w", name, len(g.Data), s.Cells(), ErrExtentMismatch)
	}
	if s.Band(name) >= 0 {
		return fmt.Errorf("duplicate band %q", name)
	}
	s.Names = append(s.Names, name)
	s.Bands = append(s.Bands, g.Data)
	return nil
}

// Band returns the position of the named band, or -1.
func (s *Stack) Band(name string) int {
	for i, n := range s.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Rename maps band names through the feature dictionary.
func (s *Stack) Rename(dict *dataset.Dictionary) error {
	names, err := dict.Rename(s.Names)
	if err != nil {
		return err
	}
	s.Names = names
	return nil
}

// Normalize standardizes, in place, every band named in stats with the
// same statistics used for the tabular data. A feature in stats without a
// band is a schema mismatch; bands stats does not mention are left as is.
func (s *Stack) Normalize(stats *dataset.Stats) error {
	for j, name := range stats.Names {
		b := s.Band(name)
		if b < 0 {
			return fmt.Errorf("no band for feature %q: %w", name, dataset.ErrSchemaMismatch)
		}
		band := s.Bands[b]
		for i, v := range band {
			band[i] = stats.Apply(j, v)
		}
	}
	return nil
}
