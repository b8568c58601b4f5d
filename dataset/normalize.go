package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Stats holds the per-feature population mean and standard deviation the
// normalizer was fit with. The same Stats standardize the table and the
// raster bands so both live on one scale.
type Stats struct {
	Names []string  `json:"names"`
	Mean  []float64 `json:"mean"`
	Std   []float64 `json:"std"`
}

// FitStats computes per-feature statistics over every row of d.
func FitStats(d *Dataset) (*Stats, error) {
	if d.Len() == 0 {
		return nil, ErrNoData
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	s := &Stats{
		Names: append([]string(nil), d.Names...),
		Mean:  make([]float64, len(d.Names)),
		Std:   make([]float64, len(d.Names)),
	}
	for j := range d.Names {
		s.Mean[j], s.Std[j] = stat.PopMeanStdDev(d.Column(j), nil)
	}
	return s, nil
}

// Apply standardizes v as feature j. Zero variance features map to 0, NaN
// stays NaN.
func (s *Stats) Apply(j int, v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	if s.Std[j] == 0 {
		return 0
	}
	return (v - s.Mean[j]) / s.Std[j]
}

// Invert maps a standardized value of feature j back to raw units.
func (s *Stats) Invert(j int, z float64) float64 {
	return z*s.Std[j] + s.Mean[j]
}

// Index returns the position of name, or -1.
func (s *Stats) Index(name string) int {
	for j, n := range s.Names {
		if n == name {
			return j
		}
	}
	return -1
}

// Transform returns a standardized copy of d. Column names must match the
// fitted names.
func (s *Stats) Transform(d *Dataset) (*Dataset, error) {
	if len(d.Names) != len(s.Names) {
		return nil, fmt.Errorf("normalize %d features with stats for %d: %w",
			len(d.Names), len(s.Names), ErrSchemaMismatch)
	}
	for j := range d.Names {
		if d.Names[j] != s.Names[j] {
			return nil, fmt.Errorf("normalize feature %q with stats for %q: %w",
				d.Names[j], s.Names[j], ErrSchemaMismatch)
		}
	}

	out := &Dataset{Names: d.Names, Rows: make([]Observation, len(d.Rows))}
	for i, r := range d.Rows {
		x := make([]float64, len(r.Features))
		for j, v := range r.Features {
			x[j] = s.Apply(j, v)
		}
		r.Features = x
		out.Rows[i] = r
	}
	return out, nil
}

// Normalize fits statistics on all of d and returns the standardized copy
// along with them.
func Normalize(d *Dataset) (*Dataset, *Stats, error) {
	s, err := FitStats(d)
	if err != nil {
		return nil, nil, err
	}
	out, err := s.Transform(d)
	if err != nil {
		return nil, nil, err
	}
	return out, s, nil
}
