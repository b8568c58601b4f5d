// Package explain computes model explanations: accumulated local effect
// curves, local linear surrogates around single instances and a shallow
// global surrogate tree.
package explain

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/wlattner/sdm/dataset"
	"github.com/wlattner/sdm/model"
)

// ALEPoint is the centred accumulated effect at one interval boundary.
// Value is on the standardized scale, Raw in the feature's original units.
type ALEPoint struct {
	Value  float64 `json:"value"`
	Raw    float64 `json:"raw"`
	Effect float64 `json:"effect"`
}

// ALECurve is the accumulated local effect of one feature. Counts[k] is
// the number of training rows in the interval between Points[k] and
// Points[k+1].
type ALECurve struct {
	Feature string     `json:"feature"`
	Points  []ALEPoint `json:"points"`
	Counts  []int      `json:"counts"`
}

// Mean is the training weighted mean effect, zero for a centred curve.
func (c *ALECurve) Mean() float64 {
	var sum float64
	var n int
	for k, ct := range c.Counts {
		sum += float64(ct) * (c.Points[k].Effect + c.Points[k+1].Effect) / 2
		n += ct
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// SetRaw fills the raw value of every point from the statistics the
// feature was standardized with.
func (c *ALECurve) SetRaw(s *dataset.Stats) {
	j := s.Index(c.Feature)
	if j < 0 {
		return
	}
	for k := range c.Points {
		c.Points[k].Raw = s.Invert(j, c.Points[k].Value)
	}
}

// ALE estimates accumulated local effects over quantile intervals.
type ALE struct {
	Bins int // number of quantile intervals, 10 when unset
}

// Effect computes the centred ALE curve of feature over the rows of train.
func (a ALE) Effect(ctx context.Context, m model.Predictor, train *dataset.Dataset, feature string) (*ALECurve, error) {
	if err := checkSchema(m.Features(), train.Names); err != nil {
		return nil, err
	}
	j := train.Feature(feature)
	if j < 0 {
		return nil, fmt.Errorf("ale: unknown feature %q: %w", feature, dataset.ErrSchemaMismatch)
	}
	if train.Len() == 0 {
		return nil, dataset.ErrNoData
	}
	bins := a.Bins
	if bins < 1 {
		bins = 10
	}

	col := train.Column(j)
	edges := quantileEdges(col, bins)
	curve := &ALECurve{Feature: feature}

	if len(edges) < 2 {
		// constant feature, no interval to cross
		curve.Points = []ALEPoint{{Value: edges[0], Raw: edges[0]}}
		return curve, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := train.Len()
	lower := make([][]float64, n)
	upper := make([][]float64, n)
	interval := make([]int, n)
	for i, r := range train.Rows {
		k := intervalOf(edges, r.Features[j])
		interval[i] = k

		lower[i] = append([]float64(nil), r.Features...)
		lower[i][j] = edges[k-1]
		upper[i] = append([]float64(nil), r.Features...)
		upper[i][j] = edges[k]
	}

	lo := m.PresenceProb(lower)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hi := m.PresenceProb(upper)

	K := len(edges) - 1
	diff := make([]float64, K+1)
	curve.Counts = make([]int, K)
	for i, k := range interval {
		diff[k] += hi[i] - lo[i]
		curve.Counts[k-1]++
	}

	ale := make([]float64, K+1)
	for k := 1; k <= K; k++ {
		if ct := curve.Counts[k-1]; ct > 0 {
			ale[k] = ale[k-1] + diff[k]/float64(ct)
		} else {
			ale[k] = ale[k-1]
		}
	}

	var centre float64
	for k := 1; k <= K; k++ {
		centre += float64(curve.Counts[k-1]) * (ale[k-1] + ale[k]) / 2
	}
	centre /= float64(n)

	curve.Points = make([]ALEPoint, K+1)
	for k := range edges {
		curve.Points[k] = ALEPoint{Value: edges[k], Raw: edges[k], Effect: ale[k] - centre}
	}
	return curve, nil
}

// quantileEdges returns the distinct empirical quantiles of x at k/bins.
func quantileEdges(x []float64, bins int) []float64 {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)

	edges := []float64{sorted[0]}
	for k := 1; k <= bins; k++ {
		q := stat.Quantile(float64(k)/float64(bins), stat.Empirical, sorted, nil)
		if k == bins {
			q = sorted[len(sorted)-1]
		}
		if q > edges[len(edges)-1] {
			edges = append(edges, q)
		}
	}
	return edges
}

// intervalOf returns k such that edges[k-1] < v <= edges[k]; the first
// interval also holds edges[0].
func intervalOf(edges []float64, v float64) int {
	k := sort.SearchFloat64s(edges, v)
	if k == 0 {
		return 1
	}
	if k >= len(edges) {
		return len(edges) - 1
	}
	return k
}

func checkSchema(want, got []string) error {
	if len(want) != len(got) {
		return fmt.Errorf("model has %d features, data %d: %w", len(want), len(got), dataset.ErrSchemaMismatch)
	}
	for i := range want {
		if want[i] != got[i] {
			return fmt.Errorf("model feature %q, data %q: %w", want[i], got[i], dataset.ErrSchemaMismatch)
		}
	}
	return nil
}
