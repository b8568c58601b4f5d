package explain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/wlattner/sdm/dataset"
	"github.com/wlattner/sdm/model"
)

// FeatureWeight is one surrogate coefficient. Weight is the change in
// presence probability per background standard deviation of the feature.
type FeatureWeight struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Value  float64 `json:"value"`
}

// Explanation is a local linear surrogate fitted around one instance.
type Explanation struct {
	Row       int             `json:"row"`
	Coord     *dataset.Coord  `json:"coord,omitempty"`
	Prob      float64         `json:"prob"`
	LocalPred float64         `json:"local_pred"`
	Intercept float64         `json:"intercept"`
	Score     float64         `json:"score"`
	Weights   []FeatureWeight `json:"weights"`
}

// Lime explains single predictions with a proximity weighted ridge
// regression fitted on perturbed copies of the instance.
type Lime struct {
	Samples     int     // perturbed samples, 5000 when unset
	KernelWidth float64 // 0.75*sqrt(features) when unset
	Ridge       float64 // L2 penalty, 1 when unset
	TopK        int     // weights reported, 5 when unset; negative keeps all
}

func (l Lime) withDefaults(p int) Lime {
	if l.Samples < 1 {
		l.Samples = 5000
	}
	if l.KernelWidth <= 0 {
		l.KernelWidth = 0.75 * math.Sqrt(float64(p))
	}
	if l.Ridge <= 0 {
		l.Ridge = 1
	}
	if l.TopK == 0 {
		l.TopK = 5
	}
	return l
}

// Explain fits the surrogate around instance. Perturbations are drawn from
// a normal distribution scaled by each feature's spread in background.
func (l Lime) Explain(ctx context.Context, m model.Predictor, background *dataset.Dataset, instance dataset.Observation, seed int64) (*Explanation, error) {
	names := m.Features()
	if err := checkSchema(names, background.Names); err != nil {
		return nil, err
	}
	if len(instance.Features) != len(names) {
		return nil, fmt.Errorf("instance has %d features, model %d: %w",
			len(instance.Features), len(names), dataset.ErrSchemaMismatch)
	}
	if background.Len() == 0 {
		return nil, dataset.ErrNoData
	}

	p := len(names)
	l = l.withDefaults(p)

	mean := make([]float64, p)
	scale := make([]float64, p)
	for j := range names {
		mean[j], scale[j] = stat.PopMeanStdDev(background.Column(j), nil)
	}

	r := rand.New(rand.NewSource(seed))
	x := instance.Features

	// Z holds the raw samples, U the same samples scaled by the background
	// statistics. The first sample is the instance itself.
	Z := make([][]float64, l.Samples)
	U := mat.NewDense(l.Samples, p, nil)
	w := make([]float64, l.Samples)
	for i := range Z {
		z := make([]float64, p)
		var d2 float64
		for j := range z {
			eps := 0.0
			if i > 0 {
				eps = r.NormFloat64()
			}
			z[j] = x[j] + eps*scale[j]
			if scale[j] > 0 {
				d2 += eps * eps
				U.Set(i, j, (z[j]-mean[j])/scale[j])
			}
		}
		Z[i] = z
		w[i] = math.Sqrt(math.Exp(-d2 / (l.KernelWidth * l.KernelWidth)))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	y := m.PresenceProb(Z)

	beta, intercept, err := weightedRidge(U, y, w, l.Ridge)
	if err != nil {
		return nil, err
	}

	fitted := make([]float64, l.Samples)
	for i := range fitted {
		fitted[i] = intercept + floats.Dot(U.RawRowView(i), beta)
	}

	e := &Explanation{
		Row:       instance.Index,
		Coord:     instance.Coord,
		Prob:      y[0],
		LocalPred: fitted[0],
		Intercept: intercept,
		Score:     rsquared(fitted, y, w),
		Weights:   make([]FeatureWeight, p),
	}
	for j, name := range names {
		e.Weights[j] = FeatureWeight{Name: name, Weight: beta[j], Value: x[j]}
	}
	sort.SliceStable(e.Weights, func(a, b int) bool {
		return math.Abs(e.Weights[a].Weight) > math.Abs(e.Weights[b].Weight)
	})
	if l.TopK > 0 && l.TopK < p {
		e.Weights = e.Weights[:l.TopK]
	}

	return e, nil
}

// weightedRidge minimises sum_i w_i (y_i - b - u_i.beta)^2 + alpha |beta|^2
// with an unpenalized intercept b.
func weightedRidge(U *mat.Dense, y, w []float64, alpha float64) ([]float64, float64, error) {
	n, p := U.Dims()
	sw := floats.Sum(w)
	if sw == 0 {
		return nil, 0, errors.New("ridge: all sample weights are zero")
	}

	uBar := make([]float64, p)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			uBar[j] += w[i] * U.At(i, j)
		}
		uBar[j] /= sw
	}
	yBar := floats.Dot(w, y) / sw

	// rows scaled by sqrt(w) after weighted centering
	A := mat.NewDense(n, p, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		s := math.Sqrt(w[i])
		for j := 0; j < p; j++ {
			A.Set(i, j, s*(U.At(i, j)-uBar[j]))
		}
		b.SetVec(i, s*(y[i]-yBar))
	}

	var gram mat.Dense
	gram.Mul(A.T(), A)
	for j := 0; j < p; j++ {
		gram.Set(j, j, gram.At(j, j)+alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(A.T(), b)

	var beta mat.VecDense
	if err := beta.SolveVec(&gram, &rhs); err != nil {
		return nil, 0, fmt.Errorf("ridge: %w", err)
	}

	coef := make([]float64, p)
	for j := range coef {
		coef[j] = beta.AtVec(j)
	}
	return coef, yBar - floats.Dot(coef, uBar), nil
}

// rsquared is the weighted coefficient of determination; a constant target
// that is fitted exactly scores 1.
func rsquared(fitted, y, w []float64) float64 {
	r2 := stat.RSquaredFrom(fitted, y, w)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		for i := range y {
			if math.Abs(fitted[i]-y[i]) > 1e-12 {
				return 0
			}
		}
		return 1
	}
	return r2
}
