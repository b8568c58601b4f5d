package explain

import (
	"context"

	"github.com/wlattner/sdm/dataset"
	"github.com/wlattner/sdm/evaluate"
	"github.com/wlattner/sdm/model"
	"github.com/wlattner/sdm/tree"
)

// Surrogate is a shallow regression tree mimicking a model's presence
// probabilities. Fidelity is the R² of the tree against the model.
type Surrogate struct {
	Depth    int                     `json:"depth"`
	Leaves   int                     `json:"leaves"`
	Fidelity float64                 `json:"fidelity"`
	Ranking  []evaluate.FeatureScore `json:"ranking"`
	Tree     *tree.Regressor         `json:"-"`
}

// GlobalSurrogate fits a regression tree of at most depth levels to the
// model's presence probabilities on train.
func GlobalSurrogate(ctx context.Context, m model.Predictor, train *dataset.Dataset, depth int, seed int64) (*Surrogate, error) {
	if err := checkSchema(m.Features(), train.Names); err != nil {
		return nil, err
	}
	if train.Len() == 0 {
		return nil, dataset.ErrNoData
	}
	if depth < 1 {
		depth = 3
	}

	X := train.X()
	y := m.PresenceProb(X)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reg := tree.NewRegressor(tree.MaxDepth(depth), tree.MinLeaf(5), tree.RandState(seed))
	reg.Fit(X, y)

	return &Surrogate{
		Depth:    depth,
		Leaves:   reg.Leaves(),
		Fidelity: rsquared(reg.Predict(X), y, nil),
		Ranking:  evaluate.Rank(train.Names, reg.VarImp(), -1),
		Tree:     reg,
	}, nil
}
