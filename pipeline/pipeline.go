// Package pipeline runs the explainable distribution model for one species
// at a time: fetch, rename, normalize, split and train, then evaluate,
// predict and explain from the fitted model.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wlattner/sdm/dataset"
	"github.com/wlattner/sdm/evaluate"
	"github.com/wlattner/sdm/explain"
	"github.com/wlattner/sdm/model"
	"github.com/wlattner/sdm/provider"
	"github.com/wlattner/sdm/raster"
)

// Step names reported in StepError.
const (
	StepFetch     = "fetch"
	StepRename    = "rename"
	StepNormalize = "normalize"
	StepSplit     = "split"
	StepTrain     = "train"
	StepEvaluate  = "evaluate"
	StepPredict   = "predict"
	StepEffects   = "effects"
	StepExplain   = "explain"
	StepSurrogate = "surrogate"
	StepStore     = "store"
)

// StepError ties a failure to the species and the step it happened in.
type StepError struct {
	Species string
	Step    string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Species, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// EffectEstimator describes the marginal effect of one feature.
type EffectEstimator interface {
	Effect(ctx context.Context, m model.Predictor, train *dataset.Dataset, feature string) (*explain.ALECurve, error)
}

// InstanceExplainer explains the prediction for a single observation.
type InstanceExplainer interface {
	Explain(ctx context.Context, m model.Predictor, background *dataset.Dataset, instance dataset.Observation, seed int64) (*explain.Explanation, error)
}

// Species is one entry of the run list.
type Species struct {
	Name       string                `json:"name"`
	MaxRecords int                   `json:"max_records"`
	Resolution string                `json:"resolution"`
	Replace    explain.ReplacePolicy `json:"replace,omitempty"` // overrides Pipeline.Replace
}

// Pipeline holds everything shared by species runs. It is not modified by
// Run, so one Pipeline may serve several runs.
type Pipeline struct {
	Provider   provider.Provider
	Dictionary *dataset.Dictionary
	Trainer    model.Trainer
	Effects    EffectEstimator
	Explainer  InstanceExplainer
	Log        *zap.Logger

	Seed           int64
	TrainFraction  float64 // 0.7 when unset
	TopFeatures    int     // 5 when unset
	EffectFeatures int     // top ranked features given an effect curve, 2 when unset
	Instances      int     // 3 when unset
	Replace        explain.ReplacePolicy
	SurrogateDepth int // 0 skips the global surrogate

	Predict        raster.Options
	FetchTimeout   time.Duration
	PredictTimeout time.Duration
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}

func (p *Pipeline) effects() EffectEstimator {
	if p.Effects == nil {
		return explain.ALE{}
	}
	return p.Effects
}

func (p *Pipeline) explainer() InstanceExplainer {
	if p.Explainer == nil {
		return explain.Lime{}
	}
	return p.Explainer
}

// timings collects step durations from concurrent steps.
type timings struct {
	mu sync.Mutex
	d  map[string]time.Duration
}

func (t *timings) track(step string) func() {
	start := time.Now()
	return func() {
		t.mu.Lock()
		t.d[step] = time.Since(start)
		t.mu.Unlock()
	}
}

// Run executes every step for sp and returns the result bundle. Failures
// are returned as *StepError, except for the explain step: when it fails,
// for example because test holds no presence rows, the failure is recorded
// in Result.Failures and the other results are kept.
func (p *Pipeline) Run(ctx context.Context, sp Species) (*Result, error) {
	log := p.logger().With(zap.String("species", sp.Name))
	fail := func(step string, err error) (*Result, error) {
		return nil, &StepError{Species: sp.Name, Step: step, Err: err}
	}

	res := &Result{
		RunID:      uuid.NewString(),
		Species:    sp.Name,
		Resolution: sp.Resolution,
		Seed:       p.Seed,
		Started:    time.Now().UTC(),
	}
	tm := &timings{d: make(map[string]time.Duration)}
	total := tm.track("total")

	if params, err := json.Marshal(p.Trainer); err == nil {
		res.Params = params
	}

	done := tm.track(StepFetch)
	fetchCtx, cancel := withTimeout(ctx, p.FetchTimeout)
	resp, err := p.Provider.Fetch(fetchCtx, provider.Request{
		Species:    sp.Name,
		MaxRecords: sp.MaxRecords,
		Resolution: sp.Resolution,
	})
	cancel()
	if err != nil {
		return fail(StepFetch, err)
	}
	done()
	res.Dropped = resp.Dropped
	res.PresencePoints = len(resp.Presence)
	res.BackgroundPoints = len(resp.Background)
	log.Debug("fetched", zap.Int("rows", resp.Data.Len()), zap.Int("dropped", resp.Dropped))

	data, err := p.Dictionary.RenameDataset(resp.Data)
	if err != nil {
		return fail(StepRename, err)
	}
	stack := resp.Stack
	if err := stack.Rename(p.Dictionary); err != nil {
		return fail(StepRename, err)
	}

	norm, stats, err := dataset.Normalize(data)
	if err != nil {
		return fail(StepNormalize, err)
	}
	if err := stack.Normalize(stats); err != nil {
		return fail(StepNormalize, err)
	}
	res.Features = norm.Names
	res.Stats = stats
	res.Rows = norm.Len()
	res.Presence, res.Absence = norm.Counts()

	train, test, err := dataset.Split(norm, or(p.TrainFraction, 0.7), p.Seed)
	if err != nil {
		return fail(StepSplit, err)
	}
	res.Train, res.Test = train.Indices(), test.Indices()
	log.Debug("split", zap.Int("train", train.Len()), zap.Int("test", test.Len()))

	done = tm.track(StepTrain)
	m, err := p.Trainer.Train(ctx, train, p.Seed)
	if err != nil {
		return fail(StepTrain, err)
	}
	done()
	if f, ok := m.(interface{ OOBAccuracy() (float64, bool) }); ok {
		if acc, ok := f.OOBAccuracy(); ok {
			res.OOBAccuracy = &acc
		}
	}

	// the remaining steps only read m, train, test and stack
	g, gctx := errgroup.WithContext(ctx)
	step := func(name string, fn func(ctx context.Context) error) {
		g.Go(func() error {
			defer tm.track(name)()
			if err := fn(gctx); err != nil {
				return &StepError{Species: sp.Name, Step: name, Err: err}
			}
			return nil
		})
	}

	step(StepEvaluate, func(ctx context.Context) error {
		r, err := evaluate.Evaluate(ctx, m, test, or(p.TopFeatures, 5))
		if err != nil {
			return err
		}
		res.AUC, res.Ranking = r.AUC, r.Ranking
		return nil
	})

	step(StepPredict, func(ctx context.Context) error {
		ctx, cancel := withTimeout(ctx, p.PredictTimeout)
		defer cancel()
		grid, err := raster.Predict(ctx, m, stack, p.Predict)
		if err != nil {
			return err
		}
		res.Suitability = grid
		return nil
	})

	step(StepEffects, func(ctx context.Context) error {
		features := evaluate.Rank(m.Features(), m.Importance(), or(p.EffectFeatures, 2))
		res.Effects = make([]*explain.ALECurve, len(features))
		for i, f := range features {
			curve, err := p.effects().Effect(ctx, m, train, f.Name)
			if err != nil {
				return fmt.Errorf("feature %q: %w", f.Name, err)
			}
			curve.SetRaw(stats)
			res.Effects[i] = curve
		}
		return nil
	})

	// explanations need presence rows in test; without them the run still
	// reports the evaluation, surface and effects
	var failMu sync.Mutex
	optional := func(name string, fn func(ctx context.Context) error) {
		step(name, func(ctx context.Context) error {
			err := fn(ctx)
			if err == nil || ctx.Err() != nil {
				return err
			}
			log.Warn("step failed", zap.String("step", name), zap.Error(err))
			failMu.Lock()
			res.Failures = append(res.Failures, StepFailure{Step: name, Error: err.Error()})
			failMu.Unlock()
			return nil
		})
	}

	optional(StepExplain, func(ctx context.Context) error {
		policy := p.Replace
		if sp.Replace != "" {
			policy = sp.Replace
		}
		if policy == "" {
			policy = explain.Auto
		}
		instances, err := explain.SampleInstances(test, or(p.Instances, 3), policy, p.Seed)
		if err != nil {
			return err
		}
		explanations := make([]*explain.Explanation, len(instances))
		for i, inst := range instances {
			e, err := p.explainer().Explain(ctx, m, train, inst, p.Seed+int64(i))
			if err != nil {
				return fmt.Errorf("row %d: %w", inst.Index, err)
			}
			explanations[i] = e
		}
		res.Explanations = explanations
		return nil
	})

	if p.SurrogateDepth > 0 {
		step(StepSurrogate, func(ctx context.Context) error {
			s, err := explain.GlobalSurrogate(ctx, m, train, p.SurrogateDepth, p.Seed)
			if err != nil {
				return err
			}
			res.Surrogate = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	total()
	res.Durations = tm.d

	log.Info("species run complete",
		zap.String("run", res.RunID),
		zap.Stringer("auc", res.AUC),
		zap.Int("cells", res.Suitability.Cells()),
		zap.Int("missing", res.Suitability.Missing()),
		zap.Duration("elapsed", res.Durations["total"]))

	return res, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func or[T int | float64](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}
