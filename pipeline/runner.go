package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Sink receives every successful result.
type Sink interface {
	Save(ctx context.Context, r *Result) error
}

// Outcome is the result of one species, or the error that stopped it.
type Outcome struct {
	Species Species
	Result  *Result
	Err     error
}

// Runner runs a list of species one after another.
type Runner struct {
	Pipeline *Pipeline
	Sink     Sink // optional
	Log      *zap.Logger
}

// RunAll runs every species in order. A failing species is logged and
// skipped; once ctx is done the remaining species fail with its error.
func (r *Runner) RunAll(ctx context.Context, species []Species) []Outcome {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	out := make([]Outcome, 0, len(species))
	for _, sp := range species {
		if err := ctx.Err(); err != nil {
			out = append(out, Outcome{Species: sp, Err: err})
			continue
		}

		start := time.Now()
		res, err := r.Pipeline.Run(ctx, sp)
		if err == nil && r.Sink != nil {
			if serr := r.Sink.Save(ctx, res); serr != nil {
				err = &StepError{Species: sp.Name, Step: StepStore, Err: serr}
			}
		}
		if err != nil {
			fields := []zap.Field{zap.String("species", sp.Name), zap.Error(err)}
			var se *StepError
			if errors.As(err, &se) {
				fields = append(fields, zap.String("step", se.Step))
			}
			log.Error("species run failed", fields...)
		} else {
			log.Debug("species run finished", zap.String("species", sp.Name), zap.Duration("elapsed", time.Since(start)))
		}

		out = append(out, Outcome{Species: sp, Result: res, Err: err})
	}
	return out
}

// Failed counts outcomes with an error.
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
