package raster

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/wlattner/sdm/dataset"
	"github.com/wlattner/sdm/model"
)

// Options controls how a stack is partitioned for prediction.
type Options struct {
	Workers   int // concurrent chunks, defaults to GOMAXPROCS
	ChunkRows int // grid rows per chunk, defaults to 64
}

func (o Options) withDefaults() Options {
	if o.Workers < 1 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.ChunkRows < 1 {
		o.ChunkRows = 64
	}
	return o
}

// Predict evaluates m on every cell of a normalized stack. Bands are matched
// to the model's features by name. The result has the stack's extent; a
// cell with any missing band is missing in the result. Row chunks are
// predicted concurrently and each worker holds only its own feature buffer.
func Predict(ctx context.Context, m model.Predictor, s *Stack, opts Options) (*Grid, error) {
	features := m.Features()
	order := make([]int, len(features))
	for j, name := range features {
		order[j] = s.Band(name)
		if order[j] < 0 {
			return nil, fmt.Errorf("no band for feature %q: %w", name, dataset.ErrSchemaMismatch)
		}
	}

	opts = opts.withDefaults()
	out := NewGrid(s.Extent)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for start := 0; start < s.Rows; start += opts.ChunkRows {
		if gctx.Err() != nil {
			break
		}
		lo := start * s.Cols
		hi := min(start+opts.ChunkRows, s.Rows) * s.Cols

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			predictChunk(m, s, order, out.Data, lo, hi)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// predictChunk fills dst[lo:hi] for the complete cells in that range.
func predictChunk(m model.Predictor, s *Stack, order []int, dst []float64, lo, hi int) {
	p := len(order)
	backing := make([]float64, (hi-lo)*p)
	X := make([][]float64, 0, hi-lo)
	cells := make([]int, 0, hi-lo)

cell:
	for i := lo; i < hi; i++ {
		x := backing[len(X)*p : (len(X)+1)*p]
		for j, b := range order {
			v := s.Bands[b][i]
			if math.IsNaN(v) {
				continue cell
			}
			x[j] = v
		}
		X = append(X, x)
		cells = append(cells, i)
	}
	if len(X) == 0 {
		return
	}

	for k, prob := range m.PresenceProb(X) {
		dst[cells[k]] = prob
	}
}
