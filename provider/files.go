package provider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wlattner/sdm/dataset"
	"github.com/wlattner/sdm/raster"
)

// DefaultResolution is used when a request leaves it empty.
const DefaultResolution = "10m"

// Files reads pre-fetched data laid out as
//
//	<Root>/<species slug>/occurrences.csv
//	<Root>/climate/<resolution>/<raw band name>.asc
//
// The raster bands loaded are the feature columns of the occurrence table.
type Files struct {
	Root       string
	MinRecords int // fewer presence rows is ErrNoData, at least 1
	Log        *zap.Logger
}

// NewFiles returns a provider rooted at root.
func NewFiles(root string, minRecords int, log *zap.Logger) *Files {
	if log == nil {
		log = zap.NewNop()
	}
	return &Files{Root: root, MinRecords: minRecords, Log: log}
}

func (f *Files) Fetch(ctx context.Context, req Request) (*Response, error) {
	log := f.Log
	if log == nil {
		log = zap.NewNop()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(f.Root, Slug(req.Species), "occurrences.csv")
	data, dropped, err := readOccurrences(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no occurrence table for %q: %w", req.Species, dataset.ErrNoData)
	}
	if err != nil {
		return nil, err
	}

	data = capPresence(data, req.MaxRecords)
	presence, _ := data.Counts()
	if need := max(f.MinRecords, 1); presence < need {
		return nil, fmt.Errorf("%d presence rows for %q, need %d: %w", presence, req.Species, need, dataset.ErrNoData)
	}

	res := req.Resolution
	if res == "" {
		res = DefaultResolution
	}
	stack, err := raster.ReadStack(ctx, filepath.Join(f.Root, "climate", res), data.Names)
	if err != nil {
		return nil, fmt.Errorf("climate rasters: %w", err)
	}

	out := &Response{Data: data, Stack: stack, Dropped: dropped}
	for _, r := range data.Rows {
		if r.Coord == nil {
			continue
		}
		if r.Presence {
			out.Presence = append(out.Presence, *r.Coord)
		} else {
			out.Background = append(out.Background, *r.Coord)
		}
	}

	log.Debug("fetched species data",
		zap.String("species", req.Species),
		zap.String("path", path),
		zap.Int("rows", data.Len()),
		zap.Int("dropped", dropped),
		zap.Int("cells", stack.Cells()))

	return out, nil
}

func readOccurrences(path string) (*dataset.Dataset, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	d, dropped, err := dataset.ReadCSV(file)
	if err != nil {
		return nil, dropped, fmt.Errorf("%s: %w", path, err)
	}
	return d, dropped, nil
}

// capPresence keeps the first n presence rows and every absence row,
// renumbering rows so Index stays the row position.
func capPresence(d *dataset.Dataset, n int) *dataset.Dataset {
	if n <= 0 {
		return d
	}
	out := &dataset.Dataset{Names: d.Names}
	kept := 0
	for _, r := range d.Rows {
		if r.Presence {
			if kept == n {
				continue
			}
			kept++
		}
		r.Index = len(out.Rows)
		out.Rows = append(out.Rows, r)
	}
	return out
}
