// Package provider supplies occurrence tables and climate rasters for a
// species. Downloading is out of scope; Files reads data fetched ahead of
// time from a directory tree.
package provider

import (
	"context"
	"strings"
	"unicode"

	"github.com/wlattner/sdm/dataset"
	"github.com/wlattner/sdm/raster"
)

// Request names a species and the resolution of its climate data.
// MaxRecords > 0 caps the number of presence rows.
type Request struct {
	Species    string
	MaxRecords int
	Resolution string
}

// Response holds raw, not yet renamed, data for one species. Band and
// column names are the provider's identifiers.
type Response struct {
	Data       *dataset.Dataset
	Stack      *raster.Stack
	Presence   []dataset.Coord
	Background []dataset.Coord
	Dropped    int // rows discarded for missing values
}

// Provider fetches the data for one species run.
type Provider interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

// Slug turns a species name into a directory name: "Quercus robur"
// becomes "quercus_robur".
func Slug(species string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.TrimSpace(species) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			underscore = false
		case !underscore && b.Len() > 0:
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
