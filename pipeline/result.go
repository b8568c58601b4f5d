package pipeline

import (
	"encoding/json"
	"math"
	"time"

	"github.com/wlattner/sdm/dataset"
	"github.com/wlattner/sdm/evaluate"
	"github.com/wlattner/sdm/explain"
	"github.com/wlattner/sdm/raster"
)

// Result bundles the numeric outputs of one species run.
type Result struct {
	RunID      string          `json:"run_id"`
	Species    string          `json:"species"`
	Resolution string          `json:"resolution"`
	Seed       int64           `json:"seed"`
	Started    time.Time       `json:"started"`
	Params     json.RawMessage `json:"params,omitempty"`

	Rows             int            `json:"rows"`
	Dropped          int            `json:"dropped"`
	Presence         int            `json:"presence"`
	Absence          int            `json:"absence"`
	PresencePoints   int            `json:"presence_points"`
	BackgroundPoints int            `json:"background_points"`
	Features         []string       `json:"features"`
	Stats            *dataset.Stats `json:"stats"`
	Train            []int          `json:"train"`
	Test             []int          `json:"test"`

	AUC          evaluate.AUCResult      `json:"auc"`
	Ranking      []evaluate.FeatureScore `json:"ranking"`
	OOBAccuracy  *float64                `json:"oob_accuracy,omitempty"`
	Suitability  *raster.Grid            `json:"-"`
	Effects      []*explain.ALECurve     `json:"effects"`
	Explanations []*explain.Explanation  `json:"explanations"`
	Surrogate    *explain.Surrogate      `json:"surrogate,omitempty"`

	Failures  []StepFailure            `json:"failures,omitempty"`
	Durations map[string]time.Duration `json:"durations"`
}

// StepFailure records a step that failed without failing the run.
type StepFailure struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// SuitabilitySummary describes the suitability surface without its cells.
type SuitabilitySummary struct {
	Extent  raster.Extent `json:"extent"`
	Cells   int           `json:"cells"`
	Missing int           `json:"missing"`
	Mean    float64       `json:"mean"`
	Max     float64       `json:"max"`
}

// Summary returns the summary of the suitability surface, nil when the run
// has none.
func (r *Result) Summary() *SuitabilitySummary {
	g := r.Suitability
	if g == nil {
		return nil
	}
	s := &SuitabilitySummary{Extent: g.Extent, Cells: g.Cells(), Missing: g.Missing()}
	n := 0
	for _, v := range g.Data {
		if math.IsNaN(v) {
			continue
		}
		s.Mean += v
		if n == 0 || v > s.Max {
			s.Max = v
		}
		n++
	}
	if n > 0 {
		s.Mean /= float64(n)
	}
	return s
}
