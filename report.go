package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/wlattner/sdm/pipeline"
	"github.com/wlattner/sdm/store"
)

func writeText(w io.Writer, outcomes []pipeline.Outcome, maxVars int) error {
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(w, "%s\n", o.Species.Name)
			fmt.Fprintf(w, "FAILED: %v\n\n", o.Err)
			continue
		}
		reportResult(w, o.Result, maxVars)
	}
	failed := pipeline.Failed(outcomes)
	_, err := fmt.Fprintf(w, "%d species, %d succeeded, %d failed\n", len(outcomes), len(outcomes)-failed, failed)
	return err
}

func reportResult(w io.Writer, r *pipeline.Result, maxVars int) {
	fmt.Fprintf(w, "%s (%s, run %s)\n", r.Species, r.Resolution, r.RunID)
	fmt.Fprintf(w, "Fit on %s of %s rows (%s presence, %s absence), tested on %s\n",
		humanize.Comma(int64(len(r.Train))), humanize.Comma(int64(r.Rows)),
		humanize.Comma(int64(r.Presence)), humanize.Comma(int64(r.Absence)),
		humanize.Comma(int64(len(r.Test))))
	if r.Dropped > 0 {
		fmt.Fprintf(w, "Dropped %s incomplete rows\n", humanize.Comma(int64(r.Dropped)))
	}
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "AUC: %s\n", r.AUC)
	if r.OOBAccuracy != nil {
		fmt.Fprintf(w, "Out-of-bag Accuracy: %.2f%%\n", 100*(*r.OOBAccuracy))
	}
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "Variable Importance\n")
	fmt.Fprintf(w, "-------------------\n")
	ranking := r.Ranking
	if maxVars > 0 && maxVars < len(ranking) {
		ranking = ranking[:maxVars]
	}
	for _, f := range ranking {
		fmt.Fprintf(w, "%-15s: %-10.2f\n", f.Name, f.Score)
	}
	fmt.Fprintf(w, "\n")

	if s := r.Summary(); s != nil {
		fmt.Fprintf(w, "Suitability\n")
		fmt.Fprintf(w, "-----------\n")
		fmt.Fprintf(w, "%s cells (%d x %d), %s missing, mean %.3f, max %.3f\n",
			humanize.Comma(int64(s.Cells)), s.Extent.Cols, s.Extent.Rows,
			humanize.Comma(int64(s.Missing)), s.Mean, s.Max)
		fmt.Fprintf(w, "\n")
	}

	for _, c := range r.Effects {
		fmt.Fprintf(w, "Accumulated Local Effect: %s\n", c.Feature)
		fmt.Fprintf(w, "%-14s %-14s\n", "value", "effect")
		for _, p := range c.Points {
			fmt.Fprintf(w, "%-14.4g %-+14.4f\n", p.Raw, p.Effect)
		}
		fmt.Fprintf(w, "\n")
	}

	for _, e := range r.Explanations {
		fmt.Fprintf(w, "Explanation: row %d", e.Row)
		if e.Coord != nil {
			fmt.Fprintf(w, " at (%.4f, %.4f)", e.Coord.X, e.Coord.Y)
		}
		fmt.Fprintf(w, "\n")
		fmt.Fprintf(w, "p(presence) %.3f, local %.3f, fit %.3f\n", e.Prob, e.LocalPred, e.Score)
		for _, fw := range e.Weights {
			fmt.Fprintf(w, "%-15s: %+-10.4f\n", fw.Name, fw.Weight)
		}
		fmt.Fprintf(w, "\n")
	}

	for _, f := range r.Failures {
		fmt.Fprintf(w, "%s step FAILED: %s\n\n", f.Step, f.Error)
	}

	if s := r.Surrogate; s != nil {
		fmt.Fprintf(w, "Global Surrogate\n")
		fmt.Fprintf(w, "----------------\n")
		fmt.Fprintf(w, "depth %d, %d leaves, fidelity %.3f\n", s.Depth, s.Leaves, s.Fidelity)
		for _, f := range s.Ranking {
			fmt.Fprintf(w, "%-15s: %-10.2f\n", f.Name, f.Score)
		}
		fmt.Fprintf(w, "\n")
	}

	if len(r.Durations) > 0 {
		steps := make([]string, 0, len(r.Durations))
		for s := range r.Durations {
			steps = append(steps, s)
		}
		sort.Strings(steps)
		fmt.Fprintf(w, "Timing:")
		for _, s := range steps {
			fmt.Fprintf(w, " %s %s", s, r.Durations[s].Round(time.Millisecond))
		}
		fmt.Fprintf(w, "\n\n")
	}
}

// jsonOutcome is one species in the json report. Error is set instead of
// Result when the run failed.
type jsonOutcome struct {
	Species     string                       `json:"species"`
	Error       string                       `json:"error,omitempty"`
	Result      *pipeline.Result             `json:"result,omitempty"`
	Suitability *pipeline.SuitabilitySummary `json:"suitability,omitempty"`
}

func writeJSON(w io.Writer, outcomes []pipeline.Outcome) error {
	out := make([]jsonOutcome, len(outcomes))
	for i, o := range outcomes {
		out[i].Species = o.Species.Name
		if o.Err != nil {
			out[i].Error = o.Err.Error()
			continue
		}
		out[i].Result = o.Result
		out[i].Suitability = o.Result.Summary()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeRuns(w io.Writer, runs []store.Run, now time.Time) {
	if len(runs) == 0 {
		fmt.Fprintf(w, "no stored runs\n")
		return
	}
	fmt.Fprintf(w, "%-36s %-24s %-6s %-8s %-10s %-15s %s\n", "id", "species", "res", "auc", "rows", "top feature", "started")
	for _, r := range runs {
		auc := "n/a"
		if r.AUC != nil {
			auc = fmt.Sprintf("%.4f", *r.AUC)
		}
		fmt.Fprintf(w, "%-36s %-24s %-6s %-8s %-10s %-15s %s\n",
			r.ID, r.Species, r.Resolution, auc, humanize.Comma(int64(r.Rows)),
			r.TopFeature, humanize.RelTime(r.Started, now, "ago", "from now"))
	}
}
