package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wlattner/sdm/config"
	"github.com/wlattner/sdm/dataset"
	"github.com/wlattner/sdm/explain"
	"github.com/wlattner/sdm/pipeline"
	"github.com/wlattner/sdm/provider"
	"github.com/wlattner/sdm/raster"
	"github.com/wlattner/sdm/store"
)

var (
	flagConfig  string
	flagVerbose bool
	flagProfile bool

	log      *zap.Logger
	profiler interface{ Stop() }
)

// errSpeciesFailed is returned by run after the report is written, so the
// failures are not printed twice.
var errSpeciesFailed = errors.New("species runs failed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errSpeciesFailed) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "sdm",
	Short:         "Explainable species distribution models",
	Long:          "sdm fits a random forest to presence and background records of each configured species, evaluates it, maps habitat suitability and explains the fitted model.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if log, err = newLogger(flagVerbose); err != nil {
			return err
		}
		if flagProfile {
			profiler = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if profiler != nil {
			profiler.Stop()
		}
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "yaml configuration file (default: built-in settings)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagProfile, "profile", false, "cpu profile")

	rootCmd.AddCommand(runCmd, runsCmd, dictionaryCmd)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

var (
	flagSpecies []string
	flagFormat  string
	flagOut     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fit, evaluate, map and explain each configured species",
	Args:  cobra.NoArgs,
	RunE:  runSpecies,
}

func init() {
	runCmd.Flags().StringSliceVarP(&flagSpecies, "species", "s", nil, "run only these species (default: all configured)")
	runCmd.Flags().StringVar(&flagFormat, "format", "text", "report format: text|json")
	runCmd.Flags().StringVarP(&flagOut, "out", "o", "", "directory for suitability grids (default: output_dir)")
}

func runSpecies(cmd *cobra.Command, args []string) error {
	if flagFormat != "text" && flagFormat != "json" {
		return fmt.Errorf("invalid format %q: must be text or json", flagFormat)
	}
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	selected, err := cfg.Select(flagSpecies)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return errors.New("no species configured")
	}
	species, err := speciesList(selected)
	if err != nil {
		return err
	}

	p, err := newPipeline(cfg, log)
	if err != nil {
		return err
	}
	runner := &pipeline.Runner{Pipeline: p, Log: log}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if cfg.ResultsDB != "" {
		db, err := store.NewStore(cfg.ResultsDB)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		runner.Sink = db
	}

	start := time.Now()
	outcomes := runner.RunAll(ctx, species)
	log.Info("runs finished",
		zap.Int("species", len(outcomes)),
		zap.Int("failed", pipeline.Failed(outcomes)),
		zap.Duration("elapsed", time.Since(start)))

	outDir := flagOut
	if outDir == "" {
		outDir = cfg.OutputDir
	}
	if err := writeGrids(outDir, outcomes); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if flagFormat == "json" {
		err = writeJSON(w, outcomes)
	} else {
		err = writeText(w, outcomes, cfg.TopFeatures)
	}
	if err != nil {
		return err
	}

	if pipeline.Failed(outcomes) > 0 {
		return errSpeciesFailed
	}
	return nil
}

// newPipeline wires the configured provider, dictionary, forest and
// explainers into a pipeline.
func newPipeline(cfg *config.Config, log *zap.Logger) (*pipeline.Pipeline, error) {
	dict, err := dataset.LoadDictionary(cfg.Dictionary)
	if err != nil {
		return nil, err
	}
	replace, err := explain.ParseReplacePolicy(cfg.Explain.Replace)
	if err != nil {
		return nil, err
	}
	ex := cfg.Explain
	return &pipeline.Pipeline{
		Provider:   provider.NewFiles(cfg.Provider.Root, cfg.Provider.MinRecords, log.Named("provider")),
		Dictionary: dict,
		Trainer:    cfg.Trainer(),
		Effects:    explain.ALE{Bins: ex.ALEBins},
		Explainer: explain.Lime{
			Samples:     ex.Samples,
			KernelWidth: ex.KernelWidth,
			Ridge:       ex.Ridge,
			TopK:        ex.TopK,
		},
		Log: log.Named("pipeline"),

		Seed:           cfg.Seed,
		TrainFraction:  cfg.TrainFraction,
		TopFeatures:    cfg.TopFeatures,
		EffectFeatures: ex.ALEFeatures,
		Instances:      ex.Instances,
		Replace:        replace,
		SurrogateDepth: ex.SurrogateDepth,

		Predict:        raster.Options{Workers: cfg.Predict.Workers, ChunkRows: cfg.Predict.ChunkRows},
		FetchTimeout:   cfg.Provider.Timeout,
		PredictTimeout: cfg.Predict.Timeout,
	}, nil
}

func speciesList(in []config.SpeciesConfig) ([]pipeline.Species, error) {
	out := make([]pipeline.Species, len(in))
	for i, sp := range in {
		var replace explain.ReplacePolicy
		if sp.Replace != "" {
			var err error
			if replace, err = explain.ParseReplacePolicy(sp.Replace); err != nil {
				return nil, fmt.Errorf("species %q: %w", sp.Name, err)
			}
		}
		res := sp.Resolution
		if res == "" {
			res = provider.DefaultResolution
		}
		out[i] = pipeline.Species{
			Name:       sp.Name,
			MaxRecords: sp.MaxRecords,
			Resolution: res,
			Replace:    replace,
		}
	}
	return out, nil
}

// writeGrids saves each suitability surface as <slug>.asc under dir.
func writeGrids(dir string, outcomes []pipeline.Outcome) error {
	for _, o := range outcomes {
		if o.Result == nil || o.Result.Suitability == nil {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		path := filepath.Join(dir, provider.Slug(o.Species.Name)+".asc")
		if err := raster.WriteFile(path, o.Result.Suitability); err != nil {
			return fmt.Errorf("writing suitability for %s: %w", o.Species.Name, err)
		}
	}
	return nil
}

var flagRunsSpecies string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		if cfg.ResultsDB == "" {
			return errors.New("results_db is not configured")
		}
		db, err := store.NewStore(cfg.ResultsDB)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		runs, err := db.Runs(ctx, flagRunsSpecies)
		if err != nil {
			return err
		}
		writeRuns(cmd.OutOrStdout(), runs, time.Now())
		return nil
	},
}

func init() {
	runsCmd.Flags().StringVarP(&flagRunsSpecies, "species", "s", "", "only runs of this species")
}

var dictionaryCmd = &cobra.Command{
	Use:   "dictionary",
	Short: "Print the feature dictionary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		dict, err := dataset.LoadDictionary(cfg.Dictionary)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, e := range dict.Entries {
			fmt.Fprintf(w, "%-8s %s\n", e.Raw, e.Abbr)
		}
		return nil
	},
}
