package main

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/monitoring"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/storage"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/validation"
)

var (
	foldCount     int
	inSampleRatio float64
)

var validateCmd = &cobra.Command{
	Use:     "validate",
	Aliases: []string{"walk-forward", "wf"},
	Short:   "Walk-forward validate a parameter search",
	Long: `Split the series into consecutive folds, optimize on each fold's
in-sample segment and replay the winner on its out-of-sample segment. The
aggregate reports consistency, overfitting and the most robust parameters.

Examples:
  backtest validate -s BTCUSDT -i 1h --folds 5 --in-sample-ratio 0.7
  backtest validate --grid-file grids/crossover.yaml --format json`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addDataFlags(validateCmd)
	addRunFlags(validateCmd, false, true)
	addOutputFlags(validateCmd)
	f := validateCmd.Flags()
	f.IntVar(&foldCount, "folds", 0, "Number of folds, 2-10 (default 5)")
	f.Float64Var(&inSampleRatio, "in-sample-ratio", 0, "In-sample share of each fold, 0.5-0.9 (default 0.7)")
	f.BoolVar(&saveRun, "save", false, "Store the result in the run database")
}

func runValidate(cmd *cobra.Command, args []string) error {
	grid, file, err := searchSpace()
	if err != nil {
		return err
	}
	if file != nil {
		if foldCount == 0 {
			foldCount = file.Folds
		}
		if inSampleRatio == 0 {
			inSampleRatio = file.InSampleRatio
		}
	}

	candles, err := loadCandles()
	if err != nil {
		return err
	}
	reporter, err := newReportingManager()
	if err != nil {
		return err
	}

	validator := validation.NewDefaultWalkForwardValidator()
	validator.SetWorkers(appConfig.WorkerCount())
	validator.SetMaxCombinations(appConfig.Engine.MaxCombinations)

	start := time.Now()
	summary, err := validator.Validate(candles, validation.WalkForwardConfig{
		StrategyID:     runFlags.Strategy,
		Symbol:         dataFlags.Symbol,
		InitialCapital: capital(),
		Grid:           grid,
		FoldCount:      foldCount,
		InSampleRatio:  inSampleRatio,
	})
	if err != nil {
		return err
	}
	monitoring.ObserveOperation("walk_forward", runFlags.Strategy, time.Since(start))

	log.Info().
		Int("folds", len(summary.Folds)).
		Int("skipped", len(summary.Skipped)).
		Str("risk", summary.Aggregate.OverfittingRisk).
		Bool("robust", summary.Aggregate.IsRobust).
		Msg("walk-forward validation finished")

	if saveRun {
		if err := persistRun(cmd.Context(), storage.KindWalkForward, summary); err != nil {
			return err
		}
	}
	if err := printJSON(summary); err != nil {
		return err
	}
	_, err = reporter.ReportWalkForward(summary, reportInterval(cmd))
	return err
}
