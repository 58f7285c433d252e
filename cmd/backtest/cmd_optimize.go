package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/backtest"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/monitoring"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/storage"
)

var saveRun bool

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Grid-search strategy parameters for the best Sharpe ratio",
	Long: `Evaluate every combination of a parameter grid and rank them by Sharpe
ratio. Failed combinations are kept at the bottom of the leaderboard.

Examples:
  backtest optimize -s ETHUSDT -i 4h --grid "short_window=5:15:2;long_window=20,30,50"
  backtest optimize --grid-file grids/crossover.yaml --save`,
	RunE: runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
	addDataFlags(optimizeCmd)
	addRunFlags(optimizeCmd, false, true)
	addOutputFlags(optimizeCmd)
	optimizeCmd.Flags().BoolVar(&saveRun, "save", false, "Store the result in the run database")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	grid, _, err := searchSpace()
	if err != nil {
		return err
	}
	candles, err := loadCandles()
	if err != nil {
		return err
	}
	reporter, err := newReportingManager()
	if err != nil {
		return err
	}

	log.Info().
		Str("strategy", runFlags.Strategy).
		Str("grid", describeGrid(grid)).
		Int("combinations", grid.Size()).
		Int("workers", appConfig.WorkerCount()).
		Msg("starting optimization")

	optimizer := backtest.NewOptimizer(appConfig.WorkerCount()).WithMaxCombinations(appConfig.Engine.MaxCombinations)
	result, err := optimizer.Optimize(runFlags.Strategy, dataFlags.Symbol, capital(), candles, grid)
	if err != nil {
		return err
	}
	monitoring.ObserveOperation("optimize", runFlags.Strategy, result.Duration)

	log.Info().
		Str("best_params", result.BestParams.String()).
		Float64("best_sharpe", result.BestSharpe).
		Int("failures", result.Failures).
		Dur("elapsed", result.Duration).
		Msg("optimization finished")

	if saveRun {
		if err := persistRun(cmd.Context(), storage.KindOptimize, result); err != nil {
			return err
		}
	}
	if err := printJSON(result); err != nil {
		return err
	}
	_, err = reporter.ReportOptimization(result, reportInterval(cmd))
	return err
}

// persistRun stores payload in the configured run database
func persistRun(ctx context.Context, kind string, payload interface{}) error {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := storage.Open(appConfig.Storage.Driver, appConfig.Storage.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.SaveRun(ctx, kind, dataFlags.Symbol, runFlags.Strategy, payload)
	if err != nil {
		return err
	}
	log.Info().Str("run_id", run.ID).Str("kind", kind).Msg("run stored")
	return nil
}
