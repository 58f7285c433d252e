package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/backtest"
)

var simulateCmd = &cobra.Command{
	Use:     "simulate",
	Aliases: []string{"run"},
	Short:   "Run one strategy configuration over a candle series",
	Long: `Simulate a long-only crossover strategy: buy 10% of NAV when the short
average crosses above the long one, sell the position on the opposite cross.

Examples:
  backtest simulate -s BTCUSDT -i 1h --params "short_window=9,long_window=21"
  backtest simulate --data candles.csv --strategy sma-crossover --period 180d`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	addDataFlags(simulateCmd)
	addRunFlags(simulateCmd, true, false)
	addOutputFlags(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	params, err := parseParams(runFlags.Params)
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

	results, err := backtest.Simulate(runFlags.Strategy, dataFlags.Symbol, capital(), candles, params)
	if err != nil {
		return err
	}
	log.Info().
		Str("strategy", runFlags.Strategy).
		Int("trades", results.Report.TotalTrades).
		Float64("final_nav", results.FinalNAV).
		Float64("sharpe", results.Report.SharpeRatio).
		Msg("simulation finished")

	if err := printJSON(results); err != nil {
		return err
	}
	_, err = reporter.ReportBacktest(results, dataFlags.Symbol, reportInterval(cmd))
	return err
}
