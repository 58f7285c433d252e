package main

import (
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/backtest"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/data"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

var (
	riskFreeRate  float64
	benchmarkFile string
)

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Analyze the risk of a candle series' close-to-close returns",
	Long: `Compute Sharpe, Sortino and Calmar ratios, value at risk and drawdown
for the per-bar returns of a series. With --benchmark, beta and alpha are
measured against the benchmark's returns over the same bars.

Examples:
  backtest risk -s ETHUSDT -i 1d --period 365d
  backtest risk --data eth.csv --benchmark btc.csv --risk-free-rate 0`,
	RunE: runRisk,
}

func init() {
	rootCmd.AddCommand(riskCmd)
	addDataFlags(riskCmd)
	addOutputFlags(riskCmd)
	f := riskCmd.Flags()
	f.Float64Var(&runFlags.Capital, "capital", 0, "Capital the returns are compounded on (default: DEFAULT_CAPITAL)")
	f.Float64Var(&riskFreeRate, "risk-free-rate", backtest.DefaultRiskFreeRate, "Per-period risk-free rate")
	f.StringVar(&benchmarkFile, "benchmark", "", "Candle CSV of a benchmark series")
}

func runRisk(cmd *cobra.Command, args []string) error {
	candles, err := loadCandles()
	if err != nil {
		return err
	}
	reporter, err := newReportingManager()
	if err != nil {
		return err
	}

	opts := backtest.RiskOptions{}
	if cmd.Flags().Changed("risk-free-rate") {
		opts.RiskFreeRate = &riskFreeRate
	}
	if benchmarkFile != "" {
		loadOpts, err := loadOptions()
		if err != nil {
			return err
		}
		bench, err := data.NewDataManager().Load(benchmarkFile, loadOpts)
		if err != nil {
			return err
		}
		opts.Benchmark = closeReturns(bench)
	}

	returns := closeReturns(candles)
	if len(returns) == 0 {
		return errors.NewConfigError("cli", "risk", "need at least two candles to compute returns")
	}

	report, err := backtest.AnalyzeRisk(returns, capital(), opts)
	if err != nil {
		return err
	}
	if err := printJSON(report); err != nil {
		return err
	}
	_, err = reporter.ReportRisk(report, dataFlags.Symbol)
	return err
}

// closeReturns returns the simple close-to-close return of every bar after the first
func closeReturns(candles []types.OHLCV) []float64 {
	if len(candles) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, candles[i].Close/prev-1)
	}
	return returns
}
