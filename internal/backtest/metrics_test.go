package backtest

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func tradesWithPnL(pnls ...float64) []Trade {
	trades := make([]Trade, len(pnls))
	for i, p := range pnls {
		trades[i] = Trade{Symbol: "BTCUSDT", PnL: p}
	}
	return trades
}

// TestAnalyzePerformance_KnownValues tests the formulas on a small trade log
func TestAnalyzePerformance_KnownValues(t *testing.T) {
	trades := tradesWithPnL(100, -50, 150)

	report := AnalyzePerformance(trades, 1000, 1200, 252, 0.1, 120)

	assert.Equal(t, 3, report.TotalTrades)
	assert.Equal(t, 2, report.WinningTrades)
	assert.Equal(t, 1, report.LosingTrades)
	assert.InDelta(t, 66.6667, report.WinRate, 1e-4)
	assert.InDelta(t, 5.0, report.ProfitFactor, 1e-12)
	assert.InDelta(t, 125.0, report.AverageWin, 1e-12)
	assert.InDelta(t, 50.0, report.AverageLoss, 1e-12)
	assert.InDelta(t, 12.4529885199065, report.SharpeRatio, 1e-9)
	assert.InDelta(t, 21.166010488516726, report.SortinoRatio, 1e-9)
	assert.InDelta(t, 20.0, report.CAGR, 1e-9, "one year of bars")
	assert.InDelta(t, 20.0, report.TotalReturn, 1e-9)
	assert.InDelta(t, 10.0, report.MaxDrawdownPercent, 1e-12)
	assert.InDelta(t, 120.0, report.MaxDrawdown, 1e-12)
}

// TestAnalyzePerformance_NoTrades tests the all-zero report
func TestAnalyzePerformance_NoTrades(t *testing.T) {
	report := AnalyzePerformance(nil, 1000, 1000, 100, 0, 0)
	assert.Equal(t, PerformanceReport{}, report)

	report = AnalyzePerformance(nil, 1000, 1000, 0, 0, 0)
	assert.Equal(t, 0.0, report.CAGR)
}

// TestAnalyzePerformance_SingleTrade tests that ratios fall back to 0 with one trade
func TestAnalyzePerformance_SingleTrade(t *testing.T) {
	report := AnalyzePerformance(tradesWithPnL(-40), 1000, 960, 50, 0.04, 40)

	assert.Equal(t, 0.0, report.SharpeRatio)
	assert.Equal(t, 0.0, report.SortinoRatio)
	assert.Equal(t, 0.0, report.ProfitFactor)
	assert.Equal(t, 40.0, report.AverageLoss)
}

// TestCalculateProfitFactor_NoLosses tests the zero fallback
func TestCalculateProfitFactor_NoLosses(t *testing.T) {
	assert.Equal(t, 0.0, CalculateProfitFactor(tradesWithPnL(10, 20)))
	assert.Equal(t, 0.0, CalculateProfitFactor(nil))
}

// TestCalculateCAGR tests annualisation and guards
func TestCalculateCAGR(t *testing.T) {
	assert.InDelta(t, 2.5391851570812696, CalculateCAGR(0.01, 100), 1e-9)
	assert.Equal(t, 0.0, CalculateCAGR(0.5, 0))
	assert.Equal(t, -100.0, CalculateCAGR(-1, 10))
	assert.Equal(t, -100.0, CalculateCAGR(-1.5, 10))

	huge := CalculateCAGR(1e6, 1)
	assert.False(t, math.IsInf(huge, 0) || math.IsNaN(huge))
}

// TestCalculateSharpeRatio_ZeroVariance tests identical returns
func TestCalculateSharpeRatio_ZeroVariance(t *testing.T) {
	assert.Equal(t, 0.0, CalculateSharpeRatio([]float64{0.01, 0.01, 0.01}, 0))
	assert.Equal(t, 0.0, CalculateSharpeRatio(nil, 0))
	assert.Equal(t, 0.0, CalculateSortinoRatio([]float64{0.01, 0.02}, 0), "no negative returns")
}

// TestCalculateCalmarRatio tests the ratio and the zero drawdown guard
func TestCalculateCalmarRatio(t *testing.T) {
	assert.InDelta(t, 0.025, CalculateCalmarRatio(0.5, 0.2), 1e-12)
	assert.Equal(t, 0.0, CalculateCalmarRatio(0.5, 0))
}

// TestAnalyzePerformance_AlwaysFinite tests random trade logs never leak NaN or Inf
func TestAnalyzePerformance_AlwaysFinite(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 50; n++ {
		pnls := make([]float64, rng.Intn(5))
		for i := range pnls {
			pnls[i] = rng.NormFloat64() * 100
		}
		report := AnalyzePerformance(tradesWithPnL(pnls...), 1000, 1000+rng.NormFloat64()*500, rng.Intn(3), rng.Float64(), rng.Float64()*100)
		for _, v := range []float64{report.CAGR, report.SharpeRatio, report.SortinoRatio, report.ProfitFactor, report.WinRate, report.AverageWin, report.AverageLoss} {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	}
}
