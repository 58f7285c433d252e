package backtest

import (
	"math"
	"math/rand"
	"testing"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

// TestAnalyzeRisk_Empty tests that an empty series yields a zero report
func TestAnalyzeRisk_Empty(t *testing.T) {
	report, err := AnalyzeRisk(nil, 10000, RiskOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, report.SharpeRatio)
	assert.Equal(t, 0.0, report.VaR95)
	assert.Equal(t, DefaultRiskFreeRate, report.RiskFreeRate)
	assert.Equal(t, 0, report.Observations)
}

// TestAnalyzeRisk_InvalidInput tests capital and value validation
func TestAnalyzeRisk_InvalidInput(t *testing.T) {
	_, err := AnalyzeRisk([]float64{0.01}, 0, RiskOptions{})
	assert.True(t, errors.IsConfigError(err))

	_, err = AnalyzeRisk([]float64{0.01, math.NaN()}, 1000, RiskOptions{})
	assert.True(t, errors.IsConfigError(err))
}

// TestAnalyzeRisk_VaR tests quantile indexing on a known distribution
func TestAnalyzeRisk_VaR(t *testing.T) {
	// 100 returns: -0.50, -0.49, ..., 0.49
	returns := make([]float64, 100)
	for i := range returns {
		returns[i] = float64(i-50) / 100
	}
	rand.New(rand.NewSource(1)).Shuffle(len(returns), func(i, j int) { returns[i], returns[j] = returns[j], returns[i] })

	report, err := AnalyzeRisk(returns, 1000, RiskOptions{RiskFreeRate: ptr(0)})
	require.NoError(t, err)

	assert.InDelta(t, 450.0, report.VaR95, 1e-9) // index 5 -> -0.45
	assert.InDelta(t, 490.0, report.VaR99, 1e-9) // index 1 -> -0.49
	assert.InDelta(t, 480.0, report.CVaR95, 1e-9) // mean of -0.50..-0.46
	assert.Equal(t, 100, report.Observations)
}

// TestAnalyzeRisk_CVaRFallback tests the fallback to VaR when the tail is empty
func TestAnalyzeRisk_CVaRFallback(t *testing.T) {
	report, err := AnalyzeRisk([]float64{-0.02, 0.01, 0.03}, 1000, RiskOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 20.0, report.VaR95, 1e-9)
	assert.Equal(t, report.VaR95, report.CVaR95)
}

// TestAnalyzeRisk_CVaRDominatesVaR tests the tail mean is at least the cutoff loss
func TestAnalyzeRisk_CVaRDominatesVaR(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 100; trial++ {
		returns := make([]float64, 1+rng.Intn(300))
		for i := range returns {
			returns[i] = rng.NormFloat64() * 0.02
		}
		report, err := AnalyzeRisk(returns, 5000, RiskOptions{})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, report.CVaR95, report.VaR95-1e-9)
	}
}

// TestAnalyzeRisk_Drawdown tests compounded drawdown, Calmar and annualisation
func TestAnalyzeRisk_Drawdown(t *testing.T) {
	returns := []float64{0.10, -0.20, 0.05}

	report, err := AnalyzeRisk(returns, 1000, RiskOptions{RiskFreeRate: ptr(0)})
	require.NoError(t, err)

	// nav 1100 -> 880 -> 924, drawdown 220/1100
	assert.InDelta(t, 20.0, report.MaxDrawdownPercent, 1e-9)
	assert.InDelta(t, 200.0, report.MaxDrawdown, 1e-9)

	mean := (0.10 - 0.20 + 0.05) / 3
	assert.InDelta(t, mean*252*100, report.AnnualizedReturn, 1e-9)
	assert.InDelta(t, mean*252/20, report.CalmarRatio, 1e-9)
	assert.Greater(t, report.Volatility, 0.0)
	assert.Less(t, report.SharpeRatio, 0.0)
	assert.Less(t, report.SortinoRatio, 0.0)
}

// TestAnalyzeRisk_ExcessReturns tests that the risk-free rate lowers Sharpe
func TestAnalyzeRisk_ExcessReturns(t *testing.T) {
	returns := []float64{0.01, 0.02, -0.01, 0.015}

	zero, err := AnalyzeRisk(returns, 1000, RiskOptions{RiskFreeRate: ptr(0)})
	require.NoError(t, err)
	def, err := AnalyzeRisk(returns, 1000, RiskOptions{})
	require.NoError(t, err)

	assert.Greater(t, zero.SharpeRatio, def.SharpeRatio)
	assert.Equal(t, zero.Volatility, def.Volatility)
}

// TestAnalyzeRisk_SingleReturn tests that ratios stay 0 on a single observation
func TestAnalyzeRisk_SingleReturn(t *testing.T) {
	report, err := AnalyzeRisk([]float64{-0.05}, 1000, RiskOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, report.SharpeRatio)
	assert.Equal(t, 0.0, report.SortinoRatio)
	assert.InDelta(t, 50.0, report.VaR95, 1e-9)
	assert.False(t, math.IsNaN(report.CalmarRatio))
}

// TestAnalyzeRisk_Benchmark tests beta and alpha against a benchmark
func TestAnalyzeRisk_Benchmark(t *testing.T) {
	bench := []float64{0.01, -0.02, 0.015, 0.005, -0.01}
	returns := make([]float64, len(bench))
	for i, b := range bench {
		returns[i] = 2 * b
	}

	report, err := AnalyzeRisk(returns, 1000, RiskOptions{RiskFreeRate: ptr(0), Benchmark: bench})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, report.Beta, 1e-9)
	assert.InDelta(t, 0.0, report.Alpha, 1e-9)

	noBench, err := AnalyzeRisk(returns, 1000, RiskOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, noBench.Beta)
	assert.Equal(t, 0.0, noBench.Alpha)
}
