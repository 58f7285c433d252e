package backtest

import (
	"math"
	"sort"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
)

// DefaultRiskFreeRate is a 6% annual rate expressed per trading day.
const DefaultRiskFreeRate = 0.06 / TradingDaysPerYear

// RiskOptions tunes AnalyzeRisk. A nil RiskFreeRate selects
// DefaultRiskFreeRate. Benchmark, when it has at least two observations,
// is aligned with the returns from the start to compute beta and alpha.
type RiskOptions struct {
	RiskFreeRate *float64
	Benchmark    []float64
}

// RiskReport describes a periodic return series. Volatility and
// AnnualizedReturn are percentages; VaR, CVaR and MaxDrawdown are currency
// amounts on the initial capital, positive for losses.
type RiskReport struct {
	SharpeRatio        float64 `json:"sharpe_ratio"`
	SortinoRatio       float64 `json:"sortino_ratio"`
	CalmarRatio        float64 `json:"calmar_ratio"`
	MaxDrawdown        float64 `json:"max_drawdown"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"`
	VaR95              float64 `json:"var_95"`
	VaR99              float64 `json:"var_99"`
	CVaR95             float64 `json:"cvar_95"`
	Beta               float64 `json:"beta"`
	Alpha              float64 `json:"alpha"`
	Volatility         float64 `json:"volatility"`
	AnnualizedReturn   float64 `json:"annualized_return"`
	RiskFreeRate       float64 `json:"risk_free_rate"`
	Observations       int     `json:"observations"`
}

// AnalyzeRisk computes risk statistics for returns compounded on
// initialCapital. An empty series yields a zero report.
func AnalyzeRisk(returns []float64, initialCapital float64, opts RiskOptions) (RiskReport, error) {
	if !(initialCapital > 0) || math.IsInf(initialCapital, 0) {
		return RiskReport{}, errors.NewConfigError("risk", "analyze", "initial capital must be positive, got %v", initialCapital)
	}
	for i, r := range returns {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return RiskReport{}, errors.NewConfigError("risk", "analyze", "return %d is not finite", i)
		}
	}

	riskFree := DefaultRiskFreeRate
	if opts.RiskFreeRate != nil {
		riskFree = *opts.RiskFreeRate
	}

	report := RiskReport{RiskFreeRate: riskFree, Observations: len(returns)}
	if len(returns) == 0 {
		return report, nil
	}

	mean, stdDev := meanStdDev(returns)
	annualizedReturn := mean * TradingDaysPerYear

	report.SharpeRatio = CalculateSharpeRatio(returns, riskFree)
	report.SortinoRatio = CalculateSortinoRatio(returns, riskFree)
	report.Volatility = finiteOrZero(stdDev * math.Sqrt(TradingDaysPerYear) * 100)
	report.AnnualizedReturn = finiteOrZero(annualizedReturn * 100)

	maxDrawdown := compoundedDrawdown(returns, initialCapital)
	report.MaxDrawdown = finiteOrZero(maxDrawdown * initialCapital)
	report.MaxDrawdownPercent = finiteOrZero(maxDrawdown * 100)
	report.CalmarRatio = CalculateCalmarRatio(annualizedReturn, maxDrawdown)

	report.VaR95, report.VaR99, report.CVaR95 = valueAtRisk(returns, initialCapital)

	if len(opts.Benchmark) >= 2 {
		report.Beta, report.Alpha = betaAlpha(returns, opts.Benchmark, riskFree)
	}

	return report, nil
}

// compoundedDrawdown returns the maximum drawdown fraction of the nav path
// obtained by compounding returns.
func compoundedDrawdown(returns []float64, initialCapital float64) float64 {
	nav := initialCapital
	peak := nav
	maxDrawdown := 0.0
	for _, r := range returns {
		nav *= 1 + r
		if nav > peak {
			peak = nav
		}
		drawdown := math.Min(1, (peak-nav)/peak)
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// valueAtRisk uses the sorted empirical distribution: VaR_p is the loss at
// index floor((1-p)*n); CVaR_95 averages the returns below the VaR_95 index
// and falls back to VaR_95 when there are none.
func valueAtRisk(returns []float64, capital float64) (var95, var99, cvar95 float64) {
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	n := float64(len(sorted))

	idx95 := int((1 - 0.95) * n)
	idx99 := int((1 - 0.99) * n)
	if idx95 < len(sorted) {
		var95 = -sorted[idx95] * capital
	}
	if idx99 < len(sorted) {
		var99 = -sorted[idx99] * capital
	}

	cvar95 = var95
	if idx95 > 0 {
		sum := 0.0
		for _, r := range sorted[:idx95] {
			sum += r
		}
		cvar95 = -sum / float64(idx95) * capital
	}
	return finiteOrZero(var95), finiteOrZero(var99), finiteOrZero(cvar95)
}

// betaAlpha regresses returns on benchmark over their common prefix. Alpha
// is Jensen's alpha annualised and expressed in percent.
func betaAlpha(returns, benchmark []float64, riskFree float64) (beta, alpha float64) {
	n := len(returns)
	if len(benchmark) < n {
		n = len(benchmark)
	}
	if n < 2 {
		return 0, 0
	}
	r, m := returns[:n], benchmark[:n]
	meanR, _ := meanStdDev(r)
	meanM, stdM := meanStdDev(m)
	if stdM == 0 {
		return 0, 0
	}

	covariance := 0.0
	for i := 0; i < n; i++ {
		covariance += (r[i] - meanR) * (m[i] - meanM)
	}
	covariance /= float64(n)

	beta = covariance / (stdM * stdM)
	alpha = ((meanR - riskFree) - beta*(meanM-riskFree)) * TradingDaysPerYear * 100
	return finiteOrZero(beta), finiteOrZero(alpha)
}
