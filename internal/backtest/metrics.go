package backtest

import (
	"math"
)

// TradingDaysPerYear is the annualisation factor for per-bar and per-trade
// statistics.
const TradingDaysPerYear = 252

// PerformanceReport summarises a run. CAGR, MaxDrawdownPercent and WinRate
// are percentages; MaxDrawdown and AverageWin/AverageLoss are currency
// amounts. AverageLoss is reported as a positive magnitude. No field is ever
// NaN or infinite.
type PerformanceReport struct {
	CAGR               float64 `json:"cagr"`
	TotalReturn        float64 `json:"total_return"`
	MaxDrawdown        float64 `json:"max_drawdown_amount"`
	MaxDrawdownPercent float64 `json:"max_drawdown"`
	SharpeRatio        float64 `json:"sharpe_ratio"`
	SortinoRatio       float64 `json:"sortino_ratio"`
	WinRate            float64 `json:"win_rate"`
	ProfitFactor       float64 `json:"profit_factor"`
	AverageWin         float64 `json:"avg_win"`
	AverageLoss        float64 `json:"avg_loss"`
	TotalTrades        int     `json:"total_trades"`
	WinningTrades      int     `json:"winning_trades"`
	LosingTrades       int     `json:"losing_trades"`
}

// UpdateMetrics recomputes Report from the trade log, final nav and the
// running drawdown maxima.
func (b *BacktestResults) UpdateMetrics() {
	b.Report = AnalyzePerformance(b.Trades, b.InitialCapital, b.FinalNAV, b.Bars, b.MaxDrawdown, b.MaxDrawdownAmount)
}

// AnalyzePerformance builds a report from a trade log. maxDrawdown is a
// fraction in [0,1]; maxDrawdownAmount is in currency.
func AnalyzePerformance(trades []Trade, initialCapital, finalNAV float64, barCount int, maxDrawdown, maxDrawdownAmount float64) PerformanceReport {
	report := PerformanceReport{
		MaxDrawdown:        finiteOrZero(maxDrawdownAmount),
		MaxDrawdownPercent: finiteOrZero(maxDrawdown * 100),
		TotalTrades:        len(trades),
	}
	if initialCapital > 0 {
		report.TotalReturn = finiteOrZero((finalNAV - initialCapital) / initialCapital * 100)
		report.CAGR = CalculateCAGR((finalNAV-initialCapital)/initialCapital, barCount)
	}

	for _, trade := range trades {
		if trade.PnL > 0 {
			report.WinningTrades++
		} else if trade.PnL < 0 {
			report.LosingTrades++
		}
	}

	report.WinRate = CalculateWinRate(trades)
	report.ProfitFactor = CalculateProfitFactor(trades)
	report.AverageWin, report.AverageLoss = CalculateAverageWinLoss(trades)

	returns := TradeReturns(trades, initialCapital)
	report.SharpeRatio = CalculateSharpeRatio(returns, 0)
	report.SortinoRatio = CalculateSortinoRatio(returns, 0)

	return report
}

// CalculateCAGR annualises totalReturn over barCount bars, in percent.
// A total loss or worse yields -100.
func CalculateCAGR(totalReturn float64, barCount int) float64 {
	if barCount <= 0 {
		return 0
	}
	if 1+totalReturn <= 0 {
		return -100
	}
	years := float64(barCount) / TradingDaysPerYear
	return finiteOrZero((math.Pow(1+totalReturn, 1/years) - 1) * 100)
}

// CalculateWinRate calculates the win rate percentage
func CalculateWinRate(trades []Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, trade := range trades {
		if trade.PnL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trades)) * 100
}

// CalculateProfitFactor returns gross profit over gross loss, 0 without losses.
func CalculateProfitFactor(trades []Trade) float64 {
	totalProfit, totalLoss := 0.0, 0.0
	for _, trade := range trades {
		if trade.PnL > 0 {
			totalProfit += trade.PnL
		} else if trade.PnL < 0 {
			totalLoss += math.Abs(trade.PnL)
		}
	}
	if totalLoss == 0 {
		return 0
	}
	return finiteOrZero(totalProfit / totalLoss)
}

// CalculateAverageWinLoss returns the mean winning PnL and the mean losing
// PnL magnitude.
func CalculateAverageWinLoss(trades []Trade) (avgWin, avgLoss float64) {
	var wins, losses int
	for _, trade := range trades {
		if trade.PnL > 0 {
			avgWin += trade.PnL
			wins++
		} else if trade.PnL < 0 {
			avgLoss += -trade.PnL
			losses++
		}
	}
	if wins > 0 {
		avgWin /= float64(wins)
	}
	if losses > 0 {
		avgLoss /= float64(losses)
	}
	return avgWin, avgLoss
}

// TradeReturns converts each trade's PnL to a return on initial capital.
func TradeReturns(trades []Trade, initialCapital float64) []float64 {
	returns := make([]float64, 0, len(trades))
	if initialCapital <= 0 {
		return returns
	}
	for _, trade := range trades {
		returns = append(returns, trade.PnL/initialCapital)
	}
	return returns
}

// CalculateSharpeRatio returns the annualised Sharpe ratio of returns in
// excess of riskFree per period, using the population standard deviation of
// the raw returns. It is 0 for fewer than two returns or zero deviation.
func CalculateSharpeRatio(returns []float64, riskFree float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, stdDev := meanStdDev(returns)
	if stdDev == 0 {
		return 0
	}
	return finiteOrZero((mean - riskFree) / stdDev * math.Sqrt(TradingDaysPerYear))
}

// CalculateSortinoRatio is like CalculateSharpeRatio but divides by the
// downside deviation sqrt(mean(r^2)) over negative returns only. It is 0 for
// fewer than two returns or no negative returns.
func CalculateSortinoRatio(returns []float64, riskFree float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	downside := downsideDeviation(returns)
	if downside == 0 {
		return 0
	}
	mean, _ := meanStdDev(returns)
	return finiteOrZero((mean - riskFree) / downside * math.Sqrt(TradingDaysPerYear))
}

// CalculateCalmarRatio divides an annualised return (fraction) by the max
// drawdown expressed in percent. It is 0 when there was no drawdown.
func CalculateCalmarRatio(annualizedReturn, maxDrawdown float64) float64 {
	if maxDrawdown <= 0 {
		return 0
	}
	return finiteOrZero(annualizedReturn / (maxDrawdown * 100))
}

func meanStdDev(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func downsideDeviation(returns []float64) float64 {
	sum, n := 0.0, 0
	for _, r := range returns {
		if r < 0 {
			sum += r * r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

// finiteOrZero keeps NaN and infinities out of reports.
func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
