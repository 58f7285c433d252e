package reporting

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/backtest"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/validation"
)

const timeLayout = "2006-01-02 15:04:05"

// DefaultConsoleReporter renders results as tables
type DefaultConsoleReporter struct {
	out io.Writer
}

// NewDefaultConsoleReporter creates a console reporter writing to stdout
func NewDefaultConsoleReporter() *DefaultConsoleReporter {
	return &DefaultConsoleReporter{out: os.Stdout}
}

// NewConsoleReporterTo creates a console reporter writing to w
func NewConsoleReporterTo(w io.Writer) *DefaultConsoleReporter {
	return &DefaultConsoleReporter{out: w}
}

func (r *DefaultConsoleReporter) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("%s", title)
	t.SetStyle(table.StyleRounded)
	return t
}

func (r *DefaultConsoleReporter) render(t table.Writer) {
	t.Render()
	fmt.Fprintln(r.out)
}

// OutputResults prints the performance report of a single run
func (r *DefaultConsoleReporter) OutputResults(results *backtest.BacktestResults) {
	r.OutputResultsWithContext(results, results.Symbol, "")
}

// OutputResultsWithContext prints the performance report with symbol and interval in the title
func (r *DefaultConsoleReporter) OutputResultsWithContext(results *backtest.BacktestResults, symbol, interval string) {
	title := "BACKTEST RESULTS"
	if symbol != "" {
		title += " - " + symbol
	}
	if interval != "" {
		title += " " + interval
	}

	report := results.Report
	t := r.newTable(title)
	t.AppendRows([]table.Row{
		{"Strategy", results.Strategy},
		{"Parameters", results.Params.String()},
		{"Bars", results.Bars},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Initial Capital", money(results.InitialCapital)},
		{"Final NAV", money(results.FinalNAV)},
		{"Total Return", percent(report.TotalReturn)},
		{"CAGR", percent(report.CAGR)},
		{"Max Drawdown", fmt.Sprintf("%s (%s)", percent(report.MaxDrawdownPercent), money(report.MaxDrawdown))},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Sharpe Ratio", ratio(report.SharpeRatio)},
		{"Sortino Ratio", ratio(report.SortinoRatio)},
		{"Profit Factor", ratio(report.ProfitFactor)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Total Trades", report.TotalTrades},
		{"Win Rate", fmt.Sprintf("%s (%d W / %d L)", percent(report.WinRate), report.WinningTrades, report.LosingTrades)},
		{"Avg Win", money(report.AverageWin)},
		{"Avg Loss", money(report.AverageLoss)},
	})
	if pos := results.OpenPosition; pos != nil {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Open Position", fmt.Sprintf("%d @ %.4f since %s", pos.Quantity, pos.EntryPrice, pos.EntryTime.Format(timeLayout))})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 28, Align: text.AlignRight},
	})
	r.render(t)
}

// PrintTrades prints up to limit trades; limit <= 0 prints all of them
func (r *DefaultConsoleReporter) PrintTrades(trades []backtest.Trade, limit int) {
	if len(trades) == 0 {
		return
	}
	shown := trades
	if limit > 0 && len(trades) > limit {
		shown = trades[len(trades)-limit:]
	}

	t := r.newTable(fmt.Sprintf("TRADES (%d of %d)", len(shown), len(trades)))
	t.AppendHeader(table.Row{"Entry Time", "Exit Time", "Side", "Qty", "Entry", "Exit", "PnL"})
	for _, trade := range shown {
		t.AppendRow(table.Row{
			trade.EntryTime.Format(timeLayout),
			trade.ExitTime.Format(timeLayout),
			trade.Side,
			trade.Quantity,
			fmt.Sprintf("%.4f", trade.EntryPrice),
			fmt.Sprintf("%.4f", trade.ExitPrice),
			money(trade.PnL),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	r.render(t)
}

// PrintLeaderboard prints the best results of an optimization; top <= 0 prints all
func (r *DefaultConsoleReporter) PrintLeaderboard(result *backtest.OptimizationResult, top int) {
	entries := result.Leaderboard
	if top > 0 && len(entries) > top {
		entries = entries[:top]
	}

	t := r.newTable(fmt.Sprintf("OPTIMIZATION - %s %s (%d combinations, %d failed)",
		result.StrategyID, result.Symbol, result.Combinations, result.Failures))
	t.AppendHeader(table.Row{"#", "Parameters", "Sharpe", "Sortino", "Win Rate", "Profit Factor", "CAGR", "Max DD", "Trades"})
	for i, e := range entries {
		if e.Failed {
			t.AppendRow(table.Row{i + 1, e.Params.String(), "failed", "", "", "", "", "", e.Error})
			continue
		}
		t.AppendRow(table.Row{
			i + 1,
			e.Params.String(),
			ratio(e.SharpeRatio),
			ratio(e.SortinoRatio),
			percent(e.WinRate),
			ratio(e.ProfitFactor),
			percent(e.CAGR),
			percent(e.MaxDrawdownPercent),
			e.TotalTrades,
		})
	}
	t.AppendFooter(table.Row{"", "Best: " + result.BestParams.String(), ratio(result.BestSharpe), "", percent(result.BestWinRate), ratio(result.BestProfitFactor)})
	r.render(t)
}

// PrintWalkForwardSummary prints per-fold results and the aggregate verdict
func (r *DefaultConsoleReporter) PrintWalkForwardSummary(summary *validation.WalkForwardSummary) {
	t := r.newTable(fmt.Sprintf("WALK-FORWARD - %s %s (%d folds, %.0f%% in-sample)",
		summary.StrategyID, summary.Symbol, summary.FoldCount, summary.InSampleRatio*100))
	t.AppendHeader(table.Row{"Fold", "Out-of-Sample Period", "Best Params", "IS Sharpe", "OOS Sharpe", "OOS Win Rate", "OOS Trades", "OOS PnL", "Degradation"})
	for _, f := range summary.Folds {
		t.AppendRow(table.Row{
			f.Fold,
			fmt.Sprintf("%s .. %s", f.OutSampleStart.Format("2006-01-02"), f.OutSampleEnd.Format("2006-01-02")),
			f.BestParams.String(),
			ratio(f.InSampleSharpe),
			ratio(f.OutSampleSharpe),
			percent(f.OutSampleWinRate),
			f.OutSampleTrades,
			money(f.OutSamplePnL),
			ratio(f.Degradation),
		})
	}
	r.render(t)

	if len(summary.Skipped) > 0 {
		s := r.newTable("SKIPPED FOLDS")
		s.AppendHeader(table.Row{"Fold", "Bars", "Reason"})
		for _, skipped := range summary.Skipped {
			s.AppendRow(table.Row{skipped.Fold, fmt.Sprintf("%d..%d", skipped.Start, skipped.End), skipped.Reason})
		}
		r.render(s)
	}

	agg := summary.Aggregate
	verdict := "ROBUST - good generalization across periods"
	if !agg.IsRobust {
		verdict = "NOT ROBUST - out-of-sample results do not hold up"
	}
	a := r.newTable("AGGREGATE")
	a.AppendRows([]table.Row{
		{"Avg In-Sample Sharpe", ratio(agg.AvgInSampleSharpe)},
		{"Avg Out-of-Sample Sharpe", ratio(agg.AvgOutSampleSharpe)},
		{"Avg Degradation", ratio(agg.AvgDegradation)},
		{"Out-of-Sample Trades", agg.TotalOutSampleTrades},
		{"Out-of-Sample PnL", money(agg.TotalOutSamplePnL)},
	})
	a.AppendSeparator()
	a.AppendRows([]table.Row{
		{"Consistency", percent(agg.ConsistencyScore * 100)},
		{"Overfitting Score", ratio(agg.OverfittingScore)},
		{"Overfitting Risk", agg.OverfittingRisk},
		{"Most Robust Params", agg.MostRobustParams.String()},
		{"Verdict", verdict},
	})
	a.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 24, Align: text.AlignLeft},
		{Number: 2, WidthMin: 28, Align: text.AlignRight},
	})
	r.render(a)
}

// PrintRisk prints a risk report
func (r *DefaultConsoleReporter) PrintRisk(report backtest.RiskReport) {
	t := r.newTable(fmt.Sprintf("RISK ANALYSIS (%d observations)", report.Observations))
	t.AppendRows([]table.Row{
		{"Annualized Return", percent(report.AnnualizedReturn)},
		{"Volatility", percent(report.Volatility)},
		{"Risk-Free Rate", fmt.Sprintf("%.6f", report.RiskFreeRate)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Sharpe Ratio", ratio(report.SharpeRatio)},
		{"Sortino Ratio", ratio(report.SortinoRatio)},
		{"Calmar Ratio", ratio(report.CalmarRatio)},
		{"Max Drawdown", fmt.Sprintf("%s (%s)", percent(report.MaxDrawdownPercent), money(report.MaxDrawdown))},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"VaR 95%", money(report.VaR95)},
		{"VaR 99%", money(report.VaR99)},
		{"CVaR 95%", money(report.CVaR95)},
		{"Beta", ratio(report.Beta)},
		{"Alpha", ratio(report.Alpha)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, Align: text.AlignRight},
	})
	r.render(t)
}

func money(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}

func percent(v float64) string { return fmt.Sprintf("%.2f%%", v) }

func ratio(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", v)
}
