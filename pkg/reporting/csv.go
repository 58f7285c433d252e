package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/backtest"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/validation"
)

// DefaultCSVReporter implements CSV output functionality
type DefaultCSVReporter struct{}

// NewDefaultCSVReporter creates a new CSV reporter
func NewDefaultCSVReporter() *DefaultCSVReporter {
	return &DefaultCSVReporter{}
}

func writeCSV(path string, header []string, rows [][]string) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// WriteTradesCSV writes the trade log followed by a summary row. A path
// ending in .xlsx produces a full workbook instead.
func (r *DefaultCSVReporter) WriteTradesCSV(results *backtest.BacktestResults, path string) error {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return WriteBacktestXLSX(results, path)
	}

	header := []string{"Entry_Time", "Exit_Time", "Side", "Quantity", "Entry_Price", "Exit_Price", "Return_%", "PnL", "Win_Loss"}
	rows := make([][]string, 0, len(results.Trades)+1)

	var totalPnL float64
	for _, t := range results.Trades {
		totalPnL += t.PnL
		winLoss := "W"
		if t.PnL < 0 {
			winLoss = "L"
		}
		var tradeReturn float64
		if t.EntryPrice > 0 {
			tradeReturn = (t.ExitPrice - t.EntryPrice) / t.EntryPrice * 100
		}
		rows = append(rows, []string{
			t.EntryTime.Format(timeLayout),
			t.ExitTime.Format(timeLayout),
			string(t.Side),
			strconv.FormatInt(t.Quantity, 10),
			formatFloat(t.EntryPrice, 8),
			formatFloat(t.ExitPrice, 8),
			formatFloat(tradeReturn, 2),
			formatFloat(t.PnL, 2),
			winLoss,
		})
	}

	summary := make([]string, len(header))
	summary[len(summary)-1] = fmt.Sprintf("SUMMARY: total_pnl=%.2f; final_nav=%.2f; win_rate=%.2f%%; total_trades=%d",
		totalPnL, results.FinalNAV, results.Report.WinRate, len(results.Trades))
	rows = append(rows, summary)

	return writeCSV(path, header, rows)
}

// WriteEquityCSV writes the equity curve
func (r *DefaultCSVReporter) WriteEquityCSV(results *backtest.BacktestResults, path string) error {
	rows := make([][]string, len(results.EquityCurve))
	for i, p := range results.EquityCurve {
		rows[i] = []string{p.Timestamp.Format(timeLayout), formatFloat(p.NAV, 2)}
	}
	return writeCSV(path, []string{"Date", "NAV"}, rows)
}

// WriteLeaderboardCSV writes every evaluated parameter set in rank order
func (r *DefaultCSVReporter) WriteLeaderboardCSV(result *backtest.OptimizationResult, path string) error {
	header := []string{"Rank", "Params", "Sharpe", "Sortino", "Win_Rate_%", "Profit_Factor", "CAGR_%", "Max_Drawdown_%", "Trades", "Error"}
	rows := make([][]string, len(result.Leaderboard))
	for i, e := range result.Leaderboard {
		sharpe := ""
		if !e.Failed {
			sharpe = formatFloat(e.SharpeRatio, 6)
		}
		rows[i] = []string{
			strconv.Itoa(i + 1),
			e.Params.String(),
			sharpe,
			formatFloat(e.SortinoRatio, 6),
			formatFloat(e.WinRate, 2),
			formatFloat(e.ProfitFactor, 4),
			formatFloat(e.CAGR, 2),
			formatFloat(e.MaxDrawdownPercent, 2),
			strconv.Itoa(e.TotalTrades),
			e.Error,
		}
	}
	return writeCSV(path, header, rows)
}

// WriteFoldsCSV writes one row per retained walk-forward fold
func (r *DefaultCSVReporter) WriteFoldsCSV(summary *validation.WalkForwardSummary, path string) error {
	header := []string{"Fold", "IS_Start", "IS_End", "OOS_Start", "OOS_End", "Best_Params", "IS_Sharpe", "OOS_Sharpe", "IS_Win_Rate_%", "OOS_Win_Rate_%", "OOS_Trades", "OOS_PnL", "Degradation"}
	rows := make([][]string, len(summary.Folds))
	for i, f := range summary.Folds {
		rows[i] = []string{
			strconv.Itoa(f.Fold),
			f.InSampleStart.Format(timeLayout),
			f.InSampleEnd.Format(timeLayout),
			f.OutSampleStart.Format(timeLayout),
			f.OutSampleEnd.Format(timeLayout),
			f.BestParams.String(),
			formatFloat(f.InSampleSharpe, 6),
			formatFloat(f.OutSampleSharpe, 6),
			formatFloat(f.InSampleWinRate, 2),
			formatFloat(f.OutSampleWinRate, 2),
			strconv.Itoa(f.OutSampleTrades),
			formatFloat(f.OutSamplePnL, 2),
			formatFloat(f.Degradation, 6),
		}
	}
	return writeCSV(path, header, rows)
}

// WriteTradesCSV writes the trade log with the default reporter
func WriteTradesCSV(results *backtest.BacktestResults, path string) error {
	return NewDefaultCSVReporter().WriteTradesCSV(results, path)
}
