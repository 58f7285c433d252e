package reporting

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/backtest"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/validation"
)

// Workbook sheet names
const (
	SheetSummary     = "Summary"
	SheetTrades      = "Trades"
	SheetEquity      = "Equity"
	SheetLeaderboard = "Leaderboard"
	SheetFolds       = "Folds"
)

// Workbook collects the results written to one XLSX file. Nil parts are
// left out; the Summary sheet is always present.
type Workbook struct {
	Backtest     *backtest.BacktestResults
	Optimization *backtest.OptimizationResult
	WalkForward  *validation.WalkForwardSummary
}

// DefaultExcelReporter implements Excel output functionality
type DefaultExcelReporter struct{}

// NewDefaultExcelReporter creates a new Excel reporter
func NewDefaultExcelReporter() *DefaultExcelReporter {
	return &DefaultExcelReporter{}
}

// WriteWorkbook writes wb to path
func (r *DefaultExcelReporter) WriteWorkbook(wb Workbook, path string) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}

	fx := excelize.NewFile()
	defer fx.Close()

	if err := fx.SetSheetName(fx.GetSheetName(0), SheetSummary); err != nil {
		return err
	}

	styles, err := r.createExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeSummarySheet(fx, wb, styles); err != nil {
		return err
	}
	if wb.Backtest != nil {
		if err := r.writeTradesSheet(fx, wb.Backtest, styles); err != nil {
			return err
		}
		if err := r.writeEquitySheet(fx, wb.Backtest, styles); err != nil {
			return err
		}
	}
	if wb.Optimization != nil {
		if err := r.writeLeaderboardSheet(fx, wb.Optimization, styles); err != nil {
			return err
		}
	}
	if wb.WalkForward != nil {
		if err := r.writeFoldsSheet(fx, wb.WalkForward, styles); err != nil {
			return err
		}
	}

	return fx.SaveAs(path)
}

func (r *DefaultExcelReporter) createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	border := func(color string) []excelize.Border {
		return []excelize.Border{
			{Type: "left", Color: color, Style: 1},
			{Type: "right", Color: color, Style: 1},
			{Type: "top", Color: color, Style: 1},
			{Type: "bottom", Color: color, Style: 1},
		}
	}

	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border("000000"),
	})
	if err != nil {
		return styles, err
	}

	// Currency with two decimals
	styles.CurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7,
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    border("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	// Values already in percent units, shown with a literal % sign
	percentFmt := `0.00"%"`
	styles.PercentStyle, err = fx.NewStyle(&excelize.Style{
		CustomNumFmt: &percentFmt,
		Alignment:    &excelize.Alignment{Horizontal: "right"},
		Border:       border("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	styles.BaseStyle, err = fx.NewStyle(&excelize.Style{
		Border: border("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	styles.GreenStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt: 7,
		Font:   &excelize.Font{Color: "008000"},
		Border: border("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	styles.RedStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt: 7,
		Font:   &excelize.Font{Color: "C00000"},
		Border: border("E0E0E0"),
	})
	if err != nil {
		return styles, err
	}

	styles.SummaryStyle, err = fx.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E8F0FE"}, Pattern: 1},
		Border: border("E0E0E0"),
	})
	return styles, err
}

func (r *DefaultExcelReporter) writeHeader(fx *excelize.File, sheet string, headers []string, styles ExcelStyles) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", last, styles.HeaderStyle); err != nil {
		return err
	}
	return fx.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// writeRow writes values starting at column A, applying one style per column
func (r *DefaultExcelReporter) writeRow(fx *excelize.File, sheet string, row int, values []interface{}, colStyles []int) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		if i < len(colStyles) && colStyles[i] != 0 {
			if err := fx.SetCellStyle(sheet, cell, cell, colStyles[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeSummarySheet(fx *excelize.File, wb Workbook, styles ExcelStyles) error {
	const sheet = SheetSummary
	fx.SetColWidth(sheet, "A", "A", 28)
	fx.SetColWidth(sheet, "B", "B", 36)

	row := 1
	section := func(title string) error {
		cell := fmt.Sprintf("A%d", row)
		if err := fx.SetCellValue(sheet, cell, title); err != nil {
			return err
		}
		end := fmt.Sprintf("B%d", row)
		if err := fx.SetCellStyle(sheet, cell, end, styles.HeaderStyle); err != nil {
			return err
		}
		row++
		return nil
	}
	line := func(label string, value interface{}, style int) error {
		if err := r.writeRow(fx, sheet, row, []interface{}{label, value}, []int{styles.SummaryStyle, style}); err != nil {
			return err
		}
		row++
		return nil
	}

	if bt := wb.Backtest; bt != nil {
		rep := bt.Report
		if err := section("Backtest"); err != nil {
			return err
		}
		lines := []struct {
			label string
			value interface{}
			style int
		}{
			{"Strategy", bt.Strategy, styles.BaseStyle},
			{"Symbol", bt.Symbol, styles.BaseStyle},
			{"Parameters", bt.Params.String(), styles.BaseStyle},
			{"Bars", bt.Bars, styles.BaseStyle},
			{"Initial Capital", bt.InitialCapital, styles.CurrencyStyle},
			{"Final NAV", bt.FinalNAV, styles.CurrencyStyle},
			{"Total Return", rep.TotalReturn, styles.PercentStyle},
			{"CAGR", rep.CAGR, styles.PercentStyle},
			{"Max Drawdown", rep.MaxDrawdownPercent, styles.PercentStyle},
			{"Sharpe Ratio", rep.SharpeRatio, styles.BaseStyle},
			{"Sortino Ratio", rep.SortinoRatio, styles.BaseStyle},
			{"Profit Factor", rep.ProfitFactor, styles.BaseStyle},
			{"Win Rate", rep.WinRate, styles.PercentStyle},
			{"Total Trades", rep.TotalTrades, styles.BaseStyle},
			{"Avg Win", rep.AverageWin, styles.CurrencyStyle},
			{"Avg Loss", rep.AverageLoss, styles.CurrencyStyle},
		}
		for _, l := range lines {
			if err := line(l.label, l.value, l.style); err != nil {
				return err
			}
		}
		row++
	}

	if opt := wb.Optimization; opt != nil {
		if err := section("Optimization"); err != nil {
			return err
		}
		if err := line("Combinations", opt.Combinations, styles.BaseStyle); err != nil {
			return err
		}
		if err := line("Failures", opt.Failures, styles.BaseStyle); err != nil {
			return err
		}
		if err := line("Best Parameters", opt.BestParams.String(), styles.BaseStyle); err != nil {
			return err
		}
		if err := line("Best Sharpe", finiteCell(opt.BestSharpe), styles.BaseStyle); err != nil {
			return err
		}
		if err := line("Best Win Rate", opt.BestWinRate, styles.PercentStyle); err != nil {
			return err
		}
		if err := line("Best Profit Factor", opt.BestProfitFactor, styles.BaseStyle); err != nil {
			return err
		}
		row++
	}

	if wf := wb.WalkForward; wf != nil {
		agg := wf.Aggregate
		if err := section("Walk-Forward"); err != nil {
			return err
		}
		lines := []struct {
			label string
			value interface{}
			style int
		}{
			{"Folds Retained", len(wf.Folds), styles.BaseStyle},
			{"Folds Skipped", len(wf.Skipped), styles.BaseStyle},
			{"Avg In-Sample Sharpe", agg.AvgInSampleSharpe, styles.BaseStyle},
			{"Avg Out-of-Sample Sharpe", agg.AvgOutSampleSharpe, styles.BaseStyle},
			{"Consistency", agg.ConsistencyScore * 100, styles.PercentStyle},
			{"Overfitting Score", agg.OverfittingScore, styles.BaseStyle},
			{"Overfitting Risk", agg.OverfittingRisk, styles.BaseStyle},
			{"Most Robust Params", agg.MostRobustParams.String(), styles.BaseStyle},
			{"Robust", agg.IsRobust, styles.BaseStyle},
		}
		for _, l := range lines {
			if err := line(l.label, l.value, l.style); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeTradesSheet(fx *excelize.File, results *backtest.BacktestResults, styles ExcelStyles) error {
	const sheet = SheetTrades
	if _, err := fx.NewSheet(sheet); err != nil {
		return err
	}
	headers := []string{"Entry Time", "Exit Time", "Side", "Quantity", "Entry Price", "Exit Price", "PnL"}
	if err := r.writeHeader(fx, sheet, headers, styles); err != nil {
		return err
	}
	fx.SetColWidth(sheet, "A", "B", 20)
	fx.SetColWidth(sheet, "C", "G", 14)

	for i, t := range results.Trades {
		pnlStyle := styles.GreenStyle
		if t.PnL < 0 {
			pnlStyle = styles.RedStyle
		}
		values := []interface{}{t.EntryTime.Format(timeLayout), t.ExitTime.Format(timeLayout), string(t.Side), t.Quantity, t.EntryPrice, t.ExitPrice, t.PnL}
		colStyles := []int{styles.BaseStyle, styles.BaseStyle, styles.BaseStyle, styles.BaseStyle, styles.BaseStyle, styles.BaseStyle, pnlStyle}
		if err := r.writeRow(fx, sheet, i+2, values, colStyles); err != nil {
			return err
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeEquitySheet(fx *excelize.File, results *backtest.BacktestResults, styles ExcelStyles) error {
	const sheet = SheetEquity
	if _, err := fx.NewSheet(sheet); err != nil {
		return err
	}
	if err := r.writeHeader(fx, sheet, []string{"Date", "NAV"}, styles); err != nil {
		return err
	}
	fx.SetColWidth(sheet, "A", "A", 20)
	fx.SetColWidth(sheet, "B", "B", 16)

	for i, p := range results.EquityCurve {
		if err := r.writeRow(fx, sheet, i+2, []interface{}{p.Timestamp.Format(timeLayout), p.NAV}, []int{0, styles.CurrencyStyle}); err != nil {
			return err
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeLeaderboardSheet(fx *excelize.File, result *backtest.OptimizationResult, styles ExcelStyles) error {
	const sheet = SheetLeaderboard
	if _, err := fx.NewSheet(sheet); err != nil {
		return err
	}
	headers := []string{"Rank", "Parameters", "Sharpe", "Sortino", "Win Rate", "Profit Factor", "CAGR", "Max Drawdown", "Trades", "Error"}
	if err := r.writeHeader(fx, sheet, headers, styles); err != nil {
		return err
	}
	fx.SetColWidth(sheet, "B", "B", 32)
	fx.SetColWidth(sheet, "C", "I", 13)
	fx.SetColWidth(sheet, "J", "J", 40)

	colStyles := []int{0, 0, 0, 0, styles.PercentStyle, 0, styles.PercentStyle, styles.PercentStyle, 0, 0}
	for i, e := range result.Leaderboard {
		values := []interface{}{i + 1, e.Params.String(), finiteCell(e.SharpeRatio), e.SortinoRatio, e.WinRate, e.ProfitFactor, e.CAGR, e.MaxDrawdownPercent, e.TotalTrades, e.Error}
		if err := r.writeRow(fx, sheet, i+2, values, colStyles); err != nil {
			return err
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeFoldsSheet(fx *excelize.File, summary *validation.WalkForwardSummary, styles ExcelStyles) error {
	const sheet = SheetFolds
	if _, err := fx.NewSheet(sheet); err != nil {
		return err
	}
	headers := []string{"Fold", "In-Sample Start", "Out-of-Sample Start", "Out-of-Sample End", "Best Params", "IS Sharpe", "OOS Sharpe", "OOS Win Rate", "OOS Trades", "OOS PnL", "Degradation"}
	if err := r.writeHeader(fx, sheet, headers, styles); err != nil {
		return err
	}
	fx.SetColWidth(sheet, "B", "D", 20)
	fx.SetColWidth(sheet, "E", "E", 32)
	fx.SetColWidth(sheet, "F", "K", 13)

	row := 2
	for _, f := range summary.Folds {
		pnlStyle := styles.GreenStyle
		if f.OutSamplePnL < 0 {
			pnlStyle = styles.RedStyle
		}
		values := []interface{}{
			f.Fold,
			f.InSampleStart.Format(timeLayout),
			f.OutSampleStart.Format(timeLayout),
			f.OutSampleEnd.Format(timeLayout),
			f.BestParams.String(),
			f.InSampleSharpe,
			f.OutSampleSharpe,
			f.OutSampleWinRate,
			f.OutSampleTrades,
			f.OutSamplePnL,
			f.Degradation,
		}
		colStyles := []int{0, 0, 0, 0, 0, 0, 0, styles.PercentStyle, 0, pnlStyle, 0}
		if err := r.writeRow(fx, sheet, row, values, colStyles); err != nil {
			return err
		}
		row++
	}

	for _, s := range summary.Skipped {
		msg := fmt.Sprintf("skipped (bars %d..%d): %s", s.Start, s.End, s.Reason)
		if err := r.writeRow(fx, sheet, row, []interface{}{s.Fold, msg}, []int{0, styles.SummaryStyle}); err != nil {
			return err
		}
		row++
	}
	return nil
}

// finiteCell replaces a non-finite value with an empty cell
func finiteCell(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return v
}

// WriteBacktestXLSX writes a single backtest run as a workbook
func WriteBacktestXLSX(results *backtest.BacktestResults, path string) error {
	return NewDefaultExcelReporter().WriteWorkbook(Workbook{Backtest: results}, path)
}
