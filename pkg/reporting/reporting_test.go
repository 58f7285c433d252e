package reporting

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/backtest"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/validation"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func sampleBacktest() *backtest.BacktestResults {
	return &backtest.BacktestResults{
		Strategy:       "ema-crossover",
		Symbol:         "BTCUSDT",
		Params:         types.ParameterSet{"short_window": 5, "long_window": 20},
		InitialCapital: 10000,
		FinalNAV:       10150,
		Bars:           3,
		Report: backtest.PerformanceReport{
			TotalReturn:   1.5,
			SharpeRatio:   0.8,
			WinRate:       50,
			ProfitFactor:  2,
			TotalTrades:   2,
			WinningTrades: 1,
			LosingTrades:  1,
		},
		Trades: []backtest.Trade{
			{Symbol: "BTCUSDT", Side: types.SideBuy, EntryPrice: 100, ExitPrice: 120, Quantity: 10, PnL: 200, EntryTime: day0, ExitTime: day0.Add(24 * time.Hour)},
			{Symbol: "BTCUSDT", Side: types.SideBuy, EntryPrice: 120, ExitPrice: 115, Quantity: 10, PnL: -50, EntryTime: day0.Add(48 * time.Hour), ExitTime: day0.Add(72 * time.Hour)},
		},
		EquityCurve: []backtest.EquityPoint{
			{Timestamp: day0, NAV: 10000},
			{Timestamp: day0.Add(24 * time.Hour), NAV: 10200},
			{Timestamp: day0.Add(48 * time.Hour), NAV: 10150},
		},
	}
}

func sampleOptimization() *backtest.OptimizationResult {
	return &backtest.OptimizationResult{
		StrategyID:   "ema-crossover",
		Symbol:       "BTCUSDT",
		BestParams:   types.ParameterSet{"short_window": 5, "long_window": 20},
		BestSharpe:   0.8,
		Combinations: 2,
		Failures:     1,
		Leaderboard: []backtest.LeaderboardEntry{
			{Params: types.ParameterSet{"short_window": 5, "long_window": 20}, SharpeRatio: 0.8, WinRate: 50, TotalTrades: 2},
			{Params: types.ParameterSet{"short_window": 20, "long_window": 5}, SharpeRatio: math.Inf(-1), MaxDrawdownPercent: 100, Failed: true, Error: "invalid windows"},
		},
		BestResults: sampleBacktest(),
	}
}

func sampleWalkForward() *validation.WalkForwardSummary {
	return &validation.WalkForwardSummary{
		StrategyID:    "ema-crossover",
		Symbol:        "BTCUSDT",
		FoldCount:     3,
		InSampleRatio: 0.7,
		Folds: []validation.WalkForwardFold{
			{Fold: 1, BestParams: types.ParameterSet{"short_window": 5, "long_window": 20}, InSampleSharpe: 1.2, OutSampleSharpe: 0.6, OutSamplePnL: 120, OutSampleTrades: 3, Degradation: 0.5},
			{Fold: 2, BestParams: types.ParameterSet{"short_window": 5, "long_window": 20}, InSampleSharpe: 1.0, OutSampleSharpe: -0.2, OutSamplePnL: -40, OutSampleTrades: 2, Degradation: 1.2},
		},
		Skipped: []validation.SkippedFold{{Fold: 3, Start: 60, End: 70, Reason: validation.SkipInSampleTooShort}},
		Aggregate: validation.AggregateReport{
			AvgInSampleSharpe:  1.1,
			AvgOutSampleSharpe: 0.2,
			ConsistencyScore:   0.5,
			OverfittingScore:   0.8,
			OverfittingRisk:    "HIGH",
			MostRobustParams:   types.ParameterSet{"short_window": 5, "long_window": 20},
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

// TestConsoleBacktest tests the backtest summary table
func TestConsoleBacktest(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporterTo(&buf)
	r.OutputResultsWithContext(sampleBacktest(), "BTCUSDT", "1h")
	r.PrintTrades(sampleBacktest().Trades, 1)

	out := buf.String()
	assert.Contains(t, out, "BACKTEST RESULTS - BTCUSDT 1h")
	assert.Contains(t, out, "$10150.00")
	assert.Contains(t, out, "50.00% (1 W / 1 L)")
	assert.Contains(t, out, "TRADES (1 of 2)")
	assert.Contains(t, out, "-$50.00")
}

// TestConsoleLeaderboard tests that failed entries are marked and non-finite values hidden
func TestConsoleLeaderboard(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleReporterTo(&buf).PrintLeaderboard(sampleOptimization(), 0)

	out := buf.String()
	assert.Contains(t, out, "2 combinations, 1 failed")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "invalid windows")
	assert.NotContains(t, out, "Inf")
}

// TestConsoleTitleKeepsPercent tests that titles are rendered verbatim
func TestConsoleTitleKeepsPercent(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporterTo(&buf)
	tbl := r.newTable("RETURN 12.5% (100%s)")
	tbl.AppendRow([]interface{}{"x"})
	tbl.Render()

	assert.Contains(t, buf.String(), "RETURN 12.5% (100%s)")
	assert.NotContains(t, buf.String(), "MISSING")
}

// TestConsoleWalkForward tests the fold, skipped and aggregate tables
func TestConsoleWalkForward(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleReporterTo(&buf).PrintWalkForwardSummary(sampleWalkForward())

	out := buf.String()
	assert.Contains(t, out, "WALK-FORWARD - ema-crossover BTCUSDT (3 folds, 70% in-sample)")
	assert.Contains(t, out, "SKIPPED FOLDS")
	assert.Contains(t, out, validation.SkipInSampleTooShort)
	assert.Contains(t, out, "HIGH")
	assert.Contains(t, out, "NOT ROBUST")
}

// TestConsoleRisk tests the risk table
func TestConsoleRisk(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleReporterTo(&buf).PrintRisk(backtest.RiskReport{Observations: 12, VaR95: 150, SharpeRatio: math.NaN()})

	out := buf.String()
	assert.Contains(t, out, "RISK ANALYSIS (12 observations)")
	assert.Contains(t, out, "$150.00")
	assert.Contains(t, out, "n/a")
}

// TestWriteTradesCSV tests trade rows and the trailing summary row
func TestWriteTradesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "trades.csv")
	require.NoError(t, WriteTradesCSV(sampleBacktest(), path))

	rows := readCSV(t, path)
	require.Len(t, rows, 4)
	assert.Equal(t, "Entry_Time", rows[0][0])
	assert.Equal(t, "2024-03-01 00:00:00", rows[1][0])
	assert.Equal(t, "20.00", rows[1][6])
	assert.Equal(t, "W", rows[1][8])
	assert.Equal(t, "L", rows[2][8])
	assert.Contains(t, rows[3][8], "total_pnl=150.00")
}

// TestWriteTradesCSVDelegatesToXLSX tests that an .xlsx path produces a workbook
func TestWriteTradesCSVDelegatesToXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.xlsx")
	require.NoError(t, WriteTradesCSV(sampleBacktest(), path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()
	assert.Equal(t, []string{SheetSummary, SheetTrades, SheetEquity}, fx.GetSheetList())
}

// TestWriteEquityAndLeaderboardCSV tests the equity and leaderboard files
func TestWriteEquityAndLeaderboardCSV(t *testing.T) {
	dir := t.TempDir()
	r := NewDefaultCSVReporter()

	require.NoError(t, r.WriteEquityCSV(sampleBacktest(), filepath.Join(dir, "equity.csv")))
	equity := readCSV(t, filepath.Join(dir, "equity.csv"))
	require.Len(t, equity, 4)
	assert.Equal(t, []string{"2024-03-02 00:00:00", "10200.00"}, equity[2])

	require.NoError(t, r.WriteLeaderboardCSV(sampleOptimization(), filepath.Join(dir, "leaderboard.csv")))
	board := readCSV(t, filepath.Join(dir, "leaderboard.csv"))
	require.Len(t, board, 3)
	assert.Equal(t, "0.800000", board[1][2])
	assert.Equal(t, "", board[2][2])
	assert.Equal(t, "invalid windows", board[2][9])
}

// TestWriteWorkbook tests that every result kind gets its sheet
func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all.xlsx")
	wb := Workbook{Backtest: sampleBacktest(), Optimization: sampleOptimization(), WalkForward: sampleWalkForward()}
	require.NoError(t, NewDefaultExcelReporter().WriteWorkbook(wb, path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.Equal(t, []string{SheetSummary, SheetTrades, SheetEquity, SheetLeaderboard, SheetFolds}, fx.GetSheetList())

	header, err := fx.GetCellValue(SheetSummary, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Backtest", header)

	rows, err := fx.GetRows(SheetFolds)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Contains(t, rows[3][1], validation.SkipInSampleTooShort)

	sharpe, err := fx.GetCellValue(SheetLeaderboard, "C3")
	require.NoError(t, err)
	assert.Empty(t, sharpe)
}

// TestReportingManagerFiles tests the files written per result kind
func TestReportingManagerFiles(t *testing.T) {
	dir := t.TempDir()
	m := NewReportingManagerWith(ReportingConfig{
		EnableFiles:     true,
		OutputDirectory: dir,
		CSVEnabled:      true,
		JSONEnabled:     true,
		ExcelEnabled:    true,
	}, NewConsoleReporterTo(&bytes.Buffer{}))

	written, err := m.ReportBacktest(sampleBacktest(), "BTCUSDT", "1h")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "trades.csv"),
		filepath.Join(dir, "equity.csv"),
		filepath.Join(dir, "backtest.json"),
		filepath.Join(dir, "backtest.xlsx"),
	}, written)

	written, err = m.ReportOptimization(sampleOptimization(), "1h")
	require.NoError(t, err)
	assert.Len(t, written, 3)

	raw, err := os.ReadFile(filepath.Join(dir, "optimization.json"))
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	board := decoded["all_results"].([]interface{})
	assert.Nil(t, board[1].(map[string]interface{})["sharpe_ratio"])

	written, err = m.ReportWalkForward(sampleWalkForward(), "1h")
	require.NoError(t, err)
	assert.Len(t, written, 3)
}

// TestReportingManagerConsoleOnly tests that no files are written when disabled
func TestReportingManagerConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	m := NewReportingManagerWith(ReportingConfig{EnableConsole: true}, NewConsoleReporterTo(&buf))

	written, err := m.ReportRisk(backtest.RiskReport{Observations: 3}, "portfolio")
	require.NoError(t, err)
	assert.Empty(t, written)
	assert.Contains(t, buf.String(), "RISK ANALYSIS")
}

// TestDefaultOutputDir tests symbol and interval normalization
func TestDefaultOutputDir(t *testing.T) {
	assert.Equal(t, filepath.Join("results", "BTCUSDT_1h"), DefaultOutputDir(" btcusdt ", "1H"))
	assert.Equal(t, filepath.Join("results", "UNKNOWN_unknown"), DefaultOutputDir("", ""))
}

// TestExtractIntervalFromPath tests interval detection in data paths
func TestExtractIntervalFromPath(t *testing.T) {
	assert.Equal(t, "5m", ExtractIntervalFromPath("data/bybit/spot/BTCUSDT/5m/candles.csv"))
	assert.Equal(t, "4h", ExtractIntervalFromPath("data/bybit/linear/ETHUSDT/4h/candles.csv"))
	assert.Equal(t, "1h", ExtractIntervalFromPath("data/bybit/linear/ETHUSDT/60/candles.csv"))
	assert.Equal(t, "15m", ExtractIntervalFromPath("data/bybit/spot/BTCUSDT/15/candles.csv"))
	assert.Equal(t, "1d", ExtractIntervalFromPath("data/bybit/spot/BTCUSDT/1440/candles.csv"))
	assert.Equal(t, "", ExtractIntervalFromPath("data/candles.csv"))
	assert.Equal(t, "", ExtractIntervalFromPath(""))
}
