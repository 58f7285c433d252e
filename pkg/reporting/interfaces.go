package reporting

import (
	"github.com/ducminhle1904/crypto-backtest-lab/internal/backtest"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/validation"
)

// Package reporting renders engine results to the console and to files

// ConsoleReporter defines interface for console output
type ConsoleReporter interface {
	OutputResults(results *backtest.BacktestResults)
	OutputResultsWithContext(results *backtest.BacktestResults, symbol, interval string)
	PrintTrades(trades []backtest.Trade, limit int)
	PrintLeaderboard(result *backtest.OptimizationResult, top int)
	PrintWalkForwardSummary(summary *validation.WalkForwardSummary)
	PrintRisk(report backtest.RiskReport)
}

// FileReporter defines interface for file output
type FileReporter interface {
	WriteTradesCSV(results *backtest.BacktestResults, path string) error
	WriteEquityCSV(results *backtest.BacktestResults, path string) error
	WriteLeaderboardCSV(result *backtest.OptimizationResult, path string) error
	WriteFoldsCSV(summary *validation.WalkForwardSummary, path string) error
	WriteWorkbook(wb Workbook, path string) error
}

// PathManager defines interface for output path management
type PathManager interface {
	GetDefaultOutputDir(symbol, interval string) string
	EnsureDirectoryExists(path string) error
}

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle   int
	CurrencyStyle int
	PercentStyle  int
	BaseStyle     int
	RedStyle      int
	GreenStyle    int
	SummaryStyle  int
}

// ReportingConfig selects which outputs are produced
type ReportingConfig struct {
	EnableConsole   bool
	EnableFiles     bool
	OutputDirectory string
	ExcelEnabled    bool
	CSVEnabled      bool
	JSONEnabled     bool
	TopResults      int
}
