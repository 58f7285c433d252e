package reporting

import (
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/backtest"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/validation"
)

// ReportingManager writes each kind of result to the outputs enabled in its config
type ReportingManager struct {
	console ConsoleReporter
	csv     *DefaultCSVReporter
	excel   *DefaultExcelReporter
	paths   *DefaultPathManager
	config  ReportingConfig
}

// NewReportingManager creates a manager printing to stdout
func NewReportingManager(config ReportingConfig) *ReportingManager {
	return NewReportingManagerWith(config, NewDefaultConsoleReporter())
}

// NewReportingManagerWith creates a manager with a custom console reporter
func NewReportingManagerWith(config ReportingConfig, console ConsoleReporter) *ReportingManager {
	return &ReportingManager{
		console: console,
		csv:     NewDefaultCSVReporter(),
		excel:   NewDefaultExcelReporter(),
		paths:   NewDefaultPathManager(),
		config:  config,
	}
}

// OutputDir returns the configured directory or the per-symbol default
func (m *ReportingManager) OutputDir(symbol, interval string) string {
	if m.config.OutputDirectory != "" {
		return m.config.OutputDirectory
	}
	return m.paths.GetDefaultOutputDir(symbol, interval)
}

// ReportBacktest outputs a single run and returns the files written
func (m *ReportingManager) ReportBacktest(results *backtest.BacktestResults, symbol, interval string) ([]string, error) {
	if m.config.EnableConsole {
		m.console.OutputResultsWithContext(results, symbol, interval)
		m.console.PrintTrades(results.Trades, m.config.TopResults)
	}
	if !m.config.EnableFiles {
		return nil, nil
	}

	dir := m.OutputDir(symbol, interval)
	var written []string
	if m.config.CSVEnabled {
		tradesPath := filepath.Join(dir, "trades.csv")
		if err := m.csv.WriteTradesCSV(results, tradesPath); err != nil {
			return written, err
		}
		equityPath := filepath.Join(dir, "equity.csv")
		if err := m.csv.WriteEquityCSV(results, equityPath); err != nil {
			return written, err
		}
		written = append(written, tradesPath, equityPath)
	}
	if m.config.JSONEnabled {
		path := filepath.Join(dir, "backtest.json")
		if err := WriteJSON(results, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if m.config.ExcelEnabled {
		path := filepath.Join(dir, "backtest.xlsx")
		if err := m.excel.WriteWorkbook(Workbook{Backtest: results}, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	m.logWritten(written)
	return written, nil
}

// ReportOptimization outputs an optimization and the re-run of its best parameters
func (m *ReportingManager) ReportOptimization(result *backtest.OptimizationResult, interval string) ([]string, error) {
	if m.config.EnableConsole {
		m.console.PrintLeaderboard(result, m.config.TopResults)
		if result.BestResults != nil {
			m.console.OutputResultsWithContext(result.BestResults, result.Symbol, interval)
		}
	}
	if !m.config.EnableFiles {
		return nil, nil
	}

	dir := m.OutputDir(result.Symbol, interval)
	var written []string
	if m.config.CSVEnabled {
		path := filepath.Join(dir, "leaderboard.csv")
		if err := m.csv.WriteLeaderboardCSV(result, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if m.config.JSONEnabled {
		path := filepath.Join(dir, "optimization.json")
		if err := WriteJSON(result, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if m.config.ExcelEnabled {
		path := filepath.Join(dir, "optimization.xlsx")
		if err := m.excel.WriteWorkbook(Workbook{Backtest: result.BestResults, Optimization: result}, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	m.logWritten(written)
	return written, nil
}

// ReportWalkForward outputs a walk-forward summary
func (m *ReportingManager) ReportWalkForward(summary *validation.WalkForwardSummary, interval string) ([]string, error) {
	if m.config.EnableConsole {
		m.console.PrintWalkForwardSummary(summary)
	}
	if !m.config.EnableFiles {
		return nil, nil
	}

	dir := m.OutputDir(summary.Symbol, interval)
	var written []string
	if m.config.CSVEnabled {
		path := filepath.Join(dir, "folds.csv")
		if err := m.csv.WriteFoldsCSV(summary, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if m.config.JSONEnabled {
		path := filepath.Join(dir, "walk_forward.json")
		if err := WriteJSON(summary, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if m.config.ExcelEnabled {
		path := filepath.Join(dir, "walk_forward.xlsx")
		if err := m.excel.WriteWorkbook(Workbook{WalkForward: summary}, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	m.logWritten(written)
	return written, nil
}

// ReportRisk prints a risk report and optionally writes it as JSON
func (m *ReportingManager) ReportRisk(report backtest.RiskReport, name string) ([]string, error) {
	if m.config.EnableConsole {
		m.console.PrintRisk(report)
	}
	if !m.config.EnableFiles || !m.config.JSONEnabled {
		return nil, nil
	}
	path := filepath.Join(m.OutputDir(name, "risk"), "risk.json")
	if err := WriteJSON(report, path); err != nil {
		return nil, err
	}
	m.logWritten([]string{path})
	return []string{path}, nil
}

func (m *ReportingManager) logWritten(paths []string) {
	for _, p := range paths {
		log.Info().Str("path", p).Msg("report written")
	}
}
