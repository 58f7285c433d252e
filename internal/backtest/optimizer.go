package backtest

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/monitoring"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/strategy"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/optimization"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// LeaderboardEntry is one evaluated parameter set. Failed entries carry a
// SharpeRatio of -Inf, a 100% drawdown and no trades.
type LeaderboardEntry struct {
	Params             types.ParameterSet `json:"params"`
	SharpeRatio        float64            `json:"sharpe_ratio"`
	SortinoRatio       float64            `json:"sortino_ratio"`
	WinRate            float64            `json:"win_rate"`
	ProfitFactor       float64            `json:"profit_factor"`
	CAGR               float64            `json:"cagr"`
	MaxDrawdownPercent float64            `json:"max_drawdown"`
	TotalTrades        int                `json:"total_trades"`
	Failed             bool               `json:"failed,omitempty"`
	Error              string             `json:"error,omitempty"`
}

// MarshalJSON encodes a non-finite Sharpe ratio as null.
func (e LeaderboardEntry) MarshalJSON() ([]byte, error) {
	type plain LeaderboardEntry
	return json.Marshal(struct {
		plain
		SharpeRatio *float64 `json:"sharpe_ratio"`
	}{plain: plain(e), SharpeRatio: finitePtr(e.SharpeRatio)})
}

// OptimizationResult is the ranked outcome of a grid search.
type OptimizationResult struct {
	StrategyID       string             `json:"strategy"`
	Symbol           string             `json:"symbol"`
	BestParams       types.ParameterSet `json:"best_params"`
	BestSharpe       float64            `json:"best_sharpe"`
	BestWinRate      float64            `json:"best_win_rate"`
	BestProfitFactor float64            `json:"best_profit_factor"`
	Leaderboard      []LeaderboardEntry `json:"all_results"`
	Combinations     int                `json:"combinations"`
	Failures         int                `json:"failures"`
	Duration         time.Duration      `json:"-"`

	// BestResults is the full run of the winning set, nil when it failed.
	BestResults *BacktestResults `json:"-"`
}

// MarshalJSON encodes a non-finite best Sharpe ratio as null.
func (r OptimizationResult) MarshalJSON() ([]byte, error) {
	type plain OptimizationResult
	return json.Marshal(struct {
		plain
		BestSharpe *float64 `json:"best_sharpe"`
	}{plain: plain(r), BestSharpe: finitePtr(r.BestSharpe)})
}

// Optimizer runs a simulation per grid combination and ranks them by
// Sharpe ratio.
type Optimizer struct {
	workers         int
	maxCombinations int
}

// NewOptimizer creates an optimizer with workers parallel simulations
// (<= 0 uses every core).
func NewOptimizer(workers int) *Optimizer {
	return &Optimizer{
		workers:         workers,
		maxCombinations: optimization.DefaultMaxCombinations,
	}
}

// WithMaxCombinations bounds grid size; <= 0 removes the bound.
func (o *Optimizer) WithMaxCombinations(n int) *Optimizer {
	o.maxCombinations = n
	return o
}

// Optimize expands grid and evaluates every combination on data.
func (o *Optimizer) Optimize(strategyID, symbol string, initialCapital float64, data []types.OHLCV, grid types.ParameterGrid) (*OptimizationResult, error) {
	if len(data) == 0 {
		return nil, errors.NewConfigError("optimizer", "optimize", "candle series is empty")
	}
	combos, err := optimization.GenerateCombinationsLimited(grid, o.maxCombinations)
	if err != nil {
		return nil, err
	}
	return o.OptimizeCombinations(strategyID, symbol, initialCapital, data, combos)
}

// OptimizeCombinations evaluates pre-generated combinations. Failed runs
// become sentinel entries. The leaderboard is sorted by descending Sharpe;
// equal Sharpe ratios keep combination order.
func (o *Optimizer) OptimizeCombinations(strategyID, symbol string, initialCapital float64, data []types.OHLCV, combos []types.ParameterSet) (*OptimizationResult, error) {
	if len(data) == 0 {
		return nil, errors.NewConfigError("optimizer", "optimize", "candle series is empty")
	}
	if len(combos) == 0 {
		return nil, errors.NewConfigError("optimizer", "optimize", "parameter grid expands to zero combinations")
	}
	if !(initialCapital > 0) || math.IsInf(initialCapital, 0) {
		return nil, errors.NewConfigError("optimizer", "optimize", "initial capital must be positive, got %v", initialCapital)
	}

	startTime := time.Now()
	kind := strategy.ParseKind(strategyID).String()

	log.Debug().
		Str("strategy", strategyID).
		Str("symbol", symbol).
		Int("combinations", len(combos)).
		Int("bars", len(data)).
		Msg("starting grid search")

	jobs := make([]BacktestJob, len(combos))
	for i, combo := range combos {
		jobs[i] = BacktestJob{
			Index:          i,
			StrategyID:     strategyID,
			Symbol:         symbol,
			InitialCapital: initialCapital,
			Data:           data,
			Params:         combo,
		}
	}

	progress := NewProgressTracker(len(jobs))
	batch := RunBatch(o.workers, jobs, progress)

	result := &OptimizationResult{
		StrategyID:   strategyID,
		Symbol:       symbol,
		Leaderboard:  make([]LeaderboardEntry, len(batch)),
		Combinations: len(combos),
	}
	runs := make([]*BacktestResults, len(batch))
	for i, run := range batch {
		if run.Error != nil {
			result.Failures++
			result.Leaderboard[i] = sentinelEntry(run.Params, run.Error)
			log.Warn().Err(run.Error).Str("params", run.Params.Key()).Msg("simulation failed, recorded as worst case")
			continue
		}
		runs[i] = run.Results
		result.Leaderboard[i] = entryFromReport(run.Params, run.Results.Report)
	}

	order := make([]int, len(batch))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return result.Leaderboard[order[a]].SharpeRatio > result.Leaderboard[order[b]].SharpeRatio
	})
	ranked := make([]LeaderboardEntry, len(order))
	for rank, idx := range order {
		ranked[rank] = result.Leaderboard[idx]
	}
	result.Leaderboard = ranked
	result.BestResults = runs[order[0]]

	best := result.Leaderboard[0]
	result.BestParams = best.Params
	result.BestSharpe = best.SharpeRatio
	result.BestWinRate = best.WinRate
	result.BestProfitFactor = best.ProfitFactor
	result.Duration = time.Since(startTime)

	if !best.Failed {
		monitoring.UpdateBestSharpe(kind, symbol, best.SharpeRatio)
	}

	_, _, _, elapsed := progress.GetProgress()
	log.Debug().
		Str("strategy", strategyID).
		Int("combinations", len(combos)).
		Int("failures", result.Failures).
		Float64("best_sharpe", finiteOrZero(best.SharpeRatio)).
		Str("best_params", best.Params.Key()).
		Dur("elapsed", elapsed).
		Msg("grid search complete")

	return result, nil
}

// Optimize runs a grid search with the default optimizer.
func Optimize(strategyID, symbol string, initialCapital float64, data []types.OHLCV, grid types.ParameterGrid) (*OptimizationResult, error) {
	return NewOptimizer(0).Optimize(strategyID, symbol, initialCapital, data, grid)
}

func entryFromReport(params types.ParameterSet, report PerformanceReport) LeaderboardEntry {
	return LeaderboardEntry{
		Params:             params,
		SharpeRatio:        report.SharpeRatio,
		SortinoRatio:       report.SortinoRatio,
		WinRate:            report.WinRate,
		ProfitFactor:       report.ProfitFactor,
		CAGR:               report.CAGR,
		MaxDrawdownPercent: report.MaxDrawdownPercent,
		TotalTrades:        report.TotalTrades,
	}
}

func sentinelEntry(params types.ParameterSet, err error) LeaderboardEntry {
	return LeaderboardEntry{
		Params:             params,
		SharpeRatio:        math.Inf(-1),
		MaxDrawdownPercent: 100,
		Failed:             true,
		Error:              err.Error(),
	}
}

func finitePtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
