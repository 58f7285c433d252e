package validation

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/backtest"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/monitoring"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/optimization"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// DefaultWalkForwardValidator re-optimizes on each fold's in-sample segment
// and evaluates the winner on the out-of-sample segment. Folds run in
// parallel; each fold's grid search runs on a single worker.
type DefaultWalkForwardValidator struct {
	splitter        DataSplitter
	workers         int
	maxCombinations int
}

// NewDefaultWalkForwardValidator creates a new walk-forward validator
func NewDefaultWalkForwardValidator() *DefaultWalkForwardValidator {
	return &DefaultWalkForwardValidator{
		splitter:        NewDefaultDataSplitter(),
		maxCombinations: optimization.DefaultMaxCombinations,
	}
}

// SetSplitter sets the fold partitioning strategy
func (v *DefaultWalkForwardValidator) SetSplitter(splitter DataSplitter) {
	v.splitter = splitter
}

// SetWorkers sets how many folds are evaluated concurrently (<= 0 uses every core)
func (v *DefaultWalkForwardValidator) SetWorkers(workers int) {
	v.workers = workers
}

// SetMaxCombinations bounds the grid size; <= 0 removes the bound
func (v *DefaultWalkForwardValidator) SetMaxCombinations(n int) {
	v.maxCombinations = n
}

// Validate performs walk-forward validation over data.
func (v *DefaultWalkForwardValidator) Validate(data []types.OHLCV, config WalkForwardConfig) (*WalkForwardSummary, error) {
	config, err := normalizeConfig(config)
	if err != nil {
		return nil, err
	}

	n := len(data)
	if n < MinTotalCandles {
		return nil, errors.NewConfigError("walk_forward", "validate",
			"need at least %d candles for walk-forward analysis, got %d", MinTotalCandles, n)
	}
	if n/config.FoldCount < MinFoldCandles {
		return nil, errors.NewConfigError("walk_forward", "validate",
			"%d candles is not enough for %d folds of at least %d candles", n, config.FoldCount, MinFoldCandles)
	}

	combos, err := optimization.GenerateCombinationsLimited(config.Grid, v.maxCombinations)
	if err != nil {
		return nil, err
	}
	warmup, ok := optimization.MinWarmup(config.StrategyID, combos)
	if !ok {
		return nil, errors.NewConfigError("walk_forward", "validate",
			"no parameter combination is valid for strategy %q", config.StrategyID)
	}

	summary := &WalkForwardSummary{
		StrategyID:    config.StrategyID,
		Symbol:        config.Symbol,
		FoldCount:     config.FoldCount,
		InSampleRatio: config.InSampleRatio,
	}

	var retained []FoldRange
	for _, fold := range v.splitter.CreateFolds(n, config.FoldCount, config.InSampleRatio) {
		if reason := skipReason(fold, warmup); reason != "" {
			summary.Skipped = append(summary.Skipped, SkippedFold{Fold: fold.Index, Start: fold.Start, End: fold.End, Reason: reason})
			continue
		}
		retained = append(retained, fold)
	}

	slots := make([]*WalkForwardFold, len(retained))
	reasons := make([]string, len(retained))

	workers := v.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	semaphore := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, fold := range retained {
		wg.Add(1)
		go func(i int, fold FoldRange) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			slots[i], reasons[i] = v.evaluateFold(data, fold, combos, config)
		}(i, fold)
	}
	wg.Wait()

	for i, slot := range slots {
		if slot == nil {
			fold := retained[i]
			summary.Skipped = append(summary.Skipped, SkippedFold{Fold: fold.Index, Start: fold.Start, End: fold.End, Reason: reasons[i]})
			continue
		}
		summary.Folds = append(summary.Folds, *slot)
	}
	sortSkipped(summary.Skipped)

	for _, skipped := range summary.Skipped {
		monitoring.RecordSkippedFold(skipped.Reason)
		log.Warn().
			Int("fold", skipped.Fold).
			Int("start", skipped.Start).
			Int("end", skipped.End).
			Str("reason", skipped.Reason).
			Msg("walk-forward fold skipped")
	}

	if len(summary.Folds) == 0 {
		return nil, errors.NewConfigError("walk_forward", "validate",
			"no valid folds produced from %d candles with %d folds", n, config.FoldCount)
	}

	summary.Aggregate = calculateAggregate(summary.Folds)

	log.Info().
		Str("strategy", config.StrategyID).
		Str("symbol", config.Symbol).
		Int("folds", len(summary.Folds)).
		Int("skipped", len(summary.Skipped)).
		Float64("avg_oos_sharpe", summary.Aggregate.AvgOutSampleSharpe).
		Float64("consistency", summary.Aggregate.ConsistencyScore).
		Float64("overfitting", summary.Aggregate.OverfittingScore).
		Str("robust_params", summary.Aggregate.MostRobustParams.Key()).
		Msg("walk-forward validation complete")

	return summary, nil
}

// evaluateFold returns the fold result, or nil and a skip reason.
func (v *DefaultWalkForwardValidator) evaluateFold(data []types.OHLCV, fold FoldRange, combos []types.ParameterSet, config WalkForwardConfig) (*WalkForwardFold, string) {
	inSample := data[fold.Start:fold.Split]
	outSample := data[fold.Split:fold.End]

	optimizer := backtest.NewOptimizer(1).WithMaxCombinations(0)
	search, err := optimizer.OptimizeCombinations(config.StrategyID, config.Symbol, config.InitialCapital, inSample, combos)
	if err != nil || search.BestResults == nil {
		return nil, SkipNoSuccessfulSearch
	}

	best := search.Leaderboard[0]
	result := &WalkForwardFold{
		Fold:            fold.Index,
		Range:           fold,
		InSampleStart:   inSample[0].Timestamp,
		InSampleEnd:     inSample[len(inSample)-1].Timestamp,
		OutSampleStart:  outSample[0].Timestamp,
		OutSampleEnd:    outSample[len(outSample)-1].Timestamp,
		BestParams:      best.Params,
		InSample:        search.BestResults.Report,
		InSampleSharpe:  search.BestResults.Report.SharpeRatio,
		InSampleWinRate: search.BestResults.Report.WinRate,
	}

	oos, err := backtest.Simulate(config.StrategyID, config.Symbol, config.InitialCapital, outSample, best.Params)
	if err != nil {
		log.Warn().Err(err).Int("fold", fold.Index).Msg("out-of-sample simulation failed, scoring as flat")
	} else {
		result.OutSample = oos.Report
		result.OutSampleSharpe = oos.Report.SharpeRatio
		result.OutSampleWinRate = oos.Report.WinRate
		result.OutSampleTrades = oos.Report.TotalTrades
		result.OutSamplePnL = oos.FinalNAV - config.InitialCapital
	}

	if result.InSampleSharpe > 0 {
		result.Degradation = 1 - result.OutSampleSharpe/result.InSampleSharpe
	}

	log.Debug().
		Int("fold", fold.Index).
		Int("in_sample", fold.InSampleLen()).
		Int("out_sample", fold.OutSampleLen()).
		Float64("is_sharpe", result.InSampleSharpe).
		Float64("oos_sharpe", result.OutSampleSharpe).
		Str("params", best.Params.Key()).
		Msg("fold evaluated")

	return result, ""
}

func normalizeConfig(config WalkForwardConfig) (WalkForwardConfig, error) {
	if config.FoldCount == 0 {
		config.FoldCount = DefaultFoldCount
	}
	if config.FoldCount < MinFoldCount || config.FoldCount > MaxFoldCount {
		return config, errors.NewConfigError("walk_forward", "validate",
			"fold count must be in [%d, %d], got %d", MinFoldCount, MaxFoldCount, config.FoldCount)
	}
	if config.InSampleRatio == 0 {
		config.InSampleRatio = DefaultInSampleRatio
	}
	if math.IsNaN(config.InSampleRatio) || config.InSampleRatio < MinInSampleRatio || config.InSampleRatio > MaxInSampleRatio {
		return config, errors.NewConfigError("walk_forward", "validate",
			"in-sample ratio must be in [%.1f, %.1f], got %v", MinInSampleRatio, MaxInSampleRatio, config.InSampleRatio)
	}
	if !(config.InitialCapital > 0) || math.IsInf(config.InitialCapital, 0) {
		return config, errors.NewConfigError("walk_forward", "validate",
			"initial capital must be positive, got %v", config.InitialCapital)
	}
	return config, nil
}

// skipReason applies the minimum size filter. The in-sample segment must be
// strictly longer than the strategy warm-up.
func skipReason(fold FoldRange, warmup int) string {
	switch {
	case fold.InSampleLen() < MinInSampleCandles:
		return SkipInSampleTooShort
	case fold.OutSampleLen() < MinOutSampleCandles:
		return SkipOutSampleTooShort
	case fold.InSampleLen() <= warmup:
		return SkipBelowWarmup
	default:
		return ""
	}
}

func sortSkipped(skipped []SkippedFold) {
	sort.SliceStable(skipped, func(i, j int) bool {
		return skipped[i].Fold < skipped[j].Fold
	})
}

// calculateAggregate calculates summary statistics from all folds
func calculateAggregate(folds []WalkForwardFold) AggregateReport {
	var inSharpes, outSharpes, degradations []float64
	agg := AggregateReport{}

	type paramScore struct {
		params types.ParameterSet
		scores []float64
	}
	var order []string
	byKey := make(map[string]*paramScore)

	positive := 0
	for _, f := range folds {
		inSharpes = append(inSharpes, f.InSampleSharpe)
		outSharpes = append(outSharpes, f.OutSampleSharpe)
		degradations = append(degradations, f.Degradation)
		agg.TotalOutSampleTrades += f.OutSampleTrades
		agg.TotalOutSamplePnL += f.OutSamplePnL
		if f.OutSampleSharpe > 0 {
			positive++
		}

		key := f.BestParams.Key()
		if _, ok := byKey[key]; !ok {
			byKey[key] = &paramScore{params: f.BestParams}
			order = append(order, key)
		}
		byKey[key].scores = append(byKey[key].scores, f.OutSampleSharpe)
	}

	agg.AvgInSampleSharpe = average(inSharpes)
	agg.AvgOutSampleSharpe = average(outSharpes)
	agg.AvgDegradation = average(degradations)
	agg.ConsistencyScore = float64(positive) / float64(len(folds))

	for i, key := range order {
		mean := average(byKey[key].scores)
		if i == 0 || mean > agg.MostRobustSharpe {
			agg.MostRobustParams = byKey[key].params
			agg.MostRobustSharpe = mean
		}
	}

	if agg.AvgInSampleSharpe > 0 {
		agg.OverfittingScore = math.Max(0, math.Min(1,
			(agg.AvgInSampleSharpe-agg.AvgOutSampleSharpe)/agg.AvgInSampleSharpe))
	}

	switch {
	case agg.OverfittingScore > 0.5:
		agg.OverfittingRisk = "HIGH"
	case agg.OverfittingScore > 0.2:
		agg.OverfittingRisk = "MODERATE"
	default:
		agg.OverfittingRisk = "LOW"
	}
	agg.IsRobust = agg.OverfittingRisk != "HIGH" && agg.ConsistencyScore >= 0.5

	return agg
}

// Helper functions

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Package-level convenience functions

// RunWalkForwardValidation is a convenience function using the default validator
func RunWalkForwardValidation(data []types.OHLCV, config WalkForwardConfig) (*WalkForwardSummary, error) {
	return NewDefaultWalkForwardValidator().Validate(data, config)
}
