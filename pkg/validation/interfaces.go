package validation

import (
	"time"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/backtest"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// Package validation provides walk-forward validation for trading strategies

const (
	DefaultFoldCount     = 5
	MinFoldCount         = 2
	MaxFoldCount         = 10
	DefaultInSampleRatio = 0.7
	MinInSampleRatio     = 0.5
	MaxInSampleRatio     = 0.9

	MinTotalCandles     = 60
	MinFoldCandles      = 20
	MinInSampleCandles  = 15
	MinOutSampleCandles = 5
)

// Skip reasons recorded on SkippedFold.
const (
	SkipInSampleTooShort   = "in_sample_too_short"
	SkipOutSampleTooShort  = "out_of_sample_too_short"
	SkipBelowWarmup        = "in_sample_below_warmup"
	SkipNoSuccessfulSearch = "no_successful_combination"
)

// WalkForwardValidator defines the interface for walk-forward validation
type WalkForwardValidator interface {
	Validate(data []types.OHLCV, config WalkForwardConfig) (*WalkForwardSummary, error)
}

// DataSplitter defines how a series is partitioned into folds
type DataSplitter interface {
	SplitIndex(length int, ratio float64) int
	CreateFolds(length, foldCount int, ratio float64) []FoldRange
}

// WalkForwardConfig holds the configuration for walk-forward validation.
// Zero FoldCount and InSampleRatio select the defaults.
type WalkForwardConfig struct {
	StrategyID     string
	Symbol         string
	InitialCapital float64
	Grid           types.ParameterGrid
	FoldCount      int
	InSampleRatio  float64
}

// FoldRange is a fold expressed as indices into the candle series:
// in-sample is [Start, Split) and out-of-sample is [Split, End).
type FoldRange struct {
	Index int
	Start int
	Split int
	End   int
}

func (f FoldRange) InSampleLen() int { return f.Split - f.Start }

func (f FoldRange) OutSampleLen() int { return f.End - f.Split }

// WalkForwardFold holds the results for a single retained fold
type WalkForwardFold struct {
	Fold           int                `json:"fold"`
	Range          FoldRange          `json:"-"`
	InSampleStart  time.Time          `json:"in_sample_start"`
	InSampleEnd    time.Time          `json:"in_sample_end"`
	OutSampleStart time.Time          `json:"out_sample_start"`
	OutSampleEnd   time.Time          `json:"out_sample_end"`
	BestParams     types.ParameterSet `json:"best_params"`

	InSampleSharpe   float64 `json:"in_sample_sharpe"`
	OutSampleSharpe  float64 `json:"out_sample_sharpe"`
	InSampleWinRate  float64 `json:"in_sample_win_rate"`
	OutSampleWinRate float64 `json:"out_sample_win_rate"`
	OutSampleTrades  int     `json:"out_sample_trades"`
	OutSamplePnL     float64 `json:"out_sample_pnl"`
	Degradation      float64 `json:"degradation"`

	InSample  backtest.PerformanceReport `json:"in_sample"`
	OutSample backtest.PerformanceReport `json:"out_sample"`
}

// SkippedFold records a fold dropped by the size filter
type SkippedFold struct {
	Fold   int    `json:"fold"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Reason string `json:"reason"`
}

// AggregateReport summarises the retained folds
type AggregateReport struct {
	AvgInSampleSharpe    float64            `json:"avg_in_sample_sharpe"`
	AvgOutSampleSharpe   float64            `json:"avg_out_sample_sharpe"`
	AvgDegradation       float64            `json:"avg_degradation"`
	TotalOutSampleTrades int                `json:"total_out_sample_trades"`
	TotalOutSamplePnL    float64            `json:"total_out_sample_pnl"`
	ConsistencyScore     float64            `json:"consistency_score"`
	OverfittingScore     float64            `json:"overfitting_score"`
	MostRobustParams     types.ParameterSet `json:"best_robust_params"`
	MostRobustSharpe     float64            `json:"best_robust_sharpe"`
	OverfittingRisk      string             `json:"overfitting_risk"`
	IsRobust             bool               `json:"is_robust"`
}

// WalkForwardSummary holds the summary of all walk-forward validation results
type WalkForwardSummary struct {
	StrategyID    string            `json:"strategy"`
	Symbol        string            `json:"symbol"`
	FoldCount     int               `json:"num_folds"`
	InSampleRatio float64           `json:"in_sample_ratio"`
	Folds         []WalkForwardFold `json:"folds"`
	Skipped       []SkippedFold     `json:"skipped_folds,omitempty"`
	Aggregate     AggregateReport   `json:"aggregate"`
}
