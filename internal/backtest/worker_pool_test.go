package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/strategy"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// TestRunBatch_ResultsInJobOrder tests that results land in their job slot regardless of completion order
func TestRunBatch_ResultsInJobOrder(t *testing.T) {
	data := generateWaveData(300, 30)
	var jobs []BacktestJob
	for i, long := range []float64{12, 15, 20, 25, 30, 35, 40, 45} {
		jobs = append(jobs, BacktestJob{
			Index:          i,
			StrategyID:     "ema-crossover",
			Symbol:         "BTCUSDT",
			InitialCapital: 10000,
			Data:           data,
			Params:         types.ParameterSet{"short_window": 5, "long_window": long},
		})
	}

	progress := NewProgressTracker(len(jobs))
	results := RunBatch(4, jobs, progress)

	require.Len(t, results, len(jobs))
	for i, r := range results {
		require.NoError(t, r.Error)
		assert.Equal(t, i, r.Index)
		assert.Equal(t, jobs[i].Params, r.Params)
		assert.Equal(t, jobs[i].Params["long_window"], r.Results.Params["long_window"])
	}

	completed, total, pct, _ := progress.GetProgress()
	assert.Equal(t, len(jobs), completed)
	assert.Equal(t, len(jobs), total)
	assert.Equal(t, 100.0, pct)
}

// TestRunBatch_ContainsFailures tests that errors and panics become computation failures
func TestRunBatch_ContainsFailures(t *testing.T) {
	data := generateConstantData(50, 100)
	panicking := newScriptedStrategy(nil)
	panicking.panicAt = 3

	jobs := []BacktestJob{
		{Index: 0, StrategyID: "ema-crossover", Symbol: "X", InitialCapital: 1000, Data: data},
		{Index: 1, StrategyID: "ema-crossover", Symbol: "X", InitialCapital: 1000, Data: data, Params: types.ParameterSet{"long_window": 2}},
		{Index: 2, StrategyID: "scripted", Symbol: "X", InitialCapital: 1000, Data: data, Strategy: panicking},
	}

	results := RunBatch(0, jobs, nil)

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Error)
	assert.NotNil(t, results[0].Results)

	assert.True(t, errors.IsComputationError(results[1].Error))
	assert.Nil(t, results[1].Results)

	assert.True(t, errors.IsComputationError(results[2].Error))
	assert.Contains(t, results[2].Error.Error(), "scripted failure")
	assert.Nil(t, results[2].Results)
}

// TestRunBatch_Empty tests that no jobs yields no results
func TestRunBatch_Empty(t *testing.T) {
	assert.Nil(t, RunBatch(2, nil, nil))
}

// TestWorkerPool_Lifecycle tests manual submit and collect
func TestWorkerPool_Lifecycle(t *testing.T) {
	pool := NewWorkerPool(2, 2)
	pool.Start()

	strat := newScriptedStrategy(map[int]strategy.TradeAction{0: strategy.ActionBuy, 1: strategy.ActionSell})
	require.NoError(t, pool.SubmitJob(BacktestJob{Index: 0, Symbol: "X", InitialCapital: 1000, Data: candlesFromCloses(10, 12), Strategy: strat}))

	result := <-pool.GetResults()
	pool.Stop()

	require.NoError(t, result.Error)
	require.Len(t, result.Results.Trades, 1)
	assert.InDelta(t, 20.0, result.Results.Trades[0].PnL, 1e-9)
	assert.Greater(t, result.Duration.Nanoseconds(), int64(-1))
}

// TestProgressTracker_EstimateTimeRemaining tests the remaining time extrapolation
func TestProgressTracker_EstimateTimeRemaining(t *testing.T) {
	pt := NewProgressTracker(4)
	assert.Equal(t, time.Duration(0), pt.EstimateTimeRemaining())

	pt.startTime = time.Now().Add(-time.Second)
	pt.Increment()
	eta := pt.EstimateTimeRemaining()
	assert.GreaterOrEqual(t, eta, 3*time.Second)
	assert.Less(t, eta, 4*time.Second)
}

// TestProgressTracker_Milestones tests that progress is reported every 10% until done
func TestProgressTracker_Milestones(t *testing.T) {
	pt := NewProgressTracker(20)
	milestones := 0
	for i := 0; i < 20; i++ {
		if pt.Increment() {
			milestones++
		}
	}
	assert.Equal(t, 9, milestones)

	small := NewProgressTracker(3)
	assert.True(t, small.Increment())
	assert.True(t, small.Increment())
	assert.False(t, small.Increment())
}
