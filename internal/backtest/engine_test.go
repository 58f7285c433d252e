package backtest

import (
	"testing"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/strategy"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBacktestEngine_Run_RoundTrip tests sizing, PnL and pre-decision equity points
func TestBacktestEngine_Run_RoundTrip(t *testing.T) {
	engine := NewBacktestEngine("BTCUSDT", 10000)
	strat := newScriptedStrategy(map[int]strategy.TradeAction{
		2: strategy.ActionBuy,
		5: strategy.ActionSell,
	})
	data := candlesFromCloses(90, 95, 100, 104, 108, 110, 111)

	results := engine.Run(strat, data)

	assert.True(t, strat.prepared)
	require.Len(t, results.Trades, 1)
	trade := results.Trades[0]
	assert.Equal(t, int64(10), trade.Quantity) // floor(10000*0.1/100)
	assert.Equal(t, 100.0, trade.EntryPrice)
	assert.Equal(t, 110.0, trade.ExitPrice)
	assert.InDelta(t, 100.0, trade.PnL, 1e-9)
	assert.Equal(t, types.SideBuy, trade.Side)
	assert.Equal(t, "BTCUSDT", trade.Symbol)
	assert.Equal(t, data[2].Timestamp, trade.EntryTime)
	assert.Equal(t, data[5].Timestamp, trade.ExitTime)

	require.Len(t, results.EquityCurve, len(data))
	assert.Equal(t, 10000.0, results.EquityCurve[5].NAV, "point is taken before the exit decision")
	assert.Equal(t, 10100.0, results.EquityCurve[6].NAV)
	assert.Equal(t, 10100.0, results.FinalNAV)
	assert.Nil(t, results.OpenPosition)
	assert.Equal(t, 1, results.Report.TotalTrades)
	assert.Equal(t, 100.0, results.Report.WinRate)
}

// TestBacktestEngine_Run_ZeroQuantityDiscarded tests that an order too small for one unit is dropped
func TestBacktestEngine_Run_ZeroQuantityDiscarded(t *testing.T) {
	engine := NewBacktestEngine("ETHUSDT", 500)
	strat := newScriptedStrategy(map[int]strategy.TradeAction{
		1: strategy.ActionBuy,
		3: strategy.ActionSell,
	})

	results := engine.Run(strat, candlesFromCloses(100, 100, 90, 80))

	assert.Empty(t, results.Trades)
	assert.Nil(t, results.OpenPosition)
	assert.Equal(t, 500.0, results.FinalNAV)
}

// TestBacktestEngine_Run_Drawdown tests drawdown tracking on a losing trade
func TestBacktestEngine_Run_Drawdown(t *testing.T) {
	engine := NewBacktestEngine("BTCUSDT", 10000)
	strat := newScriptedStrategy(map[int]strategy.TradeAction{
		0: strategy.ActionBuy,
		2: strategy.ActionSell,
	})

	results := engine.Run(strat, candlesFromCloses(100, 80, 50, 60))

	require.Len(t, results.Trades, 1)
	assert.InDelta(t, -500.0, results.Trades[0].PnL, 1e-9)
	assert.InDelta(t, 0.05, results.MaxDrawdown, 1e-12)
	assert.InDelta(t, 500.0, results.MaxDrawdownAmount, 1e-9)
	assert.InDelta(t, 5.0, results.Report.MaxDrawdownPercent, 1e-9)
	assert.InDelta(t, 500.0, results.Report.MaxDrawdown, 1e-9)
	assert.Equal(t, 0.0, results.Report.ProfitFactor, "no winning trades")
	assert.Equal(t, 500.0, results.Report.AverageLoss)
}

// TestBacktestEngine_Run_OpenPositionNotClosed tests that a position open at the end is reported only
func TestBacktestEngine_Run_OpenPositionNotClosed(t *testing.T) {
	engine := NewBacktestEngine("BTCUSDT", 10000)
	strat := newScriptedStrategy(map[int]strategy.TradeAction{1: strategy.ActionBuy})

	results := engine.Run(strat, candlesFromCloses(100, 100, 200))

	assert.Empty(t, results.Trades)
	require.NotNil(t, results.OpenPosition)
	assert.Equal(t, int64(10), results.OpenPosition.Quantity)
	assert.Equal(t, 10000.0, results.FinalNAV)
}

// TestBacktestEngine_Run_IgnoresRedundantActions tests buy while long and sell while flat
func TestBacktestEngine_Run_IgnoresRedundantActions(t *testing.T) {
	engine := NewBacktestEngine("BTCUSDT", 10000)
	strat := newScriptedStrategy(map[int]strategy.TradeAction{
		0: strategy.ActionSell,
		1: strategy.ActionBuy,
		2: strategy.ActionBuy,
		3: strategy.ActionSell,
		4: strategy.ActionSell,
	})

	results := engine.Run(strat, candlesFromCloses(100, 100, 120, 130, 140))

	require.Len(t, results.Trades, 1)
	assert.Equal(t, 100.0, results.Trades[0].EntryPrice)
	assert.Equal(t, 130.0, results.Trades[0].ExitPrice)
}

// TestSimulate_UnknownStrategy tests that unrecognised strategies never trade
func TestSimulate_UnknownStrategy(t *testing.T) {
	data := generateWaveData(200, 30)

	results, err := Simulate("mystery", "BTCUSDT", 10000, data, nil)
	require.NoError(t, err)

	assert.Empty(t, results.Trades)
	require.Len(t, results.EquityCurve, len(data))
	for _, p := range results.EquityCurve {
		assert.Equal(t, 10000.0, p.NAV)
	}
	assert.Equal(t, PerformanceReport{}, results.Report)
}

// TestSimulate_EquityInvariants tests curve length, first point and peak monotonicity
func TestSimulate_EquityInvariants(t *testing.T) {
	data := generateWaveData(400, 40)

	results, err := Simulate("ema-crossover", "BTCUSDT", 25000, data, types.ParameterSet{"short_window": 5, "long_window": 15})
	require.NoError(t, err)
	require.NotEmpty(t, results.Trades)

	require.Len(t, results.EquityCurve, len(data))
	assert.Equal(t, 25000.0, results.EquityCurve[0].NAV)

	peak := results.EquityCurve[0].NAV
	for _, p := range results.EquityCurve {
		if p.NAV > peak {
			peak = p.NAV
		}
		drawdown := (peak - p.NAV) / peak
		assert.GreaterOrEqual(t, drawdown, 0.0)
		assert.LessOrEqual(t, drawdown, 1.0)
		assert.LessOrEqual(t, drawdown, results.MaxDrawdown+1e-12)
	}
	assert.Equal(t, "ema-crossover", results.Strategy)
	assert.Equal(t, 15.0, results.Params["long_window"])
}

// TestSimulate_SupertrendAliasesEMA tests that both identifiers produce identical runs
func TestSimulate_SupertrendAliasesEMA(t *testing.T) {
	data := generateWaveData(300, 35)

	a, err := Simulate("ema-crossover", "X", 10000, data, nil)
	require.NoError(t, err)
	b, err := Simulate("supertrend", "X", 10000, data, nil)
	require.NoError(t, err)

	assert.Equal(t, a.Trades, b.Trades)
	assert.Equal(t, a.Report, b.Report)
}

// TestSimulate_ConfigErrors tests rejected inputs
func TestSimulate_ConfigErrors(t *testing.T) {
	_, err := Simulate("ema-crossover", "BTCUSDT", 10000, nil, nil)
	assert.True(t, errors.IsConfigError(err))

	_, err = Simulate("ema-crossover", "BTCUSDT", 0, generateConstantData(10, 100), nil)
	assert.True(t, errors.IsConfigError(err))

	_, err = Simulate("ema-crossover", "BTCUSDT", 10000, generateConstantData(10, 100), types.ParameterSet{"short_window": 30})
	assert.True(t, errors.IsConfigError(err))
}

// TestSimulate_SingleCandle tests that degenerate input yields a neutral report
func TestSimulate_SingleCandle(t *testing.T) {
	results, err := Simulate("ema-crossover", "BTCUSDT", 10000, generateConstantData(1, 100), nil)
	require.NoError(t, err)

	assert.Len(t, results.EquityCurve, 1)
	assert.Equal(t, PerformanceReport{}, results.Report)
}
