package strategy

import (
	"testing"
	"time"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candlesFromCloses(closes ...float64) []types.OHLCV {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := make([]types.OHLCV, len(closes))
	for i, c := range closes {
		data[i] = types.OHLCV{Open: c, High: c, Low: c, Close: c, Volume: 1, Timestamp: base.Add(time.Duration(i) * time.Hour)}
	}
	return data
}

// vShape falls for n bars then rises for n bars then falls again
func vShape(n int) []float64 {
	out := make([]float64, 0, 3*n)
	price := 200.0
	for i := 0; i < n; i++ {
		price -= 2
		out = append(out, price)
	}
	for i := 0; i < n; i++ {
		price += 3
		out = append(out, price)
	}
	for i := 0; i < n; i++ {
		price -= 3
		out = append(out, price)
	}
	return out
}

// TestParseKind tests identifier resolution
func TestParseKind(t *testing.T) {
	assert.Equal(t, KindEMACrossover, ParseKind("ema-crossover"))
	assert.Equal(t, KindEMACrossover, ParseKind("supertrend"))
	assert.Equal(t, KindSMACrossover, ParseKind("sma-crossover"))
	assert.Equal(t, KindNoop, ParseKind("rsi-reversal"))
	assert.Equal(t, "ema-crossover", KindEMACrossover.String())
}

// TestNew_Defaults tests that an empty parameter set uses 9/21
func TestNew_Defaults(t *testing.T) {
	s, err := New("ema-crossover", types.ParameterSet{})
	require.NoError(t, err)
	assert.Equal(t, 21, s.WarmupBars())
	assert.Equal(t, "ema-crossover(9/21)", s.GetName())
}

// TestNew_IgnoresUnknownKeys tests that unrecognised parameters are ignored
func TestNew_IgnoresUnknownKeys(t *testing.T) {
	s, err := New("sma-crossover", types.ParameterSet{"short_window": 5, "long_window": 10, "rsi_period": 14})
	require.NoError(t, err)
	assert.Equal(t, KindSMACrossover, s.Kind())
	assert.Equal(t, 10, s.WarmupBars())
}

// TestNew_InvalidWindows tests parameter validation
func TestNew_InvalidWindows(t *testing.T) {
	tests := []struct {
		name   string
		params types.ParameterSet
	}{
		{"long not greater", types.ParameterSet{"short_window": 10, "long_window": 10}},
		{"zero short", types.ParameterSet{"short_window": 0}},
		{"fractional", types.ParameterSet{"long_window": 20.5}},
		{"negative", types.ParameterSet{"long_window": -3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("ema-crossover", tt.params)
			require.Error(t, err)
			assert.True(t, errors.IsConfigError(err))
		})
	}
}

// TestNew_UnknownIsNoop tests that unknown identifiers never trade
func TestNew_UnknownIsNoop(t *testing.T) {
	s, err := New("does-not-exist", types.ParameterSet{"short_window": 0})
	require.NoError(t, err)
	assert.Equal(t, KindNoop, s.Kind())
	assert.Equal(t, "does-not-exist", s.GetName())

	data := candlesFromCloses(vShape(30)...)
	s.Prepare(data)
	for i := range data {
		assert.Equal(t, ActionHold, s.Step(i, false))
	}
}

// TestMACrossover_StepSignals tests that a V shaped series produces one entry followed by one exit
func TestMACrossover_StepSignals(t *testing.T) {
	s, err := New("ema-crossover", types.ParameterSet{"short_window": 3, "long_window": 8})
	require.NoError(t, err)

	data := candlesFromCloses(vShape(20)...)
	s.Prepare(data)

	entry, exit := -1, -1
	inPosition := false
	for i := range data {
		switch s.Step(i, inPosition) {
		case ActionBuy:
			require.False(t, inPosition)
			inPosition = true
			if entry < 0 {
				entry = i
			}
		case ActionSell:
			require.True(t, inPosition)
			inPosition = false
			if exit < 0 {
				exit = i
			}
		}
	}

	assert.Greater(t, entry, 20, "entry after the bottom")
	assert.Less(t, entry, 40)
	assert.Greater(t, exit, 40, "exit after the top")
	assert.False(t, inPosition)
}

// TestMACrossover_NoSignalBeforeWarmup tests that bars below the long window hold
func TestMACrossover_NoSignalBeforeWarmup(t *testing.T) {
	s, err := NewMACrossover(KindEMACrossover, types.ParameterSet{"short_window": 2, "long_window": 5})
	require.NoError(t, err)

	s.Prepare(candlesFromCloses(10, 9, 8, 7, 6, 20, 30))
	for i := 0; i < 5; i++ {
		assert.Equal(t, ActionHold, s.Step(i, false))
	}
	assert.Equal(t, ActionBuy, s.Step(5, false))
}

// TestWarmupFor tests warm-up lookup with valid and invalid parameters
func TestWarmupFor(t *testing.T) {
	bars, ok := WarmupFor("ema-crossover", types.ParameterSet{"long_window": 30})
	assert.True(t, ok)
	assert.Equal(t, 30, bars)

	_, ok = WarmupFor("ema-crossover", types.ParameterSet{"long_window": 5})
	assert.False(t, ok)

	bars, ok = WarmupFor("noop", nil)
	assert.True(t, ok)
	assert.Equal(t, 0, bars)
}
