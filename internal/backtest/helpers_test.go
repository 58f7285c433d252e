package backtest

import (
	"math"
	"time"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/strategy"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

var testBaseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func candlesFromCloses(closes ...float64) []types.OHLCV {
	data := make([]types.OHLCV, len(closes))
	for i, c := range closes {
		data[i] = types.OHLCV{
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    1000,
			Timestamp: testBaseTime.Add(time.Duration(i) * 24 * time.Hour),
		}
	}
	return data
}

func generateConstantData(count int, price float64) []types.OHLCV {
	closes := make([]float64, count)
	for i := range closes {
		closes[i] = price
	}
	return candlesFromCloses(closes...)
}

// generateWaveData oscillates around 100 so moving averages cross repeatedly
func generateWaveData(count int, period float64) []types.OHLCV {
	closes := make([]float64, count)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(2*math.Pi*float64(i)/period) + 0.05*float64(i)
	}
	return candlesFromCloses(closes...)
}

// scriptedStrategy returns fixed actions at fixed bars
type scriptedStrategy struct {
	actions  map[int]strategy.TradeAction
	panicAt  int
	prepared bool
}

func newScriptedStrategy(actions map[int]strategy.TradeAction) *scriptedStrategy {
	return &scriptedStrategy{actions: actions, panicAt: -1}
}

func (s *scriptedStrategy) GetName() string { return "scripted" }

func (s *scriptedStrategy) Kind() strategy.Kind { return strategy.KindNoop }

func (s *scriptedStrategy) WarmupBars() int { return 0 }

func (s *scriptedStrategy) Prepare(data []types.OHLCV) { s.prepared = true }

func (s *scriptedStrategy) Step(i int, inPosition bool) strategy.TradeAction {
	if i == s.panicAt {
		panic("scripted failure")
	}
	return s.actions[i]
}
