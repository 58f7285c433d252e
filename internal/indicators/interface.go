package indicators

import (
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// SeriesIndicator produces one value per input candle. Bars before the
// warm-up period is satisfied are 0-filled.
type SeriesIndicator interface {
	Series(data []types.OHLCV) []float64
	GetName() string
	GetRequiredPeriods() int
}

func closes(data []types.OHLCV) []float64 {
	out := make([]float64, len(data))
	for i, c := range data {
		out[i] = c.Close
	}
	return out
}
