package indicators

import (
	"fmt"

	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// EMA represents the Exponential Moving Average technical indicator.
//
// Each bar's value is computed over the trailing window of period closes only:
// the window's first close seeds the average and the remaining closes are
// folded in with alpha = 2/(period+1). Values never depend on data older
// than the window, so a series sliced from a longer history yields the same
// values at the same bars once the window is full.
type EMA struct {
	period int
	alpha  float64
}

// NewEMA creates a new EMA indicator
func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1),
	}
}

// Series returns the EMA for every bar, 0 until period bars are available.
func (e *EMA) Series(data []types.OHLCV) []float64 {
	return e.SeriesOf(closes(data))
}

// SeriesOf computes the series over raw values.
func (e *EMA) SeriesOf(values []float64) []float64 {
	out := make([]float64, len(values))
	if e.period <= 0 {
		return out
	}
	for i := e.period - 1; i < len(values); i++ {
		out[i] = e.window(values[i-e.period+1 : i+1])
	}
	return out
}

// Calculate returns the EMA at the last bar.
func (e *EMA) Calculate(data []types.OHLCV) (float64, error) {
	if e.period <= 0 || len(data) < e.period {
		return 0, fmt.Errorf("insufficient data for EMA calculation: need %d, got %d", e.period, len(data))
	}
	return e.window(closes(data[len(data)-e.period:])), nil
}

func (e *EMA) window(values []float64) float64 {
	value := values[0]
	for _, v := range values[1:] {
		value = (v-value)*e.alpha + value
	}
	return value
}

// GetName returns the indicator name
func (e *EMA) GetName() string {
	return fmt.Sprintf("EMA(%d)", e.period)
}

// GetRequiredPeriods returns the minimum number of periods needed
func (e *EMA) GetRequiredPeriods() int {
	return e.period
}
