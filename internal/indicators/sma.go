package indicators

import (
	"fmt"

	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// SMA represents the Simple Moving Average technical indicator
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

// Series returns the SMA for every bar, 0 until period bars are available.
// It uses a running sum so the whole series is O(n).
func (s *SMA) Series(data []types.OHLCV) []float64 {
	out := make([]float64, len(data))
	if s.period <= 0 {
		return out
	}
	sum := 0.0
	for i, c := range data {
		sum += c.Close
		if i >= s.period {
			sum -= data[i-s.period].Close
		}
		if i >= s.period-1 {
			out[i] = sum / float64(s.period)
		}
	}
	return out
}

// Calculate returns the SMA at the last bar.
func (s *SMA) Calculate(data []types.OHLCV) (float64, error) {
	if s.period <= 0 || len(data) < s.period {
		return 0, fmt.Errorf("insufficient data for SMA calculation: need %d, got %d", s.period, len(data))
	}
	sum := 0.0
	for _, c := range data[len(data)-s.period:] {
		sum += c.Close
	}
	return sum / float64(s.period), nil
}

// GetName returns the indicator name
func (s *SMA) GetName() string {
	return fmt.Sprintf("SMA(%d)", s.period)
}

// GetRequiredPeriods returns the minimum number of periods needed
func (s *SMA) GetRequiredPeriods() int {
	return s.period
}
