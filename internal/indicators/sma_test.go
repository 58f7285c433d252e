package indicators

import (
	"testing"
	"time"

	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestData(count int) []types.OHLCV {
	data := make([]types.OHLCV, count)
	baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		price := 100.0 + float64(i)
		data[i] = types.OHLCV{
			Open:      price - 0.5,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
			Timestamp: baseTime.Add(time.Duration(i) * time.Hour),
		}
	}
	return data
}

func generateFlatData(count int) []types.OHLCV {
	data := generateTestData(count)
	for i := range data {
		data[i].Close = 100.0
	}
	return data
}

// TestSMA_Series_ZeroFilledWarmup tests that bars before the window is full are 0
func TestSMA_Series_ZeroFilledWarmup(t *testing.T) {
	sma := NewSMA(5)
	series := sma.Series(generateTestData(10))

	require.Len(t, series, 10)
	for i := 0; i < 4; i++ {
		assert.Equal(t, 0.0, series[i], "bar %d", i)
	}
	assert.InDelta(t, 102.0, series[4], 1e-9)
	assert.InDelta(t, 107.0, series[9], 1e-9)
}

// TestSMA_Calculate_MatchesSeries tests that the point value equals the last series value
func TestSMA_Calculate_MatchesSeries(t *testing.T) {
	sma := NewSMA(5)
	data := generateTestData(12)

	value, err := sma.Calculate(data)
	require.NoError(t, err)

	series := sma.Series(data)
	assert.InDelta(t, series[len(series)-1], value, 1e-9)
}

// TestSMA_Calculate_InsufficientData tests the error for short input
func TestSMA_Calculate_InsufficientData(t *testing.T) {
	_, err := NewSMA(20).Calculate(generateTestData(10))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient data")
}

// TestSMA_Series_Flat tests a constant series
func TestSMA_Series_Flat(t *testing.T) {
	series := NewSMA(3).Series(generateFlatData(6))
	for i := 2; i < 6; i++ {
		assert.Equal(t, 100.0, series[i])
	}
}
