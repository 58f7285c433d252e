package data

import (
	"sort"
	"time"

	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// DefaultDataFilter implements DataFilter for common filtering operations
type DefaultDataFilter struct{}

// NewDefaultDataFilter creates a new default data filter
func NewDefaultDataFilter() *DefaultDataFilter {
	return &DefaultDataFilter{}
}

// FilterByPeriod filters data to the last N period
func (f *DefaultDataFilter) FilterByPeriod(data []types.OHLCV, period time.Duration) []types.OHLCV {
	if period <= 0 || len(data) == 0 {
		return data
	}

	cutoffTime := data[len(data)-1].Timestamp.Add(-period)
	startIdx := sort.Search(len(data), func(i int) bool {
		return !data[i].Timestamp.Before(cutoffTime)
	})
	return data[startIdx:]
}

// FilterByDateRange filters data to a specific date range
func (f *DefaultDataFilter) FilterByDateRange(data []types.OHLCV, start, end time.Time) []types.OHLCV {
	if len(data) == 0 || (start.IsZero() && end.IsZero()) {
		return data
	}

	var filtered []types.OHLCV
	for _, candle := range data {
		if !start.IsZero() && candle.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && candle.Timestamp.After(end) {
			continue
		}
		filtered = append(filtered, candle)
	}
	return filtered
}

// SortByTimestamp returns a chronologically sorted copy
func (f *DefaultDataFilter) SortByTimestamp(data []types.OHLCV) []types.OHLCV {
	sorted := make([]types.OHLCV, len(data))
	copy(sorted, data)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// RemoveDuplicates removes duplicate timestamps, keeping the first occurrence
func (f *DefaultDataFilter) RemoveDuplicates(data []types.OHLCV) []types.OHLCV {
	if len(data) <= 1 {
		return data
	}

	var filtered []types.OHLCV
	seen := make(map[int64]bool)
	for _, candle := range data {
		ts := candle.Timestamp.UnixNano()
		if !seen[ts] {
			seen[ts] = true
			filtered = append(filtered, candle)
		}
	}
	return filtered
}

// Normalize sorts data and drops duplicate timestamps
func (f *DefaultDataFilter) Normalize(data []types.OHLCV) []types.OHLCV {
	return f.RemoveDuplicates(f.SortByTimestamp(data))
}
